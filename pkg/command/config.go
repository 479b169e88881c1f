package command

import (
	"fmt"
	"maps"

	"github.com/macropower/dtrl/pkg/profile"
	"github.com/macropower/dtrl/pkg/rule"
	"github.com/macropower/dtrl/pkg/yaml"
)

// DefaultProfileName is the profile used when no other rule matches.
const DefaultProfileName = "default"

const (
	reloadTableFiles = `fs.event.has(fs.WRITE, fs.CREATE, fs.RENAME) &&
  pathExt(file) in [".yaml", ".yml", ".hcl", ".csv"]`

	matchAnyTable = `true`
)

var (
	defaultProfiles = map[string]*profile.Profile{
		DefaultProfileName: profile.MustNew(
			profile.WithReload(reloadTableFiles),
		),
		"java": profile.MustNew(
			profile.WithDialect("java"),
			profile.WithReload(reloadTableFiles),
		),
	}

	defaultRules = []*rule.Rule{
		rule.MustNew(DefaultProfileName, matchAnyTable),
	}

	DefaultConfig = MustNewConfig(defaultProfiles, defaultRules)
)

// Config defines profiles and the rules that select them.
type Config struct {
	// Profiles contains a map of profile names to profile configurations.
	Profiles map[string]*profile.Profile `json:"profiles,omitempty" jsonschema:"title=Profiles"`
	// Rules select a profile for each table. The first matching rule wins.
	Rules []*rule.Rule `json:"rules,omitempty" jsonschema:"title=Rules"`
}

func NewConfig(ps map[string]*profile.Profile, rs []*rule.Rule) (*Config, error) {
	c := &Config{
		Profiles: ps,
		Rules:    rs,
	}

	err := c.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func MustNewConfig(ps map[string]*profile.Profile, rs []*rule.Rule) *Config {
	c, err := NewConfig(ps, rs)
	if err != nil {
		panic(fmt.Sprintf("failed to create config: %v", err))
	}

	return c
}

// EnsureDefaults fills in the default profiles when none are set. Default
// rules are added only when the rules are unset and a profile named
// [DefaultProfileName] exists for them to select.
func (c *Config) EnsureDefaults() {
	if c.Profiles == nil {
		c.Profiles = maps.Clone(defaultProfiles)
	}

	if c.Rules != nil {
		return
	}

	if _, ok := c.Profiles[DefaultProfileName]; !ok {
		return
	}

	c.Rules = make([]*rule.Rule, 0, len(defaultRules))
	for _, r := range defaultRules {
		c.Rules = append(c.Rules, r.Clone())
	}
}

// Validate compiles every expression in the configuration and links rules to
// their profiles. Errors carry the YAML path of the offending field.
func (c *Config) Validate() error {
	err := c.ValidateExpressions()
	if err != nil {
		return err
	}

	pb := yaml.NewPathBuilder()

	for i, r := range c.Rules {
		p, ok := c.Profiles[r.Profile]
		if !ok {
			uIdx := uint(i) //nolint:gosec // G115: integer overflow conversion int -> uint.

			return yaml.NewError(
				fmt.Errorf("%w: %q", ErrUnknownProfile, r.Profile),
				yaml.WithPath(pb.Root().Child("rules").Index(uIdx).Child("profile").Build()),
			)
		}

		r.SetProfile(p)
	}

	return nil
}

// ValidateExpressions compiles every expression in the configuration without
// requiring rules to reference a profile defined in the same document.
func (c *Config) ValidateExpressions() error {
	pb := yaml.NewPathBuilder()

	for name, p := range c.Profiles {
		if p == nil {
			return yaml.NewError(
				fmt.Errorf("profile %q is empty", name),
				yaml.WithPath(pb.Root().Child("profiles").Child(name).Build()),
			)
		}

		err := p.CompileWhere()
		if err != nil {
			return yaml.NewError(
				fmt.Errorf("invalid where for profile %q: %w", name, err),
				yaml.WithPath(pb.Root().Child("profiles").Child(name).Child("where").Build()),
			)
		}

		err = p.CompileReload()
		if err != nil {
			return yaml.NewError(
				fmt.Errorf("invalid reload for profile %q: %w", name, err),
				yaml.WithPath(pb.Root().Child("profiles").Child(name).Child("reload").Build()),
			)
		}
	}

	for i, r := range c.Rules {
		uIdx := uint(i) //nolint:gosec // G115: integer overflow conversion int -> uint.

		err := r.CompileMatch()
		if err != nil {
			return yaml.NewError(
				fmt.Errorf("invalid match: %w", err),
				yaml.WithPath(pb.Root().Child("rules").Index(uIdx).Child("match").Build()),
			)
		}
	}

	return nil
}
