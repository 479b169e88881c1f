// Package projectconfigs provides the ProjectConfig configuration type for dtrl.
package projectconfigs

import (
	"fmt"
	"maps"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/dtrl/api"
	"github.com/macropower/dtrl/api/v1beta1"
	"github.com/macropower/dtrl/pkg/command"
	"github.com/macropower/dtrl/pkg/profile"
	"github.com/macropower/dtrl/pkg/rule"
	"github.com/macropower/dtrl/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen/project/main.go -o projectconfigs.v1beta1.json

var (
	// FileNames contains the valid names for project configuration files.
	FileNames = []string{
		".dtrl.yaml",
		"dtrl.yaml",
	}

	//go:embed projectconfigs.v1beta1.json
	projectSchemaJSON []byte

	// DefaultValidator validates project configuration against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/projectconfigs.v1beta1.json", projectSchemaJSON)

	// ValidKinds contains the valid kind values for project configurations.
	ValidKinds = []string{"ProjectConfig"}

	// Compile-time interface checks.
	_ v1beta1.Object = (*ProjectConfig)(nil)
)

// ProjectConfig represents project-level configuration. Its profiles are
// merged over the global configuration, and its rules take precedence.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type ProjectConfig struct {
	Command          *command.Config `json:",inline"`
	v1beta1.TypeMeta `json:",inline"`
}

// New creates a new [ProjectConfig].
func New() *ProjectConfig {
	return &ProjectConfig{
		TypeMeta: v1beta1.NewTypeMeta("ProjectConfig"),
		Command:  &command.Config{},
	}
}

// EnsureDefaults initializes nil fields to their default values.
func (c *ProjectConfig) EnsureDefaults() {
	if c.Command == nil {
		c.Command = &command.Config{}
	}
}

// Validate validates the project configuration. Rules may reference
// profiles from the global configuration, so links are checked by [ProjectConfig.Merge].
func (c *ProjectConfig) Validate() error {
	if c.Command != nil {
		err := c.Command.ValidateExpressions()
		if err != nil {
			return fmt.Errorf("validate command config: %w", err)
		}
	}

	return nil
}

func (c ProjectConfig) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// Merge applies the project configuration on top of global. Project profiles
// replace global profiles of the same name, and project rules are evaluated
// before global rules. The result is validated.
func (c *ProjectConfig) Merge(global *command.Config) (*command.Config, error) {
	merged := &command.Config{
		Profiles: make(map[string]*profile.Profile),
	}

	if global != nil {
		maps.Copy(merged.Profiles, global.Profiles)
	}

	if c.Command != nil {
		maps.Copy(merged.Profiles, c.Command.Profiles)
		merged.Rules = appendClones(merged.Rules, c.Command.Rules)
	}

	if global != nil {
		merged.Rules = appendClones(merged.Rules, global.Rules)
	}

	err := merged.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate merged config: %w", err)
	}

	return merged, nil
}

// appendClones appends copies of rules to dst, so that linking the merged
// rules to profiles leaves the source configurations untouched.
func appendClones(dst, rules []*rule.Rule) []*rule.Rule {
	for _, r := range rules {
		dst = append(dst, r.Clone())
	}

	return dst
}

// Find searches for a project config file starting from targetPath
// and walking up the directory tree until the filesystem root.
// It checks for all [FileNames] in each directory.
// Returns the path to the config file if found, or empty string if not found.
func Find(targetPath string) (string, error) {
	path, err := api.FindConfigFile(targetPath, FileNames)
	if err != nil {
		return "", fmt.Errorf("find project config: %w", err)
	}

	return path, nil
}

// Schema returns the embedded JSON schema for project configuration.
func Schema() []byte {
	return projectSchemaJSON
}
