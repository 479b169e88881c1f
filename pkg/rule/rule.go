package rule

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/macropower/dtrl/pkg/expr"
	"github.com/macropower/dtrl/pkg/profile"
	"github.com/macropower/dtrl/pkg/table"
)

// Rule uses a CEL matcher to determine if its profile should be applied.
//
// CEL expressions have access to the `table` variable:
//   - `table.name` (string): The table name
//   - `table.parent` (string): The parent rule name, if any
//   - `table.path` (string): The path of the file the table was loaded from
//   - `table.rows` (int): The number of rows
//   - `table.factTypes` (list<string>): Fact types used by condition and insert columns
//   - `table.conditions` (list<map>): Condition columns with `boundName`, `factType`, `field`, `kind`, `operator`
//   - `table.actions` (list<map>): Action columns with `kind`, `boundName`, `factType`, `field`
//
// CEL expressions must return a boolean value:
//   - true - always matches
//   - table.name.startsWith("Pricing") - matches pricing tables
//   - pathDir(table.path).contains("/legacy") - matches tables under a legacy directory
//   - "Person" in table.factTypes - matches tables about people
//   - table.actions.exists(a, a.kind == "retract") - matches tables that retract facts
//   - yamlPath(table.path, "$.metadata.team") == "billing" - matches YAML tables owned by billing
//
// CEL path functions available:
//   - pathBase(string): Returns the last element of the path (filename)
//   - pathDir(string): Returns all but the last element of the path (directory)
//   - pathExt(string): Returns the file extension including the dot
//   - yamlPath(file, path): Reads a YAML file and extracts value at path (returns null if not found)
type Rule struct {
	matchProgram cel.Program      // Compiled CEL program for matching tables.
	pfl          *profile.Profile // Profile associated with the rule.

	// Match is a CEL expression to match tables.
	Match string `json:"match" jsonschema:"title=Match Expression"`
	// Profile is the name of the profile to use when this rule matches.
	Profile string `json:"profile" jsonschema:"title=Profile Name"`
}

// New creates a new rule with the given profile name and match expression.
func New(profileName, match string) (*Rule, error) {
	r := &Rule{
		Match:   match,
		Profile: profileName,
	}

	err := r.CompileMatch()
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", match, err)
	}

	return r, nil
}

// MustNew creates a new rule and panics if there's an error.
func MustNew(profileName, match string) *Rule {
	r, err := New(profileName, match)
	if err != nil {
		panic(err)
	}

	return r
}

// CompileMatch compiles the rule's match expression into a CEL program.
func (r *Rule) CompileMatch() error {
	if r.matchProgram != nil {
		return nil
	}

	env, err := expr.NewEnvironment(
		cel.Variable("table", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return fmt.Errorf("create CEL environment: %w", err)
	}

	program, err := env.Compile(r.Match)
	if err != nil {
		return fmt.Errorf("compile match expression: %w", err)
	}

	r.matchProgram = program

	return nil
}

// MatchTable evaluates the rule against a table loaded from path.
// Evaluation errors and non-boolean results are treated as non-matches.
func (r *Rule) MatchTable(path string, t *table.Table) bool {
	if r.matchProgram == nil {
		panic(errors.New("rule missing a match expression"))
	}

	ok, err := expr.EvalBool(r.matchProgram, TableVars(path, t))
	if err != nil {
		return false
	}

	return ok
}

func (r *Rule) GetProfile() *profile.Profile {
	if r.pfl == nil {
		panic(errors.New("rule missing a profile"))
	}

	return r.pfl
}

func (r *Rule) SetProfile(p *profile.Profile) {
	r.pfl = p
}

// Clone returns a copy of r that shares its compiled match program but is
// not yet linked to a profile.
func (r *Rule) Clone() *Rule {
	return &Rule{
		matchProgram: r.matchProgram,
		Match:        r.Match,
		Profile:      r.Profile,
	}
}

func (r *Rule) String() string {
	return fmt.Sprintf("%s: %s", r.Profile, r.Match)
}

// TableVars returns the CEL variables describing t, loaded from path.
func TableVars(path string, t *table.Table) map[string]any {
	var (
		factTypes  []string
		conditions = make([]any, 0, len(t.Conditions))
		actions    = make([]any, 0, len(t.Actions))
		seen       = map[string]bool{}
	)

	addFactType := func(ft string) {
		if ft != "" && !seen[ft] {
			seen[ft] = true
			factTypes = append(factTypes, ft)
		}
	}

	for _, c := range t.Conditions {
		addFactType(c.FactType)
		conditions = append(conditions, map[string]any{
			"boundName": c.BoundName,
			"factType":  c.FactType,
			"field":     c.FactField,
			"kind":      string(c.Kind),
			"operator":  c.Operator,
		})
	}

	for _, a := range t.Actions {
		v := actionVars(a)
		addFactType(fmt.Sprint(v["factType"]))
		actions = append(actions, v)
	}

	if factTypes == nil {
		factTypes = []string{}
	}

	return map[string]any{
		"table": map[string]any{
			"name":       t.Name,
			"parent":     t.ParentName,
			"path":       path,
			"rows":       int64(len(t.Rows)),
			"factTypes":  factTypes,
			"conditions": conditions,
			"actions":    actions,
		},
	}
}

func actionVars(a table.ActionColumn) map[string]any {
	v := map[string]any{
		"boundName": a.GetBoundName(),
		"factType":  "",
		"field":     "",
	}

	switch c := a.(type) {
	case *table.InsertColumn:
		v["kind"] = "insert"
		v["factType"] = c.FactType
		v["field"] = c.FactField
	case *table.RetractColumn:
		v["kind"] = "retract"
	case *table.SetFieldColumn:
		v["kind"] = "setField"
		if c.Update {
			v["kind"] = "update"
		}
		v["field"] = c.FactField
	}

	return v
}
