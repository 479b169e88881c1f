package profile

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/cel-go/cel"

	"github.com/macropower/dtrl/pkg/compile"
	"github.com/macropower/dtrl/pkg/drl"
	"github.com/macropower/dtrl/pkg/expr"
	"github.com/macropower/dtrl/pkg/table"
)

// Profile represents a compile profile.
type Profile struct {
	whereProgram  *expr.LazyProgram
	reloadProgram *expr.LazyProgram

	// Dialect is the rule dialect written for rules that do not set one via
	// an attribute column. Defaults to "mvel". Use "none" to omit the line.
	Dialect string `json:"dialect,omitempty" jsonschema:"title=Dialect"`

	// Indent is the indentation unit used in compiled rules. Defaults to a tab.
	Indent string `json:"indent,omitempty" jsonschema:"title=Indent"`

	// Package is written as a package declaration ahead of the compiled rules.
	Package string `json:"package,omitempty" jsonschema:"title=Package"`

	// Where is a CEL expression evaluated for every row. Rows for which it
	// returns false are not compiled. The expression has access to:
	//   - `row.index` (int): The 0-based row index
	//   - `row.number` (int): The 1-based row number
	//   - `row.id` (string): The first cell of the row
	//   - `row.description` (string): The second cell of the row
	//   - `row.cells` (list<string>): All cells of the row
	//   - `table.name` (string): The table name
	//   - `table.parent` (string): The parent rule name, if any
	//
	// Examples:
	//   - `!row.description.startsWith("disabled")`
	//   - `row.number <= 100`
	//   - `!isBlank(row.cells[2])`
	//
	// If no Where expression is provided, every row is compiled.
	Where string `json:"where,omitempty" jsonschema:"title=Where"`

	// Reload contains a CEL expression that is evaluated on file events while
	// watching. If the expression returns true, the table is recompiled. The
	// expression has access to:
	//   - `file` (string): The file path that triggered the event
	//   - `fs.event` (int): The file event type, at least one of `fs.CREATE`, `fs.WRITE`, `fs.REMOVE`, `fs.RENAME`, `fs.CHMOD`
	//
	// Examples:
	//   - `fs.event.has(fs.WRITE, fs.CREATE)`
	//   - `pathExt(file) != ".csv"`
	//
	// If no Reload expression is provided, every event triggers a recompile.
	Reload string `json:"reload,omitempty" jsonschema:"title=Reload"`

	// Imports are written as import declarations ahead of the compiled rules.
	Imports []string `json:"imports,omitempty" jsonschema:"title=Imports"`
}

// NoDialect disables the dialect line in compiled rules.
const NoDialect = "none"

// ProfileOpt is a functional option for configuring a Profile.
type ProfileOpt func(*Profile)

// New creates a new profile with the given options.
func New(opts ...ProfileOpt) (*Profile, error) {
	p := &Profile{}
	for _, opt := range opts {
		opt(p)
	}

	err := p.Build()
	if err != nil {
		return nil, err
	}

	return p, nil
}

// MustNew creates a new profile and panics if there's an error.
func MustNew(opts ...ProfileOpt) *Profile {
	p, err := New(opts...)
	if err != nil {
		panic(err)
	}

	return p
}

// WithPackage sets the package declaration.
func WithPackage(pkg string) ProfileOpt {
	return func(p *Profile) {
		p.Package = pkg
	}
}

// WithImports sets the import declarations.
func WithImports(imports ...string) ProfileOpt {
	return func(p *Profile) {
		p.Imports = imports
	}
}

// WithDialect sets the rule dialect.
func WithDialect(dialect string) ProfileOpt {
	return func(p *Profile) {
		p.Dialect = dialect
	}
}

// WithIndent sets the indentation unit.
func WithIndent(indent string) ProfileOpt {
	return func(p *Profile) {
		p.Indent = indent
	}
}

// WithWhere sets the row filter expression.
func WithWhere(where string) ProfileOpt {
	return func(p *Profile) {
		p.Where = where
	}
}

// WithReload sets the reload expression.
func WithReload(reload string) ProfileOpt {
	return func(p *Profile) {
		p.Reload = reload
	}
}

// Build compiles the profile's expressions.
func (p *Profile) Build() error {
	err := p.CompileWhere()
	if err != nil {
		return fmt.Errorf("compile where: %w", err)
	}

	err = p.CompileReload()
	if err != nil {
		return fmt.Errorf("compile reload: %w", err)
	}

	return nil
}

// CompileWhere compiles the profile's row filter into a CEL program.
func (p *Profile) CompileWhere() error {
	if p.Where == "" {
		return nil
	}

	if p.whereProgram == nil {
		env, err := expr.NewEnvironment(
			cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("table", cel.MapType(cel.StringType, cel.DynType)),
		)
		if err != nil {
			return fmt.Errorf("environment: %w", err)
		}

		p.whereProgram = expr.NewLazyProgram(p.Where, env)
	}

	_, err := p.whereProgram.Get()
	if err != nil {
		return fmt.Errorf("expression: %w", err)
	}

	return nil
}

// CompileReload compiles the profile's reload expression into a CEL program.
func (p *Profile) CompileReload() error {
	if p.Reload == "" {
		return nil
	}

	if p.reloadProgram == nil {
		env, err := expr.NewEnvironment(
			cel.Variable("file", cel.StringType),
			cel.Variable("fs.event", cel.IntType),
		)
		if err != nil {
			return fmt.Errorf("environment: %w", err)
		}

		p.reloadProgram = expr.NewLazyProgram(p.Reload, env)
	}

	_, err := p.reloadProgram.Get()
	if err != nil {
		return fmt.Errorf("expression: %w", err)
	}

	return nil
}

// MatchRow evaluates the profile's where expression against row i of t.
// If no where expression is configured, it always returns true.
func (p *Profile) MatchRow(t *table.Table, i int) (bool, error) {
	if p.whereProgram == nil {
		return true, nil
	}

	program, err := p.whereProgram.Get()
	if err != nil {
		return false, fmt.Errorf("compile where expression: %w", err)
	}

	ok, err := expr.EvalBool(program, RowVars(t, i))
	if err != nil {
		return false, fmt.Errorf("where: %w", err)
	}

	return ok, nil
}

// MatchFileEvent evaluates the profile's reload expression against a file system event.
// Returns true if the reload should proceed, false if it should be skipped.
// If no reload expression is configured, it always returns true.
func (p *Profile) MatchFileEvent(filePath string, fsOp fsnotify.Op) (bool, error) {
	if p.reloadProgram == nil {
		return true, nil
	}

	program, err := p.reloadProgram.Get()
	if err != nil {
		return false, fmt.Errorf("compile reload expression: %w", err)
	}

	evalVars := map[string]any{
		"file":     filePath,
		"fs.event": int64(fsOp),
	}

	ok, err := expr.EvalBool(program, evalVars)
	if err != nil {
		return false, fmt.Errorf("reload: %w", err)
	}

	if !ok {
		slog.Debug("skipping reload",
			slog.String("file", filePath),
			slog.String("op", fsOp.String()),
		)
	}

	return ok, nil
}

// Serializer returns the rule serializer configured by the profile.
func (p *Profile) Serializer() *drl.Serializer {
	var opts []drl.SerializerOpt

	switch p.Dialect {
	case "":
	case NoDialect:
		opts = append(opts, drl.WithDialect(""))
	default:
		opts = append(opts, drl.WithDialect(p.Dialect))
	}

	if p.Indent != "" {
		opts = append(opts, drl.WithIndent(p.Indent))
	}

	return drl.NewSerializer(opts...)
}

// CompilerOpts returns the [compile.CompilerOpt]s for the profile.
func (p *Profile) CompilerOpts() []compile.CompilerOpt {
	opts := []compile.CompilerOpt{
		compile.WithSerializer(p.Serializer()),
	}
	if p.whereProgram != nil {
		opts = append(opts, compile.WithRowFilter(p.MatchRow))
	}

	return opts
}

// Header returns the package and import declarations written ahead of the
// compiled rules, followed by a blank line. It is empty if neither is set.
func (p *Profile) Header() string {
	if p.Package == "" && len(p.Imports) == 0 {
		return ""
	}

	var sb strings.Builder

	if p.Package != "" {
		fmt.Fprintf(&sb, "package %s;\n\n", p.Package)
	}

	for _, imp := range p.Imports {
		fmt.Fprintf(&sb, "import %s;\n", imp)
	}

	if len(p.Imports) > 0 {
		sb.WriteString("\n")
	}

	return sb.String()
}

// RowVars returns the CEL variables describing row i of t.
func RowVars(t *table.Table, i int) map[string]any {
	row := t.Rows[i]

	var id, description string
	if len(row) > 0 {
		id = row[0]
	}
	if len(row) > 1 {
		description = row[1]
	}

	return map[string]any{
		"row": map[string]any{
			"index":       int64(i),
			"number":      int64(i + 1),
			"id":          id,
			"description": description,
			"cells":       row,
		},
		"table": map[string]any{
			"name":   t.Name,
			"parent": t.ParentName,
		},
	}
}
