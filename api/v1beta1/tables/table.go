// Package tables provides the DecisionTable document type for dtrl.
package tables

import (
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/dtrl/api/v1beta1"
	"github.com/macropower/dtrl/pkg/brl"
	"github.com/macropower/dtrl/pkg/table"
	"github.com/macropower/dtrl/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen/table/main.go -o tables.v1beta1.json

// Kind is the kind of decision table documents.
const Kind = "DecisionTable"

// Action column kinds.
const (
	ActionInsert   = "insert"
	ActionRetract  = "retract"
	ActionSetField = "setField"
)

var (
	//go:embed tables.v1beta1.json
	schemaJSON []byte

	// ValidKinds contains the valid kind values for decision tables.
	ValidKinds = []string{Kind}

	// DefaultValidator validates decision tables against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/tables.v1beta1.json", schemaJSON)

	// Compile-time interface checks.
	_ v1beta1.Object = (*DecisionTable)(nil)
)

// DecisionTable is a decision table document.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type DecisionTable struct {
	v1beta1.TypeMeta `json:",inline"`

	// Name is used in every generated rule name.
	Name string `json:"name" jsonschema:"title=Name"`
	// Parent is the rule every generated rule extends.
	Parent string `json:"parent,omitempty" jsonschema:"title=Parent Rule"`
	// RowsFrom is a CSV file, relative to this document, holding the rows.
	// Rows from the file are appended to Rows.
	RowsFrom string `json:"rowsFrom,omitempty" jsonschema:"title=Rows From"`

	// Metadata lists the metadata columns, written as rule annotations.
	Metadata []*MetadataColumn `json:"metadata,omitempty" jsonschema:"title=Metadata Columns"`
	// Attributes lists the attribute columns, e.g. salience.
	Attributes []*AttributeColumn `json:"attributes,omitempty" jsonschema:"title=Attribute Columns"`
	// Conditions lists the condition columns.
	Conditions []*ConditionColumn `json:"conditions,omitempty" jsonschema:"title=Condition Columns"`
	// Actions lists the action columns.
	Actions []*ActionColumn `json:"actions,omitempty" jsonschema:"title=Action Columns"`

	// Rows holds the table rows. The first two cells of every row are the
	// row id and a description, followed by one cell per column in the
	// order metadata, attributes, conditions, actions.
	Rows [][]any `json:"rows,omitempty" jsonschema:"title=Rows"`
}

// MetadataColumn is a metadata column.
type MetadataColumn struct {
	Name string `json:"name" jsonschema:"title=Name"`
}

// AttributeColumn is a rule attribute column.
type AttributeColumn struct {
	Default any    `json:"default,omitempty" jsonschema:"title=Default"`
	Name    string `json:"name" jsonschema:"title=Name"`
}

// ConditionColumn is a condition column.
type ConditionColumn struct {
	Default   any    `json:"default,omitempty" jsonschema:"title=Default"`
	BoundName string `json:"boundName,omitempty" jsonschema:"title=Bound Name"`
	FactType  string `json:"factType" jsonschema:"title=Fact Type"`
	Field     string `json:"field,omitempty" jsonschema:"title=Field"`
	Kind      string `json:"kind,omitempty" jsonschema:"title=Constraint Kind,enum=literal,enum=returnValue,enum=predicate"`
	Operator  string `json:"operator,omitempty" jsonschema:"title=Operator"`
}

// ActionColumn is an action column.
type ActionColumn struct {
	Default   any    `json:"default,omitempty" jsonschema:"title=Default"`
	Kind      string `json:"kind" jsonschema:"title=Action Kind,enum=insert,enum=retract,enum=setField"`
	BoundName string `json:"boundName" jsonschema:"title=Bound Name"`
	FactType  string `json:"factType,omitempty" jsonschema:"title=Fact Type"`
	Field     string `json:"field,omitempty" jsonschema:"title=Field"`
	Type      string `json:"type,omitempty" jsonschema:"title=Value Type,enum=String,enum=Numeric,enum=Boolean,enum=Date"`
	Update    bool   `json:"update,omitempty" jsonschema:"title=Update"`
}

// New creates a new, empty [DecisionTable].
func New() *DecisionTable {
	return &DecisionTable{
		TypeMeta: v1beta1.NewTypeMeta(Kind),
	}
}

// EnsureDefaults initializes empty fields to their default values.
func (d *DecisionTable) EnsureDefaults() {
	for _, c := range d.Conditions {
		if c.Kind == "" {
			c.Kind = string(brl.ConstraintLiteral)
		}
	}
}

// Validate checks the columns of the table.
func (d *DecisionTable) Validate() error {
	t, err := d.ToTable()
	if err != nil {
		return err
	}

	err = t.Validate()
	if err != nil {
		var colErr *table.ColumnError

		path := columnPath(err, &colErr)
		if path != nil {
			return yaml.NewError(colErr.Err, yaml.WithPath(path))
		}

		return err //nolint:wrapcheck // Return the original error.
	}

	return nil
}

func (d DecisionTable) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// ToTable converts the document to a [table.Table]. Rows are converted to
// strings; null cells become empty.
func (d *DecisionTable) ToTable() (*table.Table, error) {
	t := &table.Table{
		Name:       d.Name,
		ParentName: d.Parent,
		Metadata:   make([]*table.MetadataColumn, 0, len(d.Metadata)),
		Attributes: make([]*table.AttributeColumn, 0, len(d.Attributes)),
		Conditions: make([]*table.ConditionColumn, 0, len(d.Conditions)),
		Actions:    make([]table.ActionColumn, 0, len(d.Actions)),
		Rows:       make([][]string, 0, len(d.Rows)),
	}

	for _, m := range d.Metadata {
		t.Metadata = append(t.Metadata, &table.MetadataColumn{Attribute: m.Name})
	}

	for _, a := range d.Attributes {
		t.Attributes = append(t.Attributes, &table.AttributeColumn{
			Attribute: a.Name,
			Default:   Cell(a.Default),
		})
	}

	for _, c := range d.Conditions {
		t.Conditions = append(t.Conditions, &table.ConditionColumn{
			BoundName: c.BoundName,
			FactType:  c.FactType,
			FactField: c.Field,
			Kind:      brl.ConstraintKind(c.Kind),
			Operator:  c.Operator,
			Default:   Cell(c.Default),
		})
	}

	for i, a := range d.Actions {
		col, err := a.toColumn()
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}

		t.Actions = append(t.Actions, col)
	}

	for _, row := range d.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = Cell(v)
		}

		t.Rows = append(t.Rows, cells)
	}

	return t, nil
}

//nolint:ireturn // Sealed interface.
func (a *ActionColumn) toColumn() (table.ActionColumn, error) {
	def := Cell(a.Default)

	switch a.Kind {
	case ActionInsert:
		return &table.InsertColumn{
			BoundName: a.BoundName,
			FactType:  a.FactType,
			FactField: a.Field,
			Type:      brl.ValueType(a.Type),
			Default:   def,
		}, nil
	case ActionRetract:
		return &table.RetractColumn{
			BoundName: a.BoundName,
			Default:   def,
		}, nil
	case ActionSetField:
		return &table.SetFieldColumn{
			BoundName: a.BoundName,
			FactField: a.Field,
			Type:      brl.ValueType(a.Type),
			Update:    a.Update,
			Default:   def,
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown action kind %q", table.ErrInvalidTable, a.Kind)
}

// Cell converts a decoded YAML scalar to a cell string.
func Cell(v any) string {
	if v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}

// documentFields maps [table.ColumnError] fields to document keys.
var documentFields = map[string]string{
	"attribute": "name",
	"factField": "field",
}

// columnPath returns the document path of the column named by err, or nil if
// err is not a [table.ColumnError].
func columnPath(err error, colErr **table.ColumnError) *yaml.Path {
	if !errors.As(err, colErr) {
		return nil
	}

	ce := *colErr

	field := ce.Field
	if f, ok := documentFields[field]; ok {
		field = f
	}

	//nolint:gosec // G115: column indices are never negative.
	return yaml.NewPathBuilder().Root().
		Child(ce.Group).
		Index(uint(ce.Index)).
		Child(field).
		Build()
}

// Schema returns the embedded JSON schema for decision tables.
func Schema() []byte {
	return schemaJSON
}
