// Package table defines decision tables: a schema of typed columns and a grid
// of string cells with one row per rule.
package table

import (
	"github.com/macropower/dtrl/pkg/brl"
)

// InternalCells is the number of leading cells in every row that do not
// belong to a column: the row number and the row description.
const InternalCells = 2

// Table is a decision table.
//
// Every row holds [InternalCells] leading cells followed by one cell per
// column, in the order metadata, attributes, conditions, actions.
type Table struct {
	// Name is used to derive the name of every generated rule.
	Name string
	// ParentName is the name of a rule every generated rule extends.
	ParentName string

	Metadata   []*MetadataColumn
	Attributes []*AttributeColumn
	Conditions []*ConditionColumn
	Actions    []ActionColumn

	Rows [][]string
}

// Columns returns the total number of columns, excluding internal cells.
func (t *Table) Columns() int {
	return len(t.Metadata) + len(t.Attributes) + len(t.Conditions) + len(t.Actions)
}

// MetadataColumn produces a rule annotation named Attribute.
type MetadataColumn struct {
	Attribute string
}

// AttributeColumn produces a rule attribute named Attribute.
type AttributeColumn struct {
	Attribute string
	// Default is used when a cell is blank.
	Default string
}

// ConditionColumn produces a constraint on the fact pattern bound to BoundName.
type ConditionColumn struct {
	BoundName string
	FactType  string
	// FactField is the constrained field. For predicates it is an expression
	// template where "$param" is replaced with the cell value.
	FactField string
	Kind      brl.ConstraintKind
	// Operator is optional. When empty, literal and return value cells may
	// carry the operator as their first word.
	Operator string
	Default  string
}

// ActionColumn is a column of the consequence. It is implemented by
// [*InsertColumn], [*RetractColumn] and [*SetFieldColumn] only.
type ActionColumn interface {
	GetBoundName() string
	GetDefault() string
	// Accept calls the [ActionColumnVisitor] method matching the column's type.
	Accept(v ActionColumnVisitor) error

	actionColumn()
}

// ActionColumnVisitor dispatches on the concrete type of an [ActionColumn].
type ActionColumnVisitor interface {
	VisitInsert(c *InsertColumn) error
	VisitRetract(c *RetractColumn) error
	VisitSetField(c *SetFieldColumn) error
}

var (
	_ ActionColumn = (*InsertColumn)(nil)
	_ ActionColumn = (*RetractColumn)(nil)
	_ ActionColumn = (*SetFieldColumn)(nil)
)

// InsertColumn sets a field of a newly inserted fact.
type InsertColumn struct {
	BoundName string
	FactType  string
	FactField string
	Type      brl.ValueType
	Default   string
}

func (c *InsertColumn) GetBoundName() string               { return c.BoundName }
func (c *InsertColumn) GetDefault() string                 { return c.Default }
func (c *InsertColumn) Accept(v ActionColumnVisitor) error { return v.VisitInsert(c) }
func (*InsertColumn) actionColumn()                        {}

// RetractColumn retracts the fact bound to BoundName when its cell is set.
type RetractColumn struct {
	BoundName string
	Default   string
}

func (c *RetractColumn) GetBoundName() string               { return c.BoundName }
func (c *RetractColumn) GetDefault() string                 { return c.Default }
func (c *RetractColumn) Accept(v ActionColumnVisitor) error { return v.VisitRetract(c) }
func (*RetractColumn) actionColumn()                        {}

// SetFieldColumn sets a field of the fact bound to BoundName.
// When Update is true the engine is notified of the modification.
type SetFieldColumn struct {
	BoundName string
	FactField string
	Type      brl.ValueType
	Update    bool
	Default   string
}

func (c *SetFieldColumn) GetBoundName() string               { return c.BoundName }
func (c *SetFieldColumn) GetDefault() string                 { return c.Default }
func (c *SetFieldColumn) Accept(v ActionColumnVisitor) error { return v.VisitSetField(c) }
func (*SetFieldColumn) actionColumn()                        {}
