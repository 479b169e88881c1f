package brl

import (
	"slices"
)

// ConstraintKind determines how a condition cell is interpreted.
type ConstraintKind string

const (
	// ConstraintLiteral compares a field with a literal value.
	ConstraintLiteral ConstraintKind = "literal"
	// ConstraintReturnValue compares a field with the result of an expression.
	ConstraintReturnValue ConstraintKind = "returnValue"
	// ConstraintPredicate is a free-standing boolean expression.
	ConstraintPredicate ConstraintKind = "predicate"
)

// AllConstraintKinds contains every supported [ConstraintKind].
var AllConstraintKinds = []string{
	string(ConstraintLiteral),
	string(ConstraintReturnValue),
	string(ConstraintPredicate),
}

// Valid reports whether k is a supported [ConstraintKind].
func (k ConstraintKind) Valid() bool {
	return slices.Contains(AllConstraintKinds, string(k))
}

// ValueType is the data type of a value assigned by an action.
// It controls how the value is rendered.
type ValueType string

const (
	TypeString  ValueType = "String"
	TypeNumeric ValueType = "Numeric"
	TypeBoolean ValueType = "Boolean"
	TypeDate    ValueType = "Date"
)

// AllValueTypes contains every supported [ValueType].
var AllValueTypes = []string{
	string(TypeString),
	string(TypeNumeric),
	string(TypeBoolean),
	string(TypeDate),
}

// Valid reports whether t is a supported [ValueType]. The empty type is
// valid and means the type is inferred from the value.
func (t ValueType) Valid() bool {
	return t == "" || slices.Contains(AllValueTypes, string(t))
}

// RuleModel is a single compiled rule.
type RuleModel struct {
	// Name is the unique rule name.
	Name string
	// ParentName is the name of the rule this rule extends, if any.
	ParentName string
	// Metadata contains annotations, nil when there are none.
	Metadata []RuleMetadata
	// Attributes contains rule attributes, nil when there are none.
	Attributes []RuleAttribute
	// LHS contains the fact patterns of the rule's conditions.
	LHS []*FactPattern
	// RHS contains the actions of the rule's consequence.
	RHS []Action
}

// RuleMetadata is a named annotation attached to a rule.
type RuleMetadata struct {
	Name  string
	Value string
}

// RuleAttribute is a named rule attribute such as salience or no-loop.
type RuleAttribute struct {
	Name  string
	Value string
}

// FactPattern matches facts of a type and binds them to a name.
type FactPattern struct {
	BoundName   string
	FactType    string
	Constraints []*SingleFieldConstraint
}

// NewFactPattern creates a [FactPattern] with no constraints.
func NewFactPattern(boundName, factType string) *FactPattern {
	return &FactPattern{
		BoundName: boundName,
		FactType:  factType,
	}
}

// AddConstraint appends c to the pattern's constraints.
func (p *FactPattern) AddConstraint(c *SingleFieldConstraint) {
	p.Constraints = append(p.Constraints, c)
}

// SingleFieldConstraint restricts one field of a [FactPattern].
// Predicates have no field and no operator.
type SingleFieldConstraint struct {
	Field    string
	Kind     ConstraintKind
	Operator string
	Value    string
}

// FieldValue is a value assigned to a field by an action.
type FieldValue struct {
	Field string
	Value string
	Type  ValueType
}
