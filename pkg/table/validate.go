package table

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/macropower/dtrl/pkg/brl"
)

// Column group names, as used in [ColumnError].
const (
	GroupMetadata   = "metadata"
	GroupAttributes = "attributes"
	GroupConditions = "conditions"
	GroupActions    = "actions"
)

var (
	// ErrInvalidTable is wrapped by all table validation errors.
	ErrInvalidTable = errors.New("invalid table")

	identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	typeNamePattern   = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)
)

// ColumnError reports an invalid column definition.
type ColumnError struct {
	Err   error
	Group string
	Field string
	Index int
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s[%d].%s: %v", e.Group, e.Index, e.Field, e.Err)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}

// Validate checks the column definitions of t. Row contents are not checked
// here; the compiler reports rows with the wrong number of cells.
func (t *Table) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTable)
	}

	for i, c := range t.Metadata {
		if strings.TrimSpace(c.Attribute) == "" {
			return columnError(GroupMetadata, i, "attribute", "name is required")
		}
	}

	for i, c := range t.Attributes {
		if strings.TrimSpace(c.Attribute) == "" {
			return columnError(GroupAttributes, i, "attribute", "name is required")
		}
	}

	for i, c := range t.Conditions {
		err := validateCondition(i, c)
		if err != nil {
			return err
		}
	}

	for i, c := range t.Actions {
		v := &actionValidator{index: i}

		err := c.Accept(v)
		if err != nil {
			return err
		}
	}

	return nil
}

func validateCondition(i int, c *ConditionColumn) error {
	if c.BoundName != "" && !identifierPattern.MatchString(c.BoundName) {
		return columnError(GroupConditions, i, "boundName", "%q is not a valid identifier", c.BoundName)
	}
	if !typeNamePattern.MatchString(c.FactType) {
		return columnError(GroupConditions, i, "factType", "%q is not a valid type name", c.FactType)
	}
	if !c.Kind.Valid() {
		return columnError(GroupConditions, i, "kind", "unknown constraint kind %q, expected one of %s",
			c.Kind, strings.Join(brl.AllConstraintKinds, ", "))
	}
	if c.Kind != brl.ConstraintPredicate && strings.TrimSpace(c.FactField) == "" {
		return columnError(GroupConditions, i, "factField", "required for %s constraints", c.Kind)
	}

	return nil
}

type actionValidator struct {
	index int
}

func (v *actionValidator) VisitInsert(c *InsertColumn) error {
	err := v.boundName(c.BoundName)
	if err != nil {
		return err
	}
	if !typeNamePattern.MatchString(c.FactType) {
		return columnError(GroupActions, v.index, "factType", "%q is not a valid type name", c.FactType)
	}

	return v.field(c.FactField, c.Type)
}

func (v *actionValidator) VisitRetract(c *RetractColumn) error {
	return v.boundName(c.BoundName)
}

func (v *actionValidator) VisitSetField(c *SetFieldColumn) error {
	err := v.boundName(c.BoundName)
	if err != nil {
		return err
	}

	return v.field(c.FactField, c.Type)
}

func (v *actionValidator) boundName(name string) error {
	if !identifierPattern.MatchString(name) {
		return columnError(GroupActions, v.index, "boundName", "%q is not a valid identifier", name)
	}

	return nil
}

func (v *actionValidator) field(name string, typ brl.ValueType) error {
	if !identifierPattern.MatchString(name) {
		return columnError(GroupActions, v.index, "factField", "%q is not a valid identifier", name)
	}
	if !typ.Valid() {
		return columnError(GroupActions, v.index, "type", "unknown value type %q, expected one of %s",
			typ, strings.Join(brl.AllValueTypes, ", "))
	}

	return nil
}

func columnError(group string, index int, field, format string, args ...any) *ColumnError {
	return &ColumnError{
		Group: group,
		Index: index,
		Field: field,
		Err:   fmt.Errorf("%w: "+format, append([]any{ErrInvalidTable}, args...)...),
	}
}
