package brl

import "slices"

// Action is a compound action in a rule's consequence. It is implemented by
// [*InsertFact], [*RetractFact], [*SetField] and [*UpdateField] only.
type Action interface {
	// GetBoundName returns the name of the fact the action operates on.
	GetBoundName() string
	// Accept calls the [ActionVisitor] method matching the action's type.
	Accept(v ActionVisitor) error

	action()
}

// ActionVisitor dispatches on the concrete type of an [Action].
type ActionVisitor interface {
	VisitInsertFact(a *InsertFact) error
	VisitRetractFact(a *RetractFact) error
	VisitSetField(a *SetField) error
	VisitUpdateField(a *UpdateField) error
}

// FieldSetter is an [Action] that accumulates field values.
type FieldSetter interface {
	Action
	AddFieldValue(fv FieldValue)
}

var (
	_ FieldSetter = (*InsertFact)(nil)
	_ FieldSetter = (*SetField)(nil)
	_ FieldSetter = (*UpdateField)(nil)
	_ Action      = (*RetractFact)(nil)
)

// InsertFact creates a new fact, sets its fields and inserts it.
type InsertFact struct {
	FactType    string
	BoundName   string
	FieldValues []FieldValue
}

func (a *InsertFact) GetBoundName() string         { return a.BoundName }
func (a *InsertFact) Accept(v ActionVisitor) error { return v.VisitInsertFact(a) }
func (a *InsertFact) AddFieldValue(fv FieldValue)  { a.FieldValues = append(a.FieldValues, fv) }
func (*InsertFact) action()                        {}

// RetractFact removes a bound fact.
type RetractFact struct {
	BoundName string
}

func (a *RetractFact) GetBoundName() string         { return a.BoundName }
func (a *RetractFact) Accept(v ActionVisitor) error { return v.VisitRetractFact(a) }
func (*RetractFact) action()                        {}

// SetField sets fields of a bound fact without notifying the engine.
type SetField struct {
	BoundName   string
	FieldValues []FieldValue
}

func (a *SetField) GetBoundName() string         { return a.BoundName }
func (a *SetField) Accept(v ActionVisitor) error { return v.VisitSetField(a) }
func (a *SetField) AddFieldValue(fv FieldValue)  { a.FieldValues = append(a.FieldValues, fv) }
func (*SetField) action()                        {}

// ToUpdate returns an [UpdateField] for the same fact carrying every field
// value accumulated so far. The receiver is not modified.
func (a *SetField) ToUpdate() *UpdateField {
	return &UpdateField{
		BoundName:   a.BoundName,
		FieldValues: slices.Clone(a.FieldValues),
	}
}

// UpdateField sets fields of a bound fact and notifies the engine of the change.
type UpdateField struct {
	BoundName   string
	FieldValues []FieldValue
}

func (a *UpdateField) GetBoundName() string         { return a.BoundName }
func (a *UpdateField) Accept(v ActionVisitor) error { return v.VisitUpdateField(a) }
func (a *UpdateField) AddFieldValue(fv FieldValue)  { a.FieldValues = append(a.FieldValues, fv) }
func (*UpdateField) action()                        {}
