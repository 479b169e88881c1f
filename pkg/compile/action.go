package compile

import (
	"errors"
	"fmt"

	"github.com/macropower/dtrl/pkg/brl"
	"github.com/macropower/dtrl/pkg/table"
)

// ErrActionConflict is returned when action columns of different kinds
// share a bound name in a way that cannot be merged into one action.
var ErrActionConflict = errors.New("conflicting actions")

// actionSet holds the compound actions of one row in first-created order,
// keyed by bound name. It visits one action column at a time, with cell set
// to that column's value.
type actionSet struct {
	index   map[string]int
	cell    string
	actions []brl.Action
}

var _ table.ActionColumnVisitor = (*actionSet)(nil)

func newActionSet() *actionSet {
	return &actionSet{index: map[string]int{}}
}

// ExtractActions builds the compound actions for one row. Blank cells fall
// back to the column default and are skipped if that is blank too.
func ExtractActions(cols []table.ActionColumn, cells []string) ([]brl.Action, error) {
	as := newActionSet()

	for i, c := range cols {
		cell, ok := cellOrDefault(cells[i], c.GetDefault())
		if !ok {
			continue
		}

		as.cell = cell

		err := c.Accept(as)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}

	return as.actions, nil
}

func (s *actionSet) VisitInsert(c *table.InsertColumn) error {
	a, ok := s.lookup(c.BoundName)
	if !ok {
		a = s.add(&brl.InsertFact{FactType: c.FactType, BoundName: c.BoundName})
	}

	insert, ok := a.(*brl.InsertFact)
	if !ok {
		return conflict("insert", a)
	}

	insert.AddFieldValue(brl.FieldValue{Field: c.FactField, Value: s.cell, Type: c.Type})

	return nil
}

// VisitRetract adds a retract for a bound name with no action yet. An
// existing action for the same name is left unchanged.
func (s *actionSet) VisitRetract(c *table.RetractColumn) error {
	_, ok := s.lookup(c.BoundName)
	if !ok {
		s.add(&brl.RetractFact{BoundName: c.BoundName})
	}

	return nil
}

func (s *actionSet) VisitSetField(c *table.SetFieldColumn) error {
	a, ok := s.lookup(c.BoundName)
	if !ok {
		if c.Update {
			a = s.add(&brl.UpdateField{BoundName: c.BoundName})
		} else {
			a = s.add(&brl.SetField{BoundName: c.BoundName})
		}
	}

	if set, ok := a.(*brl.SetField); ok && c.Update {
		a = s.replace(set.ToUpdate())
	}

	setter, ok := a.(brl.FieldSetter)
	if !ok {
		return conflict("set field", a)
	}

	setter.AddFieldValue(brl.FieldValue{Field: c.FactField, Value: s.cell, Type: c.Type})

	return nil
}

func (s *actionSet) lookup(boundName string) (brl.Action, bool) {
	i, ok := s.index[boundName]
	if !ok {
		return nil, false
	}

	return s.actions[i], true
}

func (s *actionSet) add(a brl.Action) brl.Action {
	s.index[a.GetBoundName()] = len(s.actions)
	s.actions = append(s.actions, a)

	return a
}

// replace swaps the action bound to the same name for a, keeping its position.
func (s *actionSet) replace(a brl.Action) brl.Action {
	s.actions[s.index[a.GetBoundName()]] = a

	return a
}

func conflict(column string, existing brl.Action) error {
	return fmt.Errorf("%w: %s column for %q cannot be combined with the existing %s action",
		ErrActionConflict, column, existing.GetBoundName(), actionKind(existing))
}

func actionKind(a brl.Action) string {
	switch a.(type) {
	case *brl.InsertFact:
		return "insert"
	case *brl.RetractFact:
		return "retract"
	case *brl.SetField:
		return "set field"
	case *brl.UpdateField:
		return "update field"
	}

	return fmt.Sprintf("%T", a)
}
