package compile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/macropower/dtrl/pkg/brl"
	"github.com/macropower/dtrl/pkg/table"
)

const (
	paramPlaceholder = "$param"
	operatorIn       = "in"
)

// ErrUnknownConstraintKind is returned for condition columns with a
// constraint kind the compiler does not support.
var ErrUnknownConstraintKind = errors.New("unknown constraint kind")

// patternSet holds the fact patterns of one row in first-seen order, keyed
// by bound name.
type patternSet struct {
	index    map[string]int
	patterns []*brl.FactPattern
}

func newPatternSet() *patternSet {
	return &patternSet{index: map[string]int{}}
}

// get returns the pattern bound to c.BoundName, creating it with c.FactType
// if it does not exist yet.
func (s *patternSet) get(c *table.ConditionColumn) *brl.FactPattern {
	if i, ok := s.index[c.BoundName]; ok {
		return s.patterns[i]
	}

	p := brl.NewFactPattern(c.BoundName, c.FactType)
	s.index[c.BoundName] = len(s.patterns)
	s.patterns = append(s.patterns, p)

	return p
}

// ExtractPatterns builds the fact patterns for one row. Columns with the
// same bound name contribute constraints to a single pattern. Blank cells
// fall back to the column default and are skipped if that is blank too.
func ExtractPatterns(cols []*table.ConditionColumn, cells []string) ([]*brl.FactPattern, error) {
	ps := newPatternSet()

	for i, c := range cols {
		cell, ok := cellOrDefault(cells[i], c.Default)
		if !ok {
			continue
		}

		sfc, err := NewConstraint(c, cell)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}

		ps.get(c).AddConstraint(sfc)
	}

	return ps.patterns, nil
}

// NewConstraint builds the constraint that condition column c contributes
// for a cell value.
//
// Literal and return value constraints use the column operator when one is
// set; the "in" operator turns the cell into a list with [MakeInList].
// Without a column operator, a cell of two or more words is split so that
// the first word is the operator and the rest is the value.
//
// Predicate constraints substitute the cell for every "$param" in the
// column's field expression, or use the cell as the expression if there is
// no placeholder.
func NewConstraint(c *table.ConditionColumn, cell string) (*brl.SingleFieldConstraint, error) {
	switch c.Kind {
	case brl.ConstraintLiteral, brl.ConstraintReturnValue:
		sfc := &brl.SingleFieldConstraint{
			Field: c.FactField,
			Kind:  c.Kind,
		}

		switch {
		case c.Operator == "":
			sfc.Operator, sfc.Value = splitOperator(cell)
		case c.Operator == operatorIn:
			sfc.Operator = c.Operator
			sfc.Value = MakeInList(cell)
		default:
			sfc.Operator = c.Operator
			sfc.Value = cell
		}

		return sfc, nil

	case brl.ConstraintPredicate:
		value := cell
		if strings.Contains(c.FactField, paramPlaceholder) {
			value = strings.ReplaceAll(c.FactField, paramPlaceholder, cell)
		}

		return &brl.SingleFieldConstraint{
			Kind:  c.Kind,
			Value: value,
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownConstraintKind, c.Kind)
}

// splitOperator treats the first word of a multi-word cell as the operator.
// Single-word cells are returned unchanged as the value with no operator.
func splitOperator(cell string) (string, string) {
	words := strings.Fields(cell)
	if len(words) < 2 {
		return "", cell
	}

	return words[0], strings.Join(words[1:], " ")
}
