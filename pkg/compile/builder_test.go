package compile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/dtrl/pkg/brl"
	"github.com/macropower/dtrl/pkg/compile"
	"github.com/macropower/dtrl/pkg/table"
)

func TestNewConstraint(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		col     table.ConditionColumn
		cell    string
		want    *brl.SingleFieldConstraint
		wantErr error
	}{
		"explicit operator": {
			col:  table.ConditionColumn{FactField: "age", Kind: brl.ConstraintLiteral, Operator: ">"},
			cell: "30",
			want: &brl.SingleFieldConstraint{Field: "age", Kind: brl.ConstraintLiteral, Operator: ">", Value: "30"},
		},
		"operator from cell": {
			col:  table.ConditionColumn{FactField: "age", Kind: brl.ConstraintLiteral},
			cell: "> 5",
			want: &brl.SingleFieldConstraint{Field: "age", Kind: brl.ConstraintLiteral, Operator: ">", Value: "5"},
		},
		"two words become operator and value": {
			col:  table.ConditionColumn{FactField: "greeting", Kind: brl.ConstraintLiteral},
			cell: "hello world",
			want: &brl.SingleFieldConstraint{Field: "greeting", Kind: brl.ConstraintLiteral, Operator: "hello", Value: "world"},
		},
		"remaining words are joined": {
			col:  table.ConditionColumn{FactField: "name", Kind: brl.ConstraintLiteral},
			cell: "==  John   Smith",
			want: &brl.SingleFieldConstraint{Field: "name", Kind: brl.ConstraintLiteral, Operator: "==", Value: "John Smith"},
		},
		"single word has no operator": {
			col:  table.ConditionColumn{FactField: "name", Kind: brl.ConstraintLiteral},
			cell: "Bob",
			want: &brl.SingleFieldConstraint{Field: "name", Kind: brl.ConstraintLiteral, Value: "Bob"},
		},
		"in operator": {
			col:  table.ConditionColumn{FactField: "city", Kind: brl.ConstraintLiteral, Operator: "in"},
			cell: "Paris, Rome",
			want: &brl.SingleFieldConstraint{Field: "city", Kind: brl.ConstraintLiteral, Operator: "in", Value: `("Paris", "Rome")`},
		},
		"return value": {
			col:  table.ConditionColumn{FactField: "age", Kind: brl.ConstraintReturnValue, Operator: "<"},
			cell: "limit * 2",
			want: &brl.SingleFieldConstraint{Field: "age", Kind: brl.ConstraintReturnValue, Operator: "<", Value: "limit * 2"},
		},
		"return value operator from cell": {
			col:  table.ConditionColumn{FactField: "age", Kind: brl.ConstraintReturnValue},
			cell: "< limit * 2",
			want: &brl.SingleFieldConstraint{Field: "age", Kind: brl.ConstraintReturnValue, Operator: "<", Value: "limit * 2"},
		},
		"predicate template": {
			col:  table.ConditionColumn{FactField: "age > $param", Kind: brl.ConstraintPredicate},
			cell: "18",
			want: &brl.SingleFieldConstraint{Kind: brl.ConstraintPredicate, Value: "age > 18"},
		},
		"predicate template repeated": {
			col:  table.ConditionColumn{FactField: "$param < age && age < $param * 2", Kind: brl.ConstraintPredicate},
			cell: "10",
			want: &brl.SingleFieldConstraint{Kind: brl.ConstraintPredicate, Value: "10 < age && age < 10 * 2"},
		},
		"predicate without template": {
			col:  table.ConditionColumn{FactField: "check", Kind: brl.ConstraintPredicate},
			cell: "isValid()",
			want: &brl.SingleFieldConstraint{Kind: brl.ConstraintPredicate, Value: "isValid()"},
		},
		"unknown kind": {
			col:     table.ConditionColumn{FactField: "x", Kind: "formula"},
			cell:    "1",
			wantErr: compile.ErrUnknownConstraintKind,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := compile.NewConstraint(&tc.col, tc.cell)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.ErrorContains(t, err, "formula")

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractMetadata(t *testing.T) {
	t.Parallel()

	cols := []*table.MetadataColumn{
		{Attribute: "author"},
		{Attribute: "reviewed"},
		{Attribute: "ticket"},
	}

	got := compile.ExtractMetadata(cols, []string{"mike", " ", "T-1"})
	assert.Equal(t, []brl.RuleMetadata{
		{Name: "author", Value: "mike"},
		{Name: "ticket", Value: "T-1"},
	}, got)

	assert.Nil(t, compile.ExtractMetadata(cols, []string{"", "", ""}))
}

func TestExtractAttributes(t *testing.T) {
	t.Parallel()

	cols := []*table.AttributeColumn{
		{Attribute: "salience", Default: "10"},
		{Attribute: "no-loop"},
		{Attribute: "agenda-group", Default: "main"},
	}

	tcs := map[string]struct {
		cells []string
		want  []brl.RuleAttribute
	}{
		"cells win over defaults": {
			cells: []string{"20", "true", "audit"},
			want: []brl.RuleAttribute{
				{Name: "salience", Value: "20"},
				{Name: "no-loop", Value: "true"},
				{Name: "agenda-group", Value: "audit"},
			},
		},
		"blank cells use defaults": {
			cells: []string{"", "", " "},
			want: []brl.RuleAttribute{
				{Name: "salience", Value: "10"},
				{Name: "agenda-group", Value: "main"},
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, compile.ExtractAttributes(cols, tc.cells))
		})
	}

	assert.Nil(t, compile.ExtractAttributes(cols[1:2], []string{""}))
}

func TestExtractPatterns(t *testing.T) {
	t.Parallel()

	cols := []*table.ConditionColumn{
		{BoundName: "p", FactType: "Person", FactField: "age", Kind: brl.ConstraintLiteral, Operator: ">"},
		{BoundName: "a", FactType: "Account", FactField: "balance", Kind: brl.ConstraintLiteral, Operator: "<", Default: "0"},
		{BoundName: "p", FactType: "Person", FactField: "name", Kind: brl.ConstraintLiteral, Operator: "=="},
	}

	t.Run("grouped by bound name", func(t *testing.T) {
		t.Parallel()

		got, err := compile.ExtractPatterns(cols, []string{"30", "100", "Bob"})
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "p", got[0].BoundName)
		assert.Equal(t, "Person", got[0].FactType)
		require.Len(t, got[0].Constraints, 2)
		assert.Equal(t, "age", got[0].Constraints[0].Field)
		assert.Equal(t, "name", got[0].Constraints[1].Field)

		assert.Equal(t, "a", got[1].BoundName)
		require.Len(t, got[1].Constraints, 1)
		assert.Equal(t, "100", got[1].Constraints[0].Value)
	})

	t.Run("blank cell falls back to default", func(t *testing.T) {
		t.Parallel()

		got, err := compile.ExtractPatterns(cols, []string{"", "  ", ""})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].BoundName)
		assert.Equal(t, "0", got[0].Constraints[0].Value)
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		bad := []*table.ConditionColumn{{BoundName: "p", FactType: "Person", FactField: "x", Kind: "bogus"}}

		_, err := compile.ExtractPatterns(bad, []string{"1"})
		require.ErrorIs(t, err, compile.ErrUnknownConstraintKind)

		// Blank cells never reach the constraint builder.
		got, err := compile.ExtractPatterns(bad, []string{""})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestExtractActions(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		cols    []table.ActionColumn
		cells   []string
		want    []brl.Action
		wantErr error
		wantMsg string
	}{
		"insert groups field values": {
			cols: []table.ActionColumn{
				&table.InsertColumn{BoundName: "s", FactType: "Status", FactField: "status", Type: brl.TypeString},
				&table.InsertColumn{BoundName: "s", FactType: "Status", FactField: "code", Type: brl.TypeNumeric},
			},
			cells: []string{"active", "7"},
			want: []brl.Action{
				&brl.InsertFact{FactType: "Status", BoundName: "s", FieldValues: []brl.FieldValue{
					{Field: "status", Value: "active", Type: brl.TypeString},
					{Field: "code", Value: "7", Type: brl.TypeNumeric},
				}},
			},
		},
		"retract": {
			cols:  []table.ActionColumn{&table.RetractColumn{BoundName: "p"}, &table.RetractColumn{BoundName: "p"}},
			cells: []string{"X", "X"},
			want:  []brl.Action{&brl.RetractFact{BoundName: "p"}},
		},
		"set then update upgrades in place": {
			cols: []table.ActionColumn{
				&table.RetractColumn{BoundName: "x"},
				&table.SetFieldColumn{BoundName: "p", FactField: "age", Type: brl.TypeNumeric},
				&table.SetFieldColumn{BoundName: "p", FactField: "name", Type: brl.TypeString, Update: true},
			},
			cells: []string{"X", "31", "Bob"},
			want: []brl.Action{
				&brl.RetractFact{BoundName: "x"},
				&brl.UpdateField{BoundName: "p", FieldValues: []brl.FieldValue{
					{Field: "age", Value: "31", Type: brl.TypeNumeric},
					{Field: "name", Value: "Bob", Type: brl.TypeString},
				}},
			},
		},
		"update then set stays update": {
			cols: []table.ActionColumn{
				&table.SetFieldColumn{BoundName: "p", FactField: "age", Update: true},
				&table.SetFieldColumn{BoundName: "p", FactField: "name"},
			},
			cells: []string{"31", "Bob"},
			want: []brl.Action{
				&brl.UpdateField{BoundName: "p", FieldValues: []brl.FieldValue{
					{Field: "age", Value: "31"},
					{Field: "name", Value: "Bob"},
				}},
			},
		},
		"set on inserted fact": {
			cols: []table.ActionColumn{
				&table.InsertColumn{BoundName: "s", FactType: "Status", FactField: "status"},
				&table.SetFieldColumn{BoundName: "s", FactField: "code", Update: true},
			},
			cells: []string{"new", "1"},
			want: []brl.Action{
				&brl.InsertFact{FactType: "Status", BoundName: "s", FieldValues: []brl.FieldValue{
					{Field: "status", Value: "new"},
					{Field: "code", Value: "1"},
				}},
			},
		},
		"defaults and blanks": {
			cols: []table.ActionColumn{
				&table.SetFieldColumn{BoundName: "p", FactField: "age", Default: "18"},
				&table.RetractColumn{BoundName: "q"},
			},
			cells: []string{"", " "},
			want: []brl.Action{
				&brl.SetField{BoundName: "p", FieldValues: []brl.FieldValue{{Field: "age", Value: "18"}}},
			},
		},
		"insert onto retract": {
			cols: []table.ActionColumn{
				&table.RetractColumn{BoundName: "p"},
				&table.InsertColumn{BoundName: "p", FactType: "Person", FactField: "age"},
			},
			cells:   []string{"X", "1"},
			wantErr: compile.ErrActionConflict,
			wantMsg: `insert column for "p" cannot be combined with the existing retract action`,
		},
		"set onto retract": {
			cols: []table.ActionColumn{
				&table.RetractColumn{BoundName: "p"},
				&table.SetFieldColumn{BoundName: "p", FactField: "age"},
			},
			cells:   []string{"X", "1"},
			wantErr: compile.ErrActionConflict,
			wantMsg: `set field column for "p" cannot be combined with the existing retract action`,
		},
		"update onto insert keeps insert": {
			cols: []table.ActionColumn{
				&table.InsertColumn{BoundName: "p", FactType: "Person", FactField: "name"},
				&table.SetFieldColumn{BoundName: "p", FactField: "age", Update: true},
			},
			cells: []string{"ann", "30"},
			want: []brl.Action{
				&brl.InsertFact{
					FactType:  "Person",
					BoundName: "p",
					FieldValues: []brl.FieldValue{
						{Field: "name", Value: "ann"},
						{Field: "age", Value: "30"},
					},
				},
			},
		},
		"retract onto set keeps set": {
			cols: []table.ActionColumn{
				&table.SetFieldColumn{BoundName: "p", FactField: "age"},
				&table.RetractColumn{BoundName: "p"},
			},
			cells: []string{"1", "X"},
			want: []brl.Action{
				&brl.SetField{BoundName: "p", FieldValues: []brl.FieldValue{{Field: "age", Value: "1"}}},
			},
		},
		"retract onto insert keeps insert": {
			cols: []table.ActionColumn{
				&table.InsertColumn{BoundName: "p", FactType: "Person", FactField: "age"},
				&table.RetractColumn{BoundName: "p"},
			},
			cells: []string{"v", "x"},
			want: []brl.Action{
				&brl.InsertFact{
					FactType:    "Person",
					BoundName:   "p",
					FieldValues: []brl.FieldValue{{Field: "age", Value: "v"}},
				},
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := compile.ExtractActions(tc.cols, tc.cells)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				if tc.wantMsg != "" {
					assert.ErrorContains(t, err, tc.wantMsg)
				}

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
