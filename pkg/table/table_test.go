package table_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/dtrl/pkg/brl"
	"github.com/macropower/dtrl/pkg/table"
)

func newTable() *table.Table {
	return &table.Table{
		Name: "Pricing",
		Metadata: []*table.MetadataColumn{
			{Attribute: "author"},
		},
		Attributes: []*table.AttributeColumn{
			{Attribute: "salience", Default: "10"},
			{Attribute: "no-loop"},
		},
		Conditions: []*table.ConditionColumn{
			{BoundName: "p", FactType: "com.acme.Person", FactField: "age", Kind: brl.ConstraintLiteral, Operator: ">"},
		},
		Actions: []table.ActionColumn{
			&table.InsertColumn{BoundName: "s", FactType: "Status", FactField: "status", Type: brl.TypeString},
			&table.RetractColumn{BoundName: "p"},
		},
	}
}

func TestNewSchema(t *testing.T) {
	t.Parallel()

	tbl := newTable()
	s := table.NewSchema(tbl)

	assert.Equal(t, table.Schema{
		Metadata:   2,
		Attributes: 3,
		Conditions: 5,
		Actions:    6,
		Width:      8,
	}, s)
	assert.Equal(t, 6, tbl.Columns())

	cells := s.Split([]string{"1", "desc", "mike", "", "true", "30", "active", "X"})
	assert.Equal(t, []string{"mike"}, cells.Metadata)
	assert.Equal(t, []string{"", "true"}, cells.Attributes)
	assert.Equal(t, []string{"30"}, cells.Conditions)
	assert.Equal(t, []string{"active", "X"}, cells.Actions)
}

func TestNewSchemaEmpty(t *testing.T) {
	t.Parallel()

	s := table.NewSchema(&table.Table{Name: "empty"})
	assert.Equal(t, table.InternalCells, s.Width)

	cells := s.Split([]string{"1", "desc"})
	assert.Empty(t, cells.Metadata)
	assert.Empty(t, cells.Actions)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		modify    func(tbl *table.Table)
		wantGroup string
		wantField string
		wantIndex int
		wantErr   bool
	}{
		"valid": {
			modify: func(*table.Table) {},
		},
		"unbound condition": {
			modify: func(tbl *table.Table) {
				tbl.Conditions[0].BoundName = ""
			},
		},
		"predicate without field": {
			modify: func(tbl *table.Table) {
				tbl.Conditions[0].Kind = brl.ConstraintPredicate
				tbl.Conditions[0].FactField = ""
			},
		},
		"missing name": {
			modify: func(tbl *table.Table) {
				tbl.Name = " "
			},
			wantErr: true,
		},
		"blank metadata attribute": {
			modify: func(tbl *table.Table) {
				tbl.Metadata[0].Attribute = ""
			},
			wantErr:   true,
			wantGroup: table.GroupMetadata,
			wantField: "attribute",
		},
		"blank attribute": {
			modify: func(tbl *table.Table) {
				tbl.Attributes[1].Attribute = ""
			},
			wantErr:   true,
			wantGroup: table.GroupAttributes,
			wantField: "attribute",
			wantIndex: 1,
		},
		"bad bound name": {
			modify: func(tbl *table.Table) {
				tbl.Conditions[0].BoundName = "1p"
			},
			wantErr:   true,
			wantGroup: table.GroupConditions,
			wantField: "boundName",
		},
		"unknown kind": {
			modify: func(tbl *table.Table) {
				tbl.Conditions[0].Kind = "formula"
			},
			wantErr:   true,
			wantGroup: table.GroupConditions,
			wantField: "kind",
		},
		"literal without field": {
			modify: func(tbl *table.Table) {
				tbl.Conditions[0].FactField = ""
			},
			wantErr:   true,
			wantGroup: table.GroupConditions,
			wantField: "factField",
		},
		"bad fact type": {
			modify: func(tbl *table.Table) {
				tbl.Conditions[0].FactType = "com..Person"
			},
			wantErr:   true,
			wantGroup: table.GroupConditions,
			wantField: "factType",
		},
		"unbound action": {
			modify: func(tbl *table.Table) {
				tbl.Actions[1] = &table.RetractColumn{}
			},
			wantErr:   true,
			wantGroup: table.GroupActions,
			wantField: "boundName",
			wantIndex: 1,
		},
		"unknown value type": {
			modify: func(tbl *table.Table) {
				tbl.Actions[0] = &table.SetFieldColumn{BoundName: "p", FactField: "age", Type: "Integer"}
			},
			wantErr:   true,
			wantGroup: table.GroupActions,
			wantField: "type",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tbl := newTable()
			tc.modify(tbl)

			err := tbl.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, table.ErrInvalidTable)

			if tc.wantGroup == "" {
				return
			}

			var colErr *table.ColumnError
			require.ErrorAs(t, err, &colErr)
			assert.Equal(t, tc.wantGroup, colErr.Group)
			assert.Equal(t, tc.wantField, colErr.Field)
			assert.Equal(t, tc.wantIndex, colErr.Index)
		})
	}
}
