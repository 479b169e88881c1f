package source_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/dtrl/pkg/brl"
	"github.com/macropower/dtrl/pkg/source"
	"github.com/macropower/dtrl/pkg/table"
	"github.com/macropower/dtrl/pkg/yaml"
)

const pricingYAML = `apiVersion: dtrl.jacobcolvin.com/v1beta1
kind: DecisionTable
name: Pricing
rowsFrom: rows/pricing.csv
conditions:
  - boundName: p
    factType: Person
    field: age
    operator: ">"
actions:
  - kind: insert
    boundName: s
    factType: Status
    field: status
    type: String
rows:
  - [1, adults, 18, adult]
`

const pricingCSV = "\uFEFF# id,description,age,status\n2,seniors,65,senior\n3,\"cafe\u0301\",,\n"

const pricingHCL = `
table "Pricing" {
  parent = "Base"

  metadata "author" {}

  attribute "salience" {
    default = 10
  }

  condition "Person" {
    bound    = "p"
    field    = "age"
    operator = ">"
  }

  condition "Person" {
    bound = "p"
    field = "age > $param"
    kind  = "predicate"
  }

  action "insert" {
    bound     = "s"
    fact_type = "Status"
    field     = "status"
    type      = "String"
  }

  action "setField" {
    bound   = "p"
    field   = "vip"
    type    = "Boolean"
    update  = true
    default = false
  }

  action "retract" {
    bound = "x"
  }

  rows = [
    [1, "adults", "mike", null, 18, 21, "active", true, ""],
    [2, "seniors", "", 5, 65, 70, "senior", null, "X"],
  ]
}

table "Discounts" {
  rows_from = "discounts.csv"

  condition "Order" {
    bound = "o"
    field = "total"
  }
}
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "pricing.yaml"), pricingYAML)
	writeFile(t, filepath.Join(dir, "rows", "pricing.csv"), pricingCSV)

	tbls, err := source.Load(path)
	require.NoError(t, err)
	require.Len(t, tbls, 1)

	tbl := tbls[0]
	assert.Equal(t, "Pricing", tbl.Name)
	assert.Equal(t, brl.ConstraintLiteral, tbl.Conditions[0].Kind)
	assert.Equal(t, [][]string{
		{"1", "adults", "18", "adult"},
		{"2", "seniors", "65", "senior"},
		{"3", "caf\u00e9", "", ""},
	}, tbl.Rows)
}

func TestLoadYAMLErrors(t *testing.T) {
	t.Parallel()

	t.Run("invalid document", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, filepath.Join(t.TempDir(), "bad.yaml"),
			strings.Replace(pricingYAML, "kind: insert", "kind: modify", 1))

		_, err := source.Load(path)
		require.Error(t, err)

		var yamlErr *yaml.Error
		require.ErrorAs(t, err, &yamlErr)
		assert.Equal(t, "$.actions[0].kind", yamlErr.Path.String())
		assert.Contains(t, err.Error(), "bad.yaml")
	})

	t.Run("missing rows file", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, filepath.Join(t.TempDir(), "pricing.yaml"), pricingYAML)

		_, err := source.Load(path)
		require.ErrorContains(t, err, "rowsFrom")
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadHCL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "pricing.hcl"), pricingHCL)
	writeFile(t, filepath.Join(dir, "discounts.csv"), "1,big,> 100\n2,small,<= 100\n")

	tbls, err := source.Load(path)
	require.NoError(t, err)
	require.Len(t, tbls, 2)

	pricing := tbls[0]
	assert.Equal(t, "Pricing", pricing.Name)
	assert.Equal(t, "Base", pricing.ParentName)
	assert.Equal(t, []*table.MetadataColumn{{Attribute: "author"}}, pricing.Metadata)
	assert.Equal(t, []*table.AttributeColumn{{Attribute: "salience", Default: "10"}}, pricing.Attributes)

	require.Len(t, pricing.Conditions, 2)
	assert.Equal(t, &table.ConditionColumn{
		BoundName: "p", FactType: "Person", FactField: "age", Kind: brl.ConstraintLiteral, Operator: ">",
	}, pricing.Conditions[0])
	assert.Equal(t, brl.ConstraintPredicate, pricing.Conditions[1].Kind)

	require.Len(t, pricing.Actions, 3)
	assert.Equal(t, &table.InsertColumn{
		BoundName: "s", FactType: "Status", FactField: "status", Type: brl.TypeString,
	}, pricing.Actions[0])
	assert.Equal(t, &table.SetFieldColumn{
		BoundName: "p", FactField: "vip", Type: brl.TypeBoolean, Update: true, Default: "false",
	}, pricing.Actions[1])
	assert.Equal(t, &table.RetractColumn{BoundName: "x"}, pricing.Actions[2])

	assert.Equal(t, [][]string{
		{"1", "adults", "mike", "", "18", "21", "active", "true", ""},
		{"2", "seniors", "", "5", "65", "70", "senior", "", "X"},
	}, pricing.Rows)

	discounts := tbls[1]
	assert.Equal(t, "Discounts", discounts.Name)
	assert.Equal(t, [][]string{
		{"1", "big", "> 100"},
		{"2", "small", "<= 100"},
	}, discounts.Rows)
}

func TestLoadHCLErrors(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		src     string
		wantErr string
		wantIs  error
	}{
		"syntax": {
			src:     `table "x" {`,
			wantErr: "parse",
		},
		"unknown block": {
			src:     `rule "x" {}`,
			wantErr: "decode",
		},
		"no tables": {
			src:    ``,
			wantIs: source.ErrNoTables,
		},
		"unknown action kind": {
			src:     "table \"x\" {\n  action \"modify\" {\n    bound = \"p\"\n  }\n}\n",
			wantErr: "unknown action kind",
			wantIs:  table.ErrInvalidTable,
		},
		"invalid bound name": {
			src:     "table \"x\" {\n  condition \"Person\" {\n    bound = \"1p\"\n    field = \"age\"\n  }\n}\n",
			wantIs:  table.ErrInvalidTable,
			wantErr: `table "x"`,
		},
		"rows not a list": {
			src:     `table "x" { rows = "nope" }`,
			wantErr: "rows: must be a list of lists",
		},
		"row not a list": {
			src:     `table "x" { rows = ["nope"] }`,
			wantErr: "row 1: must be a list",
		},
		"nested cell": {
			src:     `table "x" { rows = [[1, [2]]] }`,
			wantErr: "row 1, cell 2",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, filepath.Join(t.TempDir(), "table.hcl"), tc.src)

			_, err := source.Load(path)
			require.Error(t, err)

			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
			}
			if tc.wantIs != nil {
				require.ErrorIs(t, err, tc.wantIs)
			}
		})
	}
}

func TestLoadUnsupported(t *testing.T) {
	t.Parallel()

	path := writeFile(t, filepath.Join(t.TempDir(), "pricing.xls"), "")

	_, err := source.Load(path)
	require.ErrorIs(t, err, source.ErrUnsupported)
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		in      string
		want    [][]string
		wantErr bool
	}{
		"empty": {
			in: "",
		},
		"bom before comment": {
			in:   "\uFEFF# header\n1,a\n",
			want: [][]string{{"1", "a"}},
		},
		"bom before row": {
			in:   "\uFEFF1,a\n",
			want: [][]string{{"1", "a"}},
		},
		"ragged rows": {
			in:   "1,a,b\n2\n",
			want: [][]string{{"1", "a", "b"}, {"2"}},
		},
		"quoted commas": {
			in:   "1,\"a, b\",\"in (1, 2)\"\n",
			want: [][]string{{"1", "a, b", "in (1, 2)"}},
		},
		"nfc": {
			in:   "1,Cafe\u0301\n",
			want: [][]string{{"1", "Caf\u00e9"}},
		},
		"bare quote": {
			in:      "1,a\"b\n",
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := source.ReadCSV(strings.NewReader(tc.in))
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b", "pricing.yaml"), pricingYAML)
	writeFile(t, filepath.Join(dir, "a.hcl"), pricingHCL)
	writeFile(t, filepath.Join(dir, "dtrl.yaml"), "apiVersion: dtrl.jacobcolvin.com/v1beta1\nkind: ProjectConfig\n")
	writeFile(t, filepath.Join(dir, "rows.csv"), "1,a\n")
	writeFile(t, filepath.Join(dir, ".git", "x.hcl"), pricingHCL)

	files, err := source.Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.hcl"),
		filepath.Join(dir, "b", "pricing.yaml"),
	}, files)

	t.Run("single file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "rows.csv")

		files, err := source.Discover(path)
		require.NoError(t, err)
		assert.Equal(t, []string{path}, files)
	})

	t.Run("no tables", func(t *testing.T) {
		t.Parallel()

		empty := t.TempDir()
		writeFile(t, filepath.Join(empty, "notes.yaml"), "kind: Notes\n")

		_, err := source.Discover(empty)
		require.ErrorIs(t, err, source.ErrNoTables)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		_, err := source.Discover(filepath.Join(dir, "missing"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestIsTableFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tcs := map[string]struct {
		name    string
		content string
		want    bool
	}{
		"hcl":          {name: "a.hcl", want: true},
		"table yaml":   {name: "a.yaml", content: "kind: DecisionTable\n", want: true},
		"table yml":    {name: "b.yml", content: "kind: DecisionTable\n", want: true},
		"project yaml": {name: "c.yaml", content: "kind: ProjectConfig\n", want: false},
		"invalid yaml": {name: "d.yaml", content: "kind: [\n", want: false},
		"csv":          {name: "e.csv", content: "1,a\n", want: false},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, filepath.Join(dir, tc.name), tc.content)
			assert.Equal(t, tc.want, source.IsTableFile(path))
		})
	}

	assert.True(t, source.IsRowFile("rows.CSV"))
	assert.False(t, source.IsRowFile("rows.yaml"))
}
