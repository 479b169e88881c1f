package source

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/macropower/dtrl/api/v1beta1/tables"
	"github.com/macropower/dtrl/pkg/brl"
	"github.com/macropower/dtrl/pkg/table"
)

// hclFile is the top-level structure of an HCL table file.
//
//	table "Pricing" {
//	  parent = "Base"
//
//	  metadata "author" {}
//	  attribute "salience" { default = 10 }
//	  condition "Person" {
//	    bound    = "p"
//	    field    = "age"
//	    operator = ">"
//	  }
//	  action "insert" {
//	    bound     = "s"
//	    fact_type = "Status"
//	    field     = "status"
//	    type      = "String"
//	  }
//
//	  rows = [
//	    [1, "adults", "mike", 10, 18, "adult"],
//	  ]
//	}
type hclFile struct {
	Tables []*hclTable `hcl:"table,block"`
}

type hclTable struct {
	Rows       hcl.Expression  `hcl:"rows,optional"`
	Name       string          `hcl:"name,label"`
	Parent     string          `hcl:"parent,optional"`
	RowsFrom   string          `hcl:"rows_from,optional"`
	Metadata   []*hclMetadata  `hcl:"metadata,block"`
	Attributes []*hclAttribute `hcl:"attribute,block"`
	Conditions []*hclCondition `hcl:"condition,block"`
	Actions    []*hclAction    `hcl:"action,block"`
}

type hclMetadata struct {
	Name string `hcl:"name,label"`
}

type hclAttribute struct {
	Default hcl.Expression `hcl:"default,optional"`
	Name    string         `hcl:"name,label"`
}

type hclCondition struct {
	Default  hcl.Expression `hcl:"default,optional"`
	FactType string         `hcl:"fact_type,label"`
	Bound    string         `hcl:"bound,optional"`
	Field    string         `hcl:"field,optional"`
	Kind     string         `hcl:"kind,optional"`
	Operator string         `hcl:"operator,optional"`
}

type hclAction struct {
	Default  hcl.Expression `hcl:"default,optional"`
	Kind     string         `hcl:"kind,label"`
	Bound    string         `hcl:"bound"`
	FactType string         `hcl:"fact_type,optional"`
	Field    string         `hcl:"field,optional"`
	Type     string         `hcl:"type,optional"`
	Update   bool           `hcl:"update,optional"`
}

// LoadHCL reads all table blocks from the HCL file at path.
func LoadHCL(path string) ([]*table.Table, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", path, diags)
	}

	var parsed hclFile

	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %w", path, diags)
	}

	if len(parsed.Tables) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTables, path)
	}

	out := make([]*table.Table, 0, len(parsed.Tables))

	for _, ht := range parsed.Tables {
		t, err := ht.toTable(path)
		if err != nil {
			return nil, fmt.Errorf("%s: table %q: %w", path, ht.Name, err)
		}

		err = t.Validate()
		if err != nil {
			return nil, fmt.Errorf("%s: table %q: %w", path, ht.Name, err)
		}

		out = append(out, t)
	}

	return out, nil
}

func (ht *hclTable) toTable(path string) (*table.Table, error) {
	t := &table.Table{
		Name:       ht.Name,
		ParentName: ht.Parent,
	}

	for _, m := range ht.Metadata {
		t.Metadata = append(t.Metadata, &table.MetadataColumn{Attribute: m.Name})
	}

	for _, a := range ht.Attributes {
		def, err := exprCell(a.Default)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}

		t.Attributes = append(t.Attributes, &table.AttributeColumn{Attribute: a.Name, Default: def})
	}

	for i, c := range ht.Conditions {
		def, err := exprCell(c.Default)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}

		kind := brl.ConstraintKind(c.Kind)
		if kind == "" {
			kind = brl.ConstraintLiteral
		}

		t.Conditions = append(t.Conditions, &table.ConditionColumn{
			BoundName: c.Bound,
			FactType:  c.FactType,
			FactField: c.Field,
			Kind:      kind,
			Operator:  c.Operator,
			Default:   def,
		})
	}

	for i, a := range ht.Actions {
		def, err := exprCell(a.Default)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}

		col, err := actionColumn(a, def)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}

		t.Actions = append(t.Actions, col)
	}

	rows, err := exprRows(ht.Rows)
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	t.Rows = rows

	if ht.RowsFrom != "" {
		more, err := ReadCSVFile(rowsPath(path, ht.RowsFrom))
		if err != nil {
			return nil, fmt.Errorf("rows_from: %w", err)
		}

		t.Rows = append(t.Rows, more...)
	}

	return t, nil
}

//nolint:ireturn // Sealed interface.
func actionColumn(a *hclAction, def string) (table.ActionColumn, error) {
	switch a.Kind {
	case tables.ActionInsert:
		return &table.InsertColumn{
			BoundName: a.Bound,
			FactType:  a.FactType,
			FactField: a.Field,
			Type:      brl.ValueType(a.Type),
			Default:   def,
		}, nil
	case tables.ActionRetract:
		return &table.RetractColumn{BoundName: a.Bound, Default: def}, nil
	case tables.ActionSetField:
		return &table.SetFieldColumn{
			BoundName: a.Bound,
			FactField: a.Field,
			Type:      brl.ValueType(a.Type),
			Update:    a.Update,
			Default:   def,
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown action kind %q", table.ErrInvalidTable, a.Kind)
}

// exprCell evaluates an optional expression to a cell string.
func exprCell(expr hcl.Expression) (string, error) {
	if expr == nil {
		return "", nil
	}

	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}

	return valueCell(v)
}

// exprRows evaluates an optional list of lists to table rows.
func exprRows(expr hcl.Expression) ([][]string, error) {
	if expr == nil {
		return nil, nil
	}

	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}

	if v.IsNull() {
		return nil, nil
	}

	if !v.CanIterateElements() {
		return nil, errors.New("must be a list of lists")
	}

	var rows [][]string

	for i, rv := range v.AsValueSlice() {
		if rv.IsNull() || !rv.CanIterateElements() {
			return nil, fmt.Errorf("row %d: must be a list", i+1)
		}

		cells := make([]string, 0, rv.LengthInt())
		for j, cv := range rv.AsValueSlice() {
			cell, err := valueCell(cv)
			if err != nil {
				return nil, fmt.Errorf("row %d, cell %d: %w", i+1, j+1, err)
			}

			cells = append(cells, cell)
		}

		rows = append(rows, cells)
	}

	return rows, nil
}

func valueCell(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}

	if !v.IsWhollyKnown() {
		return "", errors.New("value must be known")
	}

	sv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("convert to string: %w", err)
	}

	return sv.AsString(), nil
}
