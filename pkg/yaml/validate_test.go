package yaml_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/dtrl/pkg/yaml"
)

const tableSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"conditions": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"factType": {"type": "string"},
					"kind": {"enum": ["literal", "returnValue", "predicate"]}
				},
				"required": ["factType"]
			}
		},
		"rows": {
			"type": "array",
			"items": {
				"type": "array",
				"items": {"type": ["string", "number", "boolean", "null"]}
			}
		}
	},
	"required": ["name"]
}`

func TestNewValidator(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		schemaData string
		errMsg     string
	}{
		"valid schema":   {schemaData: tableSchema},
		"empty schema":   {schemaData: `{}`},
		"invalid json":   {schemaData: `{"invalid": json}`, errMsg: "unmarshal schema"},
		"invalid schema": {schemaData: `{"type": "invalid_type"}`, errMsg: "compile schema"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			validator, err := yaml.NewValidator("test", []byte(tc.schemaData))
			if tc.errMsg != "" {
				require.ErrorContains(t, err, tc.errMsg)
				assert.Nil(t, validator)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, validator)
		})
	}
}

func TestValidatorValidate(t *testing.T) {
	t.Parallel()

	validator := yaml.MustNewValidator("test", []byte(tableSchema))

	tcs := map[string]struct {
		data     any
		wantPath string
	}{
		"valid": {
			data: map[string]any{
				"name":       "Pricing",
				"conditions": []any{map[string]any{"factType": "Person", "kind": "literal"}},
				"rows":       []any{[]any{"1", "", 30, true, nil}},
			},
		},
		"missing name": {
			data:     map[string]any{},
			wantPath: "$",
		},
		"wrong name type": {
			data:     map[string]any{"name": 1},
			wantPath: "$.name",
		},
		"unknown condition kind": {
			data: map[string]any{
				"name":       "Pricing",
				"conditions": []any{map[string]any{"factType": "Person"}, map[string]any{"factType": "Person", "kind": "formula"}},
			},
			wantPath: "$.conditions[1].kind",
		},
		"missing fact type": {
			data: map[string]any{
				"name":       "Pricing",
				"conditions": []any{map[string]any{"kind": "literal"}},
			},
			wantPath: "$.conditions[0]",
		},
		"nested cell": {
			data: map[string]any{
				"name": "Pricing",
				"rows": []any{[]any{"1", "a"}, []any{"2", []any{"x"}}},
			},
			wantPath: "$.rows[1][1]",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := validator.Validate(tc.data)
			if tc.wantPath == "" {
				require.NoError(t, err)
				return
			}

			var yamlErr *yaml.Error
			require.ErrorAs(t, err, &yamlErr)
			require.NotNil(t, yamlErr.Path)
			assert.Equal(t, tc.wantPath, yamlErr.Path.String())
		})
	}
}
