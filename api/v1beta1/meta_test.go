package v1beta1_test

import (
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/dtrl/api/v1beta1"
)

func TestNewTypeMeta(t *testing.T) {
	t.Parallel()

	tm := v1beta1.NewTypeMeta("DecisionTable")

	assert.Equal(t, v1beta1.APIVersion, tm.GetAPIVersion())
	assert.Equal(t, "DecisionTable", tm.GetKind())
}

func newSchema(props ...string) *jsonschema.Schema {
	jss := &jsonschema.Schema{Properties: jsonschema.NewProperties()}
	for _, p := range props {
		jss.Properties.Set(p, &jsonschema.Schema{Type: "string"})
	}

	return jss
}

func consts(t *testing.T, jss *jsonschema.Schema, prop string) []any {
	t.Helper()

	s, ok := jss.Properties.Get(prop)
	require.True(t, ok)

	out := make([]any, 0, len(s.OneOf))
	for _, one := range s.OneOf {
		out = append(out, one.Const)
	}

	return out
}

func TestExtendSchemaWithEnums(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		apiVersions []string
		kinds       []string
	}{
		"current version": {
			apiVersions: v1beta1.ValidAPIVersions,
			kinds:       []string{"Configuration"},
		},
		"several kinds": {
			apiVersions: []string{"v1", "v1beta1"},
			kinds:       []string{"Configuration", "ProjectConfig", "DecisionTable"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			jss := newSchema("apiVersion", "kind")
			v1beta1.ExtendSchemaWithEnums(jss, tc.apiVersions, tc.kinds)

			wantVersions := make([]any, 0, len(tc.apiVersions))
			for _, v := range tc.apiVersions {
				wantVersions = append(wantVersions, v)
			}

			wantKinds := make([]any, 0, len(tc.kinds))
			for _, k := range tc.kinds {
				wantKinds = append(wantKinds, k)
			}

			assert.Equal(t, wantVersions, consts(t, jss, "apiVersion"))
			assert.Equal(t, wantKinds, consts(t, jss, "kind"))
		})
	}

	t.Run("missing properties", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "apiVersion property not found in schema", func() {
			v1beta1.ExtendSchemaWithEnums(newSchema("kind"), []string{"v1"}, []string{"X"})
		})
		assert.PanicsWithValue(t, "kind property not found in schema", func() {
			v1beta1.ExtendSchemaWithEnums(newSchema("apiVersion"), []string{"v1"}, []string{"X"})
		})
	})
}
