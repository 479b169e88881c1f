package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macropower/dtrl/pkg/yaml"
)

func TestIsUsageError(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		err  error
		want bool
	}{
		"unknown flag":  {err: errors.New("unknown flag: --nope"), want: true},
		"too many args": {err: errors.New("accepts at most 2 arg(s), received 3"), want: true},
		"table error":   {err: errors.New(`pricing.yaml: table "Pricing": row width`), want: false},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, isUsageError(tc.err))
		})
	}
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	t.Run("plain error is indented", func(t *testing.T) {
		t.Parallel()

		got := renderError(errors.New("boom"))
		assert.Equal(t, "  boom", got)
	})

	t.Run("yaml source excerpt is not indented", func(t *testing.T) {
		t.Parallel()

		src := []byte("apiVersion: dtrl.jacobcolvin.com/v1beta1\nkind: Nope\n")

		path := yaml.NewPathBuilder().Root().Child("kind").Build()
		yamlErr := yaml.NewError(errors.New("bad kind"), yaml.WithPath(path), yaml.WithSource(src))
		got := renderError(fmt.Errorf("invalid config: %w", yamlErr))

		head, excerpt, ok := strings.Cut(got, "\n\n")
		assert.True(t, ok)
		assert.Equal(t, "  invalid config: [2:1] bad kind:", head)
		assert.Contains(t, excerpt, "kind: Nope")
	})
}
