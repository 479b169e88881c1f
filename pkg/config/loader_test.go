package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/dtrl/api/v1beta1/configs"
	"github.com/macropower/dtrl/pkg/command"
	"github.com/macropower/dtrl/pkg/config"
	"github.com/macropower/dtrl/pkg/yaml"
)

const validConfig = `apiVersion: dtrl.jacobcolvin.com/v1beta1
kind: Configuration
rules:
  - match: 'true'
    profile: test
profiles:
  test:
    package: com.acme
    imports: [com.acme.Person]
`

func TestNewLoaderFromFile(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		setupFile func(t *testing.T) string
		wantErr   bool
	}{
		"valid file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				return createTempFile(t, validConfig)
			},
		},
		"non-existent file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				return "/non/existent/file.yaml"
			},
			wantErr: true,
		},
		"directory instead of file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := config.NewLoaderFromFile(tc.setupFile(t), configs.New, configs.DefaultValidator)
			if tc.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, got)
		})
	}
}

func TestNewLoaderFromBytes(t *testing.T) {
	t.Parallel()

	cl := config.NewLoaderFromBytes([]byte(validConfig), configs.New, configs.DefaultValidator)
	require.NotNil(t, cl)

	err := cl.Validate()
	require.NoError(t, err)

	cfg, err := cl.Load()
	require.NoError(t, err)
	assert.Equal(t, "dtrl.jacobcolvin.com/v1beta1", cfg.GetAPIVersion())
	assert.Equal(t, "Configuration", cfg.GetKind())

	require.Len(t, cfg.Command.Rules, 1)
	assert.Equal(t, "com.acme", cfg.Command.Rules[0].GetProfile().Package)
}

func TestLoader_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		errMsg  string
		wantErr bool
	}{
		"valid config": {
			input: validConfig,
		},
		"invalid yaml": {
			input: `apiVersion: dtrl.jacobcolvin.com/v1beta1
kind: Configuration
invalid: [unclosed
`,
			wantErr: true,
			errMsg:  "sequence end token ']' not found",
		},
		"missing required fields": {
			input: `profiles:
  test:
    package: com.acme
`,
			wantErr: true,
			errMsg:  "missing properties 'apiVersion', 'kind'",
		},
		"unknown profile field": {
			input: `apiVersion: dtrl.jacobcolvin.com/v1beta1
kind: Configuration
profiles:
  test:
    command: echo
`,
			wantErr: true,
			errMsg:  "command",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cl := config.NewLoaderFromBytes([]byte(tc.input), configs.New, configs.DefaultValidator)

			err := cl.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input    string
		errMsg   string
		wantPath string
		wantErr  bool
	}{
		"valid config": {
			input: validConfig,
		},
		"invalid yaml": {
			input: `apiVersion: dtrl.jacobcolvin.com/v1beta1
kind: Configuration
invalid: [unclosed
`,
			wantErr: true,
			errMsg:  "sequence end token ']' not found",
		},
		"missing required fields still loads": {
			// Load only parses and checks semantics; the schema is checked by Validate.
			input: `profiles:
  test:
    package: com.acme
`,
		},
		"unknown profile reference": {
			input: `apiVersion: dtrl.jacobcolvin.com/v1beta1
kind: Configuration
profiles:
  test:
    package: com.acme
rules:
  - match: 'true'
    profile: tset
`,
			wantErr:  true,
			errMsg:   "unknown profile",
			wantPath: "$.rules[0].profile",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cl := config.NewLoaderFromBytes([]byte(tc.input), configs.New, configs.DefaultValidator)

			cfg, err := cl.Load()
			if !tc.wantErr {
				require.NoError(t, err)
				assert.NotNil(t, cfg)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
			assert.Nil(t, cfg)

			if tc.wantPath != "" {
				var yamlErr *yaml.Error
				require.ErrorAs(t, err, &yamlErr)
				require.NotNil(t, yamlErr.Path)
				assert.Equal(t, tc.wantPath, yamlErr.Path.String())
				require.ErrorIs(t, err, command.ErrUnknownProfile)
			}
		})
	}
}

func TestLoader_WithValidator(t *testing.T) {
	t.Parallel()

	input := `kind: NotAConfiguration
`

	cl := config.NewLoaderFromBytes([]byte(input), configs.New, configs.DefaultValidator, config.WithValidator(nil))
	require.NotNil(t, cl)

	err := cl.Validate()
	require.NoError(t, err)
}

func TestLoader_WithColor(t *testing.T) {
	t.Parallel()

	input := `apiVersion: dtrl.jacobcolvin.com/v1beta1
kind: Nope
`

	plain := config.NewLoaderFromBytes([]byte(input), configs.New, configs.DefaultValidator)
	colored := config.NewLoaderFromBytes([]byte(input), configs.New, configs.DefaultValidator, config.WithColor(true))

	plainErr := plain.Validate()
	require.Error(t, plainErr)

	coloredErr := colored.Validate()
	require.Error(t, coloredErr)

	var plainYAMLErr, coloredYAMLErr *yaml.Error
	require.ErrorAs(t, plainErr, &plainYAMLErr)
	require.ErrorAs(t, coloredErr, &coloredYAMLErr)

	assert.False(t, plainYAMLErr.Color)
	assert.True(t, coloredYAMLErr.Color)
	assert.Equal(t, "$.kind", coloredYAMLErr.Path.String())
}

func TestLoader_LoadCallsEnsureDefaults(t *testing.T) {
	t.Parallel()

	input := `apiVersion: dtrl.jacobcolvin.com/v1beta1
kind: Configuration
`

	cl := config.NewLoaderFromBytes([]byte(input), configs.New, configs.DefaultValidator)

	cfg, err := cl.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Command, "EnsureDefaults should initialize Command")
	assert.Contains(t, cfg.Command.Profiles, command.DefaultProfileName)
	assert.NotEmpty(t, cfg.Command.Rules)
}

func TestLoader_RoundTrip(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "config.yaml")

	err := configs.WriteDefault(configPath, false)
	require.NoError(t, err)

	cl, err := config.NewLoaderFromFile(configPath, configs.New, configs.DefaultValidator)
	require.NoError(t, err)

	cfg, err := cl.ValidateAndLoad()
	require.NoError(t, err)

	yamlConfig, err := cfg.MarshalYAML()
	require.NoError(t, err)
	assert.NotEmpty(t, yamlConfig)

	cl2 := config.NewLoaderFromBytes(yamlConfig, configs.New, configs.DefaultValidator)

	cfg2, err := cl2.ValidateAndLoad()
	require.NoError(t, err)
	assert.Equal(t, cfg.GetAPIVersion(), cfg2.GetAPIVersion())
	assert.Equal(t, cfg.GetKind(), cfg2.GetKind())
	assert.Len(t, cfg2.Command.Profiles, len(cfg.Command.Profiles))
	assert.Len(t, cfg2.Command.Rules, len(cfg.Command.Rules))
}

func createTempFile(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	require.NoError(t, err)

	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)

	err = tmpFile.Close()
	require.NoError(t, err)

	return tmpFile.Name()
}
