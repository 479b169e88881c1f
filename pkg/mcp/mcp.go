package mcp

import (
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

const (
	name         = "dtrl"
	instructions = `MCP Server 'dtrl' compiles guided decision tables (YAML, HCL or CSV backed) into DRL rules.

When to use these tools:
- Finding the decision tables in a directory and the profile each one is compiled with
- Inspecting the DRL produced for a table after editing its rows or columns
- Debugging table errors such as ragged rows, unknown constraint kinds or conflicting actions

REQUIRED workflow:
1. Use 'list_tables' first with a path relative to the project root (e.g., ".", "./rules", "./rules/pricing.yaml")
2. STOP and READ the output. Tables with an 'error' field cannot be compiled until fixed
3. Use 'compile_table' with a file path from the 'list_tables' output to get the compiled DRL
4. Pass 'profile' to 'compile_table' only to override the profile chosen by the configured rules

IMPORTANT: When editing a table, call 'compile_table' on it BOTH BEFORE AND AFTER you make changes.
`

	// Compiled sources longer than this are truncated in tool results.
	maxSourceLen = 64 * 1024
)

// ErrInvalidPath is returned for tool paths outside of the server root.
var ErrInvalidPath = errors.New("invalid path")

func newPathSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "A file or directory path containing decision tables, relative to the project root.",
	}
}

func newListTablesSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"path": newPathSchema(),
		},
		Required: []string{"path"},
	}
}

func newCompileTableSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"path": newPathSchema(),
			"profile": {
				Type:        "string",
				Description: "The profile to compile with. Leave empty to select profiles with the configured rules.",
			},
		},
		Required: []string{"path"},
	}
}

// truncateString truncates a string to maxLen characters with ellipsis if needed.
func truncateString(str string, maxLen int) (string, bool) {
	if len(str) > maxLen {
		return str[:maxLen] + "\n[OUTPUT TRUNCATED]", true
	}

	return str, false
}
