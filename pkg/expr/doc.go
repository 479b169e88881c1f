// Package expr provides CEL (Common Expression Language) functionality
// for selecting profiles and filtering decision table rows.
//
// It creates CEL environments with custom functions for:
//   - File path operations (pathBase, pathDir, pathExt)
//   - YAML content extraction (yamlPath)
//   - Cell checks (isBlank)
//   - File event flags (fs.CREATE, fs.WRITE, ... and the has macro)
//
// Variables are declared by the caller, see [github.com/macropower/dtrl/pkg/rule]
// and [github.com/macropower/dtrl/pkg/profile].
package expr
