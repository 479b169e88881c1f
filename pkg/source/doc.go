// Package source loads decision tables from files.
//
// Supported formats:
//   - YAML documents of kind DecisionTable (.yaml, .yml)
//   - HCL files with one or more table blocks (.hcl)
//   - CSV files holding rows, referenced from either format (.csv)
package source
