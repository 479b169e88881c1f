// Package compile turns decision tables into rule-language source.
//
// Every row of a [table.Table] becomes one [brl.RuleModel]:
//
//   - Metadata columns become rule annotations.
//   - Attribute columns become rule attributes, falling back to the column
//     default for blank cells.
//   - Condition columns sharing a bound name are grouped into one fact
//     pattern, each contributing a single field constraint.
//   - Action columns sharing a bound name are grouped into one compound
//     action (insert, retract, set or update).
//
// A [Serializer] renders each model and [Compiler.Compile] joins the results,
// preceding every rule with a "#from row number: N" comment.
package compile
