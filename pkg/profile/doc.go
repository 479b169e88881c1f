// Package profile defines how decision tables are compiled and emitted.
//
// A profile sets the package and imports written ahead of the compiled
// rules, the rule dialect and indentation, an optional CEL row filter, and an
// optional CEL reload filter evaluated by file watchers.
package profile
