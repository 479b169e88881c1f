// Package command discovers decision tables, selects a compile profile for
// each via configured rules, and compiles them to rule-language source.
//
// A [Runner] can optionally watch its tables for changes and recompile,
// publishing each result as an [Event] to its subscribers.
package command
