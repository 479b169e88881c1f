// Package rule determines which profile compiles a decision table, by using
// CEL (Common Expression Language) expressions.
//
// The expressions have access to the table's name, file path and columns,
// allowing for flexible matching logic.
package rule
