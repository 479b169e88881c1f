// Package brl contains the rule model that a decision table row compiles into.
//
// A [RuleModel] holds a rule name, an optional parent rule, metadata,
// attributes, the fact patterns of the rule's conditions (LHS), and the
// actions of its consequence (RHS). Models are built fresh for every table row
// and handed to a serializer that renders them as rule-language source.
package brl
