// Package drl renders [brl.RuleModel]s as DRL rule-language source.
package drl

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/macropower/dtrl/pkg/brl"
)

const (
	DefaultDialect = "mvel"
	DefaultIndent  = "\t"
)

// Attributes whose values are rendered without quotes.
var bareAttributes = []string{
	"salience",
	"no-loop",
	"lock-on-active",
	"auto-focus",
	"enabled",
	"duration",
	"timer",
}

// Serializer renders rules as DRL.
type Serializer struct {
	dialect string
	indent  string
}

// SerializerOpt configures a [Serializer].
type SerializerOpt func(*Serializer)

// WithDialect sets the dialect attribute emitted for rules that do not set
// one themselves. An empty dialect emits no dialect attribute.
func WithDialect(dialect string) SerializerOpt {
	return func(s *Serializer) {
		s.dialect = dialect
	}
}

// WithIndent sets the string used for one level of indentation.
func WithIndent(indent string) SerializerOpt {
	return func(s *Serializer) {
		s.indent = indent
	}
}

// NewSerializer creates a new [Serializer].
func NewSerializer(opts ...SerializerOpt) *Serializer {
	s := &Serializer{
		dialect: DefaultDialect,
		indent:  DefaultIndent,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Marshal renders rm as a DRL rule, without a trailing newline.
func (s *Serializer) Marshal(rm *brl.RuleModel) (string, error) {
	w := &writer{indent: s.indent}

	header := "rule " + strconv.Quote(rm.Name)
	if rm.ParentName != "" {
		header += " extends " + strconv.Quote(rm.ParentName)
	}

	w.line(0, header)

	for _, md := range rm.Metadata {
		w.line(1, fmt.Sprintf("@%s(%s)", md.Name, md.Value))
	}

	hasDialect := false
	for _, attr := range rm.Attributes {
		if attr.Name == "dialect" {
			hasDialect = true
		}

		w.line(1, attr.Name+" "+attributeValue(attr))
	}

	if !hasDialect && s.dialect != "" {
		w.line(1, "dialect "+strconv.Quote(s.dialect))
	}

	w.line(1, "when")

	for _, p := range rm.LHS {
		w.line(2, pattern(p))
	}

	w.line(1, "then")

	av := &actionWriter{w: w}
	for _, a := range rm.RHS {
		err := a.Accept(av)
		if err != nil {
			return "", fmt.Errorf("rule %q: %w", rm.Name, err)
		}
	}

	w.sb.WriteString("end")

	return w.sb.String(), nil
}

type writer struct {
	indent string
	sb     strings.Builder
}

func (w *writer) line(depth int, s string) {
	w.sb.WriteString(strings.Repeat(w.indent, depth))
	w.sb.WriteString(s)
	w.sb.WriteString("\n")
}

func attributeValue(attr brl.RuleAttribute) string {
	if slices.Contains(bareAttributes, attr.Name) || isQuoted(attr.Value) {
		return attr.Value
	}

	return strconv.Quote(attr.Value)
}

func pattern(p *brl.FactPattern) string {
	constraints := make([]string, 0, len(p.Constraints))
	for _, c := range p.Constraints {
		constraints = append(constraints, constraint(c))
	}

	var sb strings.Builder
	if p.BoundName != "" {
		sb.WriteString(p.BoundName + " : ")
	}

	sb.WriteString(p.FactType + "(")
	if len(constraints) > 0 {
		sb.WriteString(" " + strings.Join(constraints, ", ") + " ")
	}

	sb.WriteString(")")

	return sb.String()
}

func constraint(c *brl.SingleFieldConstraint) string {
	switch c.Kind {
	case brl.ConstraintPredicate:
		return "eval( " + c.Value + " )"
	case brl.ConstraintReturnValue:
		return fmt.Sprintf("%s %s ( %s )", c.Field, operator(c.Operator), c.Value)
	default:
		return fmt.Sprintf("%s %s %s", c.Field, operator(c.Operator), literal(c.Operator, c.Value))
	}
}

// operator defaults to equality for constraints without an operator.
func operator(op string) string {
	if op == "" {
		return "=="
	}

	return op
}

// literal quotes v unless it is a number, boolean, null, variable, list or
// is already quoted.
func literal(op, v string) string {
	switch {
	case op == "in" || op == "not in":
		return v
	case isBare(v):
		return v
	}

	return strconv.Quote(v)
}

func isBare(v string) bool {
	if v == "true" || v == "false" || v == "null" {
		return true
	}

	_, err := strconv.ParseFloat(v, 64)
	if err == nil {
		return true
	}

	return isQuoted(v) || strings.HasPrefix(v, "(") || strings.HasPrefix(v, "$")
}

func isQuoted(v string) bool {
	return len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`)
}

// fieldValue renders fv according to its type. Untyped values are
// rendered like literals.
func fieldValue(fv brl.FieldValue) string {
	switch fv.Type {
	case brl.TypeNumeric, brl.TypeBoolean:
		return fv.Value
	case brl.TypeString, brl.TypeDate:
		if isQuoted(fv.Value) {
			return fv.Value
		}

		return strconv.Quote(fv.Value)
	}

	return literal("", fv.Value)
}

// setter returns the JavaBean setter name for field.
func setter(field string) string {
	r, size := utf8.DecodeRuneInString(field)

	return "set" + string(unicode.ToUpper(r)) + field[size:]
}

type actionWriter struct {
	w *writer
}

func (aw *actionWriter) VisitInsertFact(a *brl.InsertFact) error {
	aw.w.line(2, fmt.Sprintf("%s %s = new %s();", a.FactType, a.BoundName, a.FactType))
	aw.setFields(a.BoundName, a.FieldValues)
	aw.w.line(2, "insert( "+a.BoundName+" );")

	return nil
}

func (aw *actionWriter) VisitRetractFact(a *brl.RetractFact) error {
	aw.w.line(2, "retract( "+a.BoundName+" );")

	return nil
}

func (aw *actionWriter) VisitSetField(a *brl.SetField) error {
	aw.setFields(a.BoundName, a.FieldValues)

	return nil
}

func (aw *actionWriter) VisitUpdateField(a *brl.UpdateField) error {
	aw.w.line(2, "modify( "+a.BoundName+" ) {")

	for i, fv := range a.FieldValues {
		sep := ","
		if i == len(a.FieldValues)-1 {
			sep = ""
		}

		aw.w.line(3, fmt.Sprintf("%s( %s )%s", setter(fv.Field), fieldValue(fv), sep))
	}

	aw.w.line(2, "}")

	return nil
}

func (aw *actionWriter) setFields(boundName string, fvs []brl.FieldValue) {
	for _, fv := range fvs {
		aw.w.line(2, fmt.Sprintf("%s.%s( %s );", boundName, setter(fv.Field), fieldValue(fv)))
	}
}
