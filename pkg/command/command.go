package command

import (
	"strings"
	"time"

	"github.com/macropower/dtrl/pkg/compile"
)

// Unit is the compiled form of one decision table.
type Unit struct {
	// Path is the file the table was loaded from.
	Path    string
	Table   string
	Profile string
	// Header holds the profile's package and import declarations.
	Header string
	Rules  []*compile.Rule
}

// Source returns the unit's header followed by its rules.
func (u *Unit) Source() string {
	return u.Header + compile.Join(u.Rules)
}

type Output struct {
	Timestamp time.Time
	Error     error
	Units     []*Unit
}

// NewOutput creates a new [Output] timestamped with the current time.
func NewOutput(opts ...OutputOpt) Output {
	o := &Output{
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return *o
}

type OutputOpt func(*Output)

// WithError sets the error for the output.
func WithError(err error) OutputOpt {
	return func(o *Output) {
		o.Error = err
	}
}

// WithUnits sets the compiled units for the output.
func WithUnits(units ...*Unit) OutputOpt {
	return func(o *Output) {
		o.Units = units
	}
}

// Source concatenates all units. A header identical to the one before it is
// emitted only once, so tables sharing a profile form a single package.
func (o Output) Source() string {
	var (
		sb     strings.Builder
		header string
	)

	for i, u := range o.Units {
		if i > 0 {
			sb.WriteString("\n")
		}
		if i == 0 || u.Header != header {
			sb.WriteString(u.Header)
			header = u.Header
		}

		sb.WriteString(compile.Join(u.Rules))
	}

	return sb.String()
}

// RuleCount returns the number of compiled rules across all units.
func (o Output) RuleCount() int {
	n := 0
	for _, u := range o.Units {
		n += len(u.Rules)
	}

	return n
}

// Event represents an event related to compilation.
type Event any

type (
	// EventStart indicates that a compilation has started.
	EventStart struct{}

	// EventEnd indicates that a compilation has ended.
	// This event carries the output, which could be an error if the
	// compilation failed.
	EventEnd Output

	// EventCancel indicates that a compilation has been canceled.
	EventCancel struct{}

	// EventConfigure indicates that the runner has been configured (or re-configured).
	EventConfigure struct{}

	// EventWrite indicates that output was written to a file.
	EventWrite struct {
		Path  string
		Bytes int
	}
)
