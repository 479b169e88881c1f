package expr

import (
	"sync"

	"github.com/google/cel-go/cel"
)

// LazyProgram compiles a CEL expression on first use and caches the result.
// It is safe for concurrent use.
type LazyProgram struct {
	env        *Environment
	program    cel.Program
	err        error
	expression string
	once       sync.Once
}

// NewLazyProgram creates a new [LazyProgram] for expression in env.
func NewLazyProgram(expression string, env *Environment) *LazyProgram {
	return &LazyProgram{
		expression: expression,
		env:        env,
	}
}

// Get returns the compiled program, compiling it if needed.
// Compilation errors are cached and returned on every call.
//
//nolint:ireturn // Following CEL's function signature.
func (p *LazyProgram) Get() (cel.Program, error) {
	p.once.Do(func() {
		p.program, p.err = p.env.Compile(p.expression)
	})

	return p.program, p.err
}

func (p *LazyProgram) String() string {
	return p.expression
}
