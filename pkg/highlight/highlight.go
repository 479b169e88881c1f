// Package highlight renders source code with terminal syntax highlighting.
package highlight

import (
	"bytes"
	"fmt"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"
)

const (
	// LanguageDRL highlights rule source. DRL has Java-like syntax.
	LanguageDRL = "Java"
	// LanguageYAML highlights YAML documents.
	LanguageYAML = "YAML"
	// LanguageJSON highlights JSON documents.
	LanguageJSON = "JSON"

	DefaultStyle = "monokai"
)

// Renderer applies chroma styling to source code.
type Renderer struct {
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
}

// RendererOpt configures a [Renderer].
type RendererOpt func(*Renderer)

// WithStyle sets the chroma style by name.
func WithStyle(name string) RendererOpt {
	return func(r *Renderer) {
		r.style = styles.Get(name)
	}
}

// WithFormatter sets the chroma formatter by name, e.g. "terminal256".
// By default the formatter is chosen from the terminal's color profile.
func WithFormatter(name string) RendererOpt {
	return func(r *Renderer) {
		r.formatter = formatters.Get(name)
	}
}

// New creates a [Renderer] for the given chroma language name.
// Unknown languages fall back to plain text.
func New(language string, opts ...RendererOpt) *Renderer {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}

	r := &Renderer{
		lexer:     chroma.Coalesce(lexer),
		formatter: formatters.Get(formatterName(termenv.ColorProfile())),
		style:     styles.Get(DefaultStyle),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func formatterName(p termenv.Profile) string {
	switch p {
	case termenv.TrueColor:
		return "terminal16m"
	case termenv.ANSI256:
		return "terminal256"
	case termenv.ANSI:
		return "terminal8"
	case termenv.Ascii:
	}

	return "noop"
}

// Render returns src with styling applied.
func (r *Renderer) Render(src string) (string, error) {
	iterator, err := r.lexer.Tokenise(nil, src)
	if err != nil {
		return "", fmt.Errorf("lexer tokenize: %w", err)
	}

	buf := &bytes.Buffer{}

	err = r.formatter.Format(buf, r.style, iterator)
	if err != nil {
		return "", fmt.Errorf("format: %w", err)
	}

	return buf.String(), nil
}
