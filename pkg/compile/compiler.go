package compile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/dtrl/pkg/brl"
	"github.com/macropower/dtrl/pkg/drl"
	"github.com/macropower/dtrl/pkg/log"
	"github.com/macropower/dtrl/pkg/table"
)

// ProvenancePrefix precedes the row number in the comment emitted before
// every compiled rule.
const ProvenancePrefix = "#from row number: "

// ErrRowWidth is returned for rows whose cell count does not match the table's columns.
var ErrRowWidth = errors.New("row width does not match table columns")

// Serializer renders a [brl.RuleModel] as rule-language source.
type Serializer interface {
	Marshal(rm *brl.RuleModel) (string, error)
}

// RowFilter decides whether row i of a table is compiled.
type RowFilter func(t *table.Table, i int) (bool, error)

// Rule is a compiled table row.
type Rule struct {
	Model *brl.RuleModel
	// Source is the serialized rule.
	Source string
	// Row is the 1-based row number.
	Row int
}

// Compiler compiles decision tables.
type Compiler struct {
	serializer  Serializer
	filter      RowFilter
	tracer      trace.Tracer
	concurrency int
}

// CompilerOpt configures a [Compiler].
type CompilerOpt func(*Compiler)

// WithSerializer sets the [Serializer] used to render rules.
// Defaults to a [drl.Serializer] with default options.
func WithSerializer(s Serializer) CompilerOpt {
	return func(c *Compiler) {
		c.serializer = s
	}
}

// WithRowFilter skips rows for which f returns false.
func WithRowFilter(f RowFilter) CompilerOpt {
	return func(c *Compiler) {
		c.filter = f
	}
}

// WithConcurrency sets the number of rows compiled in parallel.
// Values below 2 compile rows sequentially. Output order is not affected.
func WithConcurrency(n int) CompilerOpt {
	return func(c *Compiler) {
		c.concurrency = n
	}
}

// New creates a new [Compiler].
func New(opts ...CompilerOpt) *Compiler {
	c := &Compiler{
		tracer: otel.Tracer("compiler"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.serializer == nil {
		c.serializer = drl.NewSerializer()
	}

	return c
}

// CompileRow builds the [brl.RuleModel] for row i of t.
func (c *Compiler) CompileRow(t *table.Table, i int) (*brl.RuleModel, error) {
	return compileRow(t, table.NewSchema(t), i)
}

func compileRow(t *table.Table, s table.Schema, i int) (*brl.RuleModel, error) {
	row := t.Rows[i]
	if len(row) != s.Width {
		return nil, fmt.Errorf("%w: expected %d cells, got %d", ErrRowWidth, s.Width, len(row))
	}

	cells := s.Split(row)

	patterns, err := ExtractPatterns(t.Conditions, cells.Conditions)
	if err != nil {
		return nil, err
	}

	actions, err := ExtractActions(t.Actions, cells.Actions)
	if err != nil {
		return nil, err
	}

	return &brl.RuleModel{
		Name:       "Row " + row[0] + " " + t.Name,
		ParentName: t.ParentName,
		Metadata:   ExtractMetadata(t.Metadata, cells.Metadata),
		Attributes: ExtractAttributes(t.Attributes, cells.Attributes),
		LHS:        patterns,
		RHS:        actions,
	}, nil
}

// CompileRules compiles every row of t that passes the row filter.
// Rules are returned in row order.
func (c *Compiler) CompileRules(ctx context.Context, t *table.Table) ([]*Rule, error) {
	ctx, span := c.tracer.Start(ctx, "compile", trace.WithAttributes(
		attribute.String("table", t.Name),
		attribute.Int("rows", len(t.Rows)),
	))
	defer span.End()

	s := table.NewSchema(t)
	rules := make([]*Rule, len(t.Rows))

	if c.concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.concurrency)

		for i := range t.Rows {
			g.Go(func() error {
				err := gctx.Err()
				if err != nil {
					return err //nolint:wrapcheck // Return the original error.
				}

				rules[i], err = c.compileRule(t, s, i)

				return err
			})
		}

		err := g.Wait()
		if err != nil {
			span.RecordError(err)
			return nil, err //nolint:wrapcheck // Errors carry the row number.
		}
	} else {
		for i := range t.Rows {
			err := ctx.Err()
			if err != nil {
				return nil, err //nolint:wrapcheck // Return the original error.
			}

			rules[i], err = c.compileRule(t, s, i)
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
		}
	}

	// Drop filtered rows.
	out := rules[:0]
	for _, r := range rules {
		if r != nil {
			out = append(out, r)
		}
	}

	log.WithContext(ctx).DebugContext(ctx, "compiled table",
		slog.String("table", t.Name),
		slog.Int("rows", len(t.Rows)),
		slog.Int("rules", len(out)),
	)

	return out, nil
}

// compileRule compiles and serializes row i. It returns nil if the row is
// filtered out.
func (c *Compiler) compileRule(t *table.Table, s table.Schema, i int) (*Rule, error) {
	if c.filter != nil {
		ok, err := c.filter(t, i)
		if err != nil {
			return nil, fmt.Errorf("row %d: filter: %w", i+1, err)
		}
		if !ok {
			return nil, nil //nolint:nilnil // Filtered rows have no rule.
		}
	}

	rm, err := compileRow(t, s, i)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", i+1, err)
	}

	src, err := c.serializer.Marshal(rm)
	if err != nil {
		return nil, fmt.Errorf("row %d: serialize: %w", i+1, err)
	}

	return &Rule{Row: i + 1, Model: rm, Source: src}, nil
}

// Compile compiles t into a single text blob. Each rule is preceded by a
// provenance comment line and followed by a newline.
func (c *Compiler) Compile(ctx context.Context, t *table.Table) (string, error) {
	rules, err := c.CompileRules(ctx, t)
	if err != nil {
		return "", err
	}

	return Join(rules), nil
}

// Join concatenates compiled rules, preceding each with a provenance comment.
func Join(rules []*Rule) string {
	var sb strings.Builder

	for _, r := range rules {
		sb.WriteString(ProvenancePrefix)
		sb.WriteString(strconv.Itoa(r.Row))
		sb.WriteString("\n")
		sb.WriteString(r.Source)
		sb.WriteString("\n")
	}

	return sb.String()
}
