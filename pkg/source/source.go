package source

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/macropower/dtrl/api"
	"github.com/macropower/dtrl/api/v1beta1/tables"
	"github.com/macropower/dtrl/pkg/table"
	"github.com/macropower/dtrl/pkg/yaml"
)

var (
	// ErrUnsupported is returned for files with an unknown extension.
	ErrUnsupported = errors.New("unsupported table format")

	// ErrNoTables is returned when a path contains no decision tables.
	ErrNoTables = errors.New("no decision tables found")

	yamlExts = []string{".yaml", ".yml"}
	hclExts  = []string{".hcl"}
)

// Options configure table loading.
type Options struct {
	// Color enables colored source annotations in YAML errors.
	Color bool
}

// Opt configures [Options].
type Opt func(*Options)

// WithColor enables colored source annotations in YAML errors.
func WithColor(color bool) Opt {
	return func(o *Options) {
		o.Color = color
	}
}

// Load reads all decision tables defined in the file at path.
func Load(path string, opts ...Opt) ([]*table.Table, error) {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}

	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case slices.Contains(yamlExts, ext):
		t, err := LoadYAML(path, o)
		if err != nil {
			return nil, err
		}

		return []*table.Table{t}, nil

	case slices.Contains(hclExts, ext):
		return LoadHCL(path)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

// IsTableFile reports whether path holds decision tables. YAML files must
// declare kind DecisionTable.
func IsTableFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case slices.Contains(hclExts, ext):
		return true
	case slices.Contains(yamlExts, ext):
		return yamlKind(path) == tables.Kind
	}

	return false
}

// IsRowFile reports whether path may hold rows referenced by a table.
func IsRowFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

// Discover returns the table files at root. If root is a file it is returned
// as-is. Directories are walked recursively in lexical order, skipping
// hidden directories.
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			return nil
		}

		if IsTableFile(path) {
			files = append(files, path)
		} else {
			slog.Debug("skip file", slog.String("path", path))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTables, root)
	}

	return files, nil
}

func yamlKind(path string) string {
	data, err := api.ReadFile(path)
	if err != nil {
		return ""
	}

	var kind string

	p := yaml.NewPathBuilder().Root().Child("kind").Build()

	err = p.Read(bytes.NewReader(data), &kind)
	if err != nil {
		return ""
	}

	return kind
}

// rowsPath resolves a rows file relative to the table file that references it.
func rowsPath(tablePath, rowsFrom string) string {
	if filepath.IsAbs(rowsFrom) {
		return rowsFrom
	}

	return filepath.Join(filepath.Dir(tablePath), rowsFrom)
}
