// Package schemagen generates JSON schemas for dtrl documents from their Go
// types, using Go doc comments as descriptions.
package schemagen

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
)

// ModulePath is the import path of the dtrl module.
const ModulePath = "github.com/macropower/dtrl"

var ErrModuleRootNotFound = errors.New("go.mod not found")

// Generator reflects a JSON schema from a Go value.
type Generator struct {
	value    any
	root     string
	packages []string
}

// NewGenerator creates a [Generator] for value. Doc comments are read from
// packages, given as import paths within [ModulePath].
func NewGenerator(value any, packages ...string) *Generator {
	return &Generator{
		value:    value,
		packages: packages,
	}
}

// WithRoot sets the module root directory used to read doc comments. By
// default it is found by walking up from the working directory.
func (g *Generator) WithRoot(root string) *Generator {
	g.root = root
	return g
}

// Generate returns the indented JSON schema.
func (g *Generator) Generate() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference:             false,
		RequiredFromJSONSchemaTags: false,
	}

	if len(g.packages) > 0 {
		root := g.root
		if root == "" {
			var err error

			root, err = findModuleRoot()
			if err != nil {
				return nil, err
			}
		}

		for _, pkg := range g.packages {
			err := addGoComments(r, root, pkg)
			if err != nil {
				return nil, err
			}
		}
	}

	jss := r.Reflect(g.value)

	b, err := json.MarshalIndent(jss, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return append(b, '\n'), nil
}

// Write generates the schema and writes it to path.
func (g *Generator) Write(path string) error {
	b, err := g.Generate()
	if err != nil {
		return fmt.Errorf("generate JSON schema: %w", err)
	}

	err = os.WriteFile(path, b, 0o600)
	if err != nil {
		return fmt.Errorf("write schema file: %w", err)
	}

	return nil
}

// addGoComments reads doc comments for pkg relative to the module root.
// The reflector keys comments by directory, so the working directory is
// changed to the root for the duration of the call.
func addGoComments(r *jsonschema.Reflector, root, pkg string) error {
	rel, ok := strings.CutPrefix(pkg, ModulePath)
	if !ok {
		return fmt.Errorf("package %q is not in module %q", pkg, ModulePath)
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	err = os.Chdir(root)
	if err != nil {
		return fmt.Errorf("change to module root: %w", err)
	}

	defer func() {
		_ = os.Chdir(wd)
	}()

	err = r.AddGoComments(ModulePath, "./"+strings.TrimPrefix(rel, "/"))
	if err != nil {
		return fmt.Errorf("add go comments for %s: %w", pkg, err)
	}

	return nil
}

func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		_, err := os.Stat(filepath.Join(dir, "go.mod"))
		if err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrModuleRootNotFound
		}

		dir = parent
	}
}
