package expr

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Math(),
		ext.Strings(),
		ext.Lists(),

		cel.Constant("fs.CREATE", types.IntType, types.Int(fsnotify.Create)),
		cel.Constant("fs.REMOVE", types.IntType, types.Int(fsnotify.Remove)),
		cel.Constant("fs.WRITE", types.IntType, types.Int(fsnotify.Write)),
		cel.Constant("fs.RENAME", types.IntType, types.Int(fsnotify.Rename)),
		cel.Constant("fs.CHMOD", types.IntType, types.Int(fsnotify.Chmod)),

		// Example: fs.event.has(fs.WRITE, fs.CREATE).
		cel.Macros(
			cel.ReceiverVarArgMacro("has", hasVarArgMacro),
		),
		cel.Function("@has",
			cel.Overload("@has_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.BoolType,
				cel.BinaryBinding(hasFlag),
			),
			cel.Overload("@has_int_list_int", []*cel.Type{cel.IntType, cel.ListType(cel.IntType)}, cel.BoolType,
				cel.BinaryBinding(hasAnyFlag),
			),
		),

		// Example: pathBase(table.path) in ["pricing.yaml", "pricing.hcl"].
		stringFunction("pathBase", cel.StringType, func(s string) ref.Val {
			return types.String(filepath.Base(s))
		}),
		// Example: pathDir(table.path).endsWith("/legacy").
		stringFunction("pathDir", cel.StringType, func(s string) ref.Val {
			return types.String(filepath.Dir(s))
		}),
		// Example: pathExt(file) in [".yaml", ".csv"].
		stringFunction("pathExt", cel.StringType, func(s string) ref.Val {
			return types.String(filepath.Ext(s))
		}),
		// Example: !isBlank(row.cells[2]).
		stringFunction("isBlank", cel.BoolType, func(s string) ref.Val {
			return types.Bool(strings.TrimSpace(s) == "")
		}),

		// yamlPath returns null when the file or the path cannot be read.
		// Example: yamlPath(table.path, "$.metadata.team") == "billing".
		cel.Function("yamlPath",
			cel.Overload("yaml_path", []*cel.Type{cel.StringType, cel.StringType}, cel.DynType,
				cel.BinaryBinding(func(file, path ref.Val) ref.Val {
					fileStr, ok := file.Value().(string)
					if !ok {
						return types.NewErr("yamlPath: invalid file path")
					}

					pathStr, ok := path.Value().(string)
					if !ok {
						return types.NewErr("yamlPath: invalid yaml path")
					}

					value, err := readYAMLPath(fileStr, pathStr)
					if err != nil {
						slog.Debug("yamlPath returned null",
							slog.String("file", fileStr),
							slog.String("yamlPath", pathStr),
							slog.Any("error", err),
						)

						return types.NullValue
					}

					return ConvertToCELValue(value)
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// stringFunction declares a single-overload function of one string argument.
func stringFunction(name string, result *cel.Type, fn func(string) ref.Val) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(strings.ToLower(name)+"_string", []*cel.Type{cel.StringType}, result,
			cel.UnaryBinding(func(arg ref.Val) ref.Val {
				s, ok := arg.Value().(string)
				if !ok {
					return types.NewErr("%s: invalid string value", name)
				}

				return fn(s)
			}),
		),
	)
}

func readYAMLPath(file, path string) (any, error) {
	content, err := os.ReadFile(file) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	p, err := yaml.PathString(path)
	if err != nil {
		return nil, fmt.Errorf("parse yaml path: %w", err)
	}

	var value any

	err = p.Read(bytes.NewReader(content), &value)
	if err != nil {
		return nil, fmt.Errorf("read yaml path: %w", err)
	}

	return value, nil
}

func toOp(v ref.Val) (fsnotify.Op, bool) {
	i, ok := v.Value().(int64)
	if !ok || i < 0 || i > math.MaxUint32 {
		return 0, false
	}

	return fsnotify.Op(i), true //nolint:gosec // G115: Range checked above.
}

//nolint:ireturn // Following CEL's function signature.
func hasFlag(event, flag ref.Val) ref.Val {
	e, ok := toOp(event)
	if !ok {
		return types.NewErr("has: invalid event value")
	}

	f, ok := toOp(flag)
	if !ok {
		return types.NewErr("has: invalid flag value")
	}

	return types.Bool(e.Has(f))
}

// hasAnyFlag reports whether the event carries at least one of the flags.
//
//nolint:ireturn // Following CEL's function signature.
func hasAnyFlag(event, flags ref.Val) ref.Val {
	list, ok := flags.(traits.Lister)
	if !ok {
		return types.NewErr("has: invalid flags list")
	}

	size, ok := list.Size().(types.Int)
	if !ok {
		return types.NewErr("has: invalid flags list size")
	}

	for i := range size {
		has := hasFlag(event, list.Get(i))
		if types.IsError(has) || has == types.True {
			return has
		}
	}

	return types.False
}

//nolint:ireturn // Following CEL's function signature.
func hasVarArgMacro(meh cel.MacroExprFactory, target ast.Expr, args []ast.Expr) (ast.Expr, *cel.Error) {
	switch len(args) {
	case 0:
		return nil, meh.NewError(target.ID(), "has() requires at least one argument")
	case 1:
		return meh.NewCall("@has", target, args[0]), nil
	default:
		return meh.NewCall("@has", target, meh.NewList(args...)), nil
	}
}

// ConvertToCELValue converts a decoded YAML value to a CEL value.
// Unsupported types become null.
//
//nolint:ireturn // Following CEL's function signature.
func ConvertToCELValue(value any) ref.Val {
	switch v := value.(type) {
	case nil:
		return types.NullValue
	case bool:
		return types.Bool(v)
	case string:
		return types.String(v)
	case int:
		return signedValue(v)
	case int8:
		return signedValue(v)
	case int16:
		return signedValue(v)
	case int32:
		return signedValue(v)
	case int64:
		return signedValue(v)
	case uint:
		return unsignedValue(v)
	case uint8:
		return unsignedValue(v)
	case uint16:
		return unsignedValue(v)
	case uint32:
		return unsignedValue(v)
	case uint64:
		return unsignedValue(v)
	case float32:
		return types.Double(float64(v))
	case float64:
		return types.Double(v)
	case []any:
		items := make([]ref.Val, len(v))
		for i, item := range v {
			items[i] = ConvertToCELValue(item)
		}

		return types.NewDynamicList(types.DefaultTypeAdapter, items)
	case map[string]any:
		m := make(map[ref.Val]ref.Val, len(v))
		for key, val := range v {
			m[types.String(key)] = ConvertToCELValue(val)
		}

		return types.NewDynamicMap(types.DefaultTypeAdapter, m)
	case map[any]any:
		m := make(map[ref.Val]ref.Val, len(v))
		for key, val := range v {
			m[ConvertToCELValue(key)] = ConvertToCELValue(val)
		}

		return types.NewDynamicMap(types.DefaultTypeAdapter, m)
	}

	return types.NullValue
}

//nolint:ireturn // Following CEL's function signature.
func signedValue[T int | int8 | int16 | int32 | int64](v T) ref.Val {
	return types.Int(int64(v))
}

// unsignedValue falls back to a double for values above math.MaxInt64.
//
//nolint:ireturn // Following CEL's function signature.
func unsignedValue[T uint | uint8 | uint16 | uint32 | uint64](v T) ref.Val {
	if uint64(v) > math.MaxInt64 {
		return types.Double(float64(v))
	}

	return types.Int(int64(v)) //nolint:gosec // G115: Range checked above.
}
