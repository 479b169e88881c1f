package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CompileTableParams defines parameters for the compile_table tool.
type CompileTableParams struct {
	Path    string `json:"path"              jsonschema:"the table file or directory to compile, relative to the project root"`
	Profile string `json:"profile,omitempty" jsonschema:"the profile to compile with, overriding the configured rules"`
}

// CompiledUnit summarizes one compiled table.
type CompiledUnit struct {
	Path    string `json:"path"`
	Table   string `json:"table"`
	Profile string `json:"profile"`
	Rules   int    `json:"rules"`
}

// CompileTableResult contains the result of compiling tables.
type CompileTableResult struct {
	Error     string         `json:"error,omitempty"`
	Message   string         `json:"message"`
	Source    string         `json:"source"`
	Units     []CompiledUnit `json:"units"`
	RuleCount int            `json:"ruleCount"`
	Truncated bool           `json:"truncated,omitempty"`
}

func (s *Server) handleCompileTable(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	params CompileTableParams,
) (*mcp.CallToolResult, CompileTableResult, error) {
	path, err := s.resolvePath(params.Path)
	if err != nil {
		return nil, CompileTableResult{}, err
	}

	output := s.compiler.Compile(ctx, path, params.Profile)

	result := CompileTableResult{
		Units: []CompiledUnit{},
	}

	if output.Error != nil {
		// Table errors are reported to the caller rather than failing the call.
		result.Error = output.Error.Error()
		result.Message = "Compilation failed."

		res := textResult(result.Message + "\n" + result.Error)
		res.IsError = true

		return res, result, nil
	}

	for _, u := range output.Units {
		result.Units = append(result.Units, CompiledUnit{
			Path:    s.relPath(u.Path),
			Table:   u.Table,
			Profile: u.Profile,
			Rules:   len(u.Rules),
		})
	}

	result.RuleCount = output.RuleCount()
	result.Source, result.Truncated = truncateString(output.Source(), maxSourceLen)
	result.Message = fmt.Sprintf("Compiled %d rules from %d tables.", result.RuleCount, len(result.Units))

	return textResult(result.Message + "\n\n" + result.Source), result, nil
}
