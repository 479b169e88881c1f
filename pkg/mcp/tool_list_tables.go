package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/dtrl/pkg/command"
)

// ListTablesParams defines parameters for the list_tables tool.
type ListTablesParams struct {
	Path string `json:"path" jsonschema:"the file or directory path to search, relative to the project root"`
}

// ListTablesResult contains the result of listing tables.
type ListTablesResult struct {
	Message    string              `json:"message"`
	Tables     []command.TableInfo `json:"tables"`
	TableCount int                 `json:"tableCount"`
	ErrorCount int                 `json:"errorCount"`
}

func (s *Server) handleListTables(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	params ListTablesParams,
) (*mcp.CallToolResult, ListTablesResult, error) {
	path, err := s.resolvePath(params.Path)
	if err != nil {
		return nil, ListTablesResult{}, err
	}

	infos, err := s.compiler.Tables(ctx, path)
	if err != nil {
		return nil, ListTablesResult{}, fmt.Errorf("list tables: %w", err)
	}

	result := ListTablesResult{
		Tables: make([]command.TableInfo, 0, len(infos)),
	}

	for _, info := range infos {
		info.Path = s.relPath(info.Path)
		if info.Error != "" {
			result.ErrorCount++
		}

		result.Tables = append(result.Tables, info)
	}

	result.TableCount = len(result.Tables) - result.ErrorCount
	result.Message = fmt.Sprintf("Found %d decision tables.", result.TableCount)
	if result.ErrorCount > 0 {
		result.Message += fmt.Sprintf(" %d could not be loaded or matched to a profile.", result.ErrorCount)
	}

	return textResult(result.Message), result, nil
}

func textResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: msg,
			},
		},
	}
}
