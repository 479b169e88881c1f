package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/dtrl/pkg/command"
	"github.com/macropower/dtrl/pkg/log"
	"github.com/macropower/dtrl/pkg/version"
)

// Compiler lists and compiles decision tables.
type Compiler interface {
	Tables(ctx context.Context, path string) ([]command.TableInfo, error)
	Compile(ctx context.Context, path, profileName string) command.Output
}

// Server implements the MCP server for dtrl. Tool paths are resolved
// against a root directory and may not escape it.
type Server struct {
	compiler Compiler
	server   *mcp.Server
	tracer   trace.Tracer
	root     *os.Root
	rootDir  string
	address  string
}

// NewServer creates a new MCP server instance. If address is empty, the
// server communicates over stdio.
func NewServer(address string, compiler Compiler, rootDir string) (*Server, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", rootDir, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("open root: %w", err)
	}
	if !info.IsDir() {
		// A single table file is served from its directory.
		absRoot = filepath.Dir(absRoot)
	}

	root, err := os.OpenRoot(absRoot)
	if err != nil {
		return nil, fmt.Errorf("open root: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}

	opts := &mcp.ServerOptions{
		Instructions: instructions,
	}

	s := &Server{
		address:  address,
		compiler: compiler,
		server:   mcp.NewServer(impl, opts),
		tracer:   otel.Tracer("dtrl/mcp"),
		root:     root,
		rootDir:  absRoot,
	}

	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_tables",
		Description: "List the decision tables found at a path, with the profile each table compiles with. You MUST specify a path.",
		InputSchema: newListTablesSchema(),
	}, WithTracing(s.tracer, s.handleListTables))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "compile_table",
		Description: "Compile the decision tables at a path into DRL. Use a path from the list_tables output EXACTLY.",
		InputSchema: newCompileTableSchema(),
	}, WithTracing(s.tracer, s.handleCompileTable))
}

// resolvePath maps a tool path onto the root directory. Absolute paths are
// accepted when they are inside the root.
func (s *Server) resolvePath(path string) (string, error) {
	if path == "" {
		path = "."
	}

	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(s.rootDir, path)
		if err != nil {
			return "", fmt.Errorf("%w %q: %w", ErrInvalidPath, path, err)
		}

		path = rel
	}

	_, err := s.root.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidPath, path, err)
	}

	return filepath.Join(s.rootDir, path), nil
}

// relPath reports path relative to the root directory.
func (s *Server) relPath(path string) string {
	rel, err := filepath.Rel(s.rootDir, path)
	if err != nil {
		return path
	}

	return rel
}

func (s *Server) Server() *mcp.Server {
	return s.server
}

func (s *Server) Close() error {
	err := s.root.Close()
	if err != nil {
		return fmt.Errorf("close root: %w", err)
	}

	return nil
}

// Serve starts the MCP server and blocks until ctx is canceled or the
// transport fails.
func (s *Server) Serve(ctx context.Context) error {
	log.WithContext(ctx).InfoContext(ctx, "starting MCP server",
		slog.String("address", s.address),
		slog.String("root", s.rootDir),
	)

	if s.address == "" {
		err := s.serveStdio(ctx)
		if err != nil {
			return fmt.Errorf("serve stdio: %w", err)
		}

		return nil
	}

	err := s.serveHTTP(ctx)
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	server := &http.Server{
		Addr:    s.address,
		Handler: handler,

		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.WithContext(ctx).ErrorContext(ctx, "shutdown MCP server", slog.Any("error", err))
		}
	}()

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	t := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    os.Stderr,
	}

	err := s.server.Run(ctx, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}
