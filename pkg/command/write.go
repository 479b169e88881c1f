package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"

	"github.com/macropower/dtrl/pkg/log"
)

// writeIfChanged writes src to path unless path already holds identical
// content. It reports whether the file was written.
func (cr *Runner) writeIfChanged(ctx context.Context, path, src string) (bool, error) {
	logger := log.WithContext(ctx)
	sum := xxh3.HashString(src)

	cr.mu.Lock()
	prev, ok := cr.digests[path]
	cr.mu.Unlock()

	if !ok {
		existing, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
		if err == nil {
			prev, ok = xxh3.Hash(existing), true
		}
	}

	if ok && prev == sum {
		logger.DebugContext(ctx, "output unchanged", slog.String("path", path))
		return false, nil
	}

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return false, fmt.Errorf("create output directory: %w", err)
	}

	err = os.WriteFile(path, []byte(src), 0o644) //nolint:gosec // G306: Output is not sensitive.
	if err != nil {
		return false, fmt.Errorf("write output: %w", err)
	}

	cr.mu.Lock()
	cr.digests[path] = sum
	cr.mu.Unlock()

	logger.InfoContext(ctx, "wrote output",
		slog.String("path", path),
		slog.String("size", humanize.Bytes(uint64(len(src)))),
	)

	return true, nil
}
