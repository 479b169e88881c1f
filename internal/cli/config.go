package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/macropower/dtrl/api/v1beta1/configs"
	"github.com/macropower/dtrl/api/v1beta1/projectconfigs"
	"github.com/macropower/dtrl/pkg/config"
)

// loadConfig loads the global configuration at configPath and merges any
// project configuration found at or above tablePath into it.
func loadConfig(configPath, tablePath string, color bool) (*configs.Config, error) {
	cfg := configs.New()

	cl, err := config.NewLoaderFromFile(configPath, configs.New, configs.DefaultValidator,
		config.WithColor(color),
	)
	if err != nil {
		slog.Warn("could not read config, using defaults",
			slog.String("path", configPath),
			slog.Any("err", err),
		)
	} else {
		cfg, err = cl.ValidateAndLoad()
		if err != nil {
			return nil, fmt.Errorf("invalid config %q: %w", configPath, err)
		}
	}

	projectPath, err := projectconfigs.Find(tablePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}

		return nil, err //nolint:wrapcheck // Error is already wrapped.
	}
	if projectPath == "" {
		return cfg, nil
	}

	pl, err := config.NewLoaderFromFile(projectPath, projectconfigs.New, projectconfigs.DefaultValidator,
		config.WithColor(color),
	)
	if err != nil {
		return nil, fmt.Errorf("read project config %q: %w", projectPath, err)
	}

	pc, err := pl.ValidateAndLoad()
	if err != nil {
		return nil, fmt.Errorf("invalid project config %q: %w", projectPath, err)
	}

	merged, err := pc.Merge(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid project config %q: %w", projectPath, err)
	}

	slog.Debug("merged project config",
		slog.String("path", projectPath),
		slog.Int("profiles", len(merged.Profiles)),
		slog.Int("rules", len(merged.Rules)),
	)

	cfg.Command = merged

	return cfg, nil
}
