package api

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/macropower/dtrl/pkg/yaml"
)

const (
	appDirName = "dtrl"

	dirMode  = 0o700
	fileMode = 0o600
)

// ErrNotRegularFile is returned when a path exists but is not a regular file.
var ErrNotRegularFile = errors.New("not a regular file")

// GetConfigPath returns the path to filename in the user's dtrl config
// directory: $XDG_CONFIG_HOME/dtrl, then ~/.config/dtrl, then a temp directory.
func GetConfigPath(filename string) string {
	dir, err := configDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), appDirName)

		slog.Warn("could not determine user config directory, using temp path",
			slog.String("path", dir),
			slog.Any("error", err),
		)
	}

	return filepath.Join(dir, filename)
}

func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("$XDG_CONFIG_HOME is unset, fall back to home directory: %w", err)
	}

	return filepath.Join(home, ".config", appDirName), nil
}

// ReadFile reads a regular file. Missing files return an error wrapping
// [fs.ErrNotExist].
func ReadFile(path string) ([]byte, error) {
	exists, err := isRegularFile(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("read %s: %w", path, fs.ErrNotExist)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// MarshalYAML serializes obj with the project's YAML encoder settings.
func MarshalYAML(obj any) ([]byte, error) {
	var b bytes.Buffer

	enc := yaml.NewEncoder(&b)

	err := enc.Encode(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return nil, fmt.Errorf("close yaml encoder: %w", err)
	}

	return b.Bytes(), nil
}

// WriteIfNotExists writes data to path unless a regular file is already there.
func WriteIfNotExists(path string, data []byte) error {
	exists, err := isRegularFile(path)
	if err != nil || exists {
		return err
	}

	return writeFile(path, data)
}

// FindConfigFile looks for any of fileNames in targetPath (or its directory,
// when targetPath is a file) and then in each parent directory. It returns
// an empty string when nothing is found.
func FindConfigFile(targetPath string, fileNames []string) (string, error) {
	absPath, err := filepath.Abs(targetPath)
	if err != nil {
		return "", fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat path: %w", err)
	}

	dir := absPath
	if !info.IsDir() {
		dir = filepath.Dir(absPath)
	}

	for {
		for _, name := range fileNames {
			candidate := filepath.Join(dir, name)

			found, err := isRegularFile(candidate)
			if err == nil && found {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}

		dir = parent
	}
}

// WriteDefaultFile writes defaultData to path when no file exists there.
// With force, an existing file is renamed to a timestamped ".old" backup first.
func WriteDefaultFile(path string, defaultData []byte, force bool, kind string) error {
	exists, err := isRegularFile(path)
	if err != nil {
		return err
	}

	logger := slog.With(slog.String("type", kind))

	if exists && !force {
		logger.Debug("file already exists, skipping write", slog.String("path", path))

		return nil
	}

	if exists {
		backupPath := fmt.Sprintf("%s.%d.old", path, time.Now().UnixNano())
		logger.Info("backing up existing file", slog.String("path", backupPath))

		err = os.Rename(path, backupPath)
		if err != nil {
			return fmt.Errorf("rename existing %s file to backup: %w", kind, err)
		}
	}

	logger.Info("write default file", slog.String("path", path))

	err = writeFile(path, defaultData)
	if err != nil {
		return fmt.Errorf("write %s file: %w", kind, err)
	}

	return nil
}

// isRegularFile reports whether a regular file exists at path. A missing path
// is not an error; a directory or special file is [ErrNotRegularFile].
func isRegularFile(path string) (bool, error) {
	info, err := os.Stat(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat file: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("%s: path is a directory: %w", path, ErrNotRegularFile)
	case !info.Mode().IsRegular():
		return false, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	return true, nil
}

func writeFile(path string, data []byte) error {
	err := os.MkdirAll(filepath.Dir(path), dirMode)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	err = os.WriteFile(path, data, fileMode)
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}
