package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DataDir is the per-project data directory name.
	DataDir = ".tplan"
	// ConfigFile is the config filename inside DataDir.
	ConfigFile = "config.toml"
	// PrefsFile is the default preferences database inside DataDir.
	PrefsFile = "prefs.db"
	// LogFile receives log output while the TUI owns the terminal.
	LogFile = "tplan.log"
)

// configPath resolves the config file: TPLAN_CONFIG when set, otherwise
// DataDir/ConfigFile in the working directory or the nearest ancestor.
func configPath() (path, dataDir string, err error) {
	if env := os.Getenv("TPLAN_CONFIG"); env != "" {
		return env, filepath.Dir(env), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working directory: %w", err)
	}
	dataDir, err = locate(wd)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(dataDir, ConfigFile), dataDir, nil
}

// locate returns the first DataDir found at start or above it.
func locate(start string) (string, error) {
	for dir := start; ; {
		candidate := filepath.Join(dir, DataDir)
		switch info, err := os.Stat(candidate); {
		case err == nil && info.IsDir():
			return candidate, nil
		case err == nil:
			return "", fmt.Errorf("%s exists but is not a directory", candidate)
		case !os.IsNotExist(err):
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s directory found in %s or any ancestor. Run 'tplan init' first", DataDir, start)
		}
		dir = parent
	}
}
