// Package config loads the per-project client settings from .tplan/config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultBaseURL          = "http://localhost:8080/api"
	DefaultTimeoutSeconds   = 15
	DefaultRootTitle        = "Home"
	DefaultRootLocator      = "/items"
	DefaultReloadDebounceMS = 150
	DefaultReportModel      = "claude-sonnet-4-20250514"
	DefaultReportMaxTokens  = 4096
)

// Config holds per-project settings stored in .tplan/config.toml.
type Config struct {
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`
	Report ReportConfig `toml:"report"`

	// DataDir is where the config was found; other files live next to it.
	DataDir string `toml:"-"`
}

// ServerConfig points the gateway at the remote server.
type ServerConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ClientConfig tunes the local navigation and state layer.
type ClientConfig struct {
	RootTitle        string `toml:"root_title"`
	RootLocator      string `toml:"root_locator"`
	ReloadDebounceMS int    `toml:"reload_debounce_ms"`
	PrefsDB          string `toml:"prefs_db,omitempty"` // Default <datadir>/prefs.db
}

// ReportConfig configures AI progress reports.
type ReportConfig struct {
	Model     string `toml:"model"`
	APIKey    string `toml:"api_key,omitempty"` // Falls back to ANTHROPIC_API_KEY
	MaxTokens int64  `toml:"max_tokens"`
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

func (c *Config) ReloadDebounce() time.Duration {
	return time.Duration(c.Client.ReloadDebounceMS) * time.Millisecond
}

// PrefsPath returns the preferences database path.
func (c *Config) PrefsPath() string {
	if c.Client.PrefsDB == "" {
		return filepath.Join(c.DataDir, PrefsFile)
	}
	if filepath.IsAbs(c.Client.PrefsDB) {
		return c.Client.PrefsDB
	}
	return filepath.Join(c.DataDir, c.Client.PrefsDB)
}

func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, LogFile)
}

func applyDefaults(config *Config, dataDir string) {
	config.DataDir = dataDir
	config.Server.BaseURL = strings.TrimRight(strings.TrimSpace(config.Server.BaseURL), "/")
	if config.Server.BaseURL == "" {
		config.Server.BaseURL = DefaultBaseURL
	}
	if config.Server.TimeoutSeconds <= 0 {
		config.Server.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if config.Client.RootTitle == "" {
		config.Client.RootTitle = DefaultRootTitle
	}
	if config.Client.RootLocator == "" {
		config.Client.RootLocator = DefaultRootLocator
	}
	if config.Client.ReloadDebounceMS <= 0 {
		config.Client.ReloadDebounceMS = DefaultReloadDebounceMS
	}
	if config.Report.Model == "" {
		config.Report.Model = DefaultReportModel
	}
	if config.Report.MaxTokens <= 0 {
		config.Report.MaxTokens = DefaultReportMaxTokens
	}
}

// applyEnv lets the environment override secrets and the server address
// without touching the file.
func applyEnv(config *Config) {
	if v := os.Getenv("TPLAN_SERVER"); v != "" {
		config.Server.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("TPLAN_TOKEN"); v != "" {
		config.Server.Token = v
	}
	if config.Report.APIKey == "" {
		config.Report.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// LoadConfig reads the project config from .tplan/config.toml.
// If the data directory exists but holds no config, defaults are returned.
func LoadConfig() (*Config, error) {
	path, dataDir, err := configPath()
	if err != nil {
		return nil, err
	}
	config, err := loadConfigAt(path, dataDir)
	if err != nil {
		return nil, err
	}
	applyEnv(config)
	return config, nil
}

func loadConfigAt(path, dataDir string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config := &Config{}
			applyDefaults(config, dataDir)
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&config, dataDir)
	return &config, nil
}

func saveConfigAt(dataDir string, config *Config) error {
	applyDefaults(config, dataDir)
	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	configPath := filepath.Join(dataDir, ConfigFile)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// InitProject creates the .tplan directory in the current directory and
// writes a config pointing at baseURL. An existing config is left alone.
func InitProject(baseURL string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	dataDir := filepath.Join(wd, DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", DataDir, err)
	}

	path := filepath.Join(dataDir, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	config := &Config{Server: ServerConfig{BaseURL: baseURL}}
	if err := saveConfigAt(dataDir, config); err != nil {
		return "", err
	}
	return path, nil
}
