package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper to change working directory and restore it on cleanup
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir to %s: %v", dir, err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func setupDataDir(t *testing.T, dir string) string {
	t.Helper()
	dataDir := filepath.Join(dir, DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatalf("failed to create data dir: %v", err)
	}
	return dataDir
}

func writeConfig(t *testing.T, dataDir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dataDir, ConfigFile), []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"TPLAN_CONFIG", "TPLAN_SERVER", "TPLAN_TOKEN", "ANTHROPIC_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_DefaultsWhenNoConfigExists(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	dataDir := setupDataDir(t, dir)
	chdir(t, dir)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Server.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", config.Server.BaseURL, DefaultBaseURL)
	}
	if config.Timeout() != DefaultTimeoutSeconds*time.Second {
		t.Errorf("Timeout = %v", config.Timeout())
	}
	if config.Client.RootTitle != DefaultRootTitle || config.Client.RootLocator != DefaultRootLocator {
		t.Errorf("unexpected client config: %+v", config.Client)
	}
	if !strings.HasSuffix(config.PrefsPath(), filepath.Join(DataDir, PrefsFile)) {
		t.Errorf("PrefsPath = %q", config.PrefsPath())
	}
	if filepath.Base(config.DataDir) != filepath.Base(dataDir) {
		t.Errorf("DataDir = %q", config.DataDir)
	}
}

func TestLoadConfig_LoadsExistingConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	dataDir := setupDataDir(t, dir)
	writeConfig(t, dataDir, `
[server]
base_url = "https://plan.example.com/api/"
token = "abc"
timeout_seconds = 3

[client]
root_title = "Root"
reload_debounce_ms = 40
prefs_db = "/tmp/custom.db"

[report]
max_tokens = 512
`)
	chdir(t, dir)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Server.BaseURL != "https://plan.example.com/api" {
		t.Errorf("BaseURL = %q", config.Server.BaseURL)
	}
	if config.Server.Token != "abc" || config.Timeout() != 3*time.Second {
		t.Errorf("unexpected server config: %+v", config.Server)
	}
	if config.Client.RootTitle != "Root" || config.Client.RootLocator != DefaultRootLocator {
		t.Errorf("unexpected client config: %+v", config.Client)
	}
	if config.ReloadDebounce() != 40*time.Millisecond {
		t.Errorf("ReloadDebounce = %v", config.ReloadDebounce())
	}
	if config.PrefsPath() != "/tmp/custom.db" {
		t.Errorf("PrefsPath = %q", config.PrefsPath())
	}
	if config.Report.MaxTokens != 512 || config.Report.Model != DefaultReportModel {
		t.Errorf("unexpected report config: %+v", config.Report)
	}
}

func TestLoadConfig_FindsParentDataDir(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	dataDir := setupDataDir(t, dir)
	writeConfig(t, dataDir, "[client]\nroot_title = \"Parent\"\n")
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	chdir(t, sub)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Client.RootTitle != "Parent" {
		t.Errorf("RootTitle = %q", config.Client.RootTitle)
	}
}

func TestLoadConfig_NoDataDir(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "tplan init") {
		t.Errorf("expected init hint, got %v", err)
	}
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, setupDataDir(t, dir), "[server\n")
	chdir(t, dir)
	if _, err := LoadConfig(); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte("[server]\ntoken = \"file\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TPLAN_CONFIG", path)
	t.Setenv("TPLAN_SERVER", "https://other.example.com/")
	t.Setenv("TPLAN_TOKEN", "env")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Server.BaseURL != "https://other.example.com" || config.Server.Token != "env" {
		t.Errorf("unexpected server config: %+v", config.Server)
	}
	if config.Report.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", config.Report.APIKey)
	}
	if config.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", config.DataDir, dir)
	}
}

func TestInitProject(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)

	path, err := InitProject("https://plan.example.com/api")
	if err != nil {
		t.Fatalf("InitProject() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), "https://plan.example.com/api") {
		t.Errorf("config missing base_url:\n%s", data)
	}

	// A second init keeps the existing file.
	if err := os.WriteFile(path, []byte("[client]\nroot_title = \"Kept\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := InitProject("http://ignored"); err != nil {
		t.Fatalf("second InitProject() error = %v", err)
	}
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Client.RootTitle != "Kept" {
		t.Errorf("existing config was overwritten")
	}
}

func TestLocate(t *testing.T) {
	root := t.TempDir()
	dataDir := setupDataDir(t, root)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	fileRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(fileRoot, DataDir), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		start   string
		want    string
		wantErr string
	}{
		{"in start dir", root, dataDir, ""},
		{"in ancestor", nested, dataDir, ""},
		{"plain file is rejected", fileRoot, "", "not a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := locate(tt.start)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("locate() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("locate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("locate() = %q, want %q", got, tt.want)
			}
		})
	}
}
