package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable ApplyEnv reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"IDSCAN_DATABASE_URL", "DATABASE_URL", "IDSCAN_REDIS_ADDR", "IDSCAN_REDIS_PASSWORD",
		"OLLAMA_API_URL", "IDSCAN_LLM_MODEL", "IDSCAN_LLM_PROVIDER", "GOOGLE_CLOUD_PROJECT", "IDSCAN_DEBUG",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 15s
storage:
  database_path: "test.db"
queue:
  workers: 4
  result_ttl: 2h
llm:
  timeout: 90s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("addr = %s", cfg.Server.Addr())
	}
	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Errorf("request_timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Queue.Workers != 4 || cfg.Queue.ResultTTL != 2*time.Hour {
		t.Errorf("unexpected queue config: %+v", cfg.Queue)
	}
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("llm timeout = %v", cfg.LLM.Timeout)
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("database_path should be absolute, got %s", cfg.Storage.DatabasePath)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_emptyPathUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Queue.Driver != "memory" || cfg.LLM.Provider != "ollama" {
		t.Errorf("unexpected defaults: storage=%s queue=%s llm=%s", cfg.Storage.Driver, cfg.Queue.Driver, cfg.LLM.Provider)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  database_path: "./data/db/documents.db"
  index_path: "./data/index"
inbox:
  directories: ["./inbox"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "db", "documents.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "index"); cfg.Storage.IndexPath != want {
		t.Errorf("index_path = %s, want %s", cfg.Storage.IndexPath, want)
	}
	if len(cfg.Inbox.Directories) != 1 || cfg.Inbox.Directories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("inbox directories = %v", cfg.Inbox.Directories)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/idscan")
	t.Setenv("IDSCAN_REDIS_ADDR", "redis:6379")
	t.Setenv("OLLAMA_API_URL", "http://ollama:11434/api/generate")
	t.Setenv("IDSCAN_LLM_MODEL", "llava:13b")
	t.Setenv("IDSCAN_DEBUG", "true")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.DatabaseURL != "postgres://u:p@db:5432/idscan" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Queue.Driver != "redis" || cfg.Queue.RedisAddr != "redis:6379" {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if cfg.LLM.URL != "http://ollama:11434/api/generate" || cfg.LLM.Model != "llava:13b" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if !cfg.Debug {
		t.Error("IDSCAN_DEBUG should enable debug")
	}
}

func TestApplyEnv_prefersIdscanDatabaseURL(t *testing.T) {
	env := map[string]string{
		"IDSCAN_DATABASE_URL": "postgres://primary",
		"DATABASE_URL":        "postgres://fallback",
	}
	cfg := &Config{}
	ApplyEnv(cfg, func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if cfg.Storage.DatabaseURL != "postgres://primary" {
		t.Errorf("database_url = %s", cfg.Storage.DatabaseURL)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "server: [unclosed"},
		{"unknown storage driver", "storage:\n  driver: mongo\n"},
		{"postgres without url", "storage:\n  driver: postgres\n"},
		{"unknown queue driver", "queue:\n  driver: kafka\n"},
		{"unknown ocr engine", "ocr:\n  engine: paddle\n"},
		{"vertex without project", "llm:\n  provider: vertex\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Queue.ResultTTL != 24*time.Hour {
		t.Errorf("default result_ttl: got %v", cfg.Queue.ResultTTL)
	}
	if cfg.LLM.Timeout != 600*time.Second {
		t.Errorf("default llm timeout: got %v", cfg.LLM.Timeout)
	}
	if cfg.LLM.Model != "minicpm-v:8b" {
		t.Errorf("default model: got %s", cfg.LLM.Model)
	}
	if cfg.Face.MinSize != 30 || cfg.Face.ScaleFactor != 1.1 {
		t.Errorf("face defaults: %+v", cfg.Face)
	}
	if len(cfg.Inbox.Extensions) == 0 || cfg.Inbox.Extensions[0] != ".jpg" {
		t.Errorf("inbox extensions: got %v", cfg.Inbox.Extensions)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("IDSCAN_LLM_MODEL=llava:7b\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// clearEnv set the variable to "", so godotenv must not override it; unset it first.
	os.Unsetenv("IDSCAN_LLM_MODEL")
	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("IDSCAN_LLM_MODEL"); got != "llava:7b" {
		t.Errorf("IDSCAN_LLM_MODEL = %q", got)
	}
	os.Unsetenv("IDSCAN_LLM_MODEL")
}
