// Package config provides configuration loading and structs for the idscan server and workers.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Queue   QueueConfig   `yaml:"queue"`
	OCR     OCRConfig     `yaml:"ocr"`
	LLM     LLMConfig     `yaml:"llm"`
	Face    FaceConfig    `yaml:"face"`
	Inbox   InboxConfig   `yaml:"inbox"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxUploadMB    int           `yaml:"max_upload_mb"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects the document store and the search index location.
type StorageConfig struct {
	Driver       string `yaml:"driver"` // sqlite | postgres
	DatabasePath string `yaml:"database_path"`
	DatabaseURL  string `yaml:"database_url"`
	// IndexPath is the Bleve index directory; empty keeps the index in memory.
	IndexPath string `yaml:"index_path"`
}

// QueueConfig selects the broker and worker pool size.
type QueueConfig struct {
	Driver        string        `yaml:"driver"` // memory | redis
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	KeyPrefix     string        `yaml:"key_prefix"`
	Workers       int           `yaml:"workers"`
	Capacity      int           `yaml:"capacity"`
	ResultTTL     time.Duration `yaml:"result_ttl"`
}

// OCRConfig holds recognition engine settings.
type OCRConfig struct {
	Engine    string   `yaml:"engine"` // tesseract | none
	Languages []string `yaml:"languages"`
	CacheSize int      `yaml:"cache_size"`
}

// LLMConfig selects the structuring model.
type LLMConfig struct {
	Provider        string        `yaml:"provider"` // ollama | vertex
	URL             string        `yaml:"url"`
	Model           string        `yaml:"model"`
	Timeout         time.Duration `yaml:"timeout"`
	VertexProject   string        `yaml:"vertex_project"`
	VertexLocation  string        `yaml:"vertex_location"`
	CredentialsFile string        `yaml:"credentials_file"`
}

// FaceConfig holds face cascade settings. An empty CascadePath disables face detection.
type FaceConfig struct {
	CascadePath string  `yaml:"cascade_path"`
	MinSize     int     `yaml:"min_size"`
	MaxSize     int     `yaml:"max_size"`
	ScaleFactor float64 `yaml:"scale_factor"`
	ShiftFactor float64 `yaml:"shift_factor"`
	IoU         float64 `yaml:"iou"`
	MinQuality  float32 `yaml:"min_quality"`
}

// InboxConfig holds watched drop directories. No directories disables the inbox.
type InboxConfig struct {
	Directories []string      `yaml:"directories"`
	Extensions  []string      `yaml:"extensions"`
	DocType     string        `yaml:"doc_type"`
	Debounce    time.Duration `yaml:"debounce"`
}

// Load reads the config file at path, applies defaults, expands paths and
// applies environment overrides. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg, os.LookupEnv)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Face.CascadePath = expandPath(cfg.Face.CascadePath, configDir)
	cfg.LLM.CredentialsFile = expandPath(cfg.LLM.CredentialsFile, configDir)
	for i := range cfg.Inbox.Directories {
		cfg.Inbox.Directories[i] = expandPath(cfg.Inbox.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with environment variables read through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	var dbURL string
	str(&dbURL, "IDSCAN_DATABASE_URL", "DATABASE_URL")
	if dbURL != "" {
		cfg.Storage.DatabaseURL = dbURL
		cfg.Storage.Driver = "postgres"
	}
	var redisAddr string
	str(&redisAddr, "IDSCAN_REDIS_ADDR")
	if redisAddr != "" {
		cfg.Queue.RedisAddr = redisAddr
		cfg.Queue.Driver = "redis"
	}
	str(&cfg.Queue.RedisPassword, "IDSCAN_REDIS_PASSWORD")
	str(&cfg.LLM.URL, "OLLAMA_API_URL")
	str(&cfg.LLM.Model, "IDSCAN_LLM_MODEL")
	str(&cfg.LLM.Provider, "IDSCAN_LLM_PROVIDER")
	str(&cfg.LLM.VertexProject, "GOOGLE_CLOUD_PROJECT")
	if v, ok := lookup("IDSCAN_DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// Validate rejects unknown drivers and incomplete driver settings.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Queue.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown queue driver %q", c.Queue.Driver)
	}
	switch c.OCR.Engine {
	case "tesseract", "none":
	default:
		return fmt.Errorf("unknown ocr engine %q", c.OCR.Engine)
	}
	switch c.LLM.Provider {
	case "ollama":
	case "vertex":
		if c.LLM.VertexProject == "" {
			return fmt.Errorf("llm.vertex_project is required for the vertex provider")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// expandPath converts a path to absolute. "~/" is the home directory, paths
// starting with "./" are relative to configDir. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		if abs, err := filepath.Abs(filepath.Join(configDir, path)); err == nil {
			return abs
		}
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
