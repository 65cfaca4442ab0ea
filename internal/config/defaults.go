package config

import (
	"time"

	"github.com/hyperjump/idscan/internal/structure"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/idscan/data/db/documents.db"
	}
	if cfg.Queue.Driver == "" {
		cfg.Queue.Driver = "memory"
	}
	if cfg.Queue.RedisAddr == "" {
		cfg.Queue.RedisAddr = "localhost:6379"
	}
	if cfg.Queue.KeyPrefix == "" {
		cfg.Queue.KeyPrefix = "idscan:"
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 2
	}
	if cfg.Queue.Capacity == 0 {
		cfg.Queue.Capacity = 64
	}
	if cfg.Queue.ResultTTL == 0 {
		cfg.Queue.ResultTTL = 24 * time.Hour
	}
	if cfg.OCR.Engine == "" {
		cfg.OCR.Engine = "tesseract"
	}
	if len(cfg.OCR.Languages) == 0 {
		cfg.OCR.Languages = []string{"eng"}
	}
	if cfg.OCR.CacheSize == 0 {
		cfg.OCR.CacheSize = 256
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.URL == "" {
		cfg.LLM.URL = structure.DefaultOllamaURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = structure.DefaultOllamaModel
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = structure.DefaultTimeout
	}
	if cfg.LLM.VertexLocation == "" {
		cfg.LLM.VertexLocation = "us-central1"
	}
	if cfg.Face.MinSize == 0 {
		cfg.Face.MinSize = 30
	}
	if cfg.Face.MaxSize == 0 {
		cfg.Face.MaxSize = 1000
	}
	if cfg.Face.ScaleFactor == 0 {
		cfg.Face.ScaleFactor = 1.1
	}
	if cfg.Face.ShiftFactor == 0 {
		cfg.Face.ShiftFactor = 0.1
	}
	if cfg.Face.IoU == 0 {
		cfg.Face.IoU = 0.2
	}
	if cfg.Face.MinQuality == 0 {
		cfg.Face.MinQuality = 5.0
	}
	if cfg.Inbox.Extensions == nil {
		cfg.Inbox.Extensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp", ".gif", ".pdf"}
	}
	if cfg.Inbox.DocType == "" {
		cfg.Inbox.DocType = "Other"
	}
	if cfg.Inbox.Debounce == 0 {
		cfg.Inbox.Debounce = 400 * time.Millisecond
	}
}
