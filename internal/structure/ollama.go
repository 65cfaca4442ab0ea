package structure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/idscan/pkg/utils"
)

const (
	// DefaultOllamaURL is the local Ollama server.
	DefaultOllamaURL = "http://localhost:11434"
	// DefaultOllamaModel is a vision-capable model served by Ollama.
	DefaultOllamaModel = "minicpm-v:8b"
)

// OllamaClient calls Ollama's /api/generate endpoint without streaming.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaClient returns a client for baseURL (with or without the
// /api/generate suffix) and model. httpClient may be nil.
func NewOllamaClient(baseURL, model string, httpClient *http.Client) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &OllamaClient{
		baseURL:    strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/api/generate"),
		model:      model,
		httpClient: httpClient,
	}
}

type ollamaRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
	Format string   `json:"format,omitempty"`
}

type ollamaResponse struct {
	Response *string `json:"response"`
	Error    string  `json:"error"`
}

// Generate posts the prompt and images and returns the "response" field.
// A reply without that field is treated as an empty object.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(ollamaRequest{
		Model:  c.model,
		Prompt: req.Prompt,
		Images: req.Images,
		Stream: false,
		Format: req.Format,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, utils.Truncate(strings.TrimSpace(string(body)), 300))
	}
	var out ollamaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	if out.Response == nil {
		return "{}", nil
	}
	return *out.Response, nil
}
