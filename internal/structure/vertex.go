package structure

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

// DefaultVertexModel is the Gemini model used when none is configured.
const DefaultVertexModel = "gemini-1.5-flash-002"

// VertexConfig selects the Vertex AI project, region and model.
type VertexConfig struct {
	ProjectID       string
	Location        string
	Model           string
	CredentialsFile string
}

// VertexClient generates with Gemini on Vertex AI, constrained to JSON output.
type VertexClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewVertexClient connects to Vertex AI.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("vertex project id is required")
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultVertexModel
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	return &VertexClient{client: client, model: model}, nil
}

// Generate sends the prompt followed by the page images as inline JPEG parts.
func (c *VertexClient) Generate(ctx context.Context, req Request) (string, error) {
	parts := make([]genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.Text(req.Prompt))
	for i, img := range req.Images {
		raw, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return "", fmt.Errorf("decode image %d: %w", i+1, err)
		}
		parts = append(parts, genai.ImageData(imageFormat(raw), raw))
	}
	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("vertex returned no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}

// imageFormat returns the genai image format of raw (e.g. "jpeg", "png").
func imageFormat(raw []byte) string {
	ct := http.DetectContentType(raw)
	if !strings.HasPrefix(ct, "image/") {
		return "jpeg"
	}
	return strings.TrimPrefix(ct, "image/")
}

// Close releases the Vertex AI client.
func (c *VertexClient) Close() error {
	return c.client.Close()
}
