// Package cli provides the HTTP client and output helpers behind the idscan
// submit, status and export commands.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/idscan/internal/models"
)

// SubmitResponse is the reply to a submission.
type SubmitResponse struct {
	Message   string `json:"message"`
	TaskID    string `json:"task_id"`
	StatusURL string `json:"status_url"`
}

// StatusResponse is the observable state of a run.
type StatusResponse struct {
	State  models.RunState `json:"state"`
	Status string          `json:"status"`
	Result *int64          `json:"result,omitempty"`
}

// DocumentResponse is a processed document as served by the API.
type DocumentResponse struct {
	ID                 int64         `json:"id"`
	DocType            string        `json:"doc_type"`
	CreatedAt          time.Time     `json:"created_at"`
	ExtractedData      models.Record `json:"extracted_data"`
	FaceImage          *string       `json:"face_image"`
	OriginalImageCount int           `json:"original_image_count"`
}

// Client talks to an idscan server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: 5 * time.Minute}}
}

// Submit uploads the files at paths as one submission.
func (c *Client) Submit(ctx context.Context, docType string, paths []string) (*SubmitResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("doc_type", docType); err != nil {
		return nil, err
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		fw, err := mw.CreateFormFile("files", filepath.Base(p))
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/extract", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out SubmitResponse
	if err := c.do(req, http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the state of run taskID.
func (c *Client) Status(ctx context.Context, taskID string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/status/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}
	var out StatusResponse
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Wait polls Status every interval until the run is terminal or ctx is done.
// onProgress, when set, is called whenever the status text changes.
func (c *Client) Wait(ctx context.Context, taskID string, interval time.Duration, onProgress func(*StatusResponse)) (*StatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := ""
	for {
		st, err := c.Status(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if onProgress != nil && st.Status != last {
			onProgress(st)
			last = st.Status
		}
		if st.State.Terminal() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Document fetches a processed document.
func (c *Client) Document(ctx context.Context, id int64) (*DocumentResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/documents/%d", c.BaseURL, id), nil)
	if err != nil {
		return nil, err
	}
	var out DocumentResponse
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export writes one history page as an XLSX workbook to w.
func (c *Client) Export(ctx context.Context, page, perPage int, w io.Writer) error {
	u := fmt.Sprintf("%s/api/v1/history/export.xlsx?page=%d&per_page=%d", c.BaseURL, page, perPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, w)
}

// do sends req and decodes the JSON reply into out; an io.Writer out receives the raw body.
func (c *Client) do(req *http.Request, want int, out interface{}) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if w, ok := out.(io.Writer); ok {
		if _, err := io.Copy(w, resp.Body); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
