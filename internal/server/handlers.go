package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/export"
	"github.com/hyperjump/idscan/internal/models"
	"github.com/hyperjump/idscan/internal/queue"
	"github.com/hyperjump/idscan/internal/storage"
)

type extractResponse struct {
	Message   string `json:"message"`
	TaskID    string `json:"task_id"`
	StatusURL string `json:"status_url"`
}

type statusResponse struct {
	State  models.RunState `json:"state"`
	Status string          `json:"status"`
	Result *int64          `json:"result,omitempty"`
}

type documentResponse struct {
	ID                 int64         `json:"id"`
	DocType            string        `json:"doc_type"`
	CreatedAt          time.Time     `json:"created_at"`
	ExtractedData      models.Record `json:"extracted_data"`
	FaceImage          *string       `json:"face_image"`
	OriginalImageCount int           `json:"original_image_count"`
}

type historyResponse struct {
	Items    []models.HistoryItem `json:"items"`
	Page     int                  `json:"page"`
	PerPage  int                  `json:"per_page"`
	Total    int64                `json:"total"`
	LastPage int                  `json:"last_page"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	if r.ContentLength > maxBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "No 'files' part in the request")
		return
	}
	docType := strings.TrimSpace(r.FormValue("doc_type"))
	if docType == "" {
		s.respondError(w, http.StatusBadRequest, "doc_type is required")
		return
	}
	if len(docType) > models.MaxDocTypeLength {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("doc_type must be at most %d characters", models.MaxDocTypeLength))
		return
	}

	files := make([]models.SubmittedFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Filename == "" {
			continue
		}
		data, err := readPart(fh)
		if err != nil {
			s.logger.Error("failed to read upload", zap.String("filename", fh.Filename), zap.Error(err))
			s.respondError(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		files = append(files, models.SubmittedFile{
			Key:      fmt.Sprintf("file_%03d", len(files)),
			Filename: fh.Filename,
			Data:     data,
		})
	}
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "No selected files")
		return
	}

	taskID, err := s.dispatcher.Submit(r.Context(), docType, files)
	if err != nil {
		s.logger.Error("submit failed", zap.Error(err))
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrClosed) {
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("submission queued", zap.String("task_id", taskID), zap.String("doc_type", docType), zap.Int("files", len(files)))
	s.respondJSON(w, http.StatusAccepted, extractResponse{
		Message:   "Processing started.",
		TaskID:    taskID,
		StatusURL: "/status/" + taskID,
	})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	run, err := s.dispatcher.Status(r.Context(), taskID)
	if errors.Is(err, queue.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("status lookup failed", zap.String("task_id", taskID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := statusResponse{State: run.State, Status: run.Status}
	switch run.State {
	case models.RunSuccess:
		resp.Result = run.Result
	case models.RunFailure:
		resp.Status = run.Error
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) documentFromPath(w http.ResponseWriter, r *http.Request) (*models.ProcessedDocument, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return nil, false
	}
	doc, err := s.store.GetDocument(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get document failed", zap.Int64("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return doc, true
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.documentFromPath(w, r)
	if !ok {
		return
	}
	resp := documentResponse{
		ID:                 doc.ID,
		DocType:            doc.DocType,
		CreatedAt:          doc.CreatedAt,
		ExtractedData:      doc.ExtractedData,
		OriginalImageCount: len(doc.OriginalImages),
	}
	if len(doc.FaceImage) > 0 {
		enc := base64.StdEncoding.EncodeToString(doc.FaceImage)
		resp.FaceImage = &enc
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetFace(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.documentFromPath(w, r)
	if !ok {
		return
	}
	if len(doc.FaceImage) == 0 {
		s.respondError(w, http.StatusNotFound, "no face image for document")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.FaceImage)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.FaceImage)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := models.HistoryQuery{
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per_page"),
	}
	q.Normalize()
	items, total, err := s.store.History(r.Context(), q)
	if err != nil {
		s.logger.Error("history failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, historyResponse{
		Items:    items,
		Page:     q.Page,
		PerPage:  q.PerPage,
		Total:    total,
		LastPage: q.LastPage(total),
	})
}

// handleExport writes the requested history page as a spreadsheet.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := models.HistoryQuery{
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per_page"),
	}
	q.Normalize()
	items, _, err := s.store.History(r.Context(), q)
	if err != nil {
		s.logger.Error("history failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	docs := make([]*models.ProcessedDocument, 0, len(items))
	for _, it := range items {
		doc, err := s.store.GetDocument(r.Context(), it.ID)
		if err != nil {
			s.logger.Error("get document failed", zap.Int64("id", it.ID), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		docs = append(docs, doc)
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, docs); err != nil {
		s.logger.Error("export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="documents-page-%d.xlsx"`, q.Page))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		s.respondError(w, http.StatusNotImplemented, "search not enabled")
		return
	}
	q := models.SearchQuery{Query: strings.TrimSpace(r.URL.Query().Get("q")), Limit: queryInt(r, "limit")}
	if err := q.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", q.Query), zap.Int("limit", q.Limit))
	hits, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q.Query, "hits": hits})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if len(s.diskPaths) > 0 {
		if n, err := storage.UsageBytes(s.diskPaths...); err == nil {
			resp["disk_usage_bytes"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
