package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/docscan/internal/capture"
	"github.com/lehigh-university-libraries/docscan/internal/classify"
	"github.com/lehigh-university-libraries/docscan/internal/config"
	"github.com/lehigh-university-libraries/docscan/internal/handoff"
	"github.com/lehigh-university-libraries/docscan/internal/images"
	"github.com/lehigh-university-libraries/docscan/internal/models"
	"github.com/lehigh-university-libraries/docscan/internal/preview"
	"github.com/lehigh-university-libraries/docscan/internal/raster"
	"github.com/lehigh-university-libraries/docscan/internal/storage"
)

type Handler struct {
	cfg          *config.Config
	sessionStore *storage.SessionStore
	previews     *preview.Registry
	enhancer     capture.Enhancer
	classifier   *classify.Classifier
	fetcher      *images.Fetcher
	sink         handoff.Sink
}

func New(cfg *config.Config, sink handoff.Sink) *Handler {
	fetcher := images.NewFetcher()
	fetcher.MaxBytes = cfg.MaxUploadBytes

	return &Handler{
		cfg:          cfg,
		sessionStore: storage.New(),
		previews:     preview.NewRegistry(),
		enhancer:     raster.NewEnhancer(),
		classifier:   classify.New(),
		fetcher:      fetcher,
		sink:         sink,
	}
}

// Routes registers every endpoint on a new mux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleSessionDetail)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("PUT /api/sessions/{id}/options", h.HandleOptions)
	mux.HandleFunc("POST /api/sessions/{id}/captures", h.HandleUpload)
	mux.HandleFunc("DELETE /api/sessions/{id}/captures/{index}", h.HandleRemoveCapture)
	mux.HandleFunc("POST /api/sessions/{id}/reset", h.HandleReset)
	mux.HandleFunc("POST /api/sessions/{id}/finalize", h.HandleFinalize)
	mux.HandleFunc("GET /api/previews/{ref}", h.HandlePreview)
	mux.HandleFunc("GET /healthcheck", h.HandleHealthcheck)
	return mux
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// decodeOptionalJSON decodes the request body into v. An empty body, with or
// without a Content-Length, leaves v untouched.
func decodeOptionalJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeSessionError maps controller errors onto HTTP status codes
func (h *Handler) writeSessionError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, capture.ErrIndexOutOfRange):
		code = http.StatusNotFound
	case errors.Is(err, capture.ErrEmptyCapture):
		code = http.StatusBadRequest
	case errors.Is(err, capture.ErrEmptySession),
		errors.Is(err, capture.ErrSessionClosed),
		errors.Is(err, capture.ErrSessionReset),
		errors.Is(err, capture.ErrFinalizing):
		code = http.StatusConflict
	}
	h.writeError(w, err.Error(), code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*capture.Controller, bool) {
	session, exists := h.sessionStore.Get(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (h *Handler) sessionView(session *capture.Controller, withClassification bool) models.CaptureSession {
	pages := session.Pages()
	view := models.CaptureSession{
		ID:        session.ID(),
		State:     session.State(),
		Options:   session.Options(),
		Pages:     make([]models.PageItem, 0, len(pages)),
		Pending:   session.Pending(),
		CreatedAt: session.CreatedAt(),
	}

	for _, p := range pages {
		item := models.NewPageItem(p)
		if withClassification {
			isDocument := h.classifier.IsDocumentBytes(p.Data)
			item.Document = &isDocument
		}
		view.Pages = append(view.Pages, item)
	}
	return view
}
