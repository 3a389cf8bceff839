package handlers

import (
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/docscan/internal/preview"
)

func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	data, ok := h.previews.Open(preview.Ref(r.PathValue("ref")))
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write preview", "err", err)
	}
}

func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Unable to write healthcheck", "err", err)
	}
}
