package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lehigh-university-libraries/docscan/internal/capture"
	"github.com/lehigh-university-libraries/docscan/internal/models"
	"github.com/lehigh-university-libraries/docscan/internal/raster"
)

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.List()
	sessionList := make([]models.CaptureSession, 0, len(sessions))
	for _, session := range sessions {
		sessionList = append(sessionList, h.sessionView(session, false))
	}
	h.writeJSON(w, sessionList)
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	opts := h.cfg.Enhancement
	if err := decodeOptionalJSON(r, &opts); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	session := capture.New(h.enhancer, h.previews,
		capture.WithOptions(opts),
		capture.WithConcurrency(h.cfg.EnhanceWorkers))
	h.sessionStore.Add(session)

	slog.Info("Session created", "session_id", session.ID(), "grayscale", opts.Grayscale, "sharpen", opts.Sharpen, "auto_adjust", opts.AutoAdjust)
	h.writeJSONStatus(w, http.StatusCreated, h.sessionView(session, false))
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	withClassification, _ := strconv.ParseBool(r.URL.Query().Get("classify"))
	h.writeJSON(w, h.sessionView(session, withClassification))
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	session, exists := h.sessionStore.Delete(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	session.Cancel()
	if n := h.previews.ReleaseOwner(session.ID()); n > 0 {
		slog.Warn("Released previews left behind by cancelled session", "session_id", session.ID(), "previews", n)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var opts raster.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	session.SetOptions(opts)
	h.writeJSON(w, h.sessionView(session, false))
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	session.Reset()
	h.writeJSON(w, h.sessionView(session, false))
}

func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		MergeIntoOne bool `json:"merge_into_one"`
	}
	if err := decodeOptionalJSON(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	// A completed session whose handoff failed is delivered again with the pages and
	// merge flag it was finalized with.
	result, retry := session.Undelivered()
	if retry {
		slog.Info("Retrying session delivery", "session_id", session.ID(), "pages", len(result.Pages))
	} else {
		var err error
		result, err = session.Finalize(r.Context(), request.MergeIntoOne)
		if err != nil {
			h.writeSessionError(w, err)
			return
		}
	}

	manifest, err := h.sink.Deliver(r.Context(), session.ID(), result)
	if err != nil {
		h.writeError(w, "Failed to deliver session: "+err.Error(), http.StatusBadGateway)
		return
	}
	session.MarkDelivered()

	h.writeJSON(w, manifest)
}
