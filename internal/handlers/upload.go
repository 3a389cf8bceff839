package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/docscan/internal/capture"
	"github.com/lehigh-university-libraries/docscan/internal/images"
)

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	// Check if this is a JSON request with image URL
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		h.handleURLUpload(w, r, session)
		return
	}

	// Handle file upload
	h.handleFileUpload(w, r, session)
}

func (h *Handler) handleURLUpload(w http.ResponseWriter, r *http.Request, session *capture.Controller) {
	var request struct {
		ImageURL string `json:"image_url"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if request.ImageURL == "" {
		h.writeError(w, "image_url is required", http.StatusBadRequest)
		return
	}

	imageData, err := h.fetcher.Fetch(r.Context(), request.ImageURL)
	if err != nil {
		h.writeError(w, "Failed to process image URL: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.submitCaptures(w, r, session, []uploadedFile{{Name: images.FilenameFromURL(request.ImageURL), Data: imageData}})
}

func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request, session *capture.Controller) {
	files, err := h.readUploadedFiles(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.submitCaptures(w, r, session, files)
}

// submitCaptures adds files in the order they were received
func (h *Handler) submitCaptures(w http.ResponseWriter, r *http.Request, session *capture.Controller, files []uploadedFile) {
	indexes := make([]int, 0, len(files))
	for _, f := range files {
		idx, err := session.AddCapture(f.Name, f.Data)
		if err != nil {
			h.writeSessionError(w, err)
			return
		}
		indexes = append(indexes, idx)
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if err := session.Wait(r.Context()); err != nil {
			h.writeError(w, "Interrupted while enhancing captures: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	response := map[string]any{
		"session_id": session.ID(),
		"submitted":  indexes,
		"session":    h.sessionView(session, false),
	}

	h.writeJSONStatus(w, http.StatusAccepted, response)
}

func (h *Handler) HandleRemoveCapture(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.writeError(w, "Invalid page index", http.StatusBadRequest)
		return
	}

	if err := session.RemoveCapture(index); err != nil {
		h.writeSessionError(w, err)
		return
	}

	h.writeJSON(w, h.sessionView(session, false))
}
