package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/handscribe/internal/models"
	"github.com/lehigh-university-libraries/handscribe/internal/session"
)

// maxUploadSize caps a single page image at 10MB.
const maxUploadSize = 10 * 1024 * 1024

// handlePages adds pages (POST multipart upload, or JSON with an image URL)
// or removes one (DELETE with ?index=N).
func (h *Handler) handlePages(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	switch r.Method {
	case "POST":
		if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
			h.handleURLAdd(w, r, sess)
			return
		}
		h.handleUpload(w, r, sess)
	case "DELETE":
		h.handleRemove(w, r, sess)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleURLAdd(w http.ResponseWriter, r *http.Request, sess *session.Session) {
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

	data, format, label, err := h.fetcher.FetchImage(r.Context(), request.ImageURL)
	if err != nil {
		h.writeError(w, "Failed to fetch image URL: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.AddPage(data, format, label); err != nil {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	sess.EnsurePreviews(r.Context())

	h.writeJSON(w, map[string]any{
		"session_id": sess.ID,
		"message":    "Successfully queued 1 page from URL",
		"pages":      1,
		"source":     "url",
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseMultipartForm(32 * 1024 * 1024); err != nil {
		h.writeError(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		h.writeError(w, "No files in upload", http.StatusBadRequest)
		return
	}

	added := 0
	for _, header := range files {
		data, err := readUpload(header)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		format := models.FormatFromFilename(header.Filename)
		if err := sess.AddPage(data, format, header.Filename); err != nil {
			h.writeError(w, err.Error(), http.StatusConflict)
			return
		}
		added++
	}

	sess.EnsurePreviews(r.Context())

	h.writeJSON(w, map[string]any{
		"session_id": sess.ID,
		"message":    fmt.Sprintf("Successfully queued %d page(s)", added),
		"pages":      added,
	})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", header.Filename, err)
	}
	if len(data) >= maxUploadSize {
		return nil, fmt.Errorf("file %s too large (max 10MB)", header.Filename)
	}
	return data, nil
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		h.writeError(w, "index query parameter required", http.StatusBadRequest)
		return
	}
	if err := sess.RemovePage(index); err != nil {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	h.writeJSON(w, viewOf(sess))
}
