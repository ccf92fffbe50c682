package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/handscribe/internal/models"
	"github.com/lehigh-university-libraries/handscribe/internal/pagequeue"
	"github.com/lehigh-university-libraries/handscribe/internal/providers"
	"github.com/lehigh-university-libraries/handscribe/internal/session"
	"github.com/lehigh-university-libraries/handscribe/internal/sources"
	"github.com/lehigh-university-libraries/handscribe/internal/storage"
)

// PreviewURLPrefix is where the web UI serves preview copies from.
const PreviewURLPrefix = "/previews"

type Handler struct {
	sessionStore *storage.SessionStore
	provider     providers.Provider
	settings     session.SettingsSource
	previewer    pagequeue.Previewer
	previewDir   string
	fetcher      *sources.Fetcher
}

func New(provider providers.Provider, settings session.SettingsSource, previewDir string) (*Handler, error) {
	previewer, err := pagequeue.NewFilePreviewer(previewDir, PreviewURLPrefix)
	if err != nil {
		return nil, err
	}
	return &Handler{
		sessionStore: storage.New(),
		provider:     provider,
		settings:     settings,
		previewer:    previewer,
		previewDir:   previewDir,
		fetcher:      sources.NewFetcher(),
	}, nil
}

// SessionView is the JSON shape of a session for the web UI.
type SessionView struct {
	ID           string       `json:"id"`
	Phase        models.Phase `json:"phase"`
	Pages        []PageView   `json:"pages"`
	ResultText   string       `json:"result_text"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// PageView is the JSON shape of one queued page.
type PageView struct {
	ID          string             `json:"id"`
	SourceName  string             `json:"source_name"`
	Format      models.ImageFormat `json:"format"`
	Status      models.PageStatus  `json:"status"`
	ErrorDetail string             `json:"error_detail,omitempty"`
	PreviewURL  string             `json:"preview_url,omitempty"`
}

func viewOf(sess *session.Session) SessionView {
	pages := sess.Pages()
	pageViews := make([]PageView, 0, len(pages))
	for _, p := range pages {
		pageViews = append(pageViews, PageView{
			ID:          p.ID,
			SourceName:  p.SourceName,
			Format:      p.Format,
			Status:      p.Status,
			ErrorDetail: p.ErrorDetail,
			PreviewURL:  p.PreviewURL(),
		})
	}
	return SessionView{
		ID:           sess.ID,
		Phase:        sess.Phase(),
		Pages:        pageViews,
		ResultText:   sess.ResultText(),
		ErrorMessage: sess.ErrorMessage(),
		CreatedAt:    sess.CreatedAt,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*session.Session, bool) {
	sess, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}
