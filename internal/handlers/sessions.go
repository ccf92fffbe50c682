package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/handscribe/internal/models"
	"github.com/lehigh-university-libraries/handscribe/internal/session"
)

// HandleSessions serves the session collection: GET lists sessions, POST
// starts a new scan session in the select phase.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		sessions := h.sessionStore.GetAll()
		views := make([]SessionView, 0, len(sessions))
		for _, sess := range sessions {
			views = append(views, viewOf(sess))
		}
		h.writeJSON(w, views)
	case "POST":
		sess := session.New(h.provider, h.settings, h.previewer)
		h.sessionStore.Set(sess.ID, sess)
		h.writeJSON(w, viewOf(sess))
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSessionDetail routes /api/sessions/{id} and its action sub-paths.
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")

	sess, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	switch action {
	case "":
		h.handleSession(w, r, sessionID, sess)
	case "pages":
		h.handlePages(w, r, sess)
	case "move":
		h.handleMove(w, r, sess)
	case "confirm":
		h.handleAction(w, r, sess, func() error { return sess.Confirm(r.Context()) })
	case "retry":
		h.handleAction(w, r, sess, func() error { return sess.Retry(r.Context()) })
	case "reextract":
		h.handleAction(w, r, sess, func() error { return sess.ReExtract(r.Context()) })
	case "back":
		h.handleAction(w, r, sess, sess.Back)
	case "result":
		h.handleResult(w, r, sess)
	case "insert":
		h.handleInsert(w, r, sessionID, sess)
	default:
		h.writeError(w, "Unknown action: "+action, http.StatusNotFound)
	}
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request, sessionID string, sess *session.Session) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, viewOf(sess))
	case "DELETE":
		h.sessionStore.Delete(sessionID)
		h.writeJSON(w, map[string]string{"message": "Session closed"})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAction runs a phase transition and returns the refreshed session.
// Extraction failures still respond 200: the outcome lives in the session's
// phase and error message, which is what the UI renders.
func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request, sess *session.Session, fn func() error) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := fn(); err != nil && sess.Phase() != models.PhaseError {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	h.writeJSON(w, viewOf(sess))
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var request struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.MovePage(request.From, request.To); err != nil {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	h.writeJSON(w, viewOf(sess))
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != "PUT" && r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var request struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.EditResult(request.Text); err != nil {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	h.writeJSON(w, viewOf(sess))
}

// captureInserter is the serve-mode insertion point: the final text goes
// back to the caller in the response body.
type captureInserter struct {
	text string
}

func (c *captureInserter) ReplaceSelection(text string) error {
	c.text = text
	return nil
}

func (h *Handler) handleInsert(w http.ResponseWriter, r *http.Request, sessionID string, sess *session.Session) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inserter := &captureInserter{}
	if err := sess.Insert(inserter); err != nil {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	h.sessionStore.Delete(sessionID)
	h.writeJSON(w, map[string]string{
		"message": "Text inserted",
		"text":    inserter.text,
	})
}
