package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/handscribe/internal/config"
	"github.com/lehigh-university-libraries/handscribe/internal/models"
	"github.com/lehigh-university-libraries/handscribe/internal/providers"
)

type fakeProvider struct {
	text string
	err  error
}

func (f *fakeProvider) ExtractText(ctx context.Context, cfg providers.Config, prompt string, parts []providers.Part) (string, error) {
	return f.text, f.err
}

func newTestHandler(t *testing.T, provider providers.Provider) *Handler {
	t.Helper()
	settings := config.Defaults()
	settings.APIKey = "test-key"
	h, err := New(provider, func() config.Settings { return settings }, t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
	mux.HandleFunc(PreviewURLPrefix+"/", h.HandlePreview)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func decodeView(t *testing.T, resp *http.Response) SessionView {
	t.Helper()
	defer resp.Body.Close()
	var view SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode session view: %v", err)
	}
	return view
}

func createSession(t *testing.T, server *httptest.Server) SessionView {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/sessions error = %v", err)
	}
	return decodeView(t, resp)
}

func uploadPage(t *testing.T, server *httptest.Server, sessionID, filename string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("image bytes for " + filename)); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(server.URL+"/api/sessions/"+sessionID+"/pages", writer.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d: %s", resp.StatusCode, raw)
	}
}

func postAction(t *testing.T, server *httptest.Server, sessionID, action string) SessionView {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/sessions/"+sessionID+"/"+action, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s error = %v", action, err)
	}
	return decodeView(t, resp)
}

func TestScanFlow(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{text: "Dear diary"})
	server := newTestServer(t, h)

	view := createSession(t, server)
	if view.Phase != models.PhaseSelect {
		t.Fatalf("new session phase = %s, want %s", view.Phase, models.PhaseSelect)
	}

	uploadPage(t, server, view.ID, "page1.jpg")
	uploadPage(t, server, view.ID, "page2.jpg")

	resp, err := http.Get(server.URL + "/api/sessions/" + view.ID)
	if err != nil {
		t.Fatal(err)
	}
	view = decodeView(t, resp)
	if view.Phase != models.PhaseQueue {
		t.Fatalf("phase = %s, want %s", view.Phase, models.PhaseQueue)
	}
	if len(view.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(view.Pages))
	}
	if view.Pages[0].SourceName != "page1.jpg" {
		t.Errorf("first page = %s, want page1.jpg", view.Pages[0].SourceName)
	}

	view = postAction(t, server, view.ID, "confirm")
	if view.Phase != models.PhasePreview {
		t.Fatalf("phase after confirm = %s, want %s", view.Phase, models.PhasePreview)
	}
	if view.ResultText != "Dear diary" {
		t.Errorf("result = %q", view.ResultText)
	}

	// Edit, then insert.
	editBody := bytes.NewBufferString(`{"text":"Dear diary, edited"}`)
	req, _ := http.NewRequest(http.MethodPut, server.URL+"/api/sessions/"+view.ID+"/result", editBody)
	req.Header.Set("Content-Type", "application/json")
	editResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = decodeView(t, editResp)

	insertResp, err := http.Post(server.URL+"/api/sessions/"+view.ID+"/insert", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer insertResp.Body.Close()
	var inserted map[string]string
	if err := json.NewDecoder(insertResp.Body).Decode(&inserted); err != nil {
		t.Fatal(err)
	}
	if inserted["text"] != "Dear diary, edited" {
		t.Errorf("inserted text = %q, want the edited text", inserted["text"])
	}

	// The session is gone after insertion.
	resp, err = http.Get(server.URL + "/api/sessions/" + view.ID)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after insert = %d, want 404", resp.StatusCode)
	}
}

func TestFailedExtractionSurfacesErrorPhase(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{err: providers.RateLimited()})
	server := newTestServer(t, h)

	view := createSession(t, server)
	uploadPage(t, server, view.ID, "page1.jpg")

	view = postAction(t, server, view.ID, "confirm")
	if view.Phase != models.PhaseError {
		t.Fatalf("phase = %s, want %s", view.Phase, models.PhaseError)
	}
	if view.ErrorMessage == "" {
		t.Error("expected an error message in the view")
	}
	for _, p := range view.Pages {
		if p.Status != models.StatusError {
			t.Errorf("page status = %s, want error", p.Status)
		}
	}
}

func TestMoveEndpointReordersPages(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{text: "ok"})
	server := newTestServer(t, h)

	view := createSession(t, server)
	uploadPage(t, server, view.ID, "a.jpg")
	uploadPage(t, server, view.ID, "b.jpg")
	uploadPage(t, server, view.ID, "c.jpg")

	body := bytes.NewBufferString(`{"from":1,"to":2}`)
	resp, err := http.Post(server.URL+"/api/sessions/"+view.ID+"/move", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	view = decodeView(t, resp)

	want := []string{"a.jpg", "c.jpg", "b.jpg"}
	for i := range want {
		if view.Pages[i].SourceName != want[i] {
			t.Fatalf("order = %v, want %v", view.Pages, want)
		}
	}
}

func TestRemoveLastPageEndpoint(t *testing.T) {
	h := newTestHandler(t, &fakeProvider{})
	server := newTestServer(t, h)

	view := createSession(t, server)
	uploadPage(t, server, view.ID, "a.jpg")

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/sessions/"+view.ID+"/pages?index=0", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	view = decodeView(t, resp)
	if view.Phase != models.PhaseSelect {
		t.Errorf("phase = %s, want %s after removing the last page", view.Phase, models.PhaseSelect)
	}
}
