// Package gemini implements the extraction provider against the Gemini
// generateContent REST endpoint. All pages of a batch go into one request so
// the model can use cross-page context.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/handscribe/internal/providers"
)

const (
	defaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	maxOutputTokens = 8192
)

// Gemini is a provider for Google Gemini.
type Gemini struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Gemini)

// WithBaseURL overrides the API base URL, used in tests.
func WithBaseURL(baseURL string) Option {
	return func(g *Gemini) {
		g.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gemini) {
		g.httpClient = client
	}
}

// New returns a new Gemini provider.
func New(opts ...Option) *Gemini {
	g := &Gemini{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ExtractText sends one extraction request covering the whole batch. The
// prompt goes first, image parts follow in page order. Never retries.
func (g *Gemini) ExtractText(ctx context.Context, config providers.Config, prompt string, parts []providers.Part) (string, error) {
	if config.APIKey == "" {
		return "", &providers.ConfigurationError{Message: "no API key configured for the extraction service"}
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	reqParts := make([]part, 0, len(parts)+1)
	reqParts = append(reqParts, part{Text: prompt})
	for _, p := range parts {
		reqParts = append(reqParts, part{
			InlineData: &inlineData{MIMEType: p.MIMEType, Data: p.Data},
		})
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: reqParts}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(config.Model), url.QueryEscape(config.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", providers.NetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providers.NetworkError(err)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return "", providers.RateLimited()
	case http.StatusForbidden:
		return "", providers.Unauthorized()
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", providers.RemoteRejected(fmt.Sprintf("extraction service returned HTTP %d", resp.StatusCode))
		}
		return "", providers.RemoteRejected("extraction service returned an unreadable response")
	}

	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", providers.RemoteRejected(parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", providers.RemoteRejected(fmt.Sprintf("extraction service returned HTTP %d", resp.StatusCode))
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", providers.EmptyResult()
	}

	text := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", providers.EmptyResult()
	}

	slog.Info("Extracted text", "provider", "gemini", "model", config.Model, "pages", len(parts), "length", len(text))
	return text, nil
}
