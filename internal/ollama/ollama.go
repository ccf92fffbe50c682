// Package ollama implements the extraction provider against a local Ollama
// server, for running the pipeline without a cloud credential.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/handscribe/internal/providers"
)

// Ollama is a provider for Ollama.
type Ollama struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a new Ollama provider. The server URL comes from OLLAMA_URL or
// OLLAMA_HOST, defaulting to localhost.
func New() *Ollama {
	baseURL := os.Getenv("OLLAMA_URL")
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// ExtractText sends the prompt plus all page images in one generate call.
func (o *Ollama) ExtractText(ctx context.Context, config providers.Config, prompt string, parts []providers.Part) (string, error) {
	images := make([]string, 0, len(parts))
	for _, p := range parts {
		images = append(images, p.Data)
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  config.Model,
		"prompt": prompt,
		"images": images,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": config.Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", providers.NetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", providers.RateLimited()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", providers.RemoteRejected(fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, string(body)))
	}

	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", providers.RemoteRejected("ollama returned an unreadable response")
	}

	text := strings.TrimSpace(ollamaResp.Response)
	if text == "" {
		return "", providers.EmptyResult()
	}

	slog.Info("Extracted text", "provider", "ollama", "model", config.Model, "pages", len(parts), "length", len(text))
	return text, nil
}
