// Package sources acquires page images from places other than direct file
// upload. Every source resolves to the same (bytes, format, label) triple
// the page queue accepts; the queue does not care which source produced
// them.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/handscribe/internal/models"
)

// maxDownloadSize caps a fetched image at 10MB, matching the upload limit.
const maxDownloadSize = 10 * 1024 * 1024

// Fetcher retrieves page images from URLs.
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchImage downloads an image and returns the queue triple: raw bytes,
// declared format, and a human-facing label derived from the URL.
func (f *Fetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, models.ImageFormat, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", "", fmt.Errorf("invalid image URL: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", "", fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) >= maxDownloadSize {
		return nil, "", "", fmt.Errorf("downloaded image too large (max 10MB)")
	}

	label := labelFor(imageURL)
	format := formatFor(resp.Header.Get("Content-Type"), label)
	return data, format, label, nil
}

// labelFor extracts the last path segment as the source name.
func labelFor(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "download"
	}
	segments := strings.Split(strings.TrimSuffix(parsed.Path, "/"), "/")
	label := segments[len(segments)-1]
	if label == "" {
		return "download"
	}
	return label
}

// formatFor prefers the response content type, falling back to the filename
// extension.
func formatFor(contentType, label string) models.ImageFormat {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch models.ImageFormat(strings.TrimSpace(mediaType)) {
	case models.FormatJPEG, models.FormatPNG, models.FormatGIF, models.FormatWEBP,
		models.FormatHEIC, models.FormatTIFF, models.FormatBMP:
		return models.ImageFormat(strings.TrimSpace(mediaType))
	}
	return models.FormatFromFilename(label)
}
