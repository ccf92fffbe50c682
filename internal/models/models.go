package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImageFormat is a declared image MIME type.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "image/jpeg"
	FormatPNG  ImageFormat = "image/png"
	FormatGIF  ImageFormat = "image/gif"
	FormatWEBP ImageFormat = "image/webp"
	FormatHEIC ImageFormat = "image/heic"
	FormatTIFF ImageFormat = "image/tiff"
	FormatBMP  ImageFormat = "image/bmp"
)

// FormatFromFilename maps a filename extension to an ImageFormat.
// Unknown extensions fall back to JPEG, the safest declaration for
// downstream consumers.
func FormatFromFilename(name string) ImageFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".gif":
		return FormatGIF
	case ".webp":
		return FormatWEBP
	case ".heic", ".heif":
		return FormatHEIC
	case ".tif", ".tiff":
		return FormatTIFF
	case ".bmp":
		return FormatBMP
	default:
		return FormatJPEG
	}
}

// PageStatus is the lifecycle status of a page within one extraction attempt.
type PageStatus string

const (
	StatusPending    PageStatus = "pending"
	StatusProcessing PageStatus = "processing"
	StatusDone       PageStatus = "done"
	StatusError      PageStatus = "error"
)

// Phase is the state of a scan session.
type Phase string

const (
	PhaseSelect     Phase = "select"
	PhaseQueue      Phase = "queue"
	PhaseProcessing Phase = "processing"
	PhasePreview    Phase = "preview"
	PhaseError      Phase = "error"
)

// PreviewHandle is a revocable reference to a renderable copy of a page's
// bytes. At most one live handle exists per page; Release must be safe to
// call more than once.
type PreviewHandle interface {
	URL() string
	Release() error
}

// PageItem is one page awaiting or having undergone extraction. Queue order
// of PageItems defines page order in the extracted output.
type PageItem struct {
	ID          string        `json:"id"`
	Bytes       []byte        `json:"-"`
	Format      ImageFormat   `json:"format"`
	SourceName  string        `json:"source_name"`
	Status      PageStatus    `json:"status"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Preview     PreviewHandle `json:"-"`
}

// PreviewURL returns the renderable URL for the page, or "" when no preview
// handle is live.
func (p *PageItem) PreviewURL() string {
	if p.Preview == nil {
		return ""
	}
	return p.Preview.URL()
}

// NewPageID returns a page identifier unique within a session: creation time
// plus a random suffix.
func NewPageID() string {
	return fmt.Sprintf("page_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// NewSessionID returns a session identifier in the same shape.
func NewSessionID() string {
	return fmt.Sprintf("scan_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}
