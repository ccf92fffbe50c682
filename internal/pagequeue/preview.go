package pagequeue

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lehigh-university-libraries/handscribe/internal/models"
)

// FilePreviewer writes previewable copies into a directory served by the web
// UI. Release deletes the file.
type FilePreviewer struct {
	Dir     string
	BaseURL string
}

// NewFilePreviewer creates the preview directory if needed.
func NewFilePreviewer(dir, baseURL string) (*FilePreviewer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}
	return &FilePreviewer{Dir: dir, BaseURL: baseURL}, nil
}

func (p *FilePreviewer) CreatePreview(id string, data []byte, format models.ImageFormat) (models.PreviewHandle, error) {
	name := id + extensionFor(format)
	path := filepath.Join(p.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write preview: %w", err)
	}
	return &fileHandle{path: path, url: p.BaseURL + "/" + name}, nil
}

type fileHandle struct {
	path     string
	url      string
	mu       sync.Mutex
	released bool
}

func (h *fileHandle) URL() string {
	return h.url
}

func (h *fileHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func extensionFor(format models.ImageFormat) string {
	switch format {
	case models.FormatPNG:
		return ".png"
	case models.FormatGIF:
		return ".gif"
	case models.FormatWEBP:
		return ".webp"
	default:
		return ".jpg"
	}
}

// MemoryPreviewer keeps preview copies in memory. Used by the headless scan
// command and in tests, where nothing renders the bytes.
type MemoryPreviewer struct{}

func (MemoryPreviewer) CreatePreview(id string, data []byte, format models.ImageFormat) (models.PreviewHandle, error) {
	return &memoryHandle{id: id}, nil
}

type memoryHandle struct {
	id       string
	released bool
}

func (h *memoryHandle) URL() string {
	return "memory://" + h.id
}

func (h *memoryHandle) Release() error {
	h.released = true
	return nil
}
