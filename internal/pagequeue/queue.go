// Package pagequeue holds the ordered list of pages pending extraction.
// Queue order is page order in the extracted output; it never changes except
// through an explicit Move, Remove, or append.
package pagequeue

import (
	"context"
	"log/slog"

	"github.com/lehigh-university-libraries/handscribe/internal/models"
	"github.com/lehigh-university-libraries/handscribe/internal/normalize"
)

// Previewer creates renderable copies of page bytes. The queue tracks the
// release obligation for every handle it creates.
type Previewer interface {
	CreatePreview(id string, data []byte, format models.ImageFormat) (models.PreviewHandle, error)
}

// Queue is an ordered, mutable list of pending pages.
type Queue struct {
	items      []*models.PageItem
	normalizer *normalize.Normalizer
	previews   Previewer
}

func New(n *normalize.Normalizer, p Previewer) *Queue {
	return &Queue{normalizer: n, previews: p}
}

// AddFromSource appends a new pending page. Normalization is deferred until
// a preview or batch is needed.
func (q *Queue) AddFromSource(data []byte, format models.ImageFormat, sourceName string) *models.PageItem {
	item := &models.PageItem{
		ID:         models.NewPageID(),
		Bytes:      data,
		Format:     format,
		SourceName: sourceName,
		Status:     models.StatusPending,
	}
	q.items = append(q.items, item)
	slog.Debug("Page queued", "id", item.ID, "source", sourceName, "format", format, "pages", len(q.items))
	return item
}

// EnsurePreviews normalizes every item lacking a preview handle and creates
// one. Items already previewed are untouched, so the call is idempotent.
func (q *Queue) EnsurePreviews(ctx context.Context) {
	for _, item := range q.items {
		if item.Preview != nil {
			continue
		}
		item.Bytes, item.Format = q.normalizer.Normalize(ctx, item.Bytes, item.Format)
		handle, err := q.previews.CreatePreview(item.ID, item.Bytes, item.Format)
		if err != nil {
			// The page stays queued and extractable; only its thumbnail
			// is missing.
			slog.Warn("Failed to create preview", "id", item.ID, "err", err)
			continue
		}
		item.Preview = handle
	}
}

// Move swaps the items at positions i and j. Out-of-range indexes make the
// call a no-op.
func (q *Queue) Move(i, j int) {
	if i < 0 || j < 0 || i >= len(q.items) || j >= len(q.items) || i == j {
		return
	}
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

// Remove deletes the item at position i and releases its preview handle.
// Out-of-range indexes make the call a no-op.
func (q *Queue) Remove(i int) {
	if i < 0 || i >= len(q.items) {
		return
	}
	release(q.items[i])
	q.items = append(q.items[:i], q.items[i+1:]...)
}

// Len returns the number of queued pages.
func (q *Queue) Len() int {
	return len(q.items)
}

// SnapshotOrder returns the pages in their current order. The returned slice
// is a copy; the items are shared.
func (q *Queue) SnapshotOrder() []*models.PageItem {
	out := make([]*models.PageItem, len(q.items))
	copy(out, q.items)
	return out
}

// MarkAll sets every page's status, clearing or setting the error detail.
func (q *Queue) MarkAll(status models.PageStatus, errorDetail string) {
	for _, item := range q.items {
		item.Status = status
		item.ErrorDetail = ""
		if status == models.StatusError {
			item.ErrorDetail = errorDetail
		}
	}
}

// ReleaseAll releases every live preview handle. Items stay queued.
func (q *Queue) ReleaseAll() {
	for _, item := range q.items {
		release(item)
	}
}

// Clear releases all handles and empties the queue.
func (q *Queue) Clear() {
	q.ReleaseAll()
	q.items = nil
}

func release(item *models.PageItem) {
	if item.Preview == nil {
		return
	}
	if err := item.Preview.Release(); err != nil {
		slog.Warn("Failed to release preview", "id", item.ID, "err", err)
	}
	item.Preview = nil
}
