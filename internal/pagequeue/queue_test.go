package pagequeue

import (
	"context"
	"fmt"
	"testing"

	"github.com/lehigh-university-libraries/handscribe/internal/models"
	"github.com/lehigh-university-libraries/handscribe/internal/normalize"
)

type countingPreviewer struct {
	created  int
	released int
}

func (p *countingPreviewer) CreatePreview(id string, data []byte, format models.ImageFormat) (models.PreviewHandle, error) {
	p.created++
	return &countingHandle{previewer: p, id: id}, nil
}

type countingHandle struct {
	previewer *countingPreviewer
	id        string
}

func (h *countingHandle) URL() string {
	return "test://" + h.id
}

func (h *countingHandle) Release() error {
	h.previewer.released++
	return nil
}

func newTestQueue() (*Queue, *countingPreviewer) {
	p := &countingPreviewer{}
	n := normalize.New()
	n.Fallback = nil
	return New(n, p), p
}

func addPages(q *Queue, count int) {
	for i := 0; i < count; i++ {
		q.AddFromSource([]byte("img"), models.FormatJPEG, fmt.Sprintf("page%d.jpg", i+1))
	}
}

func sourceNames(q *Queue) []string {
	var names []string
	for _, item := range q.SnapshotOrder() {
		names = append(names, item.SourceName)
	}
	return names
}

func TestAddFromSourceAppendsPending(t *testing.T) {
	q, _ := newTestQueue()
	item := q.AddFromSource([]byte("img"), models.FormatPNG, "note.png")

	if item.Status != models.StatusPending {
		t.Errorf("status = %s, want %s", item.Status, models.StatusPending)
	}
	if item.ID == "" {
		t.Error("expected a non-empty page ID")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}

	other := q.AddFromSource([]byte("img"), models.FormatPNG, "note2.png")
	if other.ID == item.ID {
		t.Error("page IDs must be unique within the queue")
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		name string
		i, j int
		want []string
	}{
		{"swap adjacent", 1, 2, []string{"page1.jpg", "page3.jpg", "page2.jpg"}},
		{"swap ends", 0, 2, []string{"page3.jpg", "page2.jpg", "page1.jpg"}},
		{"same index is a no-op", 1, 1, []string{"page1.jpg", "page2.jpg", "page3.jpg"}},
		{"out of range is a no-op", 0, 3, []string{"page1.jpg", "page2.jpg", "page3.jpg"}},
		{"negative is a no-op", -1, 1, []string{"page1.jpg", "page2.jpg", "page3.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := newTestQueue()
			addPages(q, 3)
			q.Move(tt.i, tt.j)

			got := sourceNames(q)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("order = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRemoveReleasesPreview(t *testing.T) {
	q, p := newTestQueue()
	addPages(q, 2)
	q.EnsurePreviews(context.Background())

	if p.created != 2 {
		t.Fatalf("previews created = %d, want 2", p.created)
	}

	q.Remove(0)
	if p.released != 1 {
		t.Errorf("previews released = %d, want 1", p.released)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
	if got := sourceNames(q); got[0] != "page2.jpg" {
		t.Errorf("remaining page = %s, want page2.jpg", got[0])
	}

	// Out of range is a no-op.
	q.Remove(5)
	q.Remove(-1)
	if q.Len() != 1 {
		t.Errorf("Len() = %d after out-of-range removes, want 1", q.Len())
	}
}

func TestEnsurePreviewsIsIdempotent(t *testing.T) {
	q, p := newTestQueue()
	addPages(q, 3)

	q.EnsurePreviews(context.Background())
	q.EnsurePreviews(context.Background())

	if p.created != 3 {
		t.Errorf("previews created = %d, want 3 (already-previewed items untouched)", p.created)
	}

	// A newly added page gets its preview on the next pass.
	q.AddFromSource([]byte("img"), models.FormatJPEG, "page4.jpg")
	q.EnsurePreviews(context.Background())
	if p.created != 4 {
		t.Errorf("previews created = %d, want 4", p.created)
	}
}

func TestClearReleasesEverything(t *testing.T) {
	q, p := newTestQueue()
	addPages(q, 3)
	q.EnsurePreviews(context.Background())

	q.Clear()
	if p.released != 3 {
		t.Errorf("previews released = %d, want 3", p.released)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestSnapshotOrderIsACopy(t *testing.T) {
	q, _ := newTestQueue()
	addPages(q, 2)

	snap := q.SnapshotOrder()
	snap[0], snap[1] = snap[1], snap[0]

	if got := sourceNames(q); got[0] != "page1.jpg" {
		t.Error("mutating the snapshot must not reorder the queue")
	}
}

func TestMarkAll(t *testing.T) {
	q, _ := newTestQueue()
	addPages(q, 2)

	q.MarkAll(models.StatusError, "boom")
	for _, item := range q.SnapshotOrder() {
		if item.Status != models.StatusError || item.ErrorDetail != "boom" {
			t.Fatalf("item = (%s, %q), want (error, boom)", item.Status, item.ErrorDetail)
		}
	}

	q.MarkAll(models.StatusPending, "")
	for _, item := range q.SnapshotOrder() {
		if item.Status != models.StatusPending || item.ErrorDetail != "" {
			t.Fatalf("item = (%s, %q), want (pending, empty)", item.Status, item.ErrorDetail)
		}
	}
}
