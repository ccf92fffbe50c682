package batch

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/handscribe/internal/models"
	"github.com/lehigh-university-libraries/handscribe/internal/normalize"
)

func testNormalizer() *normalize.Normalizer {
	n := normalize.New()
	n.Fallback = nil
	return n
}

func testPages(contents ...string) []*models.PageItem {
	pages := make([]*models.PageItem, 0, len(contents))
	for _, c := range contents {
		pages = append(pages, &models.PageItem{
			ID:     models.NewPageID(),
			Bytes:  []byte(c),
			Format: models.FormatJPEG,
			Status: models.StatusPending,
		})
	}
	return pages
}

func TestBuildProducesOnePartPerPageInOrder(t *testing.T) {
	pages := testPages("first", "second", "third")

	parts, _ := Build(context.Background(), testNormalizer(), pages, "prompt", Options{})
	if len(parts) != 3 {
		t.Fatalf("len(parts) = %d, want 3", len(parts))
	}
	for i, want := range []string{"first", "second", "third"} {
		decoded, err := base64.StdEncoding.DecodeString(parts[i].Data)
		if err != nil {
			t.Fatalf("part %d is not valid base64: %v", i, err)
		}
		if string(decoded) != want {
			t.Errorf("part %d = %q, want %q", i, decoded, want)
		}
		if parts[i].MIMEType != string(models.FormatJPEG) {
			t.Errorf("part %d mime = %s, want %s", i, parts[i].MIMEType, models.FormatJPEG)
		}
	}
}

func TestBuildSinglePagePromptUnchanged(t *testing.T) {
	pages := testPages("only")

	_, prompt := Build(context.Background(), testNormalizer(), pages, "transcribe this", Options{
		Separator:   "===",
		PageNumbers: true,
	})
	if prompt != "transcribe this" {
		t.Errorf("single-page prompt = %q, want the base prompt unchanged", prompt)
	}
}

func TestBuildMultiPagePrompt(t *testing.T) {
	tests := []struct {
		name         string
		opts         Options
		wantContains []string
	}{
		{
			name: "default separator",
			opts: Options{},
			wantContains: []string{
				"3 images",
				`"---"`,
				"Do not place a separator before the first page",
			},
		},
		{
			name: "custom separator",
			opts: Options{Separator: "****"},
			wantContains: []string{
				`"****"`,
				"Do not place a separator before the first page",
			},
		},
		{
			name: "page numbers",
			opts: Options{Separator: "---", PageNumbers: true},
			wantContains: []string{
				"--- Page N ---",
				"--- Page 1 ---",
				"--- Page 2 ---",
				"Do not place a separator before the first page",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := testPages("a", "b", "c")
			_, prompt := Build(context.Background(), testNormalizer(), pages, "base", tt.opts)

			if !strings.HasPrefix(prompt, "base") {
				t.Errorf("prompt does not start with the base prompt: %q", prompt)
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(prompt, want) {
					t.Errorf("prompt missing %q:\n%s", want, prompt)
				}
			}
		})
	}
}

func TestBuildInstructionsArePositional(t *testing.T) {
	// Reordering changes part order but the instructions stay generic.
	pages := testPages("p1", "p2", "p3")
	pages[1], pages[2] = pages[2], pages[1]

	parts, prompt := Build(context.Background(), testNormalizer(), pages, "base", Options{})
	got := make([]string, len(parts))
	for i, p := range parts {
		decoded, _ := base64.StdEncoding.DecodeString(p.Data)
		got[i] = string(decoded)
	}
	if got[0] != "p1" || got[1] != "p3" || got[2] != "p2" {
		t.Errorf("part order = %v, want [p1 p3 p2]", got)
	}
	if !strings.Contains(prompt, "3 images") {
		t.Errorf("prompt should describe the count generically:\n%s", prompt)
	}
	if strings.Contains(prompt, "p1") || strings.Contains(prompt, "p3") {
		t.Error("prompt must not reference page content")
	}
}

func TestBuildNeverFiltersPages(t *testing.T) {
	// Pages that failed an earlier attempt are resent in full.
	pages := testPages("a", "b")
	pages[0].Status = models.StatusError
	pages[0].ErrorDetail = "previous failure"

	parts, _ := Build(context.Background(), testNormalizer(), pages, "base", Options{})
	if len(parts) != 2 {
		t.Fatalf("len(parts) = %d, want 2", len(parts))
	}
}
