// Package batch assembles one extraction request from an ordered set of
// pages. All pages go into a single request; for multi-page batches the
// prompt is the only channel that communicates page boundaries, since the
// response is one unstructured text blob.
package batch

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/handscribe/internal/models"
	"github.com/lehigh-university-libraries/handscribe/internal/normalize"
	"github.com/lehigh-university-libraries/handscribe/internal/providers"
)

// DefaultSeparator is the page separator token used when none is configured.
const DefaultSeparator = "---"

// Options are the user-configurable multi-page formatting options.
type Options struct {
	Separator   string
	PageNumbers bool
}

// Build normalizes and base64-encodes every queued page in order, and
// produces the final prompt. Single-page batches pass basePrompt through
// unchanged; multi-page batches get an appended instruction block describing
// the separator convention. Pages are never filtered or deduplicated — a
// retry resends the full batch.
func Build(ctx context.Context, n *normalize.Normalizer, pages []*models.PageItem, basePrompt string, opts Options) ([]providers.Part, string) {
	parts := make([]providers.Part, 0, len(pages))
	for _, page := range pages {
		// Normalization is idempotent; pages previewed earlier pass
		// through untouched.
		page.Bytes, page.Format = n.Normalize(ctx, page.Bytes, page.Format)
		parts = append(parts, providers.Part{
			MIMEType: string(page.Format),
			Data:     base64.StdEncoding.EncodeToString(page.Bytes),
		})
	}

	if len(pages) <= 1 {
		return parts, basePrompt
	}
	return parts, basePrompt + "\n\n" + multiPageInstructions(len(pages), opts)
}

func multiPageInstructions(count int, opts Options) string {
	sep := opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are given %d images. They are consecutive pages of the same handwritten document, in the order provided. Transcribe every page in full.\n", count)
	if opts.PageNumbers {
		fmt.Fprintf(&b, "Mark page boundaries with a separator line of the exact form %q, where N is the 1-based page number (%q for the first page, %q for the second, and so on).\n",
			sep+" Page N "+sep,
			sep+" Page 1 "+sep,
			sep+" Page 2 "+sep)
	} else {
		fmt.Fprintf(&b, "Separate consecutive pages with a line containing exactly %q.\n", sep)
	}
	b.WriteString("Do not place a separator before the first page's content; the first separator in your output comes between the first and second pages.")
	return b.String()
}
