package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/handscribe/internal/config"
	"github.com/lehigh-university-libraries/handscribe/internal/models"
	"github.com/lehigh-university-libraries/handscribe/internal/pagequeue"
	"github.com/lehigh-university-libraries/handscribe/internal/session"
)

// writerInserter is the CLI's host insertion point: the extracted text goes
// to stdout or the output file.
type writerInserter struct {
	w io.Writer
}

func (wi *writerInserter) ReplaceSelection(text string) error {
	_, err := fmt.Fprintln(wi.w, text)
	return err
}

func newScanCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "scan <image file> [image file...]",
		Short: "Extract text from photos of handwritten pages",
		Long: `Runs the full pipeline headlessly: queues the given images in argument
order, sends them as one batched extraction request, and writes the
transcription to stdout (or --output).`,
		Example: `  # One page to stdout
  handscribe scan page.jpg

  # Three pages, in order, into a file
  handscribe scan p1.jpg p2.heic p3.png --output note.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			provider, err := providerFor(settings)
			if err != nil {
				return err
			}

			sess := session.New(provider, func() config.Settings { return settings }, pagequeue.MemoryPreviewer{})
			defer sess.Close()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				if err := sess.AddPage(data, models.FormatFromFilename(path), path); err != nil {
					return err
				}
			}

			slog.Info("Scanning", "pages", len(args), "provider", settings.Provider, "model", settings.Model)
			if err := sess.Confirm(cmd.Context()); err != nil {
				return fmt.Errorf("extraction failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return sess.Insert(&writerInserter{w: out})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the transcription to a file instead of stdout")

	return cmd
}
