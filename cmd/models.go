package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/cobra"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List Gemini models usable for extraction",
		Long: `Lists the generative models available to your API key, for use as the
model setting. Only models that accept image input are useful here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := os.Getenv("GEMINI_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("GEMINI_API_KEY environment variable not set")
			}

			client, err := genai.NewClient(cmd.Context(), option.WithAPIKey(apiKey))
			if err != nil {
				return fmt.Errorf("failed to create gemini client: %w", err)
			}
			defer client.Close()

			it := client.ListModels(cmd.Context())
			for {
				m, err := it.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					return fmt.Errorf("failed to list models: %w", err)
				}
				name := strings.TrimPrefix(m.Name, "models/")
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, m.DisplayName)
			}
			return nil
		},
	}

	return cmd
}
