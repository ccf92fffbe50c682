package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/handscribe/internal/config"
	"github.com/lehigh-university-libraries/handscribe/internal/gemini"
	"github.com/lehigh-university-libraries/handscribe/internal/ollama"
	"github.com/lehigh-university-libraries/handscribe/internal/providers"
)

var settingsPath string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handscribe",
		Short: "Turn photos of handwritten pages into editable text",
		Long: `Handscribe sends photos of handwritten pages to a multimodal
text-extraction service and returns the transcription for review.

Multiple photos are batched into a single request so the model can use
cross-page context; queue order defines page order in the output.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to a YAML settings file")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newModelsCmd())

	return cmd
}

// loadSettings reads the settings file named by --settings or
// HANDSCRIBE_SETTINGS, falling back to defaults plus env overrides.
func loadSettings() (config.Settings, error) {
	path := settingsPath
	if path == "" {
		path = os.Getenv("HANDSCRIBE_SETTINGS")
	}
	return config.Load(path)
}

// providerFor maps the configured provider name to an implementation.
func providerFor(settings config.Settings) (providers.Provider, error) {
	switch settings.Provider {
	case "gemini", "":
		return gemini.New(), nil
	case "ollama":
		return ollama.New(), nil
	default:
		return nil, fmt.Errorf("unsupported extraction provider: %s", settings.Provider)
	}
}
