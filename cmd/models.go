package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/indioreservas/indiobot/internal/gemini"
)

// newModelsCmd lists the Gemini models available to the configured API
// key. Useful to check a key before pointing --gemini-model at a model.
func newModelsCmd() *cobra.Command {
	var apiKey string
	var envFile string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List Gemini models that support content generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			if apiKey == "" {
				apiKey = os.Getenv("GOOGLE_API_KEY")
			}
			if apiKey == "" {
				apiKey = os.Getenv("GEMINI_API_KEY")
			}

			client, err := gemini.NewClient(cmd.Context(), gemini.Config{APIKey: apiKey})
			if err != nil {
				return err
			}

			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, model := range models {
				fmt.Fprintf(out, "%s\t%s\n", model.Name, model.DisplayName)
			}
			fmt.Fprintf(out, "\n%d models support generateContent\n", len(models))
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "gemini-api-key", "", "Gemini API key (env GOOGLE_API_KEY or GEMINI_API_KEY)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading environment variables")

	return cmd
}
