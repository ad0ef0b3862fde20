package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "indiobot",
	Short: "Conversational calendar assistant for Indio Reservas",
	Long: `indiobot is a chat front end that turns free-text messages into
natural-language replies or Google Calendar mutations.

Incoming messages are forwarded to Gemini together with a system prompt
that teaches the model to answer either in plain prose or with a JSON
action envelope. Envelopes are dispatched against Google Calendar
(create, find, update, cancel) and the outcome is returned to the
caller alongside the interpreted action.

Run "indiobot serve" (the default) to start the HTTP API.`,
}

// SetVersion sets the version string reported by the version command
// and attached to telemetry.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command. When invoked without a subcommand it
// defaults to "serve" so that a bare "indiobot" starts the server.
func Execute() error {
	cmd, _, err := rootCmd.Find(os.Args[1:])
	if err == nil && cmd == rootCmd && len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"serve"})
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
