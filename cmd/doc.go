// Package cmd implements the indiobot command line interface.
//
// The root command defaults to "serve", which starts the HTTP API that
// turns chat messages into replies and calendar actions. The "models"
// command lists the Gemini models available to the configured API key,
// and "version" prints build information.
package cmd
