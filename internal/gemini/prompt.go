package gemini

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// DefaultPromptPath is where the system prompt file is expected relative to
// the working directory.
const DefaultPromptPath = "prompt_indiecito.md"

// FallbackSystemPrompt is used when no prompt file can be read. The service
// stays up with a generic assistant persona instead of refusing to start.
const FallbackSystemPrompt = "Eres un asistente servicial."

// LoadSystemPrompt reads the system prompt from path. A missing or empty
// file is not fatal: the fallback prompt is returned and a warning logged.
func LoadSystemPrompt(path string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path == "" {
		path = DefaultPromptPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("system prompt file not readable, using fallback",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return FallbackSystemPrompt
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		logger.Warn("system prompt file is empty, using fallback",
			slog.String("path", path))
		return FallbackSystemPrompt
	}

	logger.Info("loaded system prompt",
		slog.String("path", path),
		slog.Int("bytes", len(prompt)))
	return prompt
}

// String implements fmt.Stringer for Config, redacting the API key so a
// config dump never leaks credentials.
func (c Config) String() string {
	key := "unset"
	if c.APIKey != "" {
		key = "redacted"
	}
	return fmt.Sprintf("gemini.Config{APIKey:%s Model:%s SystemPrompt:%d bytes}", key, c.Model, len(c.SystemPrompt))
}
