package chat

import (
	"fmt"
	"time"
)

// BuildPrompt embeds the current calendar date ahead of the verbatim user
// message, so the model can resolve relative expressions like "mañana".
// Pure and stateless.
func BuildPrompt(message string, now time.Time) string {
	return fmt.Sprintf("Fecha actual: %s. Mensaje del usuario: '%s'",
		now.Format("2006-01-02"), message)
}
