// Package gemini adapts the Google GenAI SDK to the chat.ModelClient
// interface. Every call is stateless: the caller supplies the full
// conversation history and the system instruction travels with the
// request config.
package gemini
