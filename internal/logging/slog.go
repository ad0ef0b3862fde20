package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation  = "operation"
	KeyComponent  = "component"
	KeyClientHash = "client_hash"
	KeyAction     = "action"
	KeyEventID    = "event_id"
	KeyDuration   = "duration"
	KeyStatus     = "status"
	KeyError      = "error"
)

// Status values for consistent logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithComponent returns a logger with the component attribute set.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Action returns a slog attribute for an interpreted action kind.
func Action(kind string) slog.Attr {
	return slog.String(KeyAction, kind)
}

// EventID returns a slog attribute for a calendar event id.
func EventID(id string) slog.Attr {
	return slog.String(KeyEventID, id)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that slog omits from
// output, so Err(maybeNilErr) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeClient returns a hashed representation of a client identity
// (typically an IP address) for logging. This allows correlating rate-limit
// log entries without recording the address itself.
func AnonymizeClient(key string) string {
	if key == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(key))
	return "client:" + hex.EncodeToString(hash[:8])
}

// ClientHash returns a slog attribute with the anonymized client identity.
func ClientHash(key string) slog.Attr {
	return slog.String(KeyClientHash, AnonymizeClient(key))
}
