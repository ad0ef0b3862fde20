package instrumentation

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestActionRecordStatus(t *testing.T) {
	ar := NewActionRecord("create")
	if ar.Status() != StatusError {
		t.Errorf("expected new record to report error status, got %q", ar.Status())
	}

	ar.Complete(true, nil)
	if ar.Status() != StatusSuccess {
		t.Errorf("expected success status after Complete(true), got %q", ar.Status())
	}
}

func TestActionRecordComplete(t *testing.T) {
	ar := NewActionRecord("cancel")
	ar.StartTime = time.Now().Add(-time.Second)
	ar.Complete(false, errors.New("event not found"))

	if ar.Success {
		t.Error("expected record to be marked failed")
	}
	if ar.Error != "event not found" {
		t.Errorf("expected error message recorded, got %q", ar.Error)
	}
	if ar.Duration < time.Second {
		t.Errorf("expected duration of at least 1s, got %v", ar.Duration)
	}
}

func TestActionRecordLogAttrsOmitsRawClient(t *testing.T) {
	ar := NewActionRecord("create").
		WithClient("203.0.113.7", "client:a1b2c3").
		WithEvent("evt123").
		WithAttendees([]string{"guest@example.com"})
	ar.Complete(true, nil)

	for _, attr := range ar.LogAttrs() {
		if attr.Key == "client" {
			t.Error("LogAttrs must not include the raw client identity")
		}
		if attr.Key == "client_hash" && attr.Value.String() != "client:a1b2c3" {
			t.Errorf("unexpected client hash: %s", attr.Value.String())
		}
	}
}

func TestActionRecordLogAuditAttrsIncludesRawClient(t *testing.T) {
	ar := NewActionRecord("update").
		WithClient("203.0.113.7", "client:a1b2c3").
		WithEvent("evt123")
	ar.Complete(true, nil)

	found := false
	for _, attr := range ar.LogAuditAttrs() {
		if attr.Key == "client" && attr.Value.String() == "203.0.113.7" {
			found = true
		}
	}
	if !found {
		t.Error("LogAuditAttrs should include the raw client identity")
	}
}

func TestAuditLoggerRespectsConfig(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	al := NewAuditLogger(logger, AuditLoggingConfig{Enabled: true, IncludeClientID: false})
	ar := NewActionRecord("create").WithClient("203.0.113.7", "client:a1b2c3")
	ar.Complete(true, nil)
	al.LogAction(ar)

	out := buf.String()
	if !strings.Contains(out, "action_dispatched") {
		t.Errorf("expected action_dispatched record, got: %s", out)
	}
	if strings.Contains(out, "203.0.113.7") {
		t.Errorf("raw client identity leaked into audit log: %s", out)
	}
	if !strings.Contains(out, "client:a1b2c3") {
		t.Errorf("expected anonymized client hash in audit log: %s", out)
	}
}

func TestAuditLoggerIncludesClientWhenConfigured(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	al := NewAuditLogger(logger, AuditLoggingConfig{Enabled: true, IncludeClientID: true})
	ar := NewActionRecord("cancel").WithClient("203.0.113.7", "client:a1b2c3")
	ar.Complete(false, errors.New("boom"))
	al.LogAction(ar)

	out := buf.String()
	if !strings.Contains(out, "action_failed") {
		t.Errorf("expected action_failed record, got: %s", out)
	}
	if !strings.Contains(out, "203.0.113.7") {
		t.Errorf("expected raw client identity in audit log: %s", out)
	}
}

func TestAuditLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	al := NewAuditLogger(logger, AuditLoggingConfig{Enabled: false})
	ar := NewActionRecord("create")
	ar.Complete(true, nil)
	al.LogAction(ar)

	if buf.Len() != 0 {
		t.Errorf("disabled audit logger should write nothing, got: %s", buf.String())
	}
}
