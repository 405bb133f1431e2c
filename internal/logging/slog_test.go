package logging

import (
	"errors"
	"log/slog"
	"testing"
)

func TestWithHelpers(t *testing.T) {
	logger := slog.Default()
	if WithOperation(logger, "batch-delete") == nil {
		t.Error("WithOperation returned nil")
	}
	if WithRoute(logger, "/api/labels/list") == nil {
		t.Error("WithRoute returned nil")
	}
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"operation", Operation("trash"), KeyOperation, "trash"},
		{"message id", MessageID("18c2f"), KeyMessageID, "18c2f"},
		{"count", Count(250), KeyCount, "250"},
		{"status", Status(StatusSuccess), KeyStatus, "success"},
		{"error", Err(errors.New("test error")), KeyError, "test error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestErrNil(t *testing.T) {
	attr := Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestAnonymizeEmail(t *testing.T) {
	if got := AnonymizeEmail(""); got != "" {
		t.Errorf("AnonymizeEmail(\"\") = %q, want empty string", got)
	}

	hash := AnonymizeEmail("jane@example.com")
	if len(hash) != 21 || hash[:5] != "user:" {
		t.Errorf("unexpected hash %q", hash)
	}
	if AnonymizeEmail("Jane@Example.com ") != hash {
		t.Error("AnonymizeEmail should ignore case and surrounding space")
	}
	if AnonymizeEmail("other@example.com") == hash {
		t.Error("different emails should produce different hashes")
	}
}

func TestRecipients(t *testing.T) {
	attr := Recipients([]string{"a@example.com", "b@example.com"})
	hashed, ok := attr.Value.Any().([]string)
	if !ok || len(hashed) != 2 {
		t.Fatalf("unexpected recipients value %v", attr.Value.Any())
	}
	if hashed[0] != AnonymizeEmail("a@example.com") {
		t.Errorf("recipient not anonymized: %q", hashed[0])
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"gmail-api-0123456789", "[token:20 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := SanitizeToken(tt.token); got != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.expected)
			}
		})
	}
}
