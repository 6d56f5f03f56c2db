package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestLogger(t *testing.T) {
	t.Run("child logger carries fields", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := WithLogger(NewLogger(buf), "migration", "m-1")

		logger.Info("page processed")

		if !strings.Contains(buf.String(), "migration=m-1") {
			t.Errorf("expected migration field, got %q", buf.String())
		}
	})

	t.Run("debug is hidden until enabled", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLogger(buf)

		logger.Debug("hidden")
		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}

		SetLogLevel(logger, log.DebugLevel)
		logger.Debug("shown")
		if !strings.Contains(buf.String(), "shown") {
			t.Errorf("expected debug output, got %q", buf.String())
		}
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected distinct IDs")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("expected a UUID, got %q: %v", a, err)
	}
}

func TestGenerateState(t *testing.T) {
	state, err := GenerateState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(state) != 43 {
		t.Errorf("expected 43 characters, got %d", len(state))
	}
	if strings.ContainsAny(state, "+/=") {
		t.Errorf("expected URL-safe state, got %q", state)
	}
}
