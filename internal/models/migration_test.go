package models

import (
	"errors"
	"testing"
	"time"

	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

func newTestMigration(status Status) *Migration {
	m := NewMigration(1, "user-1", shared.ServiceICloud, shared.SinkGoogleDrive)
	m.SetID("m-1")
	m.SetStatus(status)
	if status.IsTerminal() {
		now := time.Now()
		m.SetCompletedAt(&now)
	}
	return m
}

func TestMigrationTransitions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tc := []struct {
		name   string
		from   Status
		apply  func(m *Migration) error
		want   Status
		wantOK bool
	}{
		{"start from pending", StatusPending, func(m *Migration) error { return m.Start(now) }, StatusInProgress, true},
		{"start from in_progress", StatusInProgress, func(m *Migration) error { return m.Start(now) }, StatusInProgress, true},
		{"start from paused", StatusPaused, func(m *Migration) error { return m.Start(now) }, StatusPaused, false},
		{"pause from in_progress", StatusInProgress, func(m *Migration) error { return m.Pause() }, StatusPaused, true},
		{"pause from pending", StatusPending, func(m *Migration) error { return m.Pause() }, StatusPending, false},
		{"pause from paused", StatusPaused, func(m *Migration) error { return m.Pause() }, StatusPaused, false},
		{"resume from paused", StatusPaused, func(m *Migration) error { return m.Resume() }, StatusPending, true},
		{"resume from in_progress", StatusInProgress, func(m *Migration) error { return m.Resume() }, StatusInProgress, false},
		{"cancel from pending", StatusPending, func(m *Migration) error { return m.Cancel(now) }, StatusFailed, true},
		{"cancel from paused", StatusPaused, func(m *Migration) error { return m.Cancel(now) }, StatusFailed, true},
		{"cancel from completed", StatusCompleted, func(m *Migration) error { return m.Cancel(now) }, StatusCompleted, false},
		{"cancel from failed", StatusFailed, func(m *Migration) error { return m.Cancel(now) }, StatusFailed, false},
		{"complete from in_progress", StatusInProgress, func(m *Migration) error { return m.Complete(now) }, StatusCompleted, true},
		{"complete from paused", StatusPaused, func(m *Migration) error { return m.Complete(now) }, StatusPaused, false},
		{"fail from completed", StatusCompleted, func(m *Migration) error { return m.Fail("boom", now) }, StatusCompleted, false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMigration(tt.from)
			err := tt.apply(m)

			if tt.wantOK && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.wantOK && !errors.Is(err, shared.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if m.Status() != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, m.Status())
			}
			if m.IsTerminal() != (m.CompletedAt() != nil) {
				t.Errorf("completedAt must be set exactly for terminal statuses (status %s)", m.Status())
			}
			if err := m.Validate(); err != nil {
				t.Errorf("migration should stay valid: %v", err)
			}
		})
	}

	t.Run("startedAt only set on first run", func(t *testing.T) {
		m := newTestMigration(StatusPending)
		first := now
		if err := m.Start(first); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		_ = m.Pause()
		_ = m.Resume()
		if err := m.Start(first.Add(time.Hour)); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		if !m.StartedAt().Equal(first) {
			t.Errorf("expected startedAt %v, got %v", first, m.StartedAt())
		}
	})

	t.Run("cancel records message", func(t *testing.T) {
		m := newTestMigration(StatusInProgress)
		if err := m.Cancel(now); err != nil {
			t.Fatalf("Cancel() error: %v", err)
		}
		if m.ErrorMessage() != CancelledMessage {
			t.Errorf("expected %q, got %q", CancelledMessage, m.ErrorMessage())
		}
	})
}

func TestMigrationCounters(t *testing.T) {
	t.Run("ReviseTotal never shrinks", func(t *testing.T) {
		m := newTestMigration(StatusInProgress)
		m.ReviseTotal(100, true)
		m.ReviseTotal(60, true)
		if m.TotalItems() != 100 {
			t.Errorf("expected total 100, got %d", m.TotalItems())
		}
	})

	t.Run("total covers processed items", func(t *testing.T) {
		m := newTestMigration(StatusInProgress)
		m.ReviseTotal(1, false)
		m.RecordTransferred()
		m.RecordFailed()
		if m.TotalItems() != 2 {
			t.Errorf("expected total 2, got %d", m.TotalItems())
		}
		if err := m.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	t.Run("counted total replaces an estimate", func(t *testing.T) {
		m := newTestMigration(StatusInProgress)
		m.ReviseTotal(150, true)
		for range 61 {
			m.RecordTransferred()
		}

		m.SetCountedTotal(120)
		if m.TotalItems() != 120 || m.TotalEstimated() {
			t.Errorf("expected counted total 120, got %d (estimated=%v)", m.TotalItems(), m.TotalEstimated())
		}

		m.SetCountedTotal(100)
		if m.TotalItems() != 120 {
			t.Errorf("expected known total to stay 120, got %d", m.TotalItems())
		}
	})

	t.Run("Complete finalizes estimated total", func(t *testing.T) {
		m := newTestMigration(StatusInProgress)
		m.ReviseTotal(150, true)
		for range 70 {
			m.RecordTransferred()
		}
		m.RecordFailed()

		if err := m.Complete(time.Now()); err != nil {
			t.Fatalf("Complete() error: %v", err)
		}
		if m.TotalItems() != 71 || m.TotalEstimated() {
			t.Errorf("expected finalized total 71, got %d (estimated=%v)", m.TotalItems(), m.TotalEstimated())
		}
	})

	t.Run("Complete keeps known total", func(t *testing.T) {
		m := newTestMigration(StatusInProgress)
		m.ReviseTotal(120, false)
		for range 119 {
			m.RecordTransferred()
		}
		m.RecordFailed()
		if err := m.Complete(time.Now()); err != nil {
			t.Fatalf("Complete() error: %v", err)
		}
		if m.TotalItems() != 120 {
			t.Errorf("expected total 120, got %d", m.TotalItems())
		}
	})
}

func TestMigrationProgress(t *testing.T) {
	t.Run("zero total", func(t *testing.T) {
		p := newTestMigration(StatusPending).Progress()
		if p.ProgressPercent != 0 {
			t.Errorf("expected 0%%, got %v", p.ProgressPercent)
		}
	})

	t.Run("percentage of transferred items", func(t *testing.T) {
		m := newTestMigration(StatusInProgress)
		m.ReviseTotal(200, false)
		for range 50 {
			m.RecordTransferred()
		}
		m.RecordFailed()

		p := m.Progress()
		if p.ProgressPercent != 25 {
			t.Errorf("expected 25%%, got %v", p.ProgressPercent)
		}
		if p.TransferredItems != 50 || p.FailedItems != 1 || p.TotalItems != 200 {
			t.Errorf("unexpected counters %+v", p)
		}
	})
}

func TestMigrationValidate(t *testing.T) {
	tc := []struct {
		name   string
		mutate func(m *Migration)
	}{
		{"missing user", func(m *Migration) { m.userID = "" }},
		{"unknown status", func(m *Migration) { m.SetStatus("archived") }},
		{"negative counter", func(m *Migration) { m.SetFailedItems(-1) }},
		{"completed without completedAt", func(m *Migration) { m.SetStatus(StatusCompleted) }},
		{"pending with completedAt", func(m *Migration) { now := time.Now(); m.SetCompletedAt(&now) }},
		{"error message on pending", func(m *Migration) { m.SetErrorMessage("nope") }},
		{"processed exceeds known total", func(m *Migration) { m.SetTransferredItems(3); m.SetTotalItems(2) }},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMigration(StatusPending)
			tt.mutate(m)
			if err := m.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestMigrationContainerName(t *testing.T) {
	m := newTestMigration(StatusPending)
	m.SetCreatedAt(time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC))

	if got := m.ContainerName(""); got != "Photo Migration 2024-05-17 09:30" {
		t.Errorf("unexpected container name %q", got)
	}
	if got := m.ContainerName("iCloud Migration"); got != "iCloud Migration 2024-05-17 09:30" {
		t.Errorf("unexpected container name %q", got)
	}
}

func TestCredentialToken(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	c := NewCredential(1, "user-1", shared.SinkGoogleDrive, &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       expiry,
	})

	c.SetToken(&oauth2.Token{AccessToken: "access-2", TokenType: "Bearer"})
	tok := c.Token()

	if tok.AccessToken != "access-2" {
		t.Errorf("expected new access token, got %s", tok.AccessToken)
	}
	if tok.RefreshToken != "refresh" {
		t.Errorf("refresh token should be kept, got %q", tok.RefreshToken)
	}
	if !tok.Expiry.IsZero() {
		t.Errorf("expected no expiry, got %v", tok.Expiry)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("paused"); err != nil || s != StatusPaused {
		t.Errorf("ParseStatus(paused) = %v, %v", s, err)
	}
	if _, err := ParseStatus("archived"); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
