package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

type driveFake struct {
	mu      sync.Mutex
	token   string
	uploads []string
	folders []string
}

func (f *driveFake) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"code": 401, "message": "Invalid Credentials"}}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/about"):
			w.Write([]byte(`{"user": {"displayName": "Test"}}`))
		case strings.HasSuffix(r.URL.Path, "/files") && r.URL.Query().Get("uploadType") != "":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.uploads = append(f.uploads, string(body))
			f.mu.Unlock()
			w.Write([]byte(`{"id": "file-1"}`))
		case strings.HasSuffix(r.URL.Path, "/files"):
			var meta map[string]any
			json.NewDecoder(r.Body).Decode(&meta)
			if meta["mimeType"] != driveFolderMimeType {
				t.Errorf("expected folder mime type, got %v", meta["mimeType"])
			}
			f.mu.Lock()
			f.folders = append(f.folders, meta["name"].(string))
			f.mu.Unlock()
			w.Write([]byte(`{"id": "folder-1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": {"code": 404, "message": "not found"}}`))
		}
	}
}

func TestDriveSink(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, token string) (*DriveSink, *driveFake) {
		fake := &driveFake{token: "good"}
		server := httptest.NewServer(fake.handler(t))
		t.Cleanup(server.Close)

		sink := NewDriveSink(nil, WithDriveEndpoint(server.URL+"/"), WithDriveHTTPClient(server.Client()))
		if err := sink.Authenticate(ctx, &oauth2.Token{AccessToken: token, TokenType: "Bearer"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		return sink, fake
	}

	t.Run("Authenticate Rejects Missing Token", func(t *testing.T) {
		sink := NewDriveSink(nil)
		if err := sink.Authenticate(ctx, &oauth2.Token{}); !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Unauthenticated Calls", func(t *testing.T) {
		sink := NewDriveSink(nil)
		if sink.VerifyConnection(ctx) {
			t.Error("expected verification to fail")
		}
		if _, err := sink.PutItem(ctx, nil, "a.jpg", "image/jpeg", ""); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("VerifyConnection", func(t *testing.T) {
		sink, _ := setup(t, "good")
		if !sink.VerifyConnection(ctx) {
			t.Error("expected connection to verify")
		}

		stale, _ := setup(t, "stale")
		if stale.VerifyConnection(ctx) {
			t.Error("expected verification to fail with stale token")
		}
	})

	t.Run("CreateContainer", func(t *testing.T) {
		sink, fake := setup(t, "good")
		id, err := sink.CreateContainer(ctx, "Photo Migration 2024-05-17 09:30")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "folder-1" {
			t.Errorf("expected folder-1, got %s", id)
		}
		if len(fake.folders) != 1 || fake.folders[0] != "Photo Migration 2024-05-17 09:30" {
			t.Errorf("unexpected folders %v", fake.folders)
		}
	})

	t.Run("PutItem", func(t *testing.T) {
		sink, fake := setup(t, "good")
		id, err := sink.PutItem(ctx, []byte("jpeg-bytes"), "IMG_1.jpg", "image/jpeg", "folder-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "file-1" {
			t.Errorf("expected file-1, got %s", id)
		}
		if len(fake.uploads) != 1 {
			t.Fatalf("expected one upload, got %d", len(fake.uploads))
		}
		body := fake.uploads[0]
		for _, want := range []string{"IMG_1.jpg", "folder-1", "jpeg-bytes"} {
			if !strings.Contains(body, want) {
				t.Errorf("expected upload body to contain %q", want)
			}
		}
	})

	t.Run("Unauthorized Maps To Token Expired", func(t *testing.T) {
		sink, _ := setup(t, "stale")
		_, err := sink.PutItem(ctx, []byte("x"), "a.jpg", "image/jpeg", "")
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		_, err = sink.CreateContainer(ctx, "folder")
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("GoogleOAuthConfig", func(t *testing.T) {
		cfg := GoogleOAuthConfig(shared.GoogleConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://localhost:3000/callback"})
		if cfg.ClientID != "id" || cfg.RedirectURL != "http://localhost:3000/callback" {
			t.Errorf("unexpected config %+v", cfg)
		}
		if len(cfg.Scopes) != 1 || !strings.HasSuffix(cfg.Scopes[0], "drive.file") {
			t.Errorf("unexpected scopes %v", cfg.Scopes)
		}
	})
}
