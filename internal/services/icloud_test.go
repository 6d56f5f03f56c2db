package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

func newICloudProxy(t *testing.T, photos []models.TransferItem) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer session-ok" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail": "session expired"}`))
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("GET /api/session", auth(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": true}`))
	}))
	mux.HandleFunc("GET /api/photos/count", auth(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"count": len(photos)})
	}))
	mux.HandleFunc("GET /api/photos", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "2" || r.URL.Query().Get("offset") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{"items": photos[1:3]})
	}))
	mux.HandleFunc("GET /api/photos/{id}", auth(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range photos {
			if p.SourceID == r.PathValue("id") {
				json.NewEncoder(w).Encode(p)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	mux.HandleFunc("GET /api/photos/{id}/download", auth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("bytes-of-" + r.PathValue("id")))
	}))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestICloudSource(t *testing.T) {
	photos := []models.TransferItem{
		{SourceID: "a", DisplayName: "IMG_0001.HEIC", SizeBytes: 10, MimeType: "image/heic"},
		{SourceID: "b", DisplayName: "IMG_0002.JPG", SizeBytes: 20},
		{SourceID: "c", DisplayName: "IMG_0003.MOV", SizeBytes: 30},
	}
	ctx := context.Background()

	authed := func(t *testing.T) *ICloudSource {
		server := newICloudProxy(t, photos)
		src := NewICloudSource(server.URL, nil, nil)
		if err := src.Authenticate(ctx, &oauth2.Token{AccessToken: "session-ok"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		return src
	}

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("Rejects Missing Token", func(t *testing.T) {
			src := NewICloudSource("http://example.com", nil, nil)
			if err := src.Authenticate(ctx, nil); !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
			if err := src.Authenticate(ctx, &oauth2.Token{}); !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	})

	t.Run("VerifyCredentials", func(t *testing.T) {
		t.Run("Valid Session", func(t *testing.T) {
			if !authed(t).VerifyCredentials(ctx) {
				t.Error("expected credentials to verify")
			}
		})

		t.Run("Expired Session", func(t *testing.T) {
			server := newICloudProxy(t, photos)
			src := NewICloudSource(server.URL, nil, nil)
			src.Authenticate(ctx, &oauth2.Token{AccessToken: "stale"})
			if src.VerifyCredentials(ctx) {
				t.Error("expected verification to fail")
			}
		})
	})

	t.Run("CountItems", func(t *testing.T) {
		if got := authed(t).CountItems(ctx); got != 3 {
			t.Errorf("expected 3, got %d", got)
		}

		t.Run("Unknown On Error", func(t *testing.T) {
			server := newICloudProxy(t, photos)
			src := NewICloudSource(server.URL, nil, nil)
			src.Authenticate(ctx, &oauth2.Token{AccessToken: "stale"})
			if got := src.CountItems(ctx); got != 0 {
				t.Errorf("expected 0, got %d", got)
			}
		})
	})

	t.Run("ListItems", func(t *testing.T) {
		items, err := authed(t).ListItems(ctx, 2, 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		if items[0].SourceID != "b" || items[1].DisplayName != "IMG_0003.MOV" {
			t.Errorf("unexpected items %+v", items)
		}
		if items[0].Status != models.ItemPending {
			t.Errorf("expected pending status, got %s", items[0].Status)
		}

		t.Run("Expired Session", func(t *testing.T) {
			server := newICloudProxy(t, photos)
			src := NewICloudSource(server.URL, nil, nil)
			src.Authenticate(ctx, &oauth2.Token{AccessToken: "stale"})
			if _, err := src.ListItems(ctx, 2, 1); !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
		})
	})

	t.Run("GetMetadata", func(t *testing.T) {
		src := authed(t)
		meta, err := src.GetMetadata(ctx, "a")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if meta.MimeType != "image/heic" || meta.SizeBytes != 10 {
			t.Errorf("unexpected metadata %+v", meta)
		}

		if _, err := src.GetMetadata(ctx, "missing"); !errors.Is(err, shared.ErrItemNotFound) {
			t.Errorf("expected ErrItemNotFound, got %v", err)
		}
	})

	t.Run("Download", func(t *testing.T) {
		data, err := authed(t).Download(ctx, "c")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(data) != "bytes-of-c" {
			t.Errorf("unexpected body %q", data)
		}
	})
}
