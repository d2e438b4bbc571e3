package analytics

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientNotify(t *testing.T) {
	var received event
	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode event: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(server.URL, "secret-token", log)

	err := c.Notify(context.Background(), "card_reviewed", "u1", map[string]any{"quality": "good"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if received.Event != "card_reviewed" {
		t.Errorf("event = %q, want card_reviewed", received.Event)
	}
	if received.UserID != "u1" {
		t.Errorf("user_id = %q, want u1", received.UserID)
	}
	if received.Properties["quality"] != "good" {
		t.Errorf("properties = %v", received.Properties)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

func TestClientNotifyNoToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(server.URL, "", log)

	if err := c.Notify(context.Background(), "due_digest", "u1", nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestClientNotifyCollectorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(server.URL, "", log)

	if err := c.Notify(context.Background(), "card_reviewed", "u1", nil); err == nil {
		t.Fatal("expected error on non-2xx collector response")
	}
}
