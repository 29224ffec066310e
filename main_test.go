package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"slidedeck/config"
	"slidedeck/core"
	"slidedeck/events"
	"slidedeck/stores/memory"
)

func TestRouter(t *testing.T) {
	store := memory.NewStore()
	doc, err := store.Create(context.Background(), &core.Document{
		Title:   "Deck",
		Creator: "bob",
		Content: core.Content{Slides: []core.Slide{{ID: "slide-1"}}},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	r := setupRouter(store, events.LogPublisher{})

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"list", http.MethodGet, "/documents", "", http.StatusOK},
		{"get", http.MethodGet, "/documents/" + doc.ID, "", http.StatusOK},
		{"get missing", http.MethodGet, "/documents/missing", "", http.StatusNotFound},
		{"create", http.MethodPost, "/documents", `{"title":"New","content":{"slides":[]}}`, http.StatusCreated},
		{"viewer", http.MethodPost, "/documents/" + doc.ID + "/viewers", `{"username":"alice"}`, http.StatusOK},
		{"pdf", http.MethodGet, "/documents/" + doc.ID + "/export.pdf", "", http.StatusOK},
		{"thumbnail", http.MethodGet, "/documents/" + doc.ID + "/slides/0/thumbnail.png", "", http.StatusOK},
		{"unknown", http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("X-Username", "bob")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("Status code mismatch: got %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestRouterIdentityDefaultsCreator(t *testing.T) {
	store := memory.NewStore()
	r := setupRouter(store, events.LogPublisher{})

	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewBufferString(`{"title":"Mine","content":{"slides":[]}}`))
	req.Header.Set("X-Username", " dana ")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	doc, err := store.FindID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if doc.Creator != "dana" {
		t.Errorf("got creator %q, want %q", doc.Creator, "dana")
	}
}

func TestSetupPublisherWithoutBrokers(t *testing.T) {
	pub := setupPublisher(&config.Config{})
	if _, ok := pub.(events.LogPublisher); !ok {
		t.Errorf("got %T, want events.LogPublisher", pub)
	}
}
