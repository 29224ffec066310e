package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"slidedeck/core"
	"slidedeck/events"
	"slidedeck/handlers/api/documents"
	"slidedeck/middleware"
	"slidedeck/stores/memory"

	"github.com/go-chi/chi/v5"
)

func newStoreServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	pub := events.LogPublisher{}

	r := chi.NewRouter()
	r.Use(middleware.Identity)
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", documents.HandleList(store))
		r.Post("/", documents.HandleCreate(store, pub))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", documents.HandleGet(store))
			r.Put("/", documents.HandleReplace(store, pub))
			r.Patch("/", documents.HandlePatch(store, pub))
			r.Post("/viewers", documents.HandleRegisterViewer(store, pub))
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newDocument(title, creator string) *core.Document {
	return &core.Document{
		Title:   title,
		Creator: creator,
		Content: core.Content{Slides: []core.Slide{{ID: "slide-1"}}},
	}
}

func TestClientRoundTrip(t *testing.T) {
	srv := newStoreServer(t)
	c := New(srv.URL, "bob")
	ctx := context.Background()

	created, err := c.Create(ctx, newDocument("Deck", "bob"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if created.ID == "" || created.Revision != 1 {
		t.Fatalf("got %+v, want an id at revision 1", created)
	}

	doc, err := c.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if doc.Title != "Deck" || doc.Creator != "bob" {
		t.Errorf("got %+v", doc)
	}

	doc.Title = "Renamed"
	saved, err := c.Replace(ctx, doc, doc.Revision)
	if err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}
	if saved.Revision != 2 {
		t.Errorf("got revision %d, want 2", saved.Revision)
	}

	viewed, err := c.AddViewer(ctx, created.ID, "alice")
	if err != nil {
		t.Fatalf("AddViewer() failed: %v", err)
	}
	if _, ok := viewed.Viewers["alice"]; !ok {
		t.Error("alice should be a viewer")
	}

	title := "Patched"
	patched, err := c.Patch(ctx, created.ID, core.Patch{Title: &title}, viewed.Revision)
	if err != nil {
		t.Fatalf("Patch() failed: %v", err)
	}
	if patched.Title != "Patched" {
		t.Errorf("got %q, want %q", patched.Title, "Patched")
	}

	docs, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("got %d documents, want 1", len(docs))
	}
}

func TestClientListEmpty(t *testing.T) {
	srv := newStoreServer(t)
	docs, err := New(srv.URL, "bob").List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("got %v, want an empty slice", docs)
	}
}

func TestClientConflict(t *testing.T) {
	srv := newStoreServer(t)
	c := New(srv.URL, "bob")
	ctx := context.Background()

	created, err := c.Create(ctx, newDocument("Deck", "bob"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	doc, _ := c.Get(ctx, created.ID)
	if _, err := c.Replace(ctx, doc, 1); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}

	_, err = c.Replace(ctx, doc, 1)
	if !IsConflict(err) {
		t.Fatalf("got %v, want a conflict", err)
	}
	if !errors.Is(err, core.ErrTransient) {
		t.Errorf("conflict should be transient, got %v", err)
	}
}

func TestClientHeaders(t *testing.T) {
	var (
		mu       sync.Mutex
		captured *http.Request
	)
	last := func() *http.Request {
		mu.Lock()
		defer mu.Unlock()
		return captured
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		captured = r.Clone(context.Background())
		mu.Unlock()
		w.Write([]byte(`{"id":"d","title":"t","creator":"bob","content":{"slides":[]},"revision":4}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "carol")
	if _, err := c.Get(context.Background(), "d"); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	got := last()
	if got.Header.Get("X-Username") != "carol" {
		t.Errorf("got X-Username %q, want carol", got.Header.Get("X-Username"))
	}
	if got.URL.Query().Get("cachebust") == "" {
		t.Error("Get() should add a cachebust parameter")
	}
	if got.Header.Get("If-Match") != "" {
		t.Error("Get() should not send If-Match")
	}
	first := got.URL.Query().Get("cachebust")

	doc := newDocument("t", "bob")
	doc.ID = "d"
	if _, err := c.Replace(context.Background(), doc, 3); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}
	got = last()
	if got.Header.Get("If-Match") != `"3"` {
		t.Errorf("got If-Match %q, want %q", got.Header.Get("If-Match"), `"3"`)
	}

	if _, err := c.Get(context.Background(), "d"); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if last().URL.Query().Get("cachebust") == first {
		t.Error("cachebust should differ between calls")
	}
}

func TestClientErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
		is     []error
		isNot  []error
	}{
		{"not found", http.StatusNotFound, `{"error":"Document not found"}`, []error{core.ErrNotFound, core.ErrTransient}, []error{core.ErrForbidden}},
		{"conflict", http.StatusConflict, `{"error":"stale"}`, []error{core.ErrConflict, core.ErrTransient}, nil},
		{"bad request", http.StatusBadRequest, `{"error":"bad"}`, []error{core.ErrValidation}, []error{core.ErrConflict}},
		{"forbidden", http.StatusForbidden, `{"error":"no"}`, []error{core.ErrForbidden, core.ErrValidation}, []error{core.ErrTransient}},
		{"server error", http.StatusInternalServerError, `oops`, []error{core.ErrTransient}, []error{core.ErrNotFound, core.ErrConflict}},
		{"malformed document", http.StatusOK, `{"title":"x","content":{}}`, []error{core.ErrTransient, core.ErrInvalidDocument}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, "bob").Get(context.Background(), "d")
			if err == nil {
				t.Fatal("Get() should fail")
			}
			for _, target := range tc.is {
				if !errors.Is(err, target) {
					t.Errorf("errors.Is(%v, %v) = false, want true", err, target)
				}
			}
			for _, target := range tc.isNot {
				if errors.Is(err, target) {
					t.Errorf("errors.Is(%v, %v) = true, want false", err, target)
				}
			}
		})
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, "bob", WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := c.List(context.Background())
	if !errors.Is(err, core.ErrTransient) {
		t.Fatalf("got %v, want a transient error", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("List() returned after %v, want about 50ms", elapsed)
	}
}

func TestClientCreateWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "bob").Create(context.Background(), newDocument("Deck", "bob"))
	if err == nil || !strings.Contains(err.Error(), "no id") {
		t.Errorf("got %v, want a missing id error", err)
	}
}

func TestClientForbiddenMessage(t *testing.T) {
	srv := newStoreServer(t)
	c := New(srv.URL, "bob")
	ctx := context.Background()

	created, err := c.Create(ctx, newDocument("Deck", "bob"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	_, err = c.AddViewer(ctx, created.ID, "bob")
	if !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
	if n := strings.Count(err.Error(), "may not"); n != 1 {
		t.Errorf("got %q, want the refused action once", err.Error())
	}
}
