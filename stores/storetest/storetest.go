// Package storetest checks that a core.DocumentStore behaves like the
// remote store the client expects. Backend packages run it from their
// tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"slidedeck/core"
)

func sample(title, creator string) *core.Document {
	return &core.Document{
		ID:      "client-temporary",
		Title:   title,
		Creator: creator,
		Content: core.Content{Slides: []core.Slide{{
			ID: "slide-1",
			Elements: core.Elements{
				core.Text{Placement: core.Placement{ID: "text-1", X: 10, Y: 20}, Text: "Hi", FontSize: 20},
				core.Rectangle{Placement: core.Placement{ID: "rectangle-1", X: 1, Y: 2}, Width: 3, Height: 4, Fill: "blue"},
			},
		}}},
		Viewers: core.Members{"alice": {Username: "alice", JoinedAt: 42}},
	}
}

// Run exercises store. It must start empty.
func Run(t *testing.T, store core.DocumentStore) {
	ctx := context.Background()

	t.Run("EmptyList", func(t *testing.T) {
		docs, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if docs == nil || len(docs) != 0 {
			t.Errorf("got %v, want empty slice", docs)
		}
	})

	var created *core.Document
	t.Run("Create", func(t *testing.T) {
		var err error
		created, err = store.Create(ctx, sample("Deck", "bob"))
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if len(created.ID) != 26 {
			t.Errorf("Create() returned invalid ID length: got %d, want 26", len(created.ID))
		}
		if created.Revision != 1 {
			t.Errorf("got revision %d, want 1", created.Revision)
		}
	})
	if created == nil {
		t.FailNow()
	}

	t.Run("FindID", func(t *testing.T) {
		got, err := store.FindID(ctx, created.ID)
		if err != nil {
			t.Fatalf("FindID() failed: %v", err)
		}
		if got.ID != created.ID {
			t.Errorf("stored id %q differs from assigned id %q", got.ID, created.ID)
		}
		if got.Title != "Deck" || got.Creator != "bob" || got.Revision != 1 {
			t.Errorf("got %+v", got)
		}
		els := got.Content.Slides[0].Elements
		if len(els) != 2 || els[0].Kind() != core.KindText || els[1].Kind() != core.KindRectangle {
			t.Errorf("elements not preserved: %v", els)
		}
		if got.Viewers["alice"].JoinedAt != 42 {
			t.Errorf("viewer record not preserved: %v", got.Viewers)
		}
	})

	t.Run("FindID_NotFound", func(t *testing.T) {
		_, err := store.FindID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("got %v, want %v", err, core.ErrNotFound)
		}
	})

	t.Run("ReplaceConditional", func(t *testing.T) {
		next, err := store.FindID(ctx, created.ID)
		if err != nil {
			t.Fatal(err)
		}
		next.Title = "Renamed"
		next.Creator = "mallory"

		stored, err := store.Replace(ctx, next, 1)
		if err != nil {
			t.Fatalf("Replace() failed: %v", err)
		}
		if stored.Revision != 2 || stored.Title != "Renamed" {
			t.Errorf("got %+v", stored)
		}
		if stored.Creator != "bob" {
			t.Errorf("creator changed to %q", stored.Creator)
		}

		if _, err := store.Replace(ctx, next, 1); !errors.Is(err, core.ErrConflict) {
			t.Errorf("stale Replace: got %v, want %v", err, core.ErrConflict)
		}
		got, _ := store.FindID(ctx, created.ID)
		if got.Revision != 2 {
			t.Errorf("rejected write changed revision to %d", got.Revision)
		}
	})

	t.Run("ReplaceUnconditional", func(t *testing.T) {
		next, _ := store.FindID(ctx, created.ID)
		next.Revision = 0
		stored, err := store.Replace(ctx, next, 0)
		if err != nil {
			t.Fatalf("Replace() failed: %v", err)
		}
		if stored.Revision != 3 {
			t.Errorf("got revision %d, want 3", stored.Revision)
		}
	})

	t.Run("ReplaceNotFound", func(t *testing.T) {
		missing := sample("x", "y")
		missing.ID = "01ARZ3NDEKTSV4RRFFQ69G5FAV"
		if _, err := store.Replace(ctx, missing, 0); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("got %v, want %v", err, core.ErrNotFound)
		}
	})

	t.Run("List", func(t *testing.T) {
		if _, err := store.Create(ctx, sample("Second", "carol")); err != nil {
			t.Fatal(err)
		}
		docs, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if len(docs) != 2 {
			t.Fatalf("got %d documents, want 2", len(docs))
		}
		for _, d := range docs {
			if d.ID == "" || d.Title == "" {
				t.Errorf("incomplete document %+v", d)
			}
		}
	})

	t.Run("ConcurrentConditionalWrites", func(t *testing.T) {
		base, _ := store.FindID(ctx, created.ID)

		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Replace(ctx, base, base.Revision); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				} else if !errors.Is(err, core.ErrConflict) {
					t.Errorf("Replace() failed: %v", err)
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("got %d successful writes at the same revision, want 1", wins)
		}
	})
}
