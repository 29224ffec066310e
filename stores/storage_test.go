package stores

import (
	"context"
	"errors"
	"sync"
	"testing"

	"slidedeck/config"
	"slidedeck/core"
	"slidedeck/stores/memory"
)

func TestGetStoreDefaultsToMemory(t *testing.T) {
	cfg := &config.Config{}
	store := GetStore(cfg)
	if store == nil {
		t.Fatal("GetStore() returned nil")
	}
	if _, err := store.List(context.Background()); err != nil {
		t.Fatalf("List() failed: %v", err)
	}
}

func TestGetStoreFilesystem(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Type = "filesystem"
	cfg.Storage.Path = t.TempDir()

	store := GetStore(cfg)
	created, err := store.Create(context.Background(), &core.Document{Title: "Deck", Creator: "bob"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if created.ID == "" {
		t.Error("Create() returned empty ID")
	}
}

func TestUpdate(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	created, _ := store.Create(ctx, &core.Document{Title: "Deck", Creator: "bob"})

	got, err := Update(ctx, store, created.ID, 1, func(doc *core.Document) error {
		doc.Title = "Renamed"
		return nil
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if got.Title != "Renamed" || got.Revision != 2 {
		t.Errorf("got %+v", got)
	}

	if _, err := Update(ctx, store, created.ID, 1, func(*core.Document) error { return nil }); !errors.Is(err, core.ErrConflict) {
		t.Errorf("stale Update: got %v, want %v", err, core.ErrConflict)
	}

	boom := errors.New("boom")
	if _, err := Update(ctx, store, created.ID, 0, func(*core.Document) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
	if _, err := Update(ctx, store, "missing", 0, func(*core.Document) error { return nil }); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("got %v, want %v", err, core.ErrNotFound)
	}
}

func TestUnconditionalUpdatesDoNotLoseWrites(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	created, _ := store.Create(ctx, &core.Document{Title: "Deck", Creator: "bob"})

	users := []string{"alice", "carol", "dave", "erin"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Update(ctx, store, created.ID, 0, func(doc *core.Document) error {
				doc.Viewers[u] = core.Member{Username: u}
				return nil
			})
			if err != nil {
				t.Errorf("Update() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := store.FindID(ctx, created.ID)
	if len(got.Viewers) != len(users) {
		t.Errorf("got %d viewers, want %d", len(got.Viewers), len(users))
	}
}
