package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"slidedeck/core"
	"slidedeck/stores/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, NewStore(filepath.Join(t.TempDir(), "slidedeck.db")))
}

func TestInMemoryDatabase(t *testing.T) {
	store := NewStore(":memory:")
	ctx := context.Background()

	created, err := store.Create(ctx, &core.Document{Title: "Deck", Creator: "bob"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	got, err := store.FindID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if got.Creator != "bob" {
		t.Errorf("got creator %q, want %q", got.Creator, "bob")
	}
}
