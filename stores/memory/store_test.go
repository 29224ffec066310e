package memory

import (
	"context"
	"testing"

	"slidedeck/core"
	"slidedeck/stores/storetest"
)

func TestNewStore(t *testing.T) {
	store := NewStore()
	if store == nil {
		t.Fatal("NewStore() returned nil")
	}
}

func TestStore(t *testing.T) {
	storetest.Run(t, NewStore())
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	created, err := store.Create(ctx, &core.Document{Title: "Deck", Creator: "bob"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	created.Title = "mutated"

	got, err := store.FindID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if got.Title != "Deck" {
		t.Errorf("caller mutation reached the store: got %q", got.Title)
	}
}
