package query

import (
	"context"
	"testing"
	"time"

	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
	"github.com/swh-go/provenance/internal/storage/memstore"
)

func testID(b byte) model.ID {
	var out model.ID
	out[len(out)-1] = b
	return out
}

func TestFindFirstReturnsNilOnMiss(t *testing.T) {
	store := memstore.New(storage.Flavor{})
	e := New(store)
	got, err := e.FindFirst(context.Background(), testID(1).String())
	if err != nil {
		t.Fatalf("FindFirst: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil result on miss, got %+v", got)
	}
}

func TestFindFirstRendersHexAndDate(t *testing.T) {
	store := memstore.New(storage.Flavor{})
	ctx := context.Background()
	content, rev := testID(2), testID(3)
	when := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	if _, err := store.RevisionSet(ctx, map[model.ID]model.Revision{rev: {ID: rev, Date: when}}); err != nil {
		t.Fatalf("RevisionSet: %v", err)
	}
	if _, err := store.RelationAdd(ctx, model.CntEarlyInRev, storage.RelationEdgeSet{
		content: {{Src: content, Dst: rev, Path: []byte("f.go")}},
	}); err != nil {
		t.Fatalf("RelationAdd: %v", err)
	}

	e := New(store)
	got, err := e.FindFirst(ctx, content.String())
	if err != nil {
		t.Fatalf("FindFirst: %v", err)
	}
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.Revision != rev.String() || got.Path != "f.go" || got.Date != "2020-01-02T03:04:05Z" {
		t.Errorf("got %+v", got)
	}
}

func TestFindAllInvalidID(t *testing.T) {
	store := memstore.New(storage.Flavor{})
	e := New(store)
	if _, err := e.FindAll(context.Background(), "not-hex", 0); err == nil {
		t.Error("expected error for malformed content id")
	}
}
