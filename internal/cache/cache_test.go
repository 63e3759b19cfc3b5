package cache

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

func TestSetContentDateMinMergeWithinBatch(t *testing.T) {
	store := memstore.New(storage.Flavor{})
	c := New(store, nil, nil)
	id := testID(1)
	early := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	c.SetContentDate(id, late)
	c.SetContentDate(id, early)

	got, err := c.ContentDate(context.Background(), id)
	if err != nil {
		t.Fatalf("ContentDate: %v", err)
	}
	if !got.Equal(early) {
		t.Errorf("ContentDate = %v, want %v", got, early)
	}
}

func TestFlushWritesThroughAndResetsBatch(t *testing.T) {
	store := memstore.New(storage.Flavor{})
	c := New(store, nil, nil)
	ctx := context.Background()

	blob := testID(2)
	rev := testID(3)
	date := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)

	c.SetRevision(rev, date, model.ID{})
	c.AddRelation(model.CntEarlyInRev, blob, rev, []byte("main.go"))

	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := store.RevisionGet(ctx, []model.ID{rev})
	if err != nil {
		t.Fatalf("RevisionGet: %v", err)
	}
	if !got[rev].Date.Equal(date) {
		t.Errorf("revision date not flushed: got %v, want %v", got[rev].Date, date)
	}

	edges, err := store.RelationGet(ctx, model.CntEarlyInRev, []model.ID{blob}, false)
	if err != nil {
		t.Fatalf("RelationGet: %v", err)
	}
	if len(edges[blob]) != 1 {
		t.Fatalf("expected one flushed edge, got %d", len(edges[blob]))
	}

	if c.Size() != 0 {
		t.Errorf("cache not cleared after flush: size = %d", c.Size())
	}
}

func TestFlushIfNecessaryThreshold(t *testing.T) {
	store := memstore.New(storage.Flavor{})
	c := New(store, nil, nil)
	c.MaxElements = 1
	ctx := context.Background()

	c.SetContentDate(testID(4), time.Now())
	c.SetContentDate(testID(5), time.Now())
	if err := c.FlushIfNecessary(ctx); err != nil {
		t.Fatalf("FlushIfNecessary: %v", err)
	}
	if c.Size() != 0 {
		t.Errorf("expected flush to trigger past threshold, size = %d", c.Size())
	}
}
