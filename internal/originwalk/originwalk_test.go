package originwalk

import (
	"context"
	"testing"

	"github.com/swh-go/provenance/internal/archive"
	"github.com/swh-go/provenance/internal/archive/memory"
	"github.com/swh-go/provenance/internal/cache"
	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
	"github.com/swh-go/provenance/internal/storage/memstore"
)

func testID(b byte) model.ID {
	var out model.ID
	out[len(out)-1] = b
	return out
}

func TestAddOriginsEmitsAncestryAndPreferredOrigin(t *testing.T) {
	arc := memory.New()
	head, parent, grandparent := testID(1), testID(2), testID(3)
	snapshot := testID(4)

	arc.AddRevision(archive.RevisionInfo{ID: head}, []model.ID{parent})
	arc.AddRevision(archive.RevisionInfo{ID: parent}, []model.ID{grandparent})
	arc.AddRevision(archive.RevisionInfo{ID: grandparent}, nil)
	arc.AddSnapshot(snapshot, []model.ID{head})

	store := memstore.New(storage.Flavor{})
	c := cache.New(store, nil, nil)
	w := New(arc, c)

	url := "https://example.org/repo.git"
	if err := w.AddOrigins(context.Background(), []OriginEntry{{URL: url, SnapshotID: snapshot}}); err != nil {
		t.Fatalf("AddOrigins: %v", err)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ctx := context.Background()
	originID := OriginID(url)
	origins, err := store.OriginGet(ctx, []model.ID{originID})
	if err != nil || origins[originID] != url {
		t.Fatalf("OriginGet = %q, %v", origins[originID], err)
	}

	revInOrg, err := store.RelationGet(ctx, model.RevInOrg, []model.ID{head}, false)
	if err != nil || len(revInOrg[head]) != 1 {
		t.Fatalf("expected head in origin relation, got %+v, %v", revInOrg[head], err)
	}

	before, err := store.RelationGet(ctx, model.RevBeforeRev, []model.ID{parent, grandparent}, false)
	if err != nil {
		t.Fatalf("RelationGet RevBeforeRev: %v", err)
	}
	if len(before[parent]) != 1 || before[parent][0].Dst != head {
		t.Errorf("expected parent before head, got %+v", before[parent])
	}
	if len(before[grandparent]) != 1 || before[grandparent][0].Dst != head {
		t.Errorf("expected grandparent before head, got %+v", before[grandparent])
	}

	revs, err := store.RevisionGet(ctx, []model.ID{head, parent, grandparent})
	if err != nil {
		t.Fatalf("RevisionGet: %v", err)
	}
	for _, id := range []model.ID{head, parent, grandparent} {
		if revs[id].Origin != originID {
			t.Errorf("revision %s preferred origin = %v, want %v", id, revs[id].Origin, originID)
		}
	}
}

func TestPreferredOriginIsFirstWriterWins(t *testing.T) {
	arc := memory.New()
	head1, head2, shared := testID(10), testID(11), testID(12)
	snap1, snap2 := testID(13), testID(14)

	arc.AddRevision(archive.RevisionInfo{ID: head1}, []model.ID{shared})
	arc.AddRevision(archive.RevisionInfo{ID: head2}, []model.ID{shared})
	arc.AddRevision(archive.RevisionInfo{ID: shared}, nil)
	arc.AddSnapshot(snap1, []model.ID{head1})
	arc.AddSnapshot(snap2, []model.ID{head2})

	store := memstore.New(storage.Flavor{})
	c := cache.New(store, nil, nil)
	w := New(arc, c)

	ctx := context.Background()
	if err := w.AddOrigins(ctx, []OriginEntry{{URL: "https://a.example/repo.git", SnapshotID: snap1}}); err != nil {
		t.Fatalf("AddOrigins(1): %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush(1): %v", err)
	}
	if err := w.AddOrigins(ctx, []OriginEntry{{URL: "https://b.example/repo.git", SnapshotID: snap2}}); err != nil {
		t.Fatalf("AddOrigins(2): %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush(2): %v", err)
	}

	revs, err := store.RevisionGet(ctx, []model.ID{shared})
	if err != nil {
		t.Fatalf("RevisionGet: %v", err)
	}
	want := OriginID("https://a.example/repo.git")
	if revs[shared].Origin != want {
		t.Errorf("shared ancestor origin = %v, want first-writer origin %v", revs[shared].Origin, want)
	}
}
