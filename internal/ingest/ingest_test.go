package ingest

import (
	"context"
	"testing"
	"time"

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

// TestAddRevisionsSimpleDirectOccurrence matches spec.md §8 scenario 1: a
// single revision with a file directly under its root produces one
// CNT_EARLY_IN_REV edge with the file's own name as path.
func TestAddRevisionsSimpleDirectOccurrence(t *testing.T) {
	arc := memory.New()
	root, a := testID(1), testID(2)
	arc.AddDirectory(root, []archive.DirEntry{
		{Name: []byte("A"), Target: a, Type: archive.EntryFile, Length: 1},
	})

	store := memstore.New(storage.Flavor{})
	c := cache.New(store, nil, nil)
	d := New(arc, store, c, nil, DefaultOptions())

	r1 := testID(10)
	date := time.Unix(1000000000, 0).UTC()
	if err := d.AddRevisions(context.Background(), []RevisionEntry{{ID: r1, Date: date, Root: root}}); err != nil {
		t.Fatalf("AddRevisions: %v", err)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ctx := context.Background()
	edges, err := store.RelationGet(ctx, model.CntEarlyInRev, []model.ID{a}, false)
	if err != nil {
		t.Fatalf("RelationGet: %v", err)
	}
	if len(edges[a]) != 1 {
		t.Fatalf("expected one CNT_EARLY_IN_REV edge for A, got %+v", edges[a])
	}
	got := edges[a][0]
	if got.Dst != r1 {
		t.Errorf("edge revision = %v, want %v", got.Dst, r1)
	}
	if string(got.Path) != "A" {
		t.Errorf("edge path = %q, want %q (no root-id prefix)", got.Path, "A")
	}
}

// TestAddRevisionsPromotesFrontierOnSecondRevision matches spec.md §8
// scenario 2: two revisions share a root with a nested directory D2/B; after
// ingesting both, D2 is promoted to a frontier under R2 and B is reachable
// only indirectly via CNT_IN_DIR, never a direct CNT_EARLY_IN_REV(B, R2).
func TestAddRevisionsPromotesFrontierOnSecondRevision(t *testing.T) {
	arc := memory.New()
	root, d2, b := testID(1), testID(2), testID(3)
	arc.AddDirectory(root, []archive.DirEntry{
		{Name: []byte("D2"), Target: d2, Type: archive.EntryDir},
	})
	arc.AddDirectory(d2, []archive.DirEntry{
		{Name: []byte("B"), Target: b, Type: archive.EntryFile, Length: 1},
	})

	store := memstore.New(storage.Flavor{})
	c := cache.New(store, nil, nil)
	opt := DefaultOptions()
	d := New(arc, store, c, nil, opt)

	r1 := testID(10)
	r2 := testID(11)
	date1 := time.Unix(1000, 0).UTC()
	date2 := time.Unix(2000, 0).UTC()

	if err := d.AddRevisions(context.Background(), []RevisionEntry{{ID: r1, Date: date1, Root: root}}); err != nil {
		t.Fatalf("AddRevisions(r1): %v", err)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush(r1): %v", err)
	}
	if err := d.AddRevisions(context.Background(), []RevisionEntry{{ID: r2, Date: date2, Root: root}}); err != nil {
		t.Fatalf("AddRevisions(r2): %v", err)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush(r2): %v", err)
	}

	ctx := context.Background()

	dirInRev, err := store.RelationGet(ctx, model.DirInRev, []model.ID{d2}, false)
	if err != nil {
		t.Fatalf("RelationGet DirInRev: %v", err)
	}
	if len(dirInRev[d2]) != 1 || dirInRev[d2][0].Dst != r2 || string(dirInRev[d2][0].Path) != "D2" {
		t.Fatalf("expected DIR_IN_REV(D2, R2, D2), got %+v", dirInRev[d2])
	}

	cntInDir, err := store.RelationGet(ctx, model.CntInDir, []model.ID{b}, false)
	if err != nil {
		t.Fatalf("RelationGet CntInDir: %v", err)
	}
	if len(cntInDir[b]) != 1 || cntInDir[b][0].Dst != d2 || string(cntInDir[b][0].Path) != "B" {
		t.Fatalf("expected CNT_IN_DIR(B, D2, B), got %+v", cntInDir[b])
	}

	cntEarlyInRev, err := store.RelationGet(ctx, model.CntEarlyInRev, []model.ID{b}, false)
	if err != nil {
		t.Fatalf("RelationGet CntEarlyInRev: %v", err)
	}
	for _, e := range cntEarlyInRev[b] {
		if e.Dst == r2 {
			t.Fatalf("unexpected direct CNT_EARLY_IN_REV(B, R2): frontier should have been used instead")
		}
	}

	result, err := store.ContentFindFirst(ctx, b)
	if err != nil {
		t.Fatalf("ContentFindFirst: %v", err)
	}
	if result == nil {
		t.Fatal("ContentFindFirst returned nil")
	}
	if result.Revision != r1 || !result.Date.Equal(date1) {
		t.Errorf("ContentFindFirst = {rev: %v, date: %v}, want {rev: %v, date: %v}", result.Revision, result.Date, r1, date1)
	}
	if string(result.Path) != "D2/B" {
		t.Errorf("ContentFindFirst path = %q, want %q", result.Path, "D2/B")
	}
}

// TestAddRevisionsHandlesOutOfOrderRevisions ingests the later revision
// first. B is first seen in R2, so D2's maxdate equals R2's date and D2 is
// not promoted (promotion needs maxdate strictly before the revision date);
// ingesting the earlier R1 afterward emits a direct CNT_EARLY_IN_REV(B, R1)
// edge and lowers B's date so that content_find_first answers R1.
func TestAddRevisionsHandlesOutOfOrderRevisions(t *testing.T) {
	arc := memory.New()
	root, d2, b := testID(1), testID(2), testID(3)
	arc.AddDirectory(root, []archive.DirEntry{
		{Name: []byte("D2"), Target: d2, Type: archive.EntryDir},
	})
	arc.AddDirectory(d2, []archive.DirEntry{
		{Name: []byte("B"), Target: b, Type: archive.EntryFile, Length: 1},
	})

	store := memstore.New(storage.Flavor{})
	c := cache.New(store, nil, nil)
	d := New(arc, store, c, nil, DefaultOptions())

	r1 := testID(10)
	r2 := testID(11)
	date1 := time.Unix(1000, 0).UTC()
	date2 := time.Unix(2000, 0).UTC()

	if err := d.AddRevisions(context.Background(), []RevisionEntry{{ID: r2, Date: date2, Root: root}}); err != nil {
		t.Fatalf("AddRevisions(r2): %v", err)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush(r2): %v", err)
	}
	if err := d.AddRevisions(context.Background(), []RevisionEntry{{ID: r1, Date: date1, Root: root}}); err != nil {
		t.Fatalf("AddRevisions(r1): %v", err)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush(r1): %v", err)
	}

	ctx := context.Background()
	cntEarlyInRev, err := store.RelationGet(ctx, model.CntEarlyInRev, []model.ID{b}, false)
	if err != nil {
		t.Fatalf("RelationGet CntEarlyInRev: %v", err)
	}
	found := false
	for _, e := range cntEarlyInRev[b] {
		if e.Dst == r1 && string(e.Path) == "D2/B" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a direct CNT_EARLY_IN_REV(B, R1, D2/B) after out-of-order ingestion, got %+v", cntEarlyInRev[b])
	}

	result, err := store.ContentFindFirst(ctx, b)
	if err != nil {
		t.Fatalf("ContentFindFirst: %v", err)
	}
	if result == nil || result.Revision != r1 {
		t.Fatalf("ContentFindFirst = %+v, want revision %v", result, r1)
	}
}
