package isochrone

import (
	"context"
	"testing"
	"time"

	"github.com/swh-go/provenance/internal/archive"
	"github.com/swh-go/provenance/internal/archive/memory"
	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
	"github.com/swh-go/provenance/internal/storage/memstore"
)

func testID(b byte) model.ID {
	var out model.ID
	out[len(out)-1] = b
	return out
}

func TestBuildFreshTreeComputesMaxdateFromFiles(t *testing.T) {
	arc := memory.New()
	root, sub, blobA, blobB := testID(1), testID(2), testID(3), testID(4)

	arc.AddDirectory(root, []archive.DirEntry{
		{Name: []byte("a.txt"), Target: blobA, Type: archive.EntryFile, Length: 10},
		{Name: []byte("sub"), Target: sub, Type: archive.EntryDir},
	})
	arc.AddDirectory(sub, []archive.DirEntry{
		{Name: []byte("b.txt"), Target: blobB, Type: archive.EntryFile, Length: 10},
	})

	store := memstore.New(storage.Flavor{})
	revDate := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

	tree, err := Build(context.Background(), arc, store, root, revDate, Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tree.Root.Children) != 1 {
		t.Fatalf("expected one child directory, got %d", len(tree.Root.Children))
	}
	if !tree.Root.MaxDate.Equal(revDate) {
		t.Errorf("root maxdate = %v, want %v (no known dates, falls back to revision date)", tree.Root.MaxDate, revDate)
	}
	if string(tree.Root.Children[0].Path) != "sub" {
		t.Errorf("child path = %q, want %q", tree.Root.Children[0].Path, "sub")
	}
}

func TestBuildPrunesAtKnownFrontier(t *testing.T) {
	arc := memory.New()
	root, sub, blob := testID(5), testID(6), testID(7)
	arc.AddDirectory(root, []archive.DirEntry{
		{Name: []byte("sub"), Target: sub, Type: archive.EntryDir},
	})
	arc.AddDirectory(sub, []archive.DirEntry{
		{Name: []byte("x.txt"), Target: blob, Type: archive.EntryFile, Length: 1},
	})

	store := memstore.New(storage.Flavor{})
	frontierDate := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.DirectorySet(context.Background(), map[model.ID]model.Directory{
		sub: {ID: sub, Date: frontierDate, Flat: true},
	}); err != nil {
		t.Fatalf("DirectorySet: %v", err)
	}

	revDate := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	tree, err := Build(context.Background(), arc, store, root, revDate, Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	child := tree.Root.Children[0]
	if len(child.Children) != 0 || len(child.Files) != 0 {
		t.Errorf("expected pruning at known frontier, got %d children and %d files", len(child.Children), len(child.Files))
	}
	if !child.MaxDate.Equal(frontierDate) {
		t.Errorf("pruned node maxdate = %v, want dbdate %v", child.MaxDate, frontierDate)
	}
}

func TestBuildInvalidatesOutOfOrderFrontier(t *testing.T) {
	arc := memory.New()
	root, blob := testID(8), testID(9)
	arc.AddDirectory(root, []archive.DirEntry{
		{Name: []byte("x.txt"), Target: blob, Type: archive.EntryFile, Length: 1},
	})

	store := memstore.New(storage.Flavor{})
	laterDate := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.DirectorySet(context.Background(), map[model.ID]model.Directory{
		root: {ID: root, Date: laterDate, Flat: true},
	}); err != nil {
		t.Fatalf("DirectorySet: %v", err)
	}

	revDate := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	tree, err := Build(context.Background(), arc, store, root, revDate, Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !tree.Root.Invalid {
		t.Error("expected root to be invalidated by an out-of-order dbdate")
	}
	if len(tree.Root.Files) != 1 {
		t.Errorf("expected descent into invalidated frontier, got %d files", len(tree.Root.Files))
	}
}

func TestBuildFailsOnDirectoryTooLarge(t *testing.T) {
	arc := memory.New()
	root := testID(10)
	var entries []archive.DirEntry
	for i := byte(1); i <= 5; i++ {
		entries = append(entries, archive.DirEntry{Name: []byte{i}, Target: testID(20 + i), Type: archive.EntryDir})
	}
	arc.AddDirectory(root, entries)
	for i := byte(1); i <= 5; i++ {
		arc.AddDirectory(testID(20+i), nil)
	}

	store := memstore.New(storage.Flavor{})
	_, err := Build(context.Background(), arc, store, root, time.Now(), Config{MaxDirectorySize: 3})
	if err == nil {
		t.Fatal("expected DirectoryTooLarge error")
	}
}
