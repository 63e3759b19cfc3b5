package flatten

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

func TestDirectoryEmitsCntInDirForEveryNestedBlob(t *testing.T) {
	arc := memory.New()
	dir, sub, blobA, blobB := testID(1), testID(2), testID(3), testID(4)
	arc.AddDirectory(dir, []archive.DirEntry{
		{Name: []byte("a.txt"), Target: blobA, Type: archive.EntryFile},
		{Name: []byte("sub"), Target: sub, Type: archive.EntryDir},
	})
	arc.AddDirectory(sub, []archive.DirEntry{
		{Name: []byte("b.txt"), Target: blobB, Type: archive.EntryFile},
	})

	store := memstore.New(storage.Flavor{})
	c := cache.New(store, nil, nil)

	if err := Directory(context.Background(), arc, c, dir); err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	edges, err := store.RelationGet(context.Background(), model.CntInDir, []model.ID{blobA, blobB}, false)
	if err != nil {
		t.Fatalf("RelationGet: %v", err)
	}
	if len(edges[blobA]) != 1 || string(edges[blobA][0].Path) != "a.txt" {
		t.Errorf("blobA edges = %+v, want path a.txt", edges[blobA])
	}
	if len(edges[blobB]) != 1 || string(edges[blobB][0].Path) != "sub/b.txt" {
		t.Errorf("blobB edges = %+v, want path sub/b.txt", edges[blobB])
	}

	got, err := store.DirectoryGet(context.Background(), []model.ID{dir})
	if err != nil {
		t.Fatalf("DirectoryGet: %v", err)
	}
	if !got[dir].Flat {
		t.Error("expected directory marked flat after flattening")
	}
}
