package multiplexer

import (
	"context"
	"testing"

	"github.com/swh-go/provenance/internal/archive"
	"github.com/swh-go/provenance/internal/archive/memory"
	"github.com/swh-go/provenance/internal/metrics"
	"github.com/swh-go/provenance/internal/model"
)

func testID(b byte) model.ID {
	var out model.ID
	out[len(out)-1] = b
	return out
}

func TestDirectoryLsFallsThroughToNextBackend(t *testing.T) {
	primary := memory.New()
	secondary := memory.New()
	dir := testID(1)
	secondary.AddDirectory(dir, []archive.DirEntry{{Name: []byte("a"), Target: testID(2), Type: archive.EntryFile}})

	m := New(metrics.Noop{}, primary, secondary)
	entries, err := m.DirectoryLs(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("DirectoryLs: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry from secondary backend, got %d", len(entries))
	}
}

func TestDirectoryLsPrefersFirstNonEmptyBackend(t *testing.T) {
	primary := memory.New()
	secondary := memory.New()
	dir := testID(1)
	primary.AddDirectory(dir, []archive.DirEntry{{Name: []byte("from-primary"), Target: testID(2), Type: archive.EntryFile}})
	secondary.AddDirectory(dir, []archive.DirEntry{{Name: []byte("from-secondary"), Target: testID(3), Type: archive.EntryFile}})

	m := New(metrics.Noop{}, primary, secondary)
	entries, err := m.DirectoryLs(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("DirectoryLs: %v", err)
	}
	if len(entries) != 1 || string(entries[0].Name) != "from-primary" {
		t.Fatalf("expected primary backend's entry, got %+v", entries)
	}
}

func TestRevisionsGetMergesAcrossBackends(t *testing.T) {
	primary := memory.New()
	secondary := memory.New()
	rev1, rev2 := testID(1), testID(2)
	primary.AddRevision(archive.RevisionInfo{ID: rev1, Root: testID(10)}, nil)
	secondary.AddRevision(archive.RevisionInfo{ID: rev2, Root: testID(20)}, nil)

	m := New(metrics.Noop{}, primary, secondary)
	got, err := m.RevisionsGet(context.Background(), []model.ID{rev1, rev2})
	if err != nil {
		t.Fatalf("RevisionsGet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both revisions resolved, got %d", len(got))
	}
}

func TestSnapshotGetHeadsReturnsErrorWhenNoBackendKnowsIt(t *testing.T) {
	m := New(metrics.Noop{}, memory.New(), memory.New())
	if _, err := m.SnapshotGetHeads(context.Background(), testID(1)); err == nil {
		t.Error("expected an error when no backend knows the snapshot")
	}
}
