// Package storagetest is a shared conformance suite run against every
// storage.Storage implementation, grounded on the teacher's pattern of
// table-driven tests over a package's own exported surface (e.g.
// internal/storage/sqlite/errors_test.go) generalized into a reusable
// RunConformance entry point so memstore and sqlstore exercise identical
// behavioral contracts.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
)

// Factory builds a fresh, empty Storage for one subtest. Implementations
// close over whatever setup (in-memory map, test container DSN) the backend
// needs and must return an independent instance each call.
type Factory func(t *testing.T) storage.Storage

// RunConformance runs the full behavioral contract of storage.Storage
// against a backend built by newStore. Call it from the backend's own
// *_test.go with its own Factory.
func RunConformance(t *testing.T, newStore Factory) {
	t.Run("ContentDateMinMerge", func(t *testing.T) { testContentDateMinMerge(t, newStore) })
	t.Run("DirectoryFlatIsSticky", func(t *testing.T) { testDirectoryFlatSticky(t, newStore) })
	t.Run("DirectoryIterNotFlattenedPages", func(t *testing.T) { testDirectoryIterPages(t, newStore) })
	t.Run("RevisionOriginLastWriterWinsIfSet", func(t *testing.T) { testRevisionOriginMerge(t, newStore) })
	t.Run("OriginSetIsInsertIfAbsent", func(t *testing.T) { testOriginInsertIfAbsent(t, newStore) })
	t.Run("RelationAddIsIdempotent", func(t *testing.T) { testRelationAddIdempotent(t, newStore) })
	t.Run("RelationGetReverseLookup", func(t *testing.T) { testRelationGetReverse(t, newStore) })
	t.Run("ContentFindFirstOrdersByDateRevOriginPath", func(t *testing.T) { testContentFindFirstOrdering(t, newStore) })
	t.Run("ContentFindAllRespectsLimit", func(t *testing.T) { testContentFindAllLimit(t, newStore) })
	t.Run("ContentFindFirstCrossesDirectoryIndirection", func(t *testing.T) { testContentFindFirstViaDirectory(t, newStore) })
}

func id(b byte) model.ID {
	var out model.ID
	out[len(out)-1] = b
	return out
}

func testContentDateMinMerge(t *testing.T, newStore Factory) {
	s := newStore(t)
	defer s.Close()
	ctx := context.Background()
	c := id(1)
	later := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	if ok, err := s.ContentSetDate(ctx, map[model.ID]time.Time{c: later}); err != nil || !ok {
		t.Fatalf("ContentSetDate(later) = %v, %v", ok, err)
	}
	if ok, err := s.ContentSetDate(ctx, map[model.ID]time.Time{c: earlier}); err != nil || !ok {
		t.Fatalf("ContentSetDate(earlier) = %v, %v", ok, err)
	}

	got, err := s.ContentGet(ctx, []model.ID{c})
	if err != nil {
		t.Fatalf("ContentGet: %v", err)
	}
	assert.True(t, got[c].Equal(earlier), "ContentGet = %v, want min date %v", got[c], earlier)
}

func testDirectoryFlatSticky(t *testing.T, newStore Factory) {
	s := newStore(t)
	defer s.Close()
	ctx := context.Background()
	d := id(2)

	if _, err := s.DirectorySet(ctx, map[model.ID]model.Directory{d: {ID: d, Flat: true}}); err != nil {
		t.Fatalf("DirectorySet(flat): %v", err)
	}
	if _, err := s.DirectorySet(ctx, map[model.ID]model.Directory{d: {ID: d, Flat: false}}); err != nil {
		t.Fatalf("DirectorySet(unflat): %v", err)
	}

	got, err := s.DirectoryGet(ctx, []model.ID{d})
	if err != nil {
		t.Fatalf("DirectoryGet: %v", err)
	}
	assert.True(t, got[d].Flat, "Flat reverted to false, want sticky true")
}

func testDirectoryIterPages(t *testing.T, newStore Factory) {
	s := newStore(t)
	defer s.Close()
	ctx := context.Background()

	dirs := map[model.ID]model.Directory{}
	for i := byte(1); i <= 5; i++ {
		dirs[id(i)] = model.Directory{ID: id(i), Flat: false}
	}
	if _, err := s.DirectorySet(ctx, dirs); err != nil {
		t.Fatalf("DirectorySet: %v", err)
	}

	var cursor model.ID
	var seen []model.ID
	for {
		page, err := s.DirectoryIterNotFlattened(ctx, 2, cursor)
		if err != nil {
			t.Fatalf("DirectoryIterNotFlattened: %v", err)
		}
		if len(page) == 0 {
			break
		}
		seen = append(seen, page...)
		cursor = page[len(page)-1]
		if len(seen) > 10 {
			t.Fatal("pagination did not terminate")
		}
	}
	if len(seen) != 5 {
		t.Errorf("paged through %d ids, want 5", len(seen))
	}
}

func testRevisionOriginMerge(t *testing.T, newStore Factory) {
	s := newStore(t)
	defer s.Close()
	ctx := context.Background()
	r := id(3)
	o1, o2 := id(10), id(11)

	if _, err := s.RevisionSet(ctx, map[model.ID]model.Revision{r: {ID: r, Origin: o1}}); err != nil {
		t.Fatalf("RevisionSet(o1): %v", err)
	}
	if _, err := s.RevisionSet(ctx, map[model.ID]model.Revision{r: {ID: r}}); err != nil {
		t.Fatalf("RevisionSet(zero origin): %v", err)
	}
	got, err := s.RevisionGet(ctx, []model.ID{r})
	if err != nil {
		t.Fatalf("RevisionGet: %v", err)
	}
	if got[r].Origin != o1 {
		t.Errorf("zero-valued origin overwrote existing one: got %v, want %v", got[r].Origin, o1)
	}

	if _, err := s.RevisionSet(ctx, map[model.ID]model.Revision{r: {ID: r, Origin: o2}}); err != nil {
		t.Fatalf("RevisionSet(o2): %v", err)
	}
	got, err = s.RevisionGet(ctx, []model.ID{r})
	if err != nil {
		t.Fatalf("RevisionGet: %v", err)
	}
	if got[r].Origin != o2 {
		t.Errorf("non-zero origin did not overwrite: got %v, want %v", got[r].Origin, o2)
	}
}

func testOriginInsertIfAbsent(t *testing.T, newStore Factory) {
	s := newStore(t)
	defer s.Close()
	ctx := context.Background()
	o := id(4)

	if _, err := s.OriginSet(ctx, map[model.ID]string{o: "https://example.org/a.git"}); err != nil {
		t.Fatalf("OriginSet(first): %v", err)
	}
	if _, err := s.OriginSet(ctx, map[model.ID]string{o: "https://example.org/b.git"}); err != nil {
		t.Fatalf("OriginSet(second): %v", err)
	}
	got, err := s.OriginGet(ctx, []model.ID{o})
	if err != nil {
		t.Fatalf("OriginGet: %v", err)
	}
	if got[o] != "https://example.org/a.git" {
		t.Errorf("OriginSet overwrote an existing url: got %q", got[o])
	}
}

func testRelationAddIdempotent(t *testing.T, newStore Factory) {
	s := newStore(t)
	defer s.Close()
	ctx := context.Background()
	src, dst := id(5), id(6)
	edges := storage.RelationEdgeSet{src: {{Src: src, Dst: dst, Path: []byte("a/b")}}}

	if _, err := s.RelationAdd(ctx, model.CntInDir, edges); err != nil {
		t.Fatalf("RelationAdd(1): %v", err)
	}
	if _, err := s.RelationAdd(ctx, model.CntInDir, edges); err != nil {
		t.Fatalf("RelationAdd(2): %v", err)
	}

	got, err := s.RelationGet(ctx, model.CntInDir, []model.ID{src}, false)
	if err != nil {
		t.Fatalf("RelationGet: %v", err)
	}
	if len(got[src]) != 1 {
		t.Errorf("RelationAdd was not idempotent: got %d edges, want 1", len(got[src]))
	}
}

func testRelationGetReverse(t *testing.T, newStore Factory) {
	s := newStore(t)
	defer s.Close()
	ctx := context.Background()
	src, dst := id(7), id(8)
	edges := storage.RelationEdgeSet{src: {{Src: src, Dst: dst, Path: []byte("x")}}}

	if _, err := s.RelationAdd(ctx, model.DirInRev, edges); err != nil {
		t.Fatalf("RelationAdd: %v", err)
	}

	got, err := s.RelationGet(ctx, model.DirInRev, []model.ID{dst}, true)
	if err != nil {
		t.Fatalf("RelationGet(reverse): %v", err)
	}
	if len(got[dst]) != 1 || got[dst][0].Dst != src {
		t.Errorf("reverse lookup = %+v, want one edge back to %v", got[dst], src)
	}
}

func testContentFindFirstOrdering(t *testing.T, newStore Factory) {
	s := newStore(t)
	defer s.Close()
	ctx := context.Background()
	content := id(20)
	rev1, rev2 := id(21), id(22)
	early := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.RevisionSet(ctx, map[model.ID]model.Revision{
		rev1: {ID: rev1, Date: late},
		rev2: {ID: rev2, Date: early},
	}); err != nil {
		t.Fatalf("RevisionSet: %v", err)
	}
	edges := storage.RelationEdgeSet{content: {
		{Src: content, Dst: rev1, Path: []byte("a")},
		{Src: content, Dst: rev2, Path: []byte("b")},
	}}
	if _, err := s.RelationAdd(ctx, model.CntEarlyInRev, edges); err != nil {
		t.Fatalf("RelationAdd: %v", err)
	}

	first, err := s.ContentFindFirst(ctx, content)
	if err != nil {
		t.Fatalf("ContentFindFirst: %v", err)
	}
	if first == nil {
		t.Fatal("ContentFindFirst returned nil, want a result")
	}
	if first.Revision != rev2 {
		t.Errorf("ContentFindFirst picked %v, want earliest revision %v", first.Revision, rev2)
	}
}

func testContentFindAllLimit(t *testing.T, newStore Factory) {
	s := newStore(t)
	defer s.Close()
	ctx := context.Background()
	content := id(30)

	revs := map[model.ID]model.Revision{}
	edges := storage.RelationEdgeSet{}
	for i := byte(1); i <= 4; i++ {
		r := id(30 + i)
		revs[r] = model.Revision{ID: r, Date: time.Date(2020, time.Month(i), 1, 0, 0, 0, 0, time.UTC)}
		edges[content] = append(edges[content], model.RelationEdge{Src: content, Dst: r, Path: []byte{'a' + i}})
	}
	if _, err := s.RevisionSet(ctx, revs); err != nil {
		t.Fatalf("RevisionSet: %v", err)
	}
	if _, err := s.RelationAdd(ctx, model.CntEarlyInRev, edges); err != nil {
		t.Fatalf("RelationAdd: %v", err)
	}

	got, err := s.ContentFindAll(ctx, content, 2)
	if err != nil {
		t.Fatalf("ContentFindAll: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ContentFindAll with limit 2 returned %d results", len(got))
	}
}

func testContentFindFirstViaDirectory(t *testing.T, newStore Factory) {
	s := newStore(t)
	defer s.Close()
	ctx := context.Background()
	content := id(40)
	dir := id(41)
	rev := id(42)
	when := time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.RevisionSet(ctx, map[model.ID]model.Revision{rev: {ID: rev, Date: when}}); err != nil {
		t.Fatalf("RevisionSet: %v", err)
	}
	if _, err := s.RelationAdd(ctx, model.CntInDir, storage.RelationEdgeSet{
		content: {{Src: content, Dst: dir, Path: []byte("file.txt")}},
	}); err != nil {
		t.Fatalf("RelationAdd(CntInDir): %v", err)
	}
	if _, err := s.RelationAdd(ctx, model.DirInRev, storage.RelationEdgeSet{
		dir: {{Src: dir, Dst: rev, Path: []byte("sub")}},
	}); err != nil {
		t.Fatalf("RelationAdd(DirInRev): %v", err)
	}

	first, err := s.ContentFindFirst(ctx, content)
	if err != nil {
		t.Fatalf("ContentFindFirst: %v", err)
	}
	if first == nil {
		t.Fatal("ContentFindFirst returned nil, want a result via directory indirection")
	}
	if string(first.Path) != "sub/file.txt" {
		t.Errorf("ContentFindFirst path = %q, want %q", first.Path, "sub/file.txt")
	}
}
