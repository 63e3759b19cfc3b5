// Package memstore is an in-memory reference implementation of
// storage.Storage, grounded on the teacher's internal/storage/memory
// backend style (mutex-guarded maps, no external process). It is suitable
// for tests and for small archives; sqlstore is the production-scale
// backend (SPEC_FULL.md §3).
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
)

// Store is a fully in-memory, goroutine-safe storage.Storage.
type Store struct {
	mu sync.RWMutex

	flavor storage.Flavor

	contents   map[model.ID]time.Time
	dirs       map[model.ID]model.Directory
	revisions  map[model.ID]model.Revision
	origins    map[model.ID]string
	locations  map[model.ID][]byte

	relations map[model.RelationKind]map[model.ID][]model.RelationEdge
}

// New builds an empty in-memory store with the given flavor. Flavor.Storage
// is accepted for interface symmetry with sqlstore but has no observable
// effect here: an in-memory map has no row-layout concept.
func New(flavor storage.Flavor) *Store {
	s := &Store{
		flavor:    flavor,
		contents:  make(map[model.ID]time.Time),
		dirs:      make(map[model.ID]model.Directory),
		revisions: make(map[model.ID]model.Revision),
		origins:   make(map[model.ID]string),
		locations: make(map[model.ID][]byte),
		relations: make(map[model.RelationKind]map[model.ID][]model.RelationEdge),
	}
	for _, k := range []model.RelationKind{
		model.CntEarlyInRev, model.CntInDir, model.DirInRev, model.RevInOrg, model.RevBeforeRev,
	} {
		s.relations[k] = make(map[model.ID][]model.RelationEdge)
	}
	return s
}

func (s *Store) Flavor() storage.Flavor { return s.flavor }

// ContentSetDate performs a date-min merge per key (invariant I4).
func (s *Store) ContentSetDate(_ context.Context, dates map[model.ID]time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range dates {
		if cur, ok := s.contents[id]; !ok || d.Before(cur) {
			s.contents[id] = d
		}
	}
	return true, nil
}

func (s *Store) ContentGet(_ context.Context, ids []model.ID) (map[model.ID]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ID]time.Time, len(ids))
	for _, id := range ids {
		if d, ok := s.contents[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

// DirectorySet performs a date-min merge and ORs the flat flag to true
// (invariant I2, I6): once true it never reverses.
func (s *Store) DirectorySet(_ context.Context, data map[model.ID]model.Directory) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range data {
		cur, ok := s.dirs[id]
		if !ok {
			s.dirs[id] = d
			continue
		}
		merged := cur
		if !d.Date.IsZero() && (cur.Date.IsZero() || d.Date.Before(cur.Date)) {
			merged.Date = d.Date
		}
		merged.Flat = cur.Flat || d.Flat
		s.dirs[id] = merged
	}
	return true, nil
}

func (s *Store) DirectoryGet(_ context.Context, ids []model.ID) (map[model.ID]model.Directory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ID]model.Directory, len(ids))
	for _, id := range ids {
		if d, ok := s.dirs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (s *Store) DirectoryIterNotFlattened(_ context.Context, limit int, startID model.ID) ([]model.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]model.ID, 0, len(s.dirs))
	for id, d := range s.dirs {
		if !d.Flat && id.String() > startID.String() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// RevisionSet performs a date-min merge; origin is last-writer-wins but
// only applied when given non-zero (spec.md §4.1).
func (s *Store) RevisionSet(_ context.Context, data map[model.ID]model.Revision) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range data {
		cur, ok := s.revisions[id]
		if !ok {
			s.revisions[id] = r
			continue
		}
		merged := cur
		if !r.Date.IsZero() && (cur.Date.IsZero() || r.Date.Before(cur.Date)) {
			merged.Date = r.Date
		}
		if !r.Origin.IsZero() {
			merged.Origin = r.Origin
		}
		s.revisions[id] = merged
	}
	return true, nil
}

func (s *Store) RevisionGet(_ context.Context, ids []model.ID) (map[model.ID]model.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ID]model.Revision, len(ids))
	for _, id := range ids {
		if r, ok := s.revisions[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

// OriginSet is insert-if-absent (spec.md §4.1): an origin's URL is
// immutable once set.
func (s *Store) OriginSet(_ context.Context, urls map[model.ID]string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, url := range urls {
		if _, ok := s.origins[id]; !ok {
			s.origins[id] = url
		}
	}
	return true, nil
}

func (s *Store) OriginGet(_ context.Context, ids []model.ID) (map[model.ID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ID]string, len(ids))
	for _, id := range ids {
		if u, ok := s.origins[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *Store) LocationAdd(_ context.Context, paths map[model.ID][]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range paths {
		if _, ok := s.locations[id]; !ok {
			s.locations[id] = p
		}
	}
	return true, nil
}

// RelationAdd inserts ensuring set semantics (idempotent per spec.md §4.5):
// inserting an already-present (dst, path) edge for src is a no-op.
func (s *Store) RelationAdd(_ context.Context, kind model.RelationKind, edges storage.RelationEdgeSet) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.relations[kind]
	for src, es := range edges {
		existing := bucket[src]
		for _, e := range es {
			dup := false
			for _, cur := range existing {
				if cur.Dst == e.Dst && string(cur.Path) == string(e.Path) {
					dup = true
					break
				}
			}
			if !dup {
				existing = append(existing, model.RelationEdge{Src: src, Dst: e.Dst, Path: e.Path})
			}
		}
		bucket[src] = existing
	}
	return true, nil
}

func (s *Store) RelationGet(_ context.Context, kind model.RelationKind, ids []model.ID, reverse bool) (storage.RelationEdgeSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(storage.RelationEdgeSet)
	if !reverse {
		bucket := s.relations[kind]
		for _, id := range ids {
			if es, ok := bucket[id]; ok {
				out[id] = append(out[id], es...)
			}
		}
		return out, nil
	}
	// Reverse lookup: ids name destination entities; the result is keyed by
	// that destination, with each edge's Dst field holding the matching
	// source id, mirroring relation_get's Dict[Sha1Git, Set[RelationData]]
	// shape from the other direction.
	want := make(map[model.ID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for src, es := range s.relations[kind] {
		for _, e := range es {
			if want[e.Dst] {
				out[e.Dst] = append(out[e.Dst], model.RelationEdge{Src: e.Dst, Dst: src, Path: e.Path})
			}
		}
	}
	return out, nil
}

func (s *Store) RelationGetAll(_ context.Context, kind model.RelationKind) (storage.RelationEdgeSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(storage.RelationEdgeSet, len(s.relations[kind]))
	for src, es := range s.relations[kind] {
		cp := make([]model.RelationEdge, len(es))
		copy(cp, es)
		out[src] = cp
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

var _ storage.Storage = (*Store)(nil)
