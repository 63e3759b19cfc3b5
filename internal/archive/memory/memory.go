// Package memory implements archive.Archive entirely in memory. It exists
// to drive the core subsystems' tests without a real Merkle DAG backend; it
// is never the production archive (spec.md §1 keeps that external).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/swh-go/provenance/internal/archive"
	"github.com/swh-go/provenance/internal/model"
)

// Archive is a fully in-memory, goroutine-safe Archive implementation
// populated directly by tests via AddDirectory / AddRevision / AddSnapshot.
type Archive struct {
	mu          sync.RWMutex
	dirs        map[model.ID][]archive.DirEntry
	revisions   map[model.ID]archive.RevisionInfo
	parentEdges map[model.ID][]archive.ParentEdge
	snapshots   map[model.ID][]model.ID
}

// New returns an empty in-memory archive.
func New() *Archive {
	return &Archive{
		dirs:        make(map[model.ID][]archive.DirEntry),
		revisions:   make(map[model.ID]archive.RevisionInfo),
		parentEdges: make(map[model.ID][]archive.ParentEdge),
		snapshots:   make(map[model.ID][]model.ID),
	}
}

// AddDirectory registers dir's children, replacing any previous entry.
func (a *Archive) AddDirectory(dir model.ID, entries []archive.DirEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirs[dir] = entries
}

// AddRevision registers a revision's root directory, date and parents.
func (a *Archive) AddRevision(info archive.RevisionInfo, parents []model.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revisions[info.ID] = info
	edges := make([]archive.ParentEdge, 0, len(parents))
	for _, p := range parents {
		edges = append(edges, archive.ParentEdge{Child: info.ID, Parent: p})
	}
	a.parentEdges[info.ID] = edges
}

// AddSnapshot registers the head revisions a snapshot's branches resolve to.
func (a *Archive) AddSnapshot(snapshot model.ID, heads []model.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots[snapshot] = heads
}

// DirectoryLs lists dir's children, applying the minsize filter to files.
func (a *Archive) DirectoryLs(_ context.Context, dir model.ID, minsize int64) ([]archive.DirEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entries, ok := a.dirs[dir]
	if !ok {
		// Archive data gap: treat as empty, never an error (spec.md §7).
		return nil, nil
	}
	if minsize <= 0 {
		out := make([]archive.DirEntry, len(entries))
		copy(out, entries)
		return out, nil
	}
	out := make([]archive.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type == archive.EntryFile && e.Length < minsize {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// RevisionGetSomeOutboundEdges returns rev's parent edges, or nil if rev is
// unknown (archive data gap, never an error per spec.md §7).
func (a *Archive) RevisionGetSomeOutboundEdges(_ context.Context, rev model.ID) ([]archive.ParentEdge, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	edges, ok := a.parentEdges[rev]
	if !ok {
		return nil, nil
	}
	out := make([]archive.ParentEdge, len(edges))
	copy(out, edges)
	return out, nil
}

// RevisionsGet resolves ids to root directory and date, omitting unknowns.
func (a *Archive) RevisionsGet(_ context.Context, ids []model.ID) (map[model.ID]archive.RevisionInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[model.ID]archive.RevisionInfo, len(ids))
	for _, id := range ids {
		if info, ok := a.revisions[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

// SnapshotGetHeads returns the head revisions of snapshot, deterministically
// ordered (test fixtures rely on reproducible iteration order).
func (a *Archive) SnapshotGetHeads(_ context.Context, snapshot model.ID) ([]model.ID, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	heads, ok := a.snapshots[snapshot]
	if !ok {
		return nil, fmt.Errorf("memory archive: unknown snapshot %s", snapshot)
	}
	out := make([]model.ID, len(heads))
	copy(out, heads)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

var _ archive.Archive = (*Archive)(nil)
