// Package originwalk implements spec.md §4.6's origin-layer walker: for
// each origin snapshot, it resolves head revisions, walks their ancestry
// via a BFS HistoryGraph, and records REV_BEFORE_REV edges plus
// first-writer-wins preferred-origin assignments.
package originwalk

import (
	"context"
	"crypto/sha1"
	"fmt"

	"github.com/swh-go/provenance/internal/archive"
	"github.com/swh-go/provenance/internal/cache"
	"github.com/swh-go/provenance/internal/model"
)

// OriginEntry is one input to the walker: an origin URL and a snapshot id
// whose heads should be attributed to it.
type OriginEntry struct {
	URL        string
	SnapshotID model.ID
}

// OriginID derives the origin's id from its URL, matching the original's
// H(url) convention (a SHA-1 digest, same hash used for every other entity
// id in this system).
func OriginID(url string) model.ID {
	sum := sha1.Sum([]byte(url))
	var id model.ID
	copy(id[:], sum[:])
	return id
}

// Walker runs the origin-layer walk against one cache/archive pair.
type Walker struct {
	arc archive.Archive
	c   *cache.Cache

	// visitedHeads bounds BFS work across the whole walker lifetime by
	// remembering which revisions are already known heads of some origin.
	visitedHeads map[model.ID]bool
}

func New(arc archive.Archive, c *cache.Cache) *Walker {
	return &Walker{arc: arc, c: c, visitedHeads: make(map[model.ID]bool)}
}

// AddOrigins runs the walk for each entry in order (spec.md §4.6).
func (w *Walker) AddOrigins(ctx context.Context, entries []OriginEntry) error {
	for _, e := range entries {
		if err := w.addOrigin(ctx, e); err != nil {
			return fmt.Errorf("originwalk: %s: %w", e.URL, err)
		}
	}
	return nil
}

func (w *Walker) addOrigin(ctx context.Context, e OriginEntry) error {
	originID := OriginID(e.URL)
	w.c.SetOrigin(originID, e.URL)

	heads, err := w.arc.SnapshotGetHeads(ctx, e.SnapshotID)
	if err != nil {
		return fmt.Errorf("snapshot heads: %w", err)
	}

	for _, h := range heads {
		if err := w.processHead(ctx, h, originID); err != nil {
			return err
		}
		w.c.AddRelation(model.RevInOrg, h, originID, nil)
	}
	return nil
}

func (w *Walker) processHead(ctx context.Context, head, originID model.ID) error {
	alreadyHead, err := w.isKnownHead(ctx, head)
	if err != nil {
		return err
	}
	if alreadyHead {
		return nil
	}

	graph, err := w.buildHistoryGraph(ctx, head)
	if err != nil {
		return err
	}

	for ancestor := range graph.ancestors {
		w.c.AddRelation(model.RevBeforeRev, ancestor, head, nil)
		if err := w.setPreferredOriginIfUnset(ctx, ancestor, originID); err != nil {
			return err
		}
	}
	if err := w.setPreferredOriginIfUnset(ctx, head, originID); err != nil {
		return err
	}
	w.visitedHeads[head] = true
	return nil
}

// setPreferredOriginIfUnset implements the first-writer-wins policy of
// spec.md §4.6: a revision's preferred origin, once set by any writer,
// is never overwritten by a later one.
func (w *Walker) setPreferredOriginIfUnset(ctx context.Context, rev, originID model.ID) error {
	current, err := w.c.RevisionGet(ctx, rev)
	if err != nil {
		return err
	}
	if !current.Origin.IsZero() {
		return nil
	}
	w.c.SetRevisionPreferredOrigin(rev, originID)
	return nil
}

func (w *Walker) isKnownHead(ctx context.Context, rev model.ID) (bool, error) {
	if w.visitedHeads[rev] {
		return true, nil
	}
	edges, err := w.c.RelationGetDirect(ctx, model.RevInOrg, rev)
	if err != nil {
		return false, err
	}
	return len(edges) > 0, nil
}

// historyGraph is the BFS result: ancestors reachable from a head, with
// (descendant, ancestor) edges (spec.md §4.6).
type historyGraph struct {
	ancestors map[model.ID]bool
}

// buildHistoryGraph runs BFS from head following
// RevisionGetSomeOutboundEdges, deduping via a visited set to bound work.
func (w *Walker) buildHistoryGraph(ctx context.Context, head model.ID) (*historyGraph, error) {
	g := &historyGraph{ancestors: make(map[model.ID]bool)}
	visited := map[model.ID]bool{head: true}
	queue := []model.ID{head}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		edges, err := w.arc.RevisionGetSomeOutboundEdges(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("outbound edges of %s: %w", cur, err)
		}
		for _, e := range edges {
			if visited[e.Parent] {
				continue
			}
			visited[e.Parent] = true
			g.ancestors[e.Parent] = true
			queue = append(queue, e.Parent)
		}
	}
	return g, nil
}
