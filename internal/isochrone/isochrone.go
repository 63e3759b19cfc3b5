// Package isochrone builds the isochrone-frontier tree of spec.md §4.3: a
// two-pass DFS over a revision's root directory that lets ingestion
// recognize already-known subtrees ("frontiers") and avoid re-emitting
// blob-level provenance for them.
package isochrone

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/swh-go/provenance/internal/archive"
	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
)

// utcMin is the floor maxdate propagation folds into, standing in for the
// original's UTCMIN sentinel: any real revision date sorts after it.
var utcMin = time.Unix(0, 0).UTC()

// Node is one directory in the isochrone tree (spec.md §4.3's IsochroneNode).
// Files are not represented as nodes: their earliest dates live in fdates,
// keyed by content id, since files never recurse further.
type Node struct {
	Entry   model.ID // directory id
	Depth   int
	DBDate   time.Time // zero if unknown
	MaxDate  time.Time // zero until pass 2 completes
	Invalid  bool
	Path     []byte // relative to the revision root
	Files    []archive.DirEntry
	Children []*Node
}

// HasDBDate reports whether this node is a possible existing frontier.
func (n *Node) HasDBDate() bool { return !n.Invalid && !n.DBDate.IsZero() }

// HasReachableBlob reports whether any content is reachable under n: a
// frontier with nothing to deduplicate is not worth promoting (spec.md
// §4.4's is_new_frontier, lower=true branch).
func (n *Node) HasReachableBlob() bool {
	if len(n.Files) > 0 {
		return true
	}
	for _, c := range n.Children {
		if c.HasReachableBlob() {
			return true
		}
	}
	return false
}

// HasDescendantFrontierCandidate reports whether some strict descendant of
// n is itself eligible to become a frontier at depth ≥ mindepth with
// maxdate < revDate — used by the lower=false branch of is_new_frontier,
// which only promotes the deepest eligible directory in a chain.
func (n *Node) HasDescendantFrontierCandidate(revDate time.Time, mindepth int) bool {
	for _, c := range n.Children {
		if !c.HasDBDate() && c.Depth >= mindepth && c.MaxDate.Before(revDate) {
			return true
		}
		if c.HasDescendantFrontierCandidate(revDate, mindepth) {
			return true
		}
	}
	return false
}

// Tree is the output of Build: the root node, plus the earliest date seen
// for each file content across the whole tree (fdates in spec.md §4.3).
type Tree struct {
	Root   *Node
	FDates map[model.ID]time.Time
}

// Config bounds the builder (spec.md §4.3's minsize and max_directory_size).
type Config struct {
	MinSize          int64
	MaxDirectorySize int
}

// ErrDirectoryTooLarge matches storage.ErrDirectoryTooLarge for callers that
// only import this package.
var ErrDirectoryTooLarge = storage.ErrDirectoryTooLarge

// Build runs both passes of spec.md §4.3 for revision date d against root.
func Build(ctx context.Context, arc archive.Archive, store storage.Storage, root model.ID, d time.Time, cfg Config) (*Tree, error) {
	b := &builder{arc: arc, store: store, cfg: cfg, fdates: make(map[model.ID]time.Time), pushed: 0}

	rootDates, err := store.DirectoryGet(ctx, []model.ID{root})
	if err != nil {
		return nil, fmt.Errorf("isochrone: fetch root dbdate: %w", err)
	}
	rootNode := &Node{Entry: root, Depth: 0, DBDate: rootDates[root].Date, Path: nil}
	b.pushed++

	if err := b.constructSubtree(ctx, rootNode, d); err != nil {
		return nil, err
	}
	propagateMaxdates(rootNode, b.fdates, d)

	return &Tree{Root: rootNode, FDates: b.fdates}, nil
}

type builder struct {
	arc    archive.Archive
	store  storage.Storage
	cfg    Config
	fdates map[model.ID]time.Time
	pushed int
}

// constructSubtree implements pass 1: DFS, pruned at known frontiers,
// invalidating out-of-order ones.
func (b *builder) constructSubtree(ctx context.Context, n *Node, d time.Time) error {
	knownFrontier := n.HasDBDate()
	outOfOrder := knownFrontier && !n.DBDate.Before(d)

	if outOfOrder {
		n.invalidate()
		knownFrontier = false
	}

	if knownFrontier {
		// Do not descend; maxdate will be set to dbdate in pass 2.
		return nil
	}

	entries, err := b.arc.DirectoryLs(ctx, n.Entry, b.cfg.MinSize)
	if err != nil {
		return fmt.Errorf("isochrone: list %s: %w", n.Entry, err)
	}

	var subdirs []archive.DirEntry
	var newTargets []model.ID
	for _, e := range entries {
		switch e.Type {
		case archive.EntryDir:
			subdirs = append(subdirs, e)
		default:
			n.Files = append(n.Files, e)
			if _, ok := b.fdates[e.Target]; !ok {
				newTargets = append(newTargets, e.Target)
			}
		}
	}

	if len(newTargets) > 0 {
		stored, err := b.store.ContentGet(ctx, newTargets)
		if err != nil {
			return fmt.Errorf("isochrone: bulk content dbdate fetch: %w", err)
		}
		for _, target := range newTargets {
			// fdates holds each content's known stored earliest date,
			// defaulting to the revision date d only when storage has
			// never seen it before (spec.md §4.3 pass 1).
			if date, ok := stored[target]; ok && !date.IsZero() {
				b.fdates[target] = date
			} else {
				b.fdates[target] = d
			}
		}
	}

	if len(subdirs) > 0 {
		ids := make([]model.ID, len(subdirs))
		for i, e := range subdirs {
			ids[i] = e.Target
		}
		dbdates, err := b.store.DirectoryGet(ctx, ids)
		if err != nil {
			return fmt.Errorf("isochrone: bulk dbdate fetch: %w", err)
		}
		for _, e := range subdirs {
			b.pushed++
			if b.cfg.MaxDirectorySize > 0 && b.pushed > b.cfg.MaxDirectorySize {
				return fmt.Errorf("isochrone: %w", ErrDirectoryTooLarge)
			}
			child := &Node{
				Entry:  e.Target,
				Depth:  n.Depth + 1,
				DBDate: dbdates[e.Target].Date,
				Path:   model.Join(n.Path, []byte(e.Name)),
			}
			n.Children = append(n.Children, child)
			if err := b.constructSubtree(ctx, child, d); err != nil {
				return err
			}
		}
	}

	return nil
}

// invalidate drops dbdate/maxdate and marks the node invalid, per spec.md
// §4.3's out-of-order invalidation rule.
func (n *Node) invalidate() {
	n.Invalid = true
	n.DBDate = time.Time{}
	n.MaxDate = time.Time{}
}

// propagateMaxdates implements pass 2: bottom-up, purely arithmetic over
// the already-built tree.
func propagateMaxdates(n *Node, fdates map[model.ID]time.Time, revDate time.Time) {
	for _, c := range n.Children {
		propagateMaxdates(c, fdates, revDate)
	}

	if n.HasDBDate() {
		n.MaxDate = n.DBDate
		return
	}

	max := utcMin
	for _, c := range n.Children {
		if c.MaxDate.After(max) {
			max = c.MaxDate
		}
	}
	for _, f := range n.Files {
		fd, ok := fdates[f.Target]
		if !ok {
			fd = revDate
		}
		if fd.After(max) {
			max = fd
		}
	}
	n.MaxDate = max
}

// Walk visits every node of the tree in deterministic, depth-first,
// name-ordered fashion — useful for tests and for callers that want
// reproducible output.
func Walk(n *Node, visit func(*Node)) {
	visit(n)
	children := make([]*Node, len(n.Children))
	copy(children, n.Children)
	sort.Slice(children, func(i, j int) bool { return string(children[i].Path) < string(children[j].Path) })
	for _, c := range children {
		Walk(c, visit)
	}
}
