// Package archive declares the read-only interface the provenance core
// consumes to walk the Merkle DAG. Implementations (a direct database, an
// API client, a compressed-graph gRPC client, or a multiplexer over several
// of those) live outside this repository's core scope (spec.md §1); this
// package only fixes the contract and ships a couple of in-repo
// implementations used to exercise the core in tests.
package archive

import (
	"context"
	"time"

	"github.com/swh-go/provenance/internal/model"
)

// EntryType distinguishes the three kinds of directory entries the archive
// can return.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
	EntryRev  EntryType = "rev" // a submodule-like link to a revision
)

// DirEntry is one child of a directory, as returned by DirectoryLs.
type DirEntry struct {
	Name   []byte
	Target model.ID
	Type   EntryType
	Length int64 // file size; only meaningful when Type == EntryFile
}

// RevisionInfo is the subset of revision metadata the core needs: its root
// directory and author date.
type RevisionInfo struct {
	ID   model.ID
	Root model.ID
	Date time.Time
}

// ParentEdge is one outbound edge of the history graph: Child's parent is
// Parent.
type ParentEdge struct {
	Child  model.ID
	Parent model.ID
}

// Archive is the read-only interface onto the Merkle DAG, matching spec.md
// §6 exactly.
type Archive interface {
	// DirectoryLs lists the immediate children of dir, optionally filtering
	// out files below minsize bytes.
	DirectoryLs(ctx context.Context, dir model.ID, minsize int64) ([]DirEntry, error)

	// RevisionGetSomeOutboundEdges returns parent edges for rev. It may
	// return a subset of a revision's parents across separate calls to
	// different revisions, but for any single call it MUST return either
	// zero edges or ALL of rev's parent edges (spec.md §6).
	RevisionGetSomeOutboundEdges(ctx context.Context, rev model.ID) ([]ParentEdge, error)

	// RevisionsGet resolves revision ids to their root directory and date.
	// Revisions unknown to the archive are omitted from the result.
	RevisionsGet(ctx context.Context, ids []model.ID) (map[model.ID]RevisionInfo, error)

	// SnapshotGetHeads returns the revision ids a snapshot's branches
	// resolve to (releases already dereferenced to their target revision).
	SnapshotGetHeads(ctx context.Context, snapshot model.ID) ([]model.ID, error)
}
