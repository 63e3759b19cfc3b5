// Package storage defines the provenance storage backend contract of
// spec.md §4.1: the minimal entity/relation read-write API that the
// write-through cache flushes into, and the two query procedures
// content_find_first / content_find_all. Two concrete backends live
// alongside this interface: memstore (an in-memory reference
// implementation used by tests and small deployments) and sqlstore (a
// MySQL/Dolt-backed implementation, see SPEC_FULL.md §3).
package storage

import (
	"context"
	"time"

	"github.com/swh-go/provenance/internal/model"
)

// PathMode selects whether path-carrying relations actually carry a path,
// trading answer quality for space (spec.md §4.1, "with-path" vs
// "without-path").
type PathMode int

const (
	WithPath PathMode = iota
	WithoutPath
)

// StorageMode selects row layout: one row per edge, or one row per source
// with parallel destination/location arrays (spec.md §4.1, "normalized" vs
// "denormalized").
type StorageMode int

const (
	Normalized StorageMode = iota
	Denormalized
)

// Flavor reports a backend's storage/path configuration, which callers can
// inspect but which never changes the method contract below. The Path mode
// is only recorded and reported: neither memstore nor sqlstore drops paths
// in WithoutPath mode, so stored relation paths come back in either mode.
type Flavor struct {
	Path    PathMode
	Storage StorageMode
}

// ProvenanceResult is the answer shape of content_find_first/_all: the
// lexicographically ordered tuple (date, revision, origin, path) of
// spec.md §4.1/§4.7.
type ProvenanceResult struct {
	Content  model.ID
	Revision model.ID
	Date     time.Time
	Origin   string // empty when the revision has no preferred origin
	Path     []byte // the stored relation path; returned in WithoutPath mode too
}

// RelationEdgeSet is what relation_get / relation_get_all return: for a
// given source id, the set of (destination, path) edges.
type RelationEdgeSet map[model.ID][]model.RelationEdge

// Storage is the full provenance storage backend contract (spec.md §4.1).
// Every setter returns a bool: false signals a transient failure the
// caller MUST retry (spec.md §7); getters never mutate and never fail
// except for backend unavailability (returned as an error, not a bool).
type Storage interface {
	Flavor() Flavor

	ContentSetDate(ctx context.Context, dates map[model.ID]time.Time) (bool, error)
	ContentGet(ctx context.Context, ids []model.ID) (map[model.ID]time.Time, error)

	DirectorySet(ctx context.Context, data map[model.ID]model.Directory) (bool, error)
	DirectoryGet(ctx context.Context, ids []model.ID) (map[model.ID]model.Directory, error)
	// DirectoryIterNotFlattened pages through unflattened directories in
	// id order, starting strictly after startID (zero ID to start at the
	// beginning).
	DirectoryIterNotFlattened(ctx context.Context, limit int, startID model.ID) ([]model.ID, error)

	RevisionSet(ctx context.Context, data map[model.ID]model.Revision) (bool, error)
	RevisionGet(ctx context.Context, ids []model.ID) (map[model.ID]model.Revision, error)

	OriginSet(ctx context.Context, urls map[model.ID]string) (bool, error)
	OriginGet(ctx context.Context, ids []model.ID) (map[model.ID]string, error)

	LocationAdd(ctx context.Context, paths map[model.ID][]byte) (bool, error)

	RelationAdd(ctx context.Context, kind model.RelationKind, edges RelationEdgeSet) (bool, error)
	RelationGet(ctx context.Context, kind model.RelationKind, ids []model.ID, reverse bool) (RelationEdgeSet, error)
	RelationGetAll(ctx context.Context, kind model.RelationKind) (RelationEdgeSet, error)

	ContentFindFirst(ctx context.Context, id model.ID) (*ProvenanceResult, error)
	ContentFindAll(ctx context.Context, id model.ID, limit int) ([]ProvenanceResult, error)

	Close() error
}
