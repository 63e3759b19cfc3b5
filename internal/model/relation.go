package model

// RelationKind names one of the five relation kinds of the provenance model
// (spec.md §3). Each is a set of edges, optionally carrying a path.
type RelationKind string

const (
	// CntEarlyInRev links a blob directly to a revision it occurs in, above
	// any isochrone frontier.
	CntEarlyInRev RelationKind = "content_in_revision"
	// CntInDir links a blob to the frontier directory it was flattened
	// under, path relative to that directory.
	CntInDir RelationKind = "content_in_directory"
	// DirInRev links a frontier directory to the revision it occurs in,
	// path relative to the revision root.
	DirInRev RelationKind = "directory_in_revision"
	// RevInOrg links a revision that is a head of some origin's snapshot to
	// that origin. Carries no path.
	RevInOrg RelationKind = "revision_in_origin"
	// RevBeforeRev links an ancestor revision to a descendant revision whose
	// history it appears in. Carries no path.
	RevBeforeRev RelationKind = "revision_before_revision"
)

// HasPath reports whether edges of this relation kind carry a path.
func (k RelationKind) HasPath() bool {
	switch k {
	case CntEarlyInRev, CntInDir, DirInRev:
		return true
	default:
		return false
	}
}

// RelationEdge is one edge of a relation: destination id plus an optional
// path (nil/empty when the relation kind does not carry one).
type RelationEdge struct {
	Src  ID
	Dst  ID
	Path []byte
}
