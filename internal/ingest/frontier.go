package ingest

import (
	"time"

	"github.com/swh-go/provenance/internal/isochrone"
)

// isNewFrontier implements spec.md §4.4's is_new_frontier policy: whether
// node n, which is not already a known frontier, should be promoted to one
// for the revision dated revDate.
func isNewFrontier(n *isochrone.Node, revDate time.Time, opt Options) bool {
	if n.Depth < opt.MinDepth {
		return false
	}
	if !n.MaxDate.Before(revDate) {
		return false
	}

	if opt.Lower {
		// A frontier with nothing to deduplicate is pointless.
		return n.HasReachableBlob()
	}

	// lower=false: only promote the deepest eligible directory in a chain —
	// if some descendant is itself a better (deeper) candidate, defer to it.
	return !n.HasDescendantFrontierCandidate(revDate, opt.MinDepth)
}
