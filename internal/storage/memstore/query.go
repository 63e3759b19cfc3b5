package memstore

import (
	"context"
	"sort"

	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
)

// candidates implements the union of spec.md §4.7's two queries: direct
// CNT_EARLY_IN_REV edges, and indirect CNT_IN_DIR ⋈ DIR_IN_REV edges with
// path composed per model.JoinDirPath.
func (s *Store) candidates(id model.ID) []storage.ProvenanceResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.ProvenanceResult

	for _, e := range s.relations[model.CntEarlyInRev][id] {
		rev, ok := s.revisions[e.Dst]
		if !ok || rev.Date.IsZero() {
			continue
		}
		out = append(out, storage.ProvenanceResult{
			Content:  id,
			Revision: e.Dst,
			Date:     rev.Date,
			Origin:   s.origins[rev.Origin],
			Path:     e.Path,
		})
	}

	for _, e := range s.relations[model.CntInDir][id] {
		dirID := e.Dst
		for _, dirEdge := range s.relations[model.DirInRev][dirID] {
			rev, ok := s.revisions[dirEdge.Dst]
			if !ok || rev.Date.IsZero() {
				continue
			}
			out = append(out, storage.ProvenanceResult{
				Content:  id,
				Revision: dirEdge.Dst,
				Date:     rev.Date,
				Origin:   s.origins[rev.Origin],
				Path:     model.JoinDirPath(dirEdge.Path, e.Path),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// less orders results by (date, revision, origin, path), the tuple spec.md
// §4.1 and §4.7 specify for content_find_first/_all.
func less(a, b storage.ProvenanceResult) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Revision != b.Revision {
		return a.Revision.String() < b.Revision.String()
	}
	if a.Origin != b.Origin {
		return a.Origin < b.Origin
	}
	return string(a.Path) < string(b.Path)
}

func (s *Store) ContentFindFirst(_ context.Context, id model.ID) (*storage.ProvenanceResult, error) {
	cands := s.candidates(id)
	if len(cands) == 0 {
		return nil, nil
	}
	return &cands[0], nil
}

func (s *Store) ContentFindAll(_ context.Context, id model.ID, limit int) ([]storage.ProvenanceResult, error) {
	cands := s.candidates(id)
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}
