// Package multiplexer implements the "sum types over dynamic dispatch"
// design of spec.md §9: several archive.Archive backends tried in order,
// returning the first non-empty result. Grounded on the original's
// swh/provenance/multiplexer/archive.py.
package multiplexer

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/swh-go/provenance/internal/archive"
	"github.com/swh-go/provenance/internal/metrics"
	"github.com/swh-go/provenance/internal/model"
)

// Multiplexer tries each backend in order and returns the first backend's
// non-empty answer, counting operations per backend for observability.
type Multiplexer struct {
	backends []archive.Archive
	names    []string
	rec      metrics.Recorder

	// lsGroup collapses duplicate concurrent DirectoryLs calls for the same
	// (dir, minsize) pair into a single backend round trip.
	lsGroup singleflight.Group
}

// New builds a Multiplexer over backends, named positionally for metrics
// tags ("backend-0", "backend-1", ...) unless overridden via WithNames.
func New(rec metrics.Recorder, backends ...archive.Archive) *Multiplexer {
	if rec == nil {
		rec = metrics.Noop{}
	}
	names := make([]string, len(backends))
	for i := range backends {
		names[i] = fmt.Sprintf("backend-%d", i)
	}
	return &Multiplexer{backends: backends, names: names, rec: rec}
}

// WithNames overrides the metrics tag used per backend position.
func (m *Multiplexer) WithNames(names []string) *Multiplexer {
	if len(names) == len(m.backends) {
		m.names = names
	}
	return m
}

func (m *Multiplexer) tag(i int, op string) map[string]string {
	return map[string]string{"backend": m.names[i], "op": op}
}

func (m *Multiplexer) DirectoryLs(ctx context.Context, dir model.ID, minsize int64) ([]archive.DirEntry, error) {
	key := dir.String() + ":" + strconv.FormatInt(minsize, 10)
	v, err, _ := m.lsGroup.Do(key, func() (interface{}, error) {
		return m.directoryLs(ctx, dir, minsize)
	})
	if err != nil {
		return nil, err
	}
	return v.([]archive.DirEntry), nil
}

func (m *Multiplexer) directoryLs(ctx context.Context, dir model.ID, minsize int64) ([]archive.DirEntry, error) {
	var lastErr error
	for i, b := range m.backends {
		m.rec.Increment("archive_operations", m.tag(i, "directory_ls"))
		entries, err := b.DirectoryLs(ctx, dir, minsize)
		if err != nil {
			lastErr = err
			continue
		}
		if len(entries) > 0 {
			return entries, nil
		}
	}
	return nil, lastErr
}

func (m *Multiplexer) RevisionGetSomeOutboundEdges(ctx context.Context, rev model.ID) ([]archive.ParentEdge, error) {
	var lastErr error
	for i, b := range m.backends {
		m.rec.Increment("archive_operations", m.tag(i, "revision_outbound_edges"))
		edges, err := b.RevisionGetSomeOutboundEdges(ctx, rev)
		if err != nil {
			lastErr = err
			continue
		}
		if len(edges) > 0 {
			return edges, nil
		}
	}
	return nil, lastErr
}

func (m *Multiplexer) RevisionsGet(ctx context.Context, ids []model.ID) (map[model.ID]archive.RevisionInfo, error) {
	result := make(map[model.ID]archive.RevisionInfo, len(ids))
	remaining := ids
	var lastErr error
	for i, b := range m.backends {
		if len(remaining) == 0 {
			break
		}
		m.rec.Increment("archive_operations", m.tag(i, "revisions_get"))
		found, err := b.RevisionsGet(ctx, remaining)
		if err != nil {
			lastErr = err
			continue
		}
		next := remaining[:0:0]
		for _, id := range remaining {
			if info, ok := found[id]; ok {
				result[id] = info
			} else {
				next = append(next, id)
			}
		}
		remaining = next
	}
	if len(result) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return result, nil
}

func (m *Multiplexer) SnapshotGetHeads(ctx context.Context, snapshot model.ID) ([]model.ID, error) {
	var lastErr error
	for i, b := range m.backends {
		m.rec.Increment("archive_operations", m.tag(i, "snapshot_get_heads"))
		heads, err := b.SnapshotGetHeads(ctx, snapshot)
		if err != nil {
			lastErr = err
			continue
		}
		if len(heads) > 0 {
			return heads, nil
		}
	}
	return nil, lastErr
}

var _ archive.Archive = (*Multiplexer)(nil)
