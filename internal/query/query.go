// Package query is the thin facade spec.md §4.7 calls the "query engine":
// it adapts storage.Storage's content_find_first/_all to hex-id
// input/output for CLI and API consumers.
package query

import (
	"context"
	"fmt"

	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
)

// Result is one provenance answer, with Content/Revision rendered as
// hex ids ready for display.
type Result struct {
	Content  string
	Revision string
	Date     string // RFC3339
	Origin   string
	Path     string
}

// Engine answers provenance queries against a single storage backend.
type Engine struct {
	store storage.Storage
}

func New(store storage.Storage) *Engine { return &Engine{store: store} }

// FindFirst implements content_find_first for a hex content id.
func (e *Engine) FindFirst(ctx context.Context, contentHex string) (*Result, error) {
	id, err := model.ParseID(contentHex)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	r, err := e.store.ContentFindFirst(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	return toResult(*r), nil
}

// FindAll implements content_find_all for a hex content id, bounded by
// limit (0 means unbounded).
func (e *Engine) FindAll(ctx context.Context, contentHex string, limit int) ([]Result, error) {
	id, err := model.ParseID(contentHex)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	rows, err := e.store.ContentFindAll(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(rows))
	for i, r := range rows {
		out[i] = *toResult(r)
	}
	return out, nil
}

func toResult(r storage.ProvenanceResult) *Result {
	return &Result{
		Content:  r.Content.String(),
		Revision: r.Revision.String(),
		Date:     r.Date.UTC().Format("2006-01-02T15:04:05Z"),
		Origin:   r.Origin,
		Path:     string(r.Path),
	}
}
