// Package flatten implements spec.md §4.5's directory flattener: a DFS over
// a directory that emits CNT_IN_DIR for every blob beneath it, relative to
// that directory, then marks it flat.
package flatten

import (
	"context"
	"fmt"

	"github.com/swh-go/provenance/internal/archive"
	"github.com/swh-go/provenance/internal/cache"
	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
)

// Directory implements directory_flatten(D): walk D over the archive,
// emitting CNT_IN_DIR(blob, D, normalize(path)) for each blob found, then
// mark D flat at its current cached date.
func Directory(ctx context.Context, arc archive.Archive, c *cache.Cache, dir model.ID) error {
	if err := walk(ctx, arc, c, dir, dir, nil); err != nil {
		return fmt.Errorf("flatten: %s: %w", dir, err)
	}
	current, err := c.DirectoryGet(ctx, dir)
	if err != nil {
		return err
	}
	c.SetDirectory(dir, current.Date, true)
	return nil
}

func walk(ctx context.Context, arc archive.Archive, c *cache.Cache, root, cur model.ID, path []byte) error {
	entries, err := arc.DirectoryLs(ctx, cur, 0)
	if err != nil {
		return err
	}
	for _, e := range entries {
		childPath := model.Join(path, e.Name)
		switch e.Type {
		case archive.EntryDir:
			if err := walk(ctx, arc, c, root, e.Target, childPath); err != nil {
				return err
			}
		case archive.EntryFile:
			c.AddRelation(model.CntInDir, e.Target, root, model.Normalize(childPath))
		}
	}
	return nil
}

// Range implements directory_flatten_range(start_id, end_id, minsize):
// pages through storage's not-flattened cursor, flattening each batch until
// the cursor reaches end_id or runs out of directories (spec.md §4.5).
func Range(ctx context.Context, arc archive.Archive, store storage.Storage, c *cache.Cache, start, end model.ID, pageSize int) error {
	cursor := start
	for {
		ids, err := store.DirectoryIterNotFlattened(ctx, pageSize, cursor)
		if err != nil {
			return fmt.Errorf("flatten: range cursor at %s: %w", cursor, err)
		}
		if len(ids) == 0 {
			return nil
		}
		for _, id := range ids {
			if !end.IsZero() && id.String() >= end.String() {
				return nil
			}
			if err := Directory(ctx, arc, c, id); err != nil {
				return err
			}
		}
		cursor = ids[len(ids)-1]
		if err := c.FlushIfNecessary(ctx); err != nil {
			return err
		}
		if !end.IsZero() && cursor.String() >= end.String() {
			return nil
		}
	}
}
