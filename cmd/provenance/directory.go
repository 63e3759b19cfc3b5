package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/swh-go/provenance/internal/cache"
	"github.com/swh-go/provenance/internal/config"
	"github.com/swh-go/provenance/internal/flatten"
	"github.com/swh-go/provenance/internal/model"
)

func newDirectoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Run the directory flattener",
	}
	cmd.AddCommand(newDirectoryFlattenCmd())
	return cmd
}

// newDirectoryFlattenCmd wraps directory_flatten_range (spec.md §4.5). With
// --watch it re-runs the range every time the watched path changes, instead
// of exiting after one pass; this is the CLI's only consumer of fsnotify.
func newDirectoryFlattenCmd() *cobra.Command {
	var from, to string
	var pageSize int
	var watch string

	cmd := &cobra.Command{
		Use:   "flatten",
		Short: "Flatten every unflattened directory in (--range-from, --range-to)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			start, end, err := parseRange(from, to)
			if err != nil {
				return err
			}

			c := cache.New(rt.store, rt.log, rt.rec)
			c.MaxElements = rt.cfg.Cache.MaxElements

			run := func(ctx context.Context) error {
				if err := flatten.Range(ctx, rt.arc, rt.store, c, start, end, pageSize); err != nil {
					return err
				}
				return c.Flush(ctx)
			}

			if watch == "" {
				return run(cmd.Context())
			}
			return watchAndRun(cmd.Context(), watch, rt, run)
		},
	}
	cmd.Flags().StringVar(&from, "range-from", "", "start directory id (hex), exclusive; default zero")
	cmd.Flags().StringVar(&to, "range-to", "", "end directory id (hex), exclusive; default unbounded")
	cmd.Flags().IntVar(&pageSize, "page-size", 1000, "directories fetched per DirectoryIterNotFlattened page")
	cmd.Flags().StringVar(&watch, "watch", "", "re-run the range whenever this path changes")
	return cmd
}

func parseRange(from, to string) (model.ID, model.ID, error) {
	var start, end model.ID
	var err error
	if from != "" {
		start, err = model.ParseID(from)
		if err != nil {
			return start, end, fmt.Errorf("directory flatten: range-from %q: %w", from, err)
		}
	}
	if to != "" {
		end, err = model.ParseID(to)
		if err != nil {
			return start, end, fmt.Errorf("directory flatten: range-to %q: %w", to, err)
		}
	}
	return start, end, nil
}

// watchAndRun runs fn once immediately, then again every time path changes,
// debounced by config.FlushInterval so a burst of writes only triggers one
// extra pass.
func watchAndRun(ctx context.Context, path string, rt *runtime, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("directory flatten --watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return fmt.Errorf("directory flatten --watch: %w", err)
	}

	var pending bool
	timer := time.NewTimer(config.FlushInterval)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = true
				timer.Reset(config.FlushInterval)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			rt.log.Error("watch error", "path", path, "error", err)
		case <-timer.C:
			if pending {
				pending = false
				if err := fn(ctx); err != nil {
					return err
				}
			}
		}
	}
}
