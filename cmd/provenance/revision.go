package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/swh-go/provenance/internal/cache"
	"github.com/swh-go/provenance/internal/ingest"
	"github.com/swh-go/provenance/internal/model"
)

func newRevisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revision",
		Short: "Ingest revisions into the provenance index",
	}
	cmd.AddCommand(newRevisionFromCSVCmd())
	return cmd
}

// newRevisionFromCSVCmd wraps revision_add (spec.md §4.4): each CSV row is
// (revision id hex, RFC3339 author date, root directory id hex).
func newRevisionFromCSVCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "from-csv <file>",
		Short: "Run revision_add for every row of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			entries, err := readRevisionCSV(args[0])
			if err != nil {
				return err
			}

			c := cache.New(rt.store, rt.log, rt.rec)
			c.MaxElements = rt.cfg.Cache.MaxElements

			opt := ingest.Options{
				Lower:            rt.cfg.Ingest.Lower,
				MinDepth:         rt.cfg.Ingest.MinDepth,
				Flatten:          rt.cfg.Ingest.Flatten,
				MinSize:          rt.cfg.Ingest.MinSize,
				MaxDirectorySize: rt.cfg.Ingest.MaxDirectorySize,
			}
			driver := ingest.New(rt.arc, rt.store, c, rt.log, opt)

			if err := driver.AddRevisions(cmd.Context(), entries); err != nil {
				return err
			}
			return c.Flush(cmd.Context())
		},
	}
}

func readRevisionCSV(path string) ([]ingest.RevisionEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("revision from-csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	var out []ingest.RevisionEntry
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("revision from-csv: %w", err)
		}

		id, err := model.ParseID(row[0])
		if err != nil {
			return nil, fmt.Errorf("revision from-csv: id %q: %w", row[0], err)
		}
		date, err := time.Parse(time.RFC3339, row[1])
		if err != nil {
			return nil, fmt.Errorf("revision from-csv: date %q: %w", row[1], err)
		}
		root, err := model.ParseID(row[2])
		if err != nil {
			return nil, fmt.Errorf("revision from-csv: root %q: %w", row[2], err)
		}

		out = append(out, ingest.RevisionEntry{ID: id, Date: date, Root: root})
	}
	return out, nil
}
