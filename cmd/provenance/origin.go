package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/swh-go/provenance/internal/cache"
	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/originwalk"
)

func newOriginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "origin",
		Short: "Ingest origins into the provenance index",
	}
	cmd.AddCommand(newOriginFromCSVCmd())
	return cmd
}

// newOriginFromCSVCmd wraps the origin-layer walker (spec.md §4.6): each
// CSV row is (origin url, snapshot id hex).
func newOriginFromCSVCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "from-csv <file>",
		Short: "Walk every origin/snapshot pair in a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			entries, err := readOriginCSV(args[0])
			if err != nil {
				return err
			}

			c := cache.New(rt.store, rt.log, rt.rec)
			c.MaxElements = rt.cfg.Cache.MaxElements

			walker := originwalk.New(rt.arc, c)
			if err := walker.AddOrigins(cmd.Context(), entries); err != nil {
				return err
			}
			return c.Flush(cmd.Context())
		},
	}
}

func readOriginCSV(path string) ([]originwalk.OriginEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("origin from-csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	var out []originwalk.OriginEntry
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("origin from-csv: %w", err)
		}

		snap, err := model.ParseID(row[1])
		if err != nil {
			return nil, fmt.Errorf("origin from-csv: snapshot %q: %w", row[1], err)
		}

		out = append(out, originwalk.OriginEntry{URL: row[0], SnapshotID: snap})
	}
	return out, nil
}
