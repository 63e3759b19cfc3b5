package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swh-go/provenance/internal/query"
)

// newFindFirstCmd wraps content_find_first (spec.md §4.1/§4.7).
func newFindFirstCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find-first <content-id-hex>",
		Short: "Print the earliest known provenance of a content object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			engine := query.New(rt.store)
			result, err := engine.FindFirst(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not found")
				return nil
			}
			printResult(cmd, *result)
			return nil
		},
	}
}

// newFindAllCmd wraps content_find_all (spec.md §4.1/§4.7).
func newFindAllCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "find-all <content-id-hex>",
		Short: "Print every known provenance of a content object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			engine := query.New(rt.store)
			results, err := engine.FindAll(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			for _, r := range results {
				printResult(cmd, r)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (0 = unbounded)")
	return cmd
}

func printResult(cmd *cobra.Command, r query.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n", r.Content, r.Revision, r.Date, r.Origin, r.Path)
}
