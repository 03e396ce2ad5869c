package main

import (
	"fmt"
	"strings"

	"github.com/meghashyamc/searchsync/services/search"
	"github.com/spf13/cobra"
)

type searchOptions struct {
	types    []string
	sort     string
	desc     bool
	collapse string
	offset   int
	limit    int
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the search index",
		Long: `Query the search index and print the ranked results.

Examples:
  searchsync search --types Article "red car"
  searchsync search --types Article,Comment 'section:news -draft' --sort published --desc
  searchsync search --types Article --collapse author --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}

			deps, err := openDependencies(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			query, err := deps.Engine.Execute(cmd.Context(), search.QuerySpec{
				EntityTypes:    opts.types,
				Query:          strings.Join(args, " "),
				Offset:         opts.offset,
				Limit:          opts.limit,
				SortBy:         opts.sort,
				SortDescending: opts.desc,
				CollapseBy:     opts.collapse,
			})
			if err != nil {
				return err
			}

			results, err := query.Results(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", query.Description())
			fmt.Fprintf(out, "about %d matches in %s\n", query.MatchesEstimated(), query.Runtime())
			for _, result := range results {
				line := fmt.Sprintf("%3d%%  %s", result.Percent, result.DocumentKey)
				if result.CollapseCount > 0 {
					line += fmt.Sprintf("  (+%d collapsed)", result.CollapseCount)
				}
				if result.Record == nil {
					line += "  [record missing]"
				}
				fmt.Fprintln(out, line)
			}

			if query.MatchesEstimated() == 0 {
				correction, err := query.SpellingCorrection()
				if err != nil {
					return err
				}
				if correction != "" {
					fmt.Fprintf(out, "did you mean: %s\n", correction)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&opts.types, "types", "t", nil, "Entity types to search (comma separated or repeated)")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "Value name to sort by instead of relevance")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "Sort descending")
	cmd.Flags().StringVar(&opts.collapse, "collapse", "", "Value name to collapse results on")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results, 0 for all")
	cmd.MarkFlagRequired("types")

	return cmd
}
