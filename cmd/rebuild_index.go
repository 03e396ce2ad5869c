package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newRebuildIndexCmd(root *rootOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "rebuild-index [entity types...]",
		Short: "Rebuild the search index from scratch",
		Long: `Rebuild the search index from every record of the given entity types, then swap it in
place of the live index. With no arguments every declared entity type is indexed.

Pending index jobs are discarded, since the rebuilt index reflects every record.

Examples:
  searchsync rebuild-index
  searchsync rebuild-index Article Comment --verbose`,
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

			entityTypes := args
			if len(entityTypes) == 0 {
				entityTypes = deps.Registry.EntityTypes()
			}

			report, err := deps.Indexer.RebuildIndex(cmd.Context(), entityTypes, verbose)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			indexedTypes := make([]string, 0, len(report.Indexed))
			for entityType := range report.Indexed {
				indexedTypes = append(indexedTypes, entityType)
			}
			sort.Strings(indexedTypes)
			for _, entityType := range indexedTypes {
				fmt.Fprintf(out, "%s: %d indexed\n", entityType, report.Indexed[entityType])
			}
			fmt.Fprintf(out, "skipped: %d\n", report.Skipped)

			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every batch and record as it is indexed")

	return cmd
}
