package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpdateIndexCmd(root *rootOptions) *cobra.Command {
	var flush bool

	cmd := &cobra.Command{
		Use:   "update-index",
		Short: "Apply queued record changes to the search index",
		Long: `Apply every queued record change to the search index.

Jobs that fail stay queued and are retried on the next run. The command exits with an
error if any job failed.

Examples:
  searchsync update-index
  searchsync update-index --flush`,
		Args: cobra.NoArgs,
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

			flushEachJob := cfg.GetFlushEachJob()
			if cmd.Flags().Changed("flush") {
				flushEachJob = flush
			}

			report, err := deps.Indexer.UpdateIndex(cmd.Context(), flushEachJob)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pending: %d, processed: %d, skipped: %d, failed: %d\n", report.Pending, report.Processed, report.Skipped, len(report.Failures))
			for _, failure := range report.Failures {
				fmt.Fprintf(out, "  %s\n", failure.Error())
			}

			return report.Err()
		},
	}

	cmd.Flags().BoolVar(&flush, "flush", false, "Flush the index after every job instead of once at the end")

	return cmd
}
