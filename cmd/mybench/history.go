package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/torosent/mybench/internal/history"
)

const (
	historyCommand     = "history"
	defaultHistoryFile = "mybench-history.jsonl"
	exitHistoryFailed  = 1
)

func newHistoryCommand(stdout io.Writer) *cobra.Command {
	var (
		file string
		last int
	)
	cmd := &cobra.Command{
		Use:           "mybench history [flags]",
		Short:         "List recorded benchmark runs",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries, err := history.Tail(cmd.Context(), file, last)
			if err != nil {
				return err
			}
			history.Print(cmd.OutOrStdout(), summaries)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.Flags().StringVar(&file, "file", defaultHistoryFile, "History file written with --history")
	cmd.Flags().IntVar(&last, "last", 10, "Show the most recent <n> runs (0 shows all)")
	return cmd
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newHistoryCommand(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitHistoryFailed
	}
	return 0
}
