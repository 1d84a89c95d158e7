package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rahul/seeker/internal/gateway"
	"github.com/rahul/seeker/internal/store"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect archived runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			runs, err := st.ListRuns(cmd.Context(), runsLimit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tQUESTION")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Goal)
			}
			return w.Flush()
		})
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Replay an archived run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", run.Goal, run.Status)

			console := gateway.NewConsole(cmd.OutOrStdout())
			sink := console.Sink()
			for _, rec := range run.Events {
				e, err := rec.Event()
				if err != nil {
					return err
				}
				if err := sink(e); err != nil {
					return err
				}
			}
			if run.Status == store.StatusFailed {
				console.Fail(errors.New(run.Error))
			}
			return nil
		})
	},
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
}
