package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rahul/seeker/internal/gateway"
	"github.com/rahul/seeker/internal/store"
	"github.com/spf13/cobra"
)

var (
	scheduleEvery  time.Duration
	scheduleTarget string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring research goals",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <question>",
	Short: "Schedule a question; reports go to --target",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if scheduleEvery < 0 {
			return fmt.Errorf("--every must not be negative")
		}
		if scheduleTarget != "" {
			if _, _, err := gateway.ParseTarget(scheduleTarget); err != nil {
				return err
			}
		}
		return withStore(func(st *store.Store) error {
			goal := strings.Join(args, " ")
			id, err := st.AddSchedule(cmd.Context(), goal, scheduleTarget, scheduleEvery)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduled #%d\n", id)
			return nil
		})
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			goals, err := st.ListSchedules(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEVERY\tTARGET\tLAST RUN\tQUESTION")
			for _, g := range goals {
				every, last := "once", "never"
				if !g.OneShot() {
					every = g.Interval.String()
				}
				if !g.LastRun.IsZero() {
					last = g.LastRun.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", g.ID, every, g.Target, last, g.Goal)
			}
			return w.Flush()
		})
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a scheduled question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid schedule id %q", args[0])
		}
		return withStore(func(st *store.Store) error {
			return st.DeleteSchedule(cmd.Context(), id)
		})
	},
}

func init() {
	scheduleAddCmd.Flags().DurationVar(&scheduleEvery, "every", 24*time.Hour, "interval between runs; 0 runs once")
	scheduleAddCmd.Flags().StringVar(&scheduleTarget, "target", "", "where reports are sent, e.g. telegram:12345")

	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, scheduleRemoveCmd)
}

// withStore opens the run archive from the config for commands that need nothing else.
func withStore(fn func(*store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st == nil {
		return errNoStore
	}
	defer st.Close()
	return fn(st)
}
