package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rahul/seeker/internal/agent"
	"github.com/rahul/seeker/internal/gateway"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	runJSON  bool
	runQuiet bool
)

var runCmd = &cobra.Command{
	Use:   "run <question>",
	Short: "Research a question and print the report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goal := strings.Join(args, " ")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		var sink agent.Sink
		var console *gateway.Console
		if runJSON {
			sink = gateway.JSONLines(out)
		} else {
			if term.IsTerminal(int(os.Stdout.Fd())) {
				gateway.PrintBanner(out)
			}
			console = gateway.NewConsole(out)
			console.Quiet = runQuiet
			sink = console.Sink()
		}

		runID, _, err := a.runner.Run(ctx, goal, sink)
		if err != nil {
			if console != nil {
				console.Fail(err)
			}
			return fmt.Errorf("run %s: %w", runID, err)
		}
		if console != nil && a.store != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nrun %s archived in %s\n", runID, cfg.Memory.Path)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print events as JSON lines instead of the console view")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "hide status lines and step results")
}
