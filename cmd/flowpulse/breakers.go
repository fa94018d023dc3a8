package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/flowpulse/flowpulse/internal/circuit"
)

type breakersOptions struct {
	RawJSON bool
}

func runBreakers(cmdCtx *commandContext, args []string) error {
	opts, err := parseBreakersFlags(args)
	if err != nil {
		return err
	}

	container, err := buildServices(cmdCtx)
	if err != nil {
		return err
	}
	defer closeServices(cmdCtx, container)

	// A fresh process has no breakers yet; materialize the configured
	// endpoint so the table always shows at least the one the tracker uses.
	container.Breakers.Get(cmdCtx.Config.Tracker.Endpoint)

	snapshots := container.Breakers.Snapshots()
	if opts.RawJSON {
		return json.NewEncoder(os.Stdout).Encode(snapshots)
	}
	return printBreakerTable(snapshots)
}

func printBreakerTable(snapshots []circuit.Snapshot) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "Endpoint\tPhase\tConsecutive Failures\tTrial Budget\tOpened At"); err != nil {
		return fmt.Errorf("write breaker header: %w", err)
	}
	for _, snap := range snapshots {
		openedAt := "-"
		if !snap.OpenedAt.IsZero() {
			openedAt = snap.OpenedAt.Format("2006-01-02 15:04:05 MST")
		}
		if err := writef(tw, "%s\t%s\t%d\t%d\t%s\n",
			snap.Endpoint,
			snap.Phase,
			snap.ConsecutiveFailures,
			snap.TrialBudget,
			openedAt,
		); err != nil {
			return fmt.Errorf("write breaker row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush breaker table: %w", err)
	}
	return nil
}

func parseBreakersFlags(args []string) (breakersOptions, error) {
	fs := flag.NewFlagSet("breakers", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts breakersOptions
	fs.BoolVar(&opts.RawJSON, "json", false, "Print snapshots as JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return breakersOptions{}, err
	}
	return opts, nil
}
