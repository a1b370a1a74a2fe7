package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/healthwatch/internal/checker"
	"github.com/hazz-dev/healthwatch/internal/config"
	"github.com/hazz-dev/healthwatch/internal/scheduler"
	"github.com/hazz-dev/healthwatch/internal/state"
	"github.com/hazz-dev/healthwatch/internal/version"
)

func executeCheck(cmd *cobra.Command, cfg *config.Config) error {
	return runChecks(cmd.Context(), cmd.OutOrStdout(), cfg)
}

// runChecks runs one round, prints a table and fails unless every target is up.
func runChecks(ctx context.Context, out io.Writer, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store := state.New(cfg.Targets)
	probe := checker.NewHTTPChecker(cfg.Poll.Timeout.Duration, version.UserAgent())
	// One-off runs keep stdout for the table.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := scheduler.New(store, probe, cfg.Poll.Interval.Duration, quiet)

	if _, err := sched.RunRound(ctx); err != nil {
		return fmt.Errorf("running checks: %w", err)
	}

	snap := store.Snapshot(time.Now())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tURL\tSTATUS\tCODE\tRESPONSE\tERROR")
	for _, r := range snap.Records {
		status := "unknown"
		if r.Up != nil {
			status = string(checker.StatusDown)
			if *r.Up {
				status = string(checker.StatusUp)
			}
		}
		code := "—"
		if r.StatusCode != nil {
			code = strconv.Itoa(*r.StatusCode)
		}
		resp := "—"
		if r.ResponseTimeMs != nil {
			resp = fmt.Sprintf("%dms", *r.ResponseTimeMs)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Target.Name,
			r.Target.URL,
			status,
			code,
			resp,
			r.LastError,
		)
	}
	w.Flush()

	overall := snap.Overall()
	fmt.Fprintf(out, "\noverall: %s\n", overall)
	if overall != state.OverallUp {
		return fmt.Errorf("overall status is %s", overall)
	}
	return nil
}
