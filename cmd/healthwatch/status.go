package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/healthwatch/internal/storage"
)

type statusStore interface {
	AllLatest(ctx context.Context) ([]storage.Check, error)
}

func executeStatus(cmd *cobra.Command, db statusStore) error {
	out := cmd.OutOrStdout()
	checks, err := db.AllLatest(context.Background())
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}

	if len(checks) == 0 {
		fmt.Fprintln(out, "No check history. Run 'healthwatch serve' with storage.path set first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSTATUS\tCODE\tRESPONSE\tLAST CHECKED\tERROR")
	for _, c := range checks {
		status := "down"
		if c.Up {
			status = "up"
		}
		code := "—"
		if c.StatusCode != nil {
			code = strconv.Itoa(*c.StatusCode)
		}
		resp := "—"
		if c.ResponseMs != nil {
			resp = fmt.Sprintf("%dms", *c.ResponseMs)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Target,
			status,
			code,
			resp,
			c.CheckedAt.Local().Format("2006-01-02 15:04:05"),
			c.Error,
		)
	}
	w.Flush()
	return nil
}
