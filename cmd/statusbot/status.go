package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/statusbot/internal/storage"
)

type statusStore interface {
	AllLatest(ctx context.Context) ([]storage.Check, error)
}

func executeStatus(cmd *cobra.Command, db statusStore) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	checks, err := db.AllLatest(ctx)
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}

	if len(checks) == 0 {
		fmt.Fprintln(out, "No check history. Activate notifications with 'statusbot notifications active' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tOUTCOME\tCODE\tRESPONSE\tLAST CHECKED\tERROR")
	for _, c := range checks {
		code := "—"
		if c.StatusCode != nil {
			code = strconv.Itoa(*c.StatusCode)
		}
		resp := "—"
		if c.LatencyMs != nil {
			resp = (time.Duration(*c.LatencyMs) * time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Service,
			c.Outcome,
			code,
			resp,
			c.CheckedAt.Local().Format("2006-01-02 15:04:05"),
			c.Error,
		)
	}
	w.Flush()
	return nil
}
