package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the freshness record of a month and whether it needs a sync",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	cmd.Flags().StringP("month", "m", "", "Month as YYYY-MM (default: current month)")

	RootCmd.AddCommand(cmd)
}

type statusOutput struct {
	Month       string     `json:"month"`
	BucketID    string     `json:"bucket_id"`
	Synced      bool       `json:"synced"`
	UpdatedAt   *time.Time `json:"updated_at"`
	Timestamp   int64      `json:"timestamp"`
	Entries     int        `json:"entries"`
	NeedsUpdate bool       `json:"needs_update"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	monthFlag, _ := cmd.Flags().GetString("month")
	ctx := cmd.Context()

	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	month, d, err := a.selectMonth(monthFlag)
	if err != nil {
		return err
	}

	record, err := a.freshness.Get(ctx, month.BucketID())
	if err != nil {
		return fmt.Errorf("read freshness: %w", err)
	}
	needs, err := a.service.NeedsUpdate(ctx, d)
	if err != nil {
		return err
	}
	rng := a.service.Range(d)
	count, err := a.entries.CountRange(ctx, rng.Start, rng.End)
	if err != nil {
		return fmt.Errorf("count entries: %w", err)
	}

	out := statusOutput{
		Month:       month.String(),
		BucketID:    month.BucketID(),
		Entries:     count,
		NeedsUpdate: needs,
	}
	if record != nil {
		out.Synced = true
		out.Timestamp = record.Timestamp
		if record.Timestamp != 0 {
			t := record.Time()
			out.UpdatedAt = &t
		}
	}

	w := cmd.OutOrStdout()
	if formatFlag == "json" {
		return printJSON(w, out)
	}

	updated := "never"
	switch {
	case out.UpdatedAt != nil:
		updated = out.UpdatedAt.Format(time.RFC3339)
	case out.Synced:
		updated = "last attempt returned nothing"
	}
	fmt.Fprintf(w, "month:        %s\n", out.Month)
	fmt.Fprintf(w, "bucket:       %s\n", out.BucketID)
	fmt.Fprintf(w, "updated:      %s\n", updated)
	fmt.Fprintf(w, "entries:      %d\n", out.Entries)
	fmt.Fprintf(w, "needs update: %t\n", out.NeedsUpdate)
	return nil
}
