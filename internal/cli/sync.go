package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"apod_syncer/internal/calendar"
	"apod_syncer/internal/domain"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh one month from the remote archive",
		Args:  cobra.NoArgs,
		RunE:  runSync,
	}

	cmd.Flags().StringP("month", "m", "", "Month to sync as YYYY-MM (default: current month)")
	cmd.Flags().Bool("force", false, "Sync even when the cached month is fresh")

	RootCmd.AddCommand(cmd)
}

type syncOutput struct {
	Month   string           `json:"month"`
	Start   string           `json:"start"`
	End     string           `json:"end"`
	Synced  bool             `json:"synced"`
	Status  string           `json:"status"`
	Kind    domain.ErrorKind `json:"kind,omitempty"`
	Message string           `json:"message,omitempty"`
	Fetched int              `json:"fetched"`
	Stored  int              `json:"stored"`
}

func runSync(cmd *cobra.Command, args []string) error {
	monthFlag, _ := cmd.Flags().GetString("month")
	force, _ := cmd.Flags().GetBool("force")

	a, err := newApp(cmd.Context(), os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	month, d, err := a.selectMonth(monthFlag)
	if err != nil {
		return err
	}

	var (
		result domain.SyncResult
		synced = true
	)
	if force {
		result, err = a.service.Synchronize(cmd.Context(), d)
	} else {
		result, synced, err = a.service.Refresh(cmd.Context(), d)
	}
	if err != nil {
		return fmt.Errorf("sync %s: %w", month, err)
	}

	rng := a.service.Range(d)
	out := syncOutput{
		Month:  month.String(),
		Start:  calendar.FormatDate(rng.Start),
		End:    calendar.FormatDate(rng.End),
		Synced: synced,
		Status: "fresh",
	}
	switch res := result.(type) {
	case domain.SyncSuccess:
		out.Status = domain.SyncStatusSuccess
		out.Fetched = res.Fetched
		out.Stored = res.Stored
	case domain.SyncFailure:
		out.Status = domain.SyncStatusError
		out.Kind = res.Kind
		out.Message = res.Message
	}

	w := cmd.OutOrStdout()
	if formatFlag == "json" {
		return printJSON(w, out)
	}

	switch out.Status {
	case domain.SyncStatusSuccess:
		fmt.Fprintf(w, "%s (%s..%s): fetched %d, stored %d\n", out.Month, out.Start, out.End, out.Fetched, out.Stored)
	case domain.SyncStatusError:
		fmt.Fprintf(w, "%s (%s..%s): %s: %s\n", out.Month, out.Start, out.End, out.Kind, out.Message)
	default:
		fmt.Fprintf(w, "%s (%s..%s): fresh, nothing to do\n", out.Month, out.Start, out.End)
	}
	return nil
}
