package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"apod_syncer/internal/calendar"
	"apod_syncer/internal/domain"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	cmd.Flags().StringP("month", "m", "", "Only list this month (YYYY-MM)")

	RootCmd.AddCommand(cmd)
}

type entryOutput struct {
	Date      string  `json:"date"`
	Title     string  `json:"title"`
	MediaType string  `json:"media_type"`
	URL       string  `json:"url"`
	HDURL     *string `json:"hdurl,omitempty"`
	Copyright *string `json:"copyright,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	monthFlag, _ := cmd.Flags().GetString("month")

	a, err := newApp(cmd.Context(), os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	var entries []domain.Entry
	if monthFlag == "" {
		entries, err = a.entries.ListAll(cmd.Context())
	} else {
		_, d, selErr := a.selectMonth(monthFlag)
		if selErr != nil {
			return selErr
		}
		rng := a.service.Range(d)
		entries, err = a.entries.ListRange(cmd.Context(), rng.Start, rng.End)
	}
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	out := make([]entryOutput, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryOutput{
			Date:      calendar.FormatDate(e.Date),
			Title:     e.Title,
			MediaType: e.MediaType,
			URL:       e.URL,
			HDURL:     e.HDURL,
			Copyright: e.Copyright,
		})
	}

	w := cmd.OutOrStdout()
	if formatFlag == "json" {
		return printJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range out {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Date, e.Title, e.URL)
	}
	return tw.Flush()
}
