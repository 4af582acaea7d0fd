package cfg

import (
	"context"
	"fmt"
	"text/tabwriter"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/keys"
	"tubefetch/internal/parsing"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// historyCmd lists jobs recorded in the local history database.
func (a *app) historyCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List jobs started from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hs, closeHistory, err := a.openHistory()
			if err != nil {
				return err
			}
			defer closeHistory()

			ctx, cancel := context.WithTimeout(cmd.Context(), consts.DatabaseTimeout)
			defer cancel()

			entries, err := hs.ListJobs(ctx, a.v.GetInt(keys.HistoryLimit))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tKIND\tPHASE\tPROGRESS\tUPDATED\tFILE\tURL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.JobID,
					e.Variant,
					e.Phase,
					parsing.PercentText(e.Percent),
					humanize.Time(e.UpdatedAt),
					orDash(e.Filename),
					e.URL,
				)
			}
			return w.Flush()
		},
	}

	historyCmd.Flags().IntP(keys.HistoryLimit, "n", consts.MaxDisplayedJobs, "Maximum number of jobs to list")
	bindFlags(a.v, historyCmd.Flags(), keys.HistoryLimit)
	return historyCmd
}
