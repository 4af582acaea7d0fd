package cfg

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/models"
	"tubefetch/internal/parsing"
	"tubefetch/internal/progress"

	"github.com/spf13/cobra"
)

// statusCmd prints one progress snapshot of a backend job.
func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the current state of a backend job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])
			p, err := client.Progress(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			if !p.OK {
				msg := strings.TrimSpace(p.Error)
				if msg == "" {
					msg = consts.MsgBackendProblem
				}
				return &models.BackendReportedError{JobID: jobID, Message: msg}
			}

			st := progress.WithFileLink(progress.Map(p), jobID)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:        %s\n", jobID)
			fmt.Fprintf(out, "Status:     %s\n", st.Label)
			fmt.Fprintf(out, "Progress:   %s (%s / %s)\n", st.PercentText, st.Downloaded, st.Total)
			if st.Phase.IsActive() {
				fmt.Fprintf(out, "Speed:      %s ETA %s\n", st.Speed, orDash(st.ETA))
			}
			if st.StartedAt != "" {
				fmt.Fprintf(out, "Started:    %s\n", st.StartedAt)
			}
			if st.Filename != "" {
				fmt.Fprintf(out, "File:       %s\n", st.Filename)
			}
			if st.DownloadURL != "" {
				link, err := client.ResolveLink(st.DownloadURL)
				if err != nil {
					link = st.DownloadURL
				}
				fmt.Fprintf(out, "Download:   %s\n", link)
			}
			if st.ExpiresAt != "" {
				fmt.Fprintf(out, "Expires:    %s\n", st.ExpiresAt)
			}
			if st.Message != "" {
				fmt.Fprintf(out, "Message:    %s\n", st.Message)
			}
			return nil
		},
	}
}

// cancelCmd requests cancellation of a backend job.
func (a *app) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Ask the backend to cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			resp, err := client.Cancel(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			msg := resp.Message
			if msg == "" {
				msg = consts.MsgCancelRequested
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

// recentCmd lists the backend's most recent jobs.
func (a *app) recentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recent jobs known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			jobs, err := client.Recent(cmd.Context())
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent jobs.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tSTATUS\tPROGRESS\tFILE\tURL")
			for i, j := range jobs {
				if i == consts.MaxDisplayedJobs {
					break
				}
				status := j.Status
				if j.Expired {
					status = string(models.PhaseExpired)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.ID, status, parsing.PercentText(j.Progress), orDash(j.Filename), j.URL)
			}
			return w.Flush()
		},
	}
}
