package cfg

import (
	"fmt"
	"io"

	"tubefetch/internal/models"
	"tubefetch/internal/parsing"
	"tubefetch/internal/urls"

	"github.com/spf13/cobra"
)

// probeCmd looks up metadata without starting a job.
func (a *app) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <url>",
		Short: "Show video metadata without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := urls.Normalize(args[0])
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			resp, err := client.Probe(cmd.Context(), u.Target)
			if err != nil {
				return err
			}
			printProbe(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

func printProbe(out io.Writer, resp models.ProbeResponse) {
	meta := models.PreviewMetadata{}
	if resp.Meta != nil {
		meta = *resp.Meta
	}
	fmt.Fprintf(out, "Title:     %s\n", orDash(meta.Title))
	channel := orDash(meta.UploaderName)
	if subs := parsing.SubscriberText(meta.SubscriberCount); subs != "" {
		channel += " (" + subs + ")"
	}
	fmt.Fprintf(out, "Channel:   %s\n", channel)
	fmt.Fprintf(out, "URL:       %s\n", orDash(resp.CleanURL))
	if meta.ThumbnailURL != "" {
		fmt.Fprintf(out, "Thumbnail: %s\n", meta.ThumbnailURL)
	}
}

// normalizeCmd prints the canonical form of a URL.
func (a *app) normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <url>",
		Short: "Print the canonical watch or shorts URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := urls.Normalize(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", u.Target, u.Variant)
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
