package cfg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"tubefetch/internal/backend"
	"tubefetch/internal/controller"
	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/keys"
	"tubefetch/internal/domain/logger"
	"tubefetch/internal/models"
	"tubefetch/internal/parsing"
	"tubefetch/internal/preview"
	"tubefetch/internal/urls"

	"github.com/spf13/cobra"
)

var errAborted = errors.New("job abandoned")

// getCmd runs one job from URL to result.
func (a *app) getCmd() *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Download a video or short",
		Long: "Normalizes the URL, shows a preview, starts a backend job and follows it until it ends.\n" +
			"Press Ctrl+C once to request cancellation, twice to stop following the job.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGet(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	f := getCmd.Flags()
	f.Duration(keys.PollInterval, consts.DefaultPollInterval, "Delay between job status requests")
	f.Duration(keys.PreviewTimeout, consts.DefaultPreviewCeiling, "Longest wait for preview images")
	f.Duration(keys.PreviewDebounce, consts.DefaultPreviewDebounce, "Delay before showing a fully loaded preview")
	f.Bool(keys.SkipPreview, false, "Start the job without probing for a preview")
	f.BoolP(keys.FetchResult, "f", false, "Download the finished file from the backend")
	f.StringP(keys.OutputDir, "o", "", "Directory for fetched files (default: current directory)")
	f.BoolP(keys.AssumeYes, "y", false, "Retry cancelled jobs without asking")
	f.Bool(keys.NoHistory, false, "Do not record the job in the local history")
	bindFlags(a.v, f,
		keys.PollInterval,
		keys.PreviewTimeout,
		keys.PreviewDebounce,
		keys.SkipPreview,
		keys.FetchResult,
		keys.OutputDir,
		keys.AssumeYes,
		keys.NoHistory,
	)
	return getCmd
}

func (a *app) runGet(ctx context.Context, out io.Writer, raw string) error {
	u, err := urls.Normalize(raw)
	if err != nil {
		return err
	}
	logger.Pl.D(1, "Normalized %q to %q (%s)", raw, u, u.Variant)

	client, err := a.client()
	if err != nil {
		return err
	}
	surface := &resultCatcher{Surface: a.terminal(out, client.BaseURL())}

	if !a.v.GetBool(keys.SkipPreview) {
		loader := preview.NewLoader(client,
			preview.NewCollyFetcher(client.Jar(), nil, consts.AssetTimeout),
			surface,
			preview.WithCeiling(a.v.GetDuration(keys.PreviewTimeout)),
			preview.WithDebounce(a.v.GetDuration(keys.PreviewDebounce)),
		)
		if _, err := loader.LoadPreview(ctx, u); err != nil {
			return err
		}
	}

	opts := []controller.Option{controller.WithPollInterval(a.v.GetDuration(keys.PollInterval))}
	if !a.v.GetBool(keys.NoHistory) {
		hs, closeHistory, err := a.openHistory()
		if err != nil {
			logger.Pl.W("Job history disabled: %v", err)
		} else {
			defer closeHistory()
			opts = append(opts, controller.WithRecorder(hs))
		}
	}

	ctrl := controller.New(client, surface, opts...)
	defer ctrl.Close()
	defer a.setInterruptHandler(nil)

	a.setInterruptHandler(newJobInterrupts(ctx, ctrl).handle)
	if _, err := ctrl.Start(ctx, u); err != nil {
		return err
	}

	for {
		phase, err := ctrl.Wait(ctx)
		a.setInterruptHandler(nil)
		switch {
		case errors.Is(err, models.ErrJobSuperseded):
			return errAborted
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		}

		switch phase {
		case models.PhaseFinished:
			if a.v.GetBool(keys.FetchResult) {
				return a.fetchResult(ctx, out, client, surface.result())
			}
			return nil

		case models.PhaseCancelled:
			if !a.v.GetBool(keys.AssumeYes) {
				retry, err := a.confirm(ctx, out, "Retry this job?")
				if err != nil || !retry {
					return err
				}
			}
			a.setInterruptHandler(newJobInterrupts(ctx, ctrl).handle)
			if _, err := ctrl.Retry(ctx); err != nil {
				return err
			}

		case models.PhaseExpired:
			return errors.New(consts.MsgExpired)

		default:
			if err == nil {
				err = fmt.Errorf("job ended in phase %q", phase)
			}
			return err
		}
	}
}

// jobInterrupts handles interrupts for one followed job: the first requests
// cancellation, the second abandons the job.
type jobInterrupts struct {
	ctx  context.Context
	ctrl *controller.Controller

	mu    sync.Mutex
	count int
}

func newJobInterrupts(ctx context.Context, ctrl *controller.Controller) *jobInterrupts {
	return &jobInterrupts{ctx: ctx, ctrl: ctrl}
}

// handle reports false when no job is active yet, leaving the interrupt to
// cancel the command.
func (j *jobInterrupts) handle() bool {
	job, ok := j.ctrl.Snapshot()
	if !ok {
		return false
	}

	j.mu.Lock()
	j.count++
	n := j.count
	j.mu.Unlock()

	if n == 1 {
		logger.Pl.I("Interrupted, cancelling job %q (press Ctrl+C again to stop following it)", job.ID)
		go func() {
			if err := j.ctrl.Cancel(j.ctx); err != nil {
				logger.Pl.D(1, "Cancel on interrupt: %v", err)
			}
		}()
		return true
	}

	logger.Pl.W("Interrupted again, no longer following job %q", job.ID)
	j.ctrl.NewJob()
	return true
}

// fetchResult downloads the finished file into the output directory.
func (a *app) fetchResult(ctx context.Context, out io.Writer, client *backend.Client, st models.RenderState) error {
	dir := a.v.GetString(keys.OutputDir)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	ctx, cancel := context.WithTimeout(ctx, consts.FileFetchTimeout)
	defer cancel()

	path, n, err := client.FetchFile(ctx, st.DownloadURL, dir, st.Filename)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %s (%s)\n", path, parsing.FileSize(n))
	return nil
}

// resultCatcher keeps the last finished state shown on the wrapped surface.
type resultCatcher struct {
	models.Surface

	mu   sync.Mutex
	last models.RenderState
}

func (r *resultCatcher) ShowResult(job models.ActiveJob, st models.RenderState) {
	r.mu.Lock()
	r.last = st
	r.mu.Unlock()
	r.Surface.ShowResult(job, st)
}

func (r *resultCatcher) result() models.RenderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
