package controller

import (
	"context"
	"time"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/logger"
	"tubefetch/internal/models"
	"tubefetch/internal/progress"
)

// poll reads the job's status until it settles or its context is cancelled.
//
// The next poll is scheduled only after the previous response was applied,
// so polls of one job never overlap.
func (c *Controller) poll(ctx context.Context, run *jobRun, job models.ActiveJob) {
	defer c.loops.Done()

	if c.recorder != nil {
		c.recorder.JobStarted(job)
	}

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Pl.D(3, "Poll loop for job %q exiting", job.ID)
			return
		case <-timer.C:
		}

		p, err := c.api.Progress(ctx, job.ID)
		if ctx.Err() != nil {
			logger.Pl.D(2, "Discarding status of superseded job %q", job.ID)
			return
		}

		updated, state, stop := c.apply(run, p, err)
		if c.recorder != nil && updated.ID != "" {
			c.recorder.JobUpdated(updated, state)
		}
		if stop {
			return
		}
		timer.Reset(c.interval)
	}
}

// apply renders one poll result if run is still the active job.
func (c *Controller) apply(run *jobRun, p models.ProgressPayload, pollErr error) (models.ActiveJob, models.RenderState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != run {
		logger.Pl.D(2, "Discarding late status for job %q", run.job.ID)
		return models.ActiveJob{}, models.RenderState{}, true
	}

	var (
		state  models.RenderState
		jobErr error
	)

	switch {
	case pollErr != nil:
		jobErr = &models.PollTransportError{JobID: run.job.ID, Err: pollErr}
		state = models.RenderState{Phase: models.PhaseError, Label: "ERROR", Message: consts.MsgPollFailed}
		logger.Pl.E("%s %q: %v", consts.MsgPollFailed, run.job.ID, pollErr)

	case !p.OK:
		msg := messageOr(p.Error, consts.MsgBackendProblem)
		jobErr = &models.BackendReportedError{JobID: run.job.ID, Message: msg}
		state = progress.Map(p)
		state.Phase = models.PhaseError
		state.Label = "ERROR"
		state.Message = msg
		logger.Pl.E("Backend rejected status request for job %q: %s", run.job.ID, msg)

	default:
		state = progress.Map(p)
		if state.Phase == models.PhaseError {
			jobErr = &models.BackendReportedError{JobID: run.job.ID, Message: messageOr(state.Message, "Download failed.")}
		}
	}

	state = progress.WithFileLink(state, run.job.ID)
	run.job.Phase = state.Phase
	job := run.job

	switch state.Phase {
	case models.PhaseQueued, models.PhaseDownloading, models.PhaseProcessing:
		c.surface.ShowProgress(job, state)
		logger.Pl.D(3, "Job %q: %s %s", job.ID, state.Label, state.PercentText)
		return job, state, false

	case models.PhaseFinished:
		c.surface.ShowProgress(job, state)
		c.surface.ShowResult(job, state)
		logger.Pl.S("Job %q finished: %s", job.ID, state.Filename)

	case models.PhaseExpired:
		c.surface.Notify(models.NoticeError, consts.MsgExpired)
		c.surface.OfferNewJob()
		logger.Pl.W("Job %q expired", job.ID)

	case models.PhaseCancelled:
		c.surface.ShowCancelled(job)
		logger.Pl.I("Job %q was cancelled", job.ID)

	case models.PhaseError:
		c.surface.ShowError(job, jobErr)
		c.surface.OfferNewJob()
	}

	c.active = nil
	run.cancel()
	settleLocked(run, state.Phase, jobErr)
	return job, state, true
}
