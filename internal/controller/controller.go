// Package controller owns the lifecycle of the single active download job.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/logger"
	"tubefetch/internal/models"
	"tubefetch/internal/progress"
	"tubefetch/internal/urls"
)

// Backend is the part of the download service the controller drives.
type Backend interface {
	Start(ctx context.Context, target string) (string, error)
	Progress(ctx context.Context, jobID string) (models.ProgressPayload, error)
	Cancel(ctx context.Context, jobID string) (models.CancelResponse, error)
}

// Recorder is told about job starts and every applied status update.
// It is called from the job's polling goroutine, never under the controller lock.
type Recorder interface {
	JobStarted(job models.ActiveJob)
	JobUpdated(job models.ActiveJob, state models.RenderState)
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval sets the delay between a status response and the next poll.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithRecorder registers a job recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// jobRun is one started job and its polling goroutine.
type jobRun struct {
	gen     uint64
	job     models.ActiveJob
	cancel  context.CancelFunc
	settled chan struct{}
	isDone  bool
	final   models.JobPhase
	err     error
}

// Controller drives one job at a time through start, polling, cancel, retry
// and new-job transitions.
//
// Every identity change follows the same order: stop the prior poll loop,
// change the active job, then start the new loop.
type Controller struct {
	api      Backend
	surface  models.Surface
	interval time.Duration
	recorder Recorder

	loops sync.WaitGroup

	mu       sync.Mutex
	gen      uint64
	active   *jobRun
	last     *jobRun
	retained urls.NormalizedURL
	closed   bool
}

// New returns a controller with no active job.
func New(api Backend, surface models.Surface, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		surface:  surface,
		interval: consts.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start requests a new job for u and begins polling it.
//
// Any previous job is abandoned before the request is sent. On failure no job
// is active and the retained URL is left unchanged.
func (c *Controller) Start(ctx context.Context, u urls.NormalizedURL) (string, error) {
	if u.IsZero() {
		return "", &models.StartError{Message: "No URL to start."}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", errors.New("controller is closed")
	}
	c.haltLocked(models.ErrJobSuperseded)
	gen := c.gen
	c.mu.Unlock()

	logger.Pl.I("Starting job for %q", u)
	id, err := c.api.Start(ctx, u.String())

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		var se *models.StartError
		if !errors.As(err, &se) {
			se = &models.StartError{Message: "Start failed", Err: err}
		}
		logger.Pl.E("Could not start job for %q: %v", u, se)
		if gen == c.gen {
			c.surface.Notify(models.NoticeError, se.Message)
		}
		return "", se
	}

	if gen != c.gen || c.closed {
		logger.Pl.W("Job %q was superseded before it started polling", id)
		c.cancelOrphan(id)
		return id, models.ErrJobSuperseded
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &jobRun{
		gen: gen,
		job: models.ActiveJob{
			ID:        id,
			Source:    u,
			Phase:     models.PhaseQueued,
			StartedAt: time.Now(),
		},
		cancel:  cancel,
		settled: make(chan struct{}),
	}
	c.active = run
	c.last = run
	c.retained = u

	c.surface.ShowProgress(run.job, progress.Queued())

	c.loops.Add(1)
	go c.poll(runCtx, run, run.job)

	logger.Pl.S("Job %q started for %q", id, u)
	return id, nil
}

// Retry starts a new job for the most recently started URL.
func (c *Controller) Retry(ctx context.Context) (string, error) {
	c.mu.Lock()
	u := c.retained
	if u.IsZero() {
		c.surface.Notify(models.NoticeWarn, consts.MsgNothingToRetry)
		c.mu.Unlock()
		return "", models.ErrNoRetainedURL
	}
	c.mu.Unlock()

	logger.Pl.D(1, "Retrying %q", u)
	return c.Start(ctx, u)
}

// Cancel asks the backend to cancel the active job.
//
// The request is advisory: the job's phase only changes once a later poll
// reports it. Polling continues whether or not the request succeeds.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	run := c.active
	c.mu.Unlock()

	if run == nil {
		return models.ErrNoActiveJob
	}

	logger.Pl.I("Requesting cancellation of job %q", run.job.ID)
	resp, err := c.api.Cancel(ctx, run.job.ID)

	c.mu.Lock()
	defer c.mu.Unlock()

	stale := c.active != run
	if err != nil {
		var ce *models.CancelRequestError
		if !errors.As(err, &ce) {
			ce = &models.CancelRequestError{JobID: run.job.ID, Err: err}
		}
		logger.Pl.W("%s: %v", consts.MsgCancelFailed, ce)
		if !stale {
			c.surface.Notify(models.NoticeWarn, fmt.Sprintf("%s (%s)", consts.MsgCancelFailed, cancelReason(ce)))
		}
		return ce
	}

	if stale {
		logger.Pl.D(2, "Cancel response for superseded job %q ignored", run.job.ID)
		return nil
	}
	c.surface.Notify(models.NoticeInfo, messageOr(resp.Message, consts.MsgCancelRequested))
	return nil
}

// NewJob abandons the active job, forgets the retained URL and resets the surface.
func (c *Controller) NewJob() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.haltLocked(models.ErrJobSuperseded)
	c.retained = urls.NormalizedURL{}
	c.surface.Reset()
	logger.Pl.D(1, "Ready for a new job")
}

// Snapshot returns the active job, if any.
func (c *Controller) Snapshot() (models.ActiveJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return models.ActiveJob{}, false
	}
	return c.active.job, true
}

// Retained returns the URL Retry would use.
func (c *Controller) Retained() (urls.NormalizedURL, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retained, !c.retained.IsZero()
}

// Wait blocks until the most recently started job settles and returns its
// final phase. Superseded jobs return models.ErrJobSuperseded.
func (c *Controller) Wait(ctx context.Context) (models.JobPhase, error) {
	c.mu.Lock()
	run := c.last
	c.mu.Unlock()

	if run == nil {
		return "", models.ErrNoActiveJob
	}

	select {
	case <-run.settled:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return run.final, run.err
}

// Close stops polling and waits for the polling goroutine to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.haltLocked(models.ErrJobSuperseded)
	c.mu.Unlock()

	c.loops.Wait()
}

// cancelOrphan asks the backend to drop a job accepted after the controller
// moved on. Nothing polls it, so failures are only logged.
func (c *Controller) cancelOrphan(id string) {
	if id == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), consts.HTTPClientTimeout)
		defer cancel()
		if _, err := c.api.Cancel(ctx, id); err != nil {
			logger.Pl.D(1, "Cancelling superseded job %q failed: %v", id, err)
			return
		}
		logger.Pl.D(1, "Cancelled superseded job %q", id)
	}()
}

// haltLocked stops the active poll loop and clears the active job. It never
// waits for the loop to exit.
func (c *Controller) haltLocked(reason error) {
	c.gen++
	run := c.active
	if run == nil {
		return
	}
	c.active = nil
	run.cancel()
	settleLocked(run, run.job.Phase, reason)
	logger.Pl.D(2, "Stopped polling job %q: %v", run.job.ID, reason)
}

func settleLocked(run *jobRun, phase models.JobPhase, err error) {
	if run.isDone {
		return
	}
	run.isDone = true
	run.final = phase
	run.err = err
	close(run.settled)
}

func cancelReason(ce *models.CancelRequestError) string {
	if ce.Err == nil && ce.Message != "" {
		return ce.Message
	}
	if ce.Err != nil {
		return ce.Err.Error()
	}
	return "rejected"
}

func messageOr(msg, fallback string) string {
	if msg = strings.TrimSpace(msg); msg != "" {
		return msg
	}
	return fallback
}
