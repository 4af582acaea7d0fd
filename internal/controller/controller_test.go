package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tubefetch/internal/backend"
	"tubefetch/internal/backend/backendtest"
	"tubefetch/internal/models"
	"tubefetch/internal/ui/uitest"
	"tubefetch/internal/urls"
)

const waitTimeout = 5 * time.Second

type harness struct {
	srv     *backendtest.Server
	surface *uitest.Recorder
	c       *Controller
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	srv := backendtest.New(t)
	client, err := backend.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	surface := uitest.NewRecorder()
	c := New(client, surface, append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)...)
	t.Cleanup(c.Close)

	return &harness{srv: srv, surface: surface, c: c}
}

func normalized(t *testing.T, raw string) urls.NormalizedURL {
	t.Helper()
	u, err := urls.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize(%q): %v", raw, err)
	}
	return u
}

func waitSettled(t *testing.T, c *Controller) (models.JobPhase, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	phase, err := c.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("job did not settle in time")
	}
	return phase, err
}

func TestLifecycleToFinished(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.Script(
		models.ProgressPayload{OK: true, Status: "queued"},
		models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(40), Downloaded: "4.0 MB", Total: "10.0 MB"},
		models.ProgressPayload{OK: true, Status: "processing", Progress: backendtest.Float(60)},
		models.ProgressPayload{OK: true, Status: "finished", Progress: backendtest.Float(100), Filename: "clip [abc123].mp4",
			ExpiresAtIST: "19 Oct 2026, 06:02:03 PM IST"},
	)

	u := normalized(t, "https://youtu.be/abc123")
	id, err := h.c.Start(context.Background(), u)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job, ok := h.c.Snapshot(); !ok || job.ID != id || job.Phase != models.PhaseQueued {
		t.Fatalf("unexpected snapshot after start: %+v %v", job, ok)
	}

	phase, err := waitSettled(t, h.c)
	if err != nil || phase != models.PhaseFinished {
		t.Fatalf("Wait = %q, %v", phase, err)
	}

	progress := h.surface.Of(uitest.KindProgress)
	if len(progress) < 5 {
		t.Fatalf("expected at least 5 progress renders, got %d", len(progress))
	}
	if !progress[0].State.Indeterminate || progress[0].State.Phase != models.PhaseQueued {
		t.Errorf("first render should be the queued shimmer: %+v", progress[0].State)
	}

	var sawLive, sawFloor bool
	for _, e := range progress {
		switch e.State.Phase {
		case models.PhaseDownloading:
			sawLive = e.State.Percent == 40 && !e.State.Indeterminate && e.State.Downloaded == "4.0 MB"
		case models.PhaseProcessing:
			sawFloor = e.State.Percent == 99 && e.State.Label == "DOWNLOADING"
		}
		if e.Job.ID != id {
			t.Errorf("render for unexpected job %q", e.Job.ID)
		}
	}
	if !sawLive {
		t.Errorf("missing live 40%% render")
	}
	if !sawFloor {
		t.Errorf("missing processing render floored at 99%%")
	}

	results := h.surface.Of(uitest.KindResult)
	if len(results) != 1 {
		t.Fatalf("expected one result panel, got %d", len(results))
	}
	st := results[0].State
	if st.Percent != 100 || st.Filename != "clip [abc123].mp4" || st.DownloadURL != "/file/"+id || st.ExpiresAtTime.IsZero() {
		t.Errorf("unexpected result state: %+v", st)
	}

	if _, ok := h.c.Snapshot(); ok {
		t.Errorf("no job should be active after a terminal phase")
	}

	calls := h.srv.Calls(backendtest.EndpointProgress)
	time.Sleep(30 * time.Millisecond)
	if got := h.srv.Calls(backendtest.EndpointProgress); got != calls {
		t.Errorf("polling continued after finish: %d -> %d", calls, got)
	}
}

func TestCancelThenRetryReusesURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.Script(models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(10)})

	u := normalized(t, "https://www.youtube.com/shorts/xyz789?x=1")
	first, err := h.c.Start(context.Background(), u)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := h.surface.WaitFor(waitTimeout, func(e uitest.Event) bool {
		return e.Kind == uitest.KindProgress && e.State.Phase == models.PhaseDownloading
	}); err != nil {
		t.Fatal(err)
	}

	if err := h.c.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := h.surface.WaitFor(waitTimeout, func(e uitest.Event) bool {
		return e.Kind == uitest.KindNotify && e.Level == models.NoticeInfo && e.Message == "Cancellation requested."
	}); err != nil {
		t.Fatal(err)
	}

	phase, err := waitSettled(t, h.c)
	if err != nil || phase != models.PhaseCancelled {
		t.Fatalf("Wait = %q, %v", phase, err)
	}
	if got := h.surface.Of(uitest.KindCancelled); len(got) != 1 || got[0].Job.ID != first {
		t.Fatalf("expected one cancelled panel for %q, got %+v", first, got)
	}

	second, err := h.c.Retry(context.Background())
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if second == first {
		t.Errorf("retry must create a new job")
	}

	started := h.srv.StartedURLs()
	if len(started) != 2 || started[0] != "https://www.youtube.com/shorts/xyz789" || started[1] != started[0] {
		t.Errorf("retry should resend the normalized URL, got %v", started)
	}
	if job, ok := h.c.Snapshot(); !ok || job.ID != second || job.Source != u {
		t.Errorf("unexpected snapshot after retry: %+v", job)
	}
}

func TestCancelFailureKeepsPolling(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.Script(models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(10)})
	h.srv.SetCancel(false, "Cancel queue unavailable.")

	if _, err := h.c.Start(context.Background(), normalized(t, "https://www.youtube.com/watch?v=abc123")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := h.c.Cancel(context.Background())
	var ce *models.CancelRequestError
	if !errors.As(err, &ce) || ce.Message != "Cancel queue unavailable." {
		t.Fatalf("expected CancelRequestError, got %v", err)
	}
	if _, err := h.surface.WaitFor(waitTimeout, func(e uitest.Event) bool {
		return e.Kind == uitest.KindNotify && e.Level == models.NoticeWarn
	}); err != nil {
		t.Fatal(err)
	}

	if job, ok := h.c.Snapshot(); !ok || job.Phase.IsTerminal() {
		t.Fatalf("a failed cancel must not change the job: %+v %v", job, ok)
	}

	before := h.srv.Calls(backendtest.EndpointProgress)
	deadline := time.Now().Add(waitTimeout)
	for h.srv.Calls(backendtest.EndpointProgress) <= before+1 {
		if time.Now().After(deadline) {
			t.Fatalf("polling stopped after a failed cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPollTransportFailureIsTerminal(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.Script(models.ProgressPayload{OK: true, Status: "queued"})

	id, err := h.c.Start(context.Background(), normalized(t, "https://www.youtube.com/watch?v=abc123"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.srv.FailProgress(id)

	phase, err := waitSettled(t, h.c)
	if phase != models.PhaseError {
		t.Fatalf("phase = %q, want error", phase)
	}
	var pte *models.PollTransportError
	if !errors.As(err, &pte) || pte.JobID != id {
		t.Fatalf("expected PollTransportError, got %v", err)
	}

	kinds := h.surface.Kinds()
	if len(kinds) < 2 || kinds[len(kinds)-2] != uitest.KindError || kinds[len(kinds)-1] != uitest.KindOfferNewJob {
		t.Errorf("expected error panel then new-job offer, got %v", kinds)
	}

	calls := h.srv.Calls(backendtest.EndpointProgress)
	time.Sleep(30 * time.Millisecond)
	if got := h.srv.Calls(backendtest.EndpointProgress); got != calls {
		t.Errorf("poll was retried after a transport failure: %d -> %d", calls, got)
	}
}

func TestBackendErrorMessageIsVerbatim(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.Script(models.ProgressPayload{OK: true, Status: "error", Error: "ffmpeg not found on PATH."})

	if _, err := h.c.Start(context.Background(), normalized(t, "https://www.youtube.com/watch?v=abc123")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	phase, err := waitSettled(t, h.c)
	var be *models.BackendReportedError
	if phase != models.PhaseError || !errors.As(err, &be) || be.Message != "ffmpeg not found on PATH." {
		t.Fatalf("Wait = %q, %v", phase, err)
	}
	shown := h.surface.Of(uitest.KindError)
	if len(shown) != 1 || shown[0].Err.Error() != "ffmpeg not found on PATH." {
		t.Errorf("error panel should show the message verbatim: %+v", shown)
	}
}

func TestNegativeAckIsBackendError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.Script(models.ProgressPayload{OK: false, Error: "Job not found"})

	if _, err := h.c.Start(context.Background(), normalized(t, "https://www.youtube.com/watch?v=abc123")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	phase, err := waitSettled(t, h.c)
	var be *models.BackendReportedError
	if phase != models.PhaseError || !errors.As(err, &be) || be.Message != "Job not found" {
		t.Fatalf("Wait = %q, %v", phase, err)
	}
}

func TestExpiredOffersNewJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.Script(models.ProgressPayload{OK: true, Status: "expired", Expired: true})

	if _, err := h.c.Start(context.Background(), normalized(t, "https://www.youtube.com/watch?v=abc123")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	phase, err := waitSettled(t, h.c)
	if err != nil || phase != models.PhaseExpired {
		t.Fatalf("Wait = %q, %v", phase, err)
	}
	notes := h.surface.Of(uitest.KindNotify)
	if len(notes) == 0 || notes[len(notes)-1].Level != models.NoticeError {
		t.Errorf("expected an error notice, got %+v", notes)
	}
	if len(h.surface.Of(uitest.KindOfferNewJob)) != 1 {
		t.Errorf("expected a new-job offer")
	}
}

func TestStartFailureLeavesNoJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.RejectStart("Only individual YouTube videos or shorts are supported.")

	_, err := h.c.Start(context.Background(), normalized(t, "https://www.youtube.com/watch?v=abc123"))
	var se *models.StartError
	if !errors.As(err, &se) || se.Message != "Only individual YouTube videos or shorts are supported." {
		t.Fatalf("expected StartError, got %v", err)
	}
	if _, ok := h.c.Snapshot(); ok {
		t.Errorf("failed start must not create an active job")
	}
	if _, ok := h.c.Retained(); ok {
		t.Errorf("failed start must not retain the URL")
	}
	if _, err := h.c.Retry(context.Background()); !errors.Is(err, models.ErrNoRetainedURL) {
		t.Errorf("Retry = %v, want ErrNoRetainedURL", err)
	}
	if h.srv.Calls(backendtest.EndpointProgress) != 0 {
		t.Errorf("no polling should happen without a job")
	}
}

func TestNewJobClearsEverything(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.srv.Script(models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(5)})

	if _, err := h.c.Start(context.Background(), normalized(t, "https://www.youtube.com/watch?v=abc123")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.c.NewJob()

	if _, ok := h.c.Snapshot(); ok {
		t.Errorf("NewJob must clear the active job")
	}
	if _, ok := h.c.Retained(); ok {
		t.Errorf("NewJob must forget the retained URL")
	}
	if _, err := waitSettled(t, h.c); !errors.Is(err, models.ErrJobSuperseded) {
		t.Errorf("Wait = %v, want ErrJobSuperseded", err)
	}
	if err := h.c.Cancel(context.Background()); !errors.Is(err, models.ErrNoActiveJob) {
		t.Errorf("Cancel = %v, want ErrNoActiveJob", err)
	}

	kinds := h.surface.Kinds()
	resetAt := -1
	for i, k := range kinds {
		if k == uitest.KindReset {
			resetAt = i
		}
	}
	if resetAt < 0 {
		t.Fatalf("surface was not reset")
	}

	time.Sleep(30 * time.Millisecond)
	for _, k := range h.surface.Kinds()[resetAt+1:] {
		if k == uitest.KindProgress {
			t.Errorf("progress rendered after NewJob")
		}
	}
}

func TestRetryWithoutURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if _, err := h.c.Retry(context.Background()); !errors.Is(err, models.ErrNoRetainedURL) {
		t.Fatalf("Retry = %v, want ErrNoRetainedURL", err)
	}
	notes := h.surface.Of(uitest.KindNotify)
	if len(notes) != 1 || notes[0].Level != models.NoticeWarn {
		t.Errorf("expected one warning, got %+v", notes)
	}
	if _, err := h.c.Wait(context.Background()); !errors.Is(err, models.ErrNoActiveJob) {
		t.Errorf("Wait without a job = %v", err)
	}
}

type memRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *memRecorder) JobStarted(job models.ActiveJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "started:"+job.ID)
}

func (r *memRecorder) JobUpdated(job models.ActiveJob, st models.RenderState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "updated:"+job.ID+":"+string(st.Phase))
}

func TestRecorderSeesStartThenUpdates(t *testing.T) {
	t.Parallel()

	rec := &memRecorder{}
	h := newHarness(t, WithRecorder(rec))
	h.srv.Script(
		models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(50)},
		models.ProgressPayload{OK: true, Status: "finished", Progress: backendtest.Float(100), Filename: "a.mp4"},
	)

	id, err := h.c.Start(context.Background(), normalized(t, "https://www.youtube.com/watch?v=abc123"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := waitSettled(t, h.c); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	h.c.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{"started:" + id, "updated:" + id + ":downloading", "updated:" + id + ":finished"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, rec.events[i], want[i])
		}
	}
}
