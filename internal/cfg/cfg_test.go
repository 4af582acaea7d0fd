package cfg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tubefetch/internal/backend"
	"tubefetch/internal/backend/backendtest"
	"tubefetch/internal/domain/consts"
	"tubefetch/internal/models"
	"tubefetch/internal/urls"
)

const testTimeout = 10 * time.Second

// run executes the command line against srv and returns its output.
func run(t *testing.T, srv *backendtest.Server, deps Deps, args ...string) (string, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	var out bytes.Buffer
	root := NewRootCmd(deps)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--backend-url", srv.URL, "--no-color"}, args...))

	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestGetFinishedAndFetch(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	srv.Script(
		models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(50)},
		models.ProgressPayload{OK: true, Status: "finished", Progress: backendtest.Float(100), Filename: "clip [abc123].mp4"},
	)
	srv.SetAnyFile("clip [abc123].mp4", []byte("video"))

	dir := t.TempDir()
	dbFile := filepath.Join(dir, "history.db")
	out, err := run(t, srv, Deps{},
		"get", "https://youtu.be/abc123",
		"--poll-interval", "5ms",
		"--fetch",
		"--output-directory", dir,
		"--db-file", dbFile,
	)
	if err != nil {
		t.Fatalf("get: %v\n%s", err, out)
	}

	for _, want := range []string{"Test video", "✔ Finished: clip [abc123].mp4", "Saved "} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "clip [abc123].mp4"))
	if err != nil {
		t.Fatalf("fetched file: %v", err)
	}
	if string(data) != "video" {
		t.Errorf("fetched %q, want %q", data, "video")
	}
	if got := srv.StartedURLs(); len(got) != 1 || got[0] != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("started URLs = %v", got)
	}

	ids := srv.JobIDs()
	if len(ids) != 1 {
		t.Fatalf("expected one job, got %v", ids)
	}
	hist, err := run(t, srv, Deps{}, "history", "--db-file", dbFile)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(hist, ids[0]) || !strings.Contains(hist, "finished") {
		t.Errorf("history does not list the finished job:\n%s", hist)
	}
}

func TestGetCancelThenRetry(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	srv.Script(models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(10)})

	interrupts := make(chan os.Signal, 1)
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	go func() {
		deadline := time.Now().Add(testTimeout)
		for srv.Calls(backendtest.EndpointProgress) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		interrupts <- os.Interrupt

		for time.Now().Before(deadline) {
			if ids := srv.JobIDs(); len(ids) > 0 && srv.Cancelled(ids[0]) {
				break
			}
			time.Sleep(time.Millisecond)
		}
		srv.Script(models.ProgressPayload{OK: true, Status: "finished", Progress: backendtest.Float(100), Filename: "clip.mp4"})
		_, _ = pw.Write([]byte("y\n"))
	}()

	out, err := run(t, srv, Deps{In: pr, Interrupts: interrupts},
		"get", "https://www.youtube.com/shorts/abc123",
		"--skip-preview",
		"--no-history",
		"--poll-interval", "5ms",
	)
	if err != nil {
		t.Fatalf("get: %v\n%s", err, out)
	}

	started := srv.StartedURLs()
	if len(started) != 2 {
		t.Fatalf("expected a retry, started %v", started)
	}
	if started[0] != started[1] || started[0] != "https://www.youtube.com/shorts/abc123" {
		t.Errorf("retry used a different URL: %v", started)
	}
	for _, want := range []string{"was cancelled.", "Retry this job?", "✔ Finished: clip.mp4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGetCancelledWithoutRetry(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	srv.Script(models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(10)})

	interrupts := make(chan os.Signal, 1)
	go func() {
		deadline := time.Now().Add(testTimeout)
		for srv.Calls(backendtest.EndpointProgress) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		interrupts <- os.Interrupt
	}()

	out, err := run(t, srv, Deps{In: strings.NewReader("n\n"), Interrupts: interrupts},
		"get", "https://youtu.be/abc123", "--skip-preview", "--no-history", "--poll-interval", "5ms")
	if err != nil {
		t.Fatalf("get: %v\n%s", err, out)
	}
	if n := len(srv.StartedURLs()); n != 1 {
		t.Errorf("declined retry still started %d jobs", n)
	}
}

func TestGetBackendError(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	srv.Script(models.ProgressPayload{OK: true, Status: "error", Error: "ERROR: Video unavailable"})

	out, err := run(t, srv, Deps{}, "get", "https://youtu.be/abc123", "--skip-preview", "--no-history", "--poll-interval", "5ms")
	var be *models.BackendReportedError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendReportedError, got %v", err)
	}
	if be.Message != "ERROR: Video unavailable" {
		t.Errorf("message = %q", be.Message)
	}
	if !strings.Contains(out, "ERROR: Video unavailable") {
		t.Errorf("output missing backend message:\n%s", out)
	}
}

func TestGetRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	if _, err := run(t, srv, Deps{}, "get", "https://example.com/watch?v=abc123"); err == nil {
		t.Fatalf("expected an error for a non-YouTube URL")
	}
	if n := srv.Calls(backendtest.EndpointProbe) + srv.Calls(backendtest.EndpointStart); n != 0 {
		t.Errorf("invalid URL reached the backend %d times", n)
	}
}

func TestNormalizeCmd(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	out, err := run(t, srv, Deps{}, "normalize", "https://youtube.com/shorts/abc123?feature=share")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if want := "https://www.youtube.com/shorts/abc123\tshort\n"; out != want {
		t.Errorf("normalize printed %q, want %q", out, want)
	}

	_, err = run(t, srv, Deps{}, "normalize", "youtube.com/shorts/abc123?feature=share")
	var vErr *urls.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for a URL without scheme, got %v", err)
	}
	if vErr.Reason != urls.ReasonNeedAbsolute {
		t.Errorf("reason = %q, want %q", vErr.Reason, urls.ReasonNeedAbsolute)
	}
}

func TestProbeCmd(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	out, err := run(t, srv, Deps{}, "probe", "https://youtu.be/abc123")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	for _, want := range []string{"Test video", "Test channel"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJobCommands(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	srv.Script(models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(25), Downloaded: "2.5 MB", Total: "10.0 MB"})

	client, err := backend.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	jobID, err := client.Start(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	out, err := run(t, srv, Deps{}, "status", jobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{jobID, "DOWNLOADING", "25%", "2.5 MB / 10.0 MB"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, srv, Deps{}, "cancel", jobID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if strings.TrimSpace(out) != "Cancellation requested." {
		t.Errorf("cancel printed %q", out)
	}
	if !srv.Cancelled(jobID) {
		t.Errorf("backend did not record the cancellation")
	}

	out, err = run(t, srv, Deps{}, "recent")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if !strings.Contains(out, jobID) || !strings.Contains(out, "https://www.youtube.com/watch?v=abc123") {
		t.Errorf("recent output missing job:\n%s", out)
	}

	_, err = run(t, srv, Deps{}, "status", "missing")
	var be *models.BackendReportedError
	if !errors.As(err, &be) || be.Message != "Job not found" {
		t.Errorf("status of unknown job: %v", err)
	}
}

func TestHistoryEmpty(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	out, err := run(t, srv, Deps{}, "history", "--db-file", filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if strings.TrimSpace(out) != "No jobs recorded yet." {
		t.Errorf("history printed %q", out)
	}
}

// waitUntil polls cond until it holds or the test deadline passes.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Errorf("timed out waiting for %s", what)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// stallingReader reports its first read and then blocks until the test ends.
type stallingReader struct {
	reading chan struct{}
	once    chan struct{}
	done    chan struct{}
}

func newStallingReader(t *testing.T) *stallingReader {
	r := &stallingReader{
		reading: make(chan struct{}),
		once:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	r.once <- struct{}{}
	t.Cleanup(func() { close(r.done) })
	return r
}

func (r *stallingReader) Read([]byte) (int, error) {
	select {
	case <-r.once:
		close(r.reading)
	default:
	}
	<-r.done
	return 0, io.EOF
}

func TestGetInterruptAfterRetryCancelsAgain(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	srv.Script(models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(10)})

	interrupts := make(chan os.Signal, 1)
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	jobN := func(n int) string {
		if ids := srv.JobIDs(); len(ids) > n {
			return ids[n]
		}
		return ""
	}

	go func() {
		waitUntil(t, "first poll", func() bool { return srv.Calls(backendtest.EndpointProgress) > 0 })
		interrupts <- os.Interrupt
		waitUntil(t, "first job cancelled", func() bool { return jobN(0) != "" && srv.Cancelled(jobN(0)) })
		_, _ = pw.Write([]byte("y\n"))

		waitUntil(t, "retried job", func() bool { return jobN(1) != "" })
		polls := srv.Calls(backendtest.EndpointProgress)
		waitUntil(t, "retried job polled", func() bool { return srv.Calls(backendtest.EndpointProgress) > polls })
		interrupts <- os.Interrupt
		waitUntil(t, "retried job cancelled", func() bool { return srv.Cancelled(jobN(1)) })
		_, _ = pw.Write([]byte("n\n"))
	}()

	out, err := run(t, srv, Deps{In: pr, Interrupts: interrupts},
		"get", "https://youtu.be/abc123", "--skip-preview", "--no-history", "--poll-interval", "5ms")
	if err != nil {
		t.Fatalf("first interrupt on the retried job should cancel it, got %v\n%s", err, out)
	}

	ids := srv.JobIDs()
	if len(ids) != 2 {
		t.Fatalf("expected two jobs, got %v", ids)
	}
	for _, id := range ids {
		if !srv.Cancelled(id) {
			t.Errorf("job %q was not cancelled", id)
		}
	}
	if n := strings.Count(out, "Retry this job?"); n != 2 {
		t.Errorf("expected two retry prompts, got %d:\n%s", n, out)
	}
}

func TestGetSecondInterruptAbandonsJob(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	srv.Script(models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(10)})
	srv.SetCancel(false, "Cannot cancel right now.")

	interrupts := make(chan os.Signal, 2)
	go func() {
		waitUntil(t, "first poll", func() bool { return srv.Calls(backendtest.EndpointProgress) > 0 })
		interrupts <- os.Interrupt
		waitUntil(t, "cancel request", func() bool { return srv.Calls(backendtest.EndpointCancel) > 0 })
		interrupts <- os.Interrupt
	}()

	_, err := run(t, srv, Deps{Interrupts: interrupts},
		"get", "https://youtu.be/abc123", "--skip-preview", "--no-history", "--poll-interval", "5ms")
	if !errors.Is(err, errAborted) {
		t.Fatalf("expected the job to be abandoned, got %v", err)
	}
}

func TestInterruptAtRetryPromptStopsCommand(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	srv.Script(models.ProgressPayload{OK: true, Status: "downloading", Progress: backendtest.Float(10)})

	in := newStallingReader(t)
	interrupts := make(chan os.Signal, 1)
	go func() {
		waitUntil(t, "first poll", func() bool { return srv.Calls(backendtest.EndpointProgress) > 0 })
		interrupts <- os.Interrupt
		select {
		case <-in.reading:
			interrupts <- os.Interrupt
		case <-time.After(testTimeout):
		}
	}()

	_, err := run(t, srv, Deps{In: in, Interrupts: interrupts},
		"get", "https://youtu.be/abc123", "--skip-preview", "--no-history", "--poll-interval", "5ms")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the prompt to be interrupted, got %v", err)
	}
	if n := len(srv.StartedURLs()); n != 1 {
		t.Errorf("interrupted prompt started %d jobs", n)
	}
}

func TestInterruptStopsStatusCommand(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	client, err := backend.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	jobID, err := client.Start(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	release := srv.HoldProgress(jobID)
	t.Cleanup(release)

	interrupts := make(chan os.Signal, 1)
	go func() {
		waitUntil(t, "status request", func() bool { return srv.Calls(backendtest.EndpointProgress) > 0 })
		interrupts <- os.Interrupt
	}()

	_, err = run(t, srv, Deps{Interrupts: interrupts}, "status", jobID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected status to stop on interrupt, got %v", err)
	}
}

func TestStatusFinishedAndNegativeAck(t *testing.T) {
	t.Parallel()

	srv := backendtest.New(t)
	client, err := backend.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	srv.Script(models.ProgressPayload{OK: true, Status: "finished", Progress: backendtest.Float(100), Filename: "clip.mp4"})
	finished, err := client.Start(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, err := run(t, srv, Deps{}, "status", finished)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if want := "Download:   " + srv.URL + "/file/" + finished; !strings.Contains(out, want) {
		t.Errorf("status output missing %q:\n%s", want, out)
	}

	srv.Script(models.ProgressPayload{OK: false})
	rejected, err := client.Start(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err = run(t, srv, Deps{}, "status", rejected)
	var be *models.BackendReportedError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendReportedError, got %v", err)
	}
	if be.Message != consts.MsgBackendProblem || err.Error() == "" {
		t.Errorf("negative ack without text surfaced as %q", be.Message)
	}
}
