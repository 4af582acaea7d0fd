// Package backendtest provides a scriptable in-process download backend.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tubefetch/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Endpoint names used by Calls.
const (
	EndpointProbe    = "probe"
	EndpointStart    = "start"
	EndpointProgress = "progress"
	EndpointCancel   = "cancel"
	EndpointRecent   = "recent"
	EndpointFile     = "file"
)

type job struct {
	id        string
	url       string
	script    []models.ProgressPayload
	step      int
	cancelled bool
	fail      bool
	hold      chan struct{}
	created   time.Time
	last      models.ProgressPayload
}

type file struct {
	name string
	data []byte
}

// Server is a fake backend. The zero configuration accepts every probe and
// start, and reports each job as finished on its first poll.
type Server struct {
	URL string

	srv *httptest.Server

	mu          sync.Mutex
	probe       models.ProbeResponse
	probeStatus int
	startErr    string
	script      []models.ProgressPayload
	cancelOK    bool
	cancelMsg   string
	jobs        map[string]*job
	order       []string
	files       map[string]file
	anyFile     *file
	calls       map[string]int
	started     []string
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		probe: models.ProbeResponse{
			OK: true,
			Meta: &models.PreviewMetadata{
				ID:           "abc123",
				Title:        "Test video",
				UploaderName: "Test channel",
			},
		},
		probeStatus: http.StatusOK,
		script: []models.ProgressPayload{
			{OK: true, Status: "finished", Progress: Float(100)},
		},
		cancelOK:  true,
		cancelMsg: "Cancellation requested.",
		jobs:      make(map[string]*job),
		files:     make(map[string]file),
		calls:     make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Post("/probe", s.handleProbe)
		r.Post("/start", s.handleStart)
		r.Get("/progress/{jobID}", s.handleProgress)
		r.Post("/cancel/{jobID}", s.handleCancel)
		r.Get("/recent", s.handleRecent)
	})
	r.Get("/file/{jobID}", s.handleFile)

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL
	t.Cleanup(s.Close)
	return s
}

// Close releases held polls and shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	for _, j := range s.jobs {
		if j.hold != nil {
			close(j.hold)
			j.hold = nil
		}
	}
	s.mu.Unlock()
	s.srv.Close()
}

// Float returns a pointer to f, for progress and ETA fields.
func Float(f float64) *float64 { return &f }

// SetProbe sets the response (and HTTP status) of every following probe.
func (s *Server) SetProbe(status int, resp models.ProbeResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeStatus = status
	s.probe = resp
}

// RejectStart makes following start requests fail with msg. An empty msg
// accepts them again.
func (s *Server) RejectStart(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startErr = msg
}

// Script sets the progress sequence for jobs started afterwards. Each poll
// advances one step and the last step repeats.
func (s *Server) Script(steps ...models.ProgressPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append([]models.ProgressPayload(nil), steps...)
}

// SetCancel sets the outcome of following cancel requests.
func (s *Server) SetCancel(ok bool, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelOK = ok
	s.cancelMsg = msg
}

// FailProgress makes polls of jobID answer with a non-JSON 502.
func (s *Server) FailProgress(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		j.fail = true
	}
}

// HoldProgress blocks polls of jobID until the returned release is called.
func (s *Server) HoldProgress(jobID string) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return func() {}
	}
	hold := make(chan struct{})
	j.hold = hold

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if j.hold == hold {
				j.hold = nil
				close(hold)
			}
		})
	}
}

// SetFile serves data as the result file of jobID.
func (s *Server) SetFile(jobID, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[jobID] = file{name: name, data: data}
}

// SetAnyFile serves data as the result file of every job without its own file.
func (s *Server) SetAnyFile(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anyFile = &file{name: name, data: data}
}

// Calls reports how many requests an endpoint has served.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// StartedURLs lists the URLs of every accepted start request, in order.
func (s *Server) StartedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...)
}

// JobIDs lists created job ids, oldest first.
func (s *Server) JobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Cancelled reports whether a cancel for jobID was accepted.
func (s *Server) Cancelled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	return ok && j.cancelled
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var req models.ProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.count(EndpointProbe)
		writeJSON(w, http.StatusBadRequest, models.ProbeResponse{OK: false, Error: "Missing url"})
		return
	}

	s.mu.Lock()
	s.calls[EndpointProbe]++
	status, resp := s.probeStatus, s.probe
	s.mu.Unlock()

	if resp.OK && resp.CleanURL == "" {
		resp.CleanURL = req.URL
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req models.ProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.count(EndpointStart)
		writeJSON(w, http.StatusBadRequest, models.StartResponse{OK: false, Error: "Missing url"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[EndpointStart]++

	if s.startErr != "" {
		writeJSON(w, http.StatusBadRequest, models.StartResponse{OK: false, Error: s.startErr})
		return
	}

	id := uuid.NewString()
	s.jobs[id] = &job{
		id:      id,
		url:     req.URL,
		script:  append([]models.ProgressPayload(nil), s.script...),
		created: time.Now(),
	}
	s.order = append(s.order, id)
	s.started = append(s.started, req.URL)
	writeJSON(w, http.StatusOK, models.StartResponse{OK: true, JobID: id})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	s.mu.Lock()
	s.calls[EndpointProgress]++
	j, ok := s.jobs[id]
	var hold chan struct{}
	if ok {
		hold = j.hold
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, models.ProgressPayload{OK: false, Error: "Job not found"})
		return
	}

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if j.fail {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, j.next())
}

// next returns the job's current payload and advances its script.
func (j *job) next() models.ProgressPayload {
	var p models.ProgressPayload
	switch {
	case j.cancelled:
		p = j.last
		p.OK = true
		p.Status = string(models.PhaseCancelled)
		p.Error = "Cancelled by user."
	case len(j.script) == 0:
		p = models.ProgressPayload{OK: true, Status: string(models.PhaseQueued)}
	default:
		p = j.script[j.step]
		if j.step < len(j.script)-1 {
			j.step++
		}
	}

	p.ID = j.id
	j.last = p
	return p
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[EndpointCancel]++

	j, ok := s.jobs[id]
	switch {
	case !ok:
		writeJSON(w, http.StatusBadRequest, models.CancelResponse{OK: false, Message: "Job not found."})
	case !s.cancelOK:
		writeJSON(w, http.StatusBadRequest, models.CancelResponse{OK: false, Message: s.cancelMsg})
	case j.last.Status != "" && j.last.Status != string(models.PhaseQueued) &&
		j.last.Status != string(models.PhaseDownloading) && j.last.Status != string(models.PhaseProcessing):
		writeJSON(w, http.StatusBadRequest, models.CancelResponse{OK: false, Message: fmt.Sprintf("Job already %s.", j.last.Status)})
	default:
		j.cancelled = true
		writeJSON(w, http.StatusOK, models.CancelResponse{OK: true, Message: s.cancelMsg})
	}
}

func (s *Server) handleRecent(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[EndpointRecent]++

	jobs := make([]models.RecentJob, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		j := s.jobs[s.order[i]]
		status := j.last.Status
		if status == "" {
			status = string(models.PhaseQueued)
		}
		var pct float64
		if j.last.Progress != nil {
			pct = *j.last.Progress
		}
		jobs = append(jobs, models.RecentJob{
			ID:       j.id,
			URL:      j.url,
			Status:   status,
			Progress: pct,
			Filename: j.last.Filename,
			Expired:  j.last.Expired,
		})
	}
	writeJSON(w, http.StatusOK, models.RecentResponse{OK: true, Jobs: jobs})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	s.mu.Lock()
	s.calls[EndpointFile]++
	f, ok := s.files[id]
	if _, known := s.jobs[id]; !ok && known && s.anyFile != nil {
		f, ok = *s.anyFile, true
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.name))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.data)
}

func (s *Server) count(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[endpoint]++
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
