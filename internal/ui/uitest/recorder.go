// Package uitest provides a Surface that records what it was asked to show.
package uitest

import (
	"fmt"
	"sync"
	"time"

	"tubefetch/internal/models"
)

// Event is one call made on the surface.
type Event struct {
	Kind    string
	Job     models.ActiveJob
	State   models.RenderState
	Preview models.Preview
	Err     error
	Level   models.NoticeLevel
	Message string
}

// Event kinds.
const (
	KindPreview      = "preview"
	KindClearPreview = "clear-preview"
	KindProgress     = "progress"
	KindResult       = "result"
	KindCancelled    = "cancelled"
	KindError        = "error"
	KindOfferNewJob  = "offer-new-job"
	KindNotify       = "notify"
	KindReset        = "reset"
)

// Recorder is a concurrency-safe models.Surface.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Recorder) ShowPreview(p models.Preview) { r.add(Event{Kind: KindPreview, Preview: p}) }
func (r *Recorder) ClearPreview()                { r.add(Event{Kind: KindClearPreview}) }
func (r *Recorder) ShowProgress(job models.ActiveJob, st models.RenderState) {
	r.add(Event{Kind: KindProgress, Job: job, State: st})
}
func (r *Recorder) ShowResult(job models.ActiveJob, st models.RenderState) {
	r.add(Event{Kind: KindResult, Job: job, State: st})
}
func (r *Recorder) ShowCancelled(job models.ActiveJob) { r.add(Event{Kind: KindCancelled, Job: job}) }
func (r *Recorder) ShowError(job models.ActiveJob, err error) {
	r.add(Event{Kind: KindError, Job: job, Err: err})
}
func (r *Recorder) OfferNewJob() { r.add(Event{Kind: KindOfferNewJob}) }
func (r *Recorder) Notify(level models.NoticeLevel, msg string) {
	r.add(Event{Kind: KindNotify, Level: level, Message: msg})
}
func (r *Recorder) Reset() { r.add(Event{Kind: KindReset}) }

// Events returns a copy of every recorded call.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of every recorded call, in order.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]string, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Of returns the recorded calls of one kind.
func (r *Recorder) Of(kind string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// WaitFor blocks until match accepts a recorded event or timeout passes.
func (r *Recorder) WaitFor(timeout time.Duration, match func(Event) bool) (Event, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		for _, e := range r.Events() {
			if match(e) {
				return e, nil
			}
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return Event{}, fmt.Errorf("no matching event within %v; saw %v", timeout, r.Kinds())
		}
	}
}

// WaitKind waits for the first event of kind.
func (r *Recorder) WaitKind(timeout time.Duration, kind string) (Event, error) {
	return r.WaitFor(timeout, func(e Event) bool { return e.Kind == kind })
}
