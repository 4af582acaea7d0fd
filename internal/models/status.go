package models

import (
	"fmt"
	"strings"
)

// JobPhase is the lifecycle stage of a backend job as seen by the client.
type JobPhase string

const (
	PhaseQueued      JobPhase = "queued"
	PhaseDownloading JobPhase = "downloading"
	PhaseProcessing  JobPhase = "processing"
	PhaseFinished    JobPhase = "finished"
	PhaseExpired     JobPhase = "expired"
	PhaseCancelled   JobPhase = "cancelled"
	PhaseError       JobPhase = "error"
)

// AllPhases lists every phase in lifecycle order.
var AllPhases = [...]JobPhase{
	PhaseQueued,
	PhaseDownloading,
	PhaseProcessing,
	PhaseFinished,
	PhaseExpired,
	PhaseCancelled,
	PhaseError,
}

// String returns the string representation of JobPhase.
func (p JobPhase) String() string {
	return string(p)
}

// IsTerminal reports whether polling stops in this phase.
func (p JobPhase) IsTerminal() bool {
	switch p {
	case PhaseFinished, PhaseExpired, PhaseCancelled, PhaseError:
		return true
	case PhaseQueued, PhaseDownloading, PhaseProcessing:
		return false
	}
	return true
}

// IsActive reports whether the job is still being worked on by the backend.
func (p JobPhase) IsActive() bool {
	switch p {
	case PhaseQueued, PhaseDownloading, PhaseProcessing:
		return true
	}
	return false
}

// DisplayStatus is the status word shown to users.
//
// Processing is shown as downloading; the percent floor still applies.
func (p JobPhase) DisplayStatus() string {
	if p == PhaseProcessing {
		return string(PhaseDownloading)
	}
	return string(p)
}

// UnknownStatusError is returned for a status string outside the enumeration.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unexpected job status %q", e.Status)
}

// PhaseFromStatus maps a reported status string onto a JobPhase.
func PhaseFromStatus(status string) (JobPhase, error) {
	switch p := JobPhase(strings.ToLower(strings.TrimSpace(status))); p {
	case PhaseQueued, PhaseDownloading, PhaseProcessing,
		PhaseFinished, PhaseExpired, PhaseCancelled, PhaseError:
		return p, nil
	}
	return PhaseError, &UnknownStatusError{Status: status}
}
