package models

import (
	"errors"
	"fmt"
)

// Controller sentinels.
var (
	ErrNoRetainedURL = errors.New("no previous URL to retry")
	ErrNoActiveJob   = errors.New("no active job")
	ErrJobSuperseded = errors.New("job superseded by a newer job")
)

// ProbeError is a failed or rejected metadata lookup.
type ProbeError struct {
	Message string
	Err     error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProbeError) Unwrap() error { return e.Err }

// StartError is a failed or rejected job creation.
type StartError struct {
	Message string
	Err     error
}

func (e *StartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StartError) Unwrap() error { return e.Err }

// PollTransportError means the status channel of a live job could not be read.
type PollTransportError struct {
	JobID string
	Err   error
}

func (e *PollTransportError) Error() string {
	return fmt.Sprintf("polling job %q failed: %v", e.JobID, e.Err)
}

func (e *PollTransportError) Unwrap() error { return e.Err }

// BackendReportedError carries the backend's own failure message verbatim.
type BackendReportedError struct {
	JobID   string
	Message string
}

func (e *BackendReportedError) Error() string {
	return e.Message
}

// CancelRequestError means a cancel request may not have been registered.
type CancelRequestError struct {
	JobID   string
	Message string
	Err     error
}

func (e *CancelRequestError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("cancel request for job %q failed: %v", e.JobID, e.Err)
	case e.Message != "":
		return e.Message
	}
	return fmt.Sprintf("cancel request for job %q was rejected", e.JobID)
}

func (e *CancelRequestError) Unwrap() error { return e.Err }
