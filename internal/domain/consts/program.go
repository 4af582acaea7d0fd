package consts

// Program identity.
const (
	ProgramName = "tubefetch"
	EnvPrefix   = "TUBEFETCH"
)

// User facing messages.
const (
	MsgCancelRequested = "Cancellation requested."
	MsgCancelFailed    = "Cancel request failed; the job may still be running"
	MsgExpired         = "This download has expired. Start a new job to fetch it again."
	MsgPollFailed      = "Lost contact with the backend while tracking this job"
	MsgNothingToRetry  = "Nothing to retry. Enter a URL to start a new job."
	MsgBackendProblem  = "The backend reported a problem with this job."
)
