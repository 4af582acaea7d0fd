package consts

// Database tables
const (
	DBJobs = "jobs"
)

// Jobs table columns
const (
	QJobID        = "id"
	QJobJobID     = "job_id"
	QJobURL       = "url"
	QJobVariant   = "variant"
	QJobPhase     = "phase"
	QJobPercent   = "percent"
	QJobFilename  = "filename"
	QJobMessage   = "message"
	QJobCreatedAt = "created_at"
	QJobUpdatedAt = "updated_at"
)
