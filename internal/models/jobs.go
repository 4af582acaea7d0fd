package models

import (
	"time"

	"tubefetch/internal/urls"
)

// ActiveJob is the controller's single live job.
type ActiveJob struct {
	ID        string
	Source    urls.NormalizedURL
	Phase     JobPhase
	StartedAt time.Time
}

// RenderState is the render-ready view of one progress payload.
type RenderState struct {
	Phase         JobPhase
	Percent       float64
	PercentText   string
	Indeterminate bool
	Downloaded    string
	Total         string
	Speed         string
	ETA           string
	Label         string
	StartedAt     string
	ExpiresAt     string
	ExpiresAtTime time.Time
	Filename      string
	DownloadURL   string
	Message       string
}

// Preview is what the preview panel shows once revealed.
type Preview struct {
	Source          urls.NormalizedURL
	Meta            PreviewMetadata
	ThumbnailLoaded bool
	AvatarSrc       string
	AvatarGenerated bool
	TimedOut        bool
}

// HistoryEntry is a locally recorded job.
type HistoryEntry struct {
	ID        int64
	JobID     string
	URL       string
	Variant   string
	Phase     JobPhase
	Percent   float64
	Filename  string
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
