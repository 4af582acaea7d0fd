package consts

import "time"

// Polling and preview timing.
const (
	DefaultPollInterval    = 900 * time.Millisecond
	DefaultPreviewCeiling  = 2500 * time.Millisecond
	DefaultPreviewDebounce = 60 * time.Millisecond
)

// Network timeouts
const (
	HTTPClientTimeout = 15 * time.Second
	AssetTimeout      = 10 * time.Second
	FileFetchTimeout  = 30 * time.Minute
	DatabaseTimeout   = 5 * time.Second
)

// UI and display
const (
	MaxDisplayedJobs = 20
	ProgressBarWidth = 28
)
