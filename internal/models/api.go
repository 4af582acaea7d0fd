package models

// PreviewMetadata is the probe result used to populate the preview panel.
type PreviewMetadata struct {
	ID               string `json:"id,omitempty"`
	Title            string `json:"title,omitempty"`
	ThumbnailURL     string `json:"thumbnail,omitempty"`
	UploaderName     string `json:"uploader,omitempty"`
	ChannelAvatarURL string `json:"channel_avatar,omitempty"`
	SubscriberCount  *int64 `json:"subscribers,omitempty"`
}

// ProbeRequest is the body of POST /probe and POST /start.
type ProbeRequest struct {
	URL string `json:"url"`
}

// ProbeResponse is returned by POST /probe.
type ProbeResponse struct {
	OK       bool             `json:"ok"`
	Meta     *PreviewMetadata `json:"meta,omitempty"`
	CleanURL string           `json:"clean_url,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// StartResponse is returned by POST /start.
type StartResponse struct {
	OK    bool   `json:"ok"`
	JobID string `json:"job_id,omitempty"`
	Error string `json:"error,omitempty"`
}

// ProgressPayload is returned by GET /progress/{job_id}.
//
// Every field may be absent or null.
type ProgressPayload struct {
	OK           bool     `json:"ok"`
	ID           string   `json:"id,omitempty"`
	Status       string   `json:"status,omitempty"`
	Progress     *float64 `json:"progress,omitempty"`
	Downloaded   string   `json:"downloaded,omitempty"`
	Total        string   `json:"total,omitempty"`
	Speed        string   `json:"speed,omitempty"`
	ETA          *float64 `json:"eta,omitempty"`
	StartedAtIST string   `json:"started_at_ist,omitempty"`
	ExpiresAtIST string   `json:"expires_at_ist,omitempty"`
	Filename     string   `json:"filename,omitempty"`
	DownloadURL  string   `json:"download_url,omitempty"`
	Expired      bool     `json:"expired,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// CancelResponse is returned by POST /cancel/{job_id}.
type CancelResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// RecentJob is one entry of GET /recent.
type RecentJob struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Filename string  `json:"filename,omitempty"`
	Expired  bool    `json:"expired"`
}

// RecentResponse is returned by GET /recent.
type RecentResponse struct {
	OK    bool        `json:"ok"`
	Jobs  []RecentJob `json:"jobs"`
	Error string      `json:"error,omitempty"`
}
