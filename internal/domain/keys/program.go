// Package keys holds the viper keys and flag names used by tubefetch.
package keys

// Backend
const (
	BackendURL  string = "backend-url"
	APIPrefix   string = "api-prefix"
	HTTPTimeout string = "http-timeout"
)

// Job tracking
const (
	PollInterval    string = "poll-interval"
	PreviewTimeout  string = "preview-timeout"
	PreviewDebounce string = "preview-debounce"
	SkipPreview     string = "skip-preview"
)

// Results
const (
	OutputDir    string = "output-directory"
	FetchResult  string = "fetch"
	AssumeYes    string = "yes"
	NoHistory    string = "no-history"
	HistoryLimit string = "limit"
	ConfigFile   string = "config"
	DBFile       string = "db-file"
	LogFile      string = "log-file"
)

// Logging
const (
	DebugLevel string = "debug"
	NoColor    string = "no-color"
)
