// Package consts holds various global, unchanging values.
package consts

// Supported video platform.
const (
	PlatformName = "YouTube"

	HostPrimary    = "youtube.com"
	HostWWW        = "www.youtube.com"
	HostMobile     = "m.youtube.com"
	HostShortLink  = "youtu.be"
	HostMusic      = "music.youtube.com"
	CanonicalHost  = HostWWW
	CanonicalWatch = "https://" + CanonicalHost + "/watch"
	CanonicalShort = "https://" + CanonicalHost + "/shorts/"

	WatchPath    = "/watch"
	ShortsSegID  = "shorts"
	VideoIDParam = "v"
)

// AllowedHosts is the hostname allow-list for user supplied URLs.
var AllowedHosts = map[string]struct{}{
	HostPrimary:   {},
	HostWWW:       {},
	HostMobile:    {},
	HostShortLink: {},
	HostMusic:     {},
}

// Render placeholders for missing progress fields.
const (
	PlaceholderBytes = "0 B"
	PlaceholderTotal = "?"
	PlaceholderSpeed = "-"
)

// Processing floor keeps the bar short of completion until the server finalizes.
const (
	ProcessingFloorPct = 99.0
	MinPct             = 0.0
	MaxPct             = 100.0
)

// Backend API paths, relative to the configured API prefix.
const (
	DefaultBackendURL = "http://localhost:8000"
	DefaultAPIPrefix  = "/api"

	PathProbe    = "/probe"
	PathStart    = "/start"
	PathProgress = "/progress/"
	PathCancel   = "/cancel/"
	PathRecent   = "/recent"
	PathFile     = "/file/"
)

// HTTP header values.
const (
	ApplicationJSON = "application/json"
	HeaderRequestID = "X-Request-ID"
	UserAgent       = "tubefetch/1.0"
)

// ISTLayout is the backend's human timestamp layout (zone name stripped).
const ISTLayout = "02 Jan 2006, 03:04:05 PM"

// MaxAssetBytes bounds a single preview image download.
const MaxAssetBytes = 8 << 20
