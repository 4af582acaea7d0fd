// Package urls validates user supplied video links and rewrites them into
// the single canonical form the backend accepts.
package urls

import (
	"fmt"
	"net/url"
	"strings"

	"tubefetch/internal/domain/consts"
)

// VariantKind distinguishes regular videos from shorts.
type VariantKind string

const (
	VariantVideo VariantKind = "video"
	VariantShort VariantKind = "short"
)

// NormalizedURL is a canonical watch or shorts URL.
//
// Only Normalize produces values of this type.
type NormalizedURL struct {
	Target  string      `json:"target"`
	Variant VariantKind `json:"variant"`
}

// String returns the canonical target.
func (n NormalizedURL) String() string {
	return n.Target
}

// IsZero reports whether n was never normalized.
func (n NormalizedURL) IsZero() bool {
	return n.Target == ""
}

// ValidationError is a user facing rejection of the input URL.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(raw, reason string) error {
	return &ValidationError{Input: raw, Reason: reason}
}

// Error reasons.
var (
	ReasonInvalidURL      = "Invalid URL."
	ReasonNeedAbsolute    = "Please enter a valid URL (including https://)."
	ReasonUnsupportedHost = fmt.Sprintf("Only %s URLs are supported.", consts.PlatformName)
	ReasonShortLinkNoID   = fmt.Sprintf("Invalid %s URL (missing id).", consts.HostShortLink)
	ReasonWatchNoID       = fmt.Sprintf("Invalid %s watch URL (missing video id).", consts.PlatformName)
	ReasonShortsNoID      = fmt.Sprintf("Invalid %s shorts URL (missing id).", consts.PlatformName)
	ReasonUnsupportedURL  = fmt.Sprintf("Only direct %s video or shorts URLs are supported.", consts.PlatformName)
)

// Normalize validates raw and returns its canonical form.
func Normalize(raw string) (NormalizedURL, error) {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return NormalizedURL{}, invalid(raw, ReasonInvalidURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return NormalizedURL{}, invalid(raw, ReasonNeedAbsolute)
	}

	host := strings.ToLower(u.Hostname())
	if _, ok := consts.AllowedHosts[host]; !ok {
		return NormalizedURL{}, invalid(raw, ReasonUnsupportedHost)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	switch {
	case host == consts.HostShortLink:
		id := firstSegment(path)
		if id == "" {
			return NormalizedURL{}, invalid(raw, ReasonShortLinkNoID)
		}
		return watchURL(id), nil

	// Also covers the music subdomain.
	case strings.HasPrefix(path, consts.WatchPath):
		return fromWatchQuery(raw, u)

	// A bare "/shorts" is not a shorts link.
	case strings.Contains(path, "/"+consts.ShortsSegID+"/"):
		id := segmentAfter(path, consts.ShortsSegID)
		if id == "" {
			return NormalizedURL{}, invalid(raw, ReasonShortsNoID)
		}
		return shortsURL(id), nil
	}

	return NormalizedURL{}, invalid(raw, ReasonUnsupportedURL)
}

// fromWatchQuery builds a watch URL from the "v" query parameter.
func fromWatchQuery(raw string, u *url.URL) (NormalizedURL, error) {
	id := u.Query().Get(consts.VideoIDParam)
	if id == "" {
		return NormalizedURL{}, invalid(raw, ReasonWatchNoID)
	}
	return watchURL(id), nil
}

func watchURL(id string) NormalizedURL {
	q := url.Values{}
	q.Set(consts.VideoIDParam, id)
	return NormalizedURL{
		Target:  consts.CanonicalWatch + "?" + q.Encode(),
		Variant: VariantVideo,
	}
}

func shortsURL(id string) NormalizedURL {
	return NormalizedURL{
		Target:  consts.CanonicalShort + url.PathEscape(id),
		Variant: VariantShort,
	}
}

// segments splits a URL path into its non-empty parts.
func segments(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstSegment(path string) string {
	parts := segments(path)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func segmentAfter(path, seg string) string {
	parts := segments(path)
	for i, p := range parts {
		if p == seg {
			if i+1 < len(parts) {
				return parts[i+1]
			}
			return ""
		}
	}
	return ""
}
