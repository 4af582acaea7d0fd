// Package progress turns raw job status payloads into render-ready values.
package progress

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/models"
	"tubefetch/internal/parsing"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Map translates a progress payload into a RenderState. It never fails:
// missing or malformed fields fall back to placeholders.
func Map(p models.ProgressPayload) models.RenderState {
	phase, statusErr := models.PhaseFromStatus(p.Status)

	pct := consts.MinPct
	if p.Progress != nil {
		pct = clampPercent(*p.Progress)
	}
	if phase == models.PhaseProcessing && pct < consts.ProcessingFloorPct {
		pct = consts.ProcessingFloorPct
	}

	st := models.RenderState{
		Phase:         phase,
		Percent:       pct,
		PercentText:   parsing.PercentText(pct),
		Indeterminate: phase == models.PhaseQueued,
		Downloaded:    orDefault(p.Downloaded, consts.PlaceholderBytes),
		Total:         orDefault(p.Total, consts.PlaceholderTotal),
		Speed:         orDefault(p.Speed, consts.PlaceholderSpeed),
		ETA:           etaText(p.ETA),
		Label:         statusLabel(phase, p.Status, statusErr),
		StartedAt:     strings.TrimSpace(p.StartedAtIST),
		ExpiresAt:     strings.TrimSpace(p.ExpiresAtIST),
		Filename:      strings.TrimSpace(p.Filename),
		DownloadURL:   strings.TrimSpace(p.DownloadURL),
		Message:       strings.TrimSpace(p.Error),
	}

	if st.ExpiresAt != "" {
		if t, err := parsing.ParseISTTimestamp(st.ExpiresAt); err == nil {
			st.ExpiresAtTime = t
		}
	}
	if statusErr != nil && st.Message == "" {
		st.Message = statusErr.Error()
	}
	return WithFileLink(st, p.ID)
}

// WithFileLink points a finished state without a download link at the
// backend's /file/{id} route, which serves every finished job.
func WithFileLink(st models.RenderState, jobID string) models.RenderState {
	jobID = strings.TrimSpace(jobID)
	if st.Phase != models.PhaseFinished || st.DownloadURL != "" || jobID == "" {
		return st
	}
	st.DownloadURL = consts.PathFile + url.PathEscape(jobID)
	return st
}

// Queued is the state shown right after a job is accepted, before any poll.
func Queued() models.RenderState {
	return Map(models.ProgressPayload{OK: true, Status: string(models.PhaseQueued)})
}

// clampPercent bounds pct to [0,100]; NaN reads as zero.
func clampPercent(pct float64) float64 {
	switch {
	case math.IsNaN(pct):
		return consts.MinPct
	case pct < consts.MinPct:
		return consts.MinPct
	case pct > consts.MaxPct:
		return consts.MaxPct
	}
	return pct
}

func orDefault(s, placeholder string) string {
	if s = strings.TrimSpace(s); s == "" {
		return placeholder
	}
	return s
}

// etaText formats an ETA as whole seconds, e.g. "12s".
func etaText(eta *float64) string {
	if eta == nil || math.IsNaN(*eta) || math.IsInf(*eta, 0) || *eta < 0 {
		return ""
	}
	return fmt.Sprintf("%ds", int64(math.Round(*eta)))
}

func statusLabel(phase models.JobPhase, raw string, statusErr error) string {
	word := phase.DisplayStatus()
	if statusErr != nil {
		word = strings.TrimSpace(raw)
		if word == "" {
			word = "unknown"
		}
	}
	return cases.Upper(language.Und).String(word)
}
