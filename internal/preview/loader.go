// Package preview loads video metadata and its images before showing them.
package preview

import (
	"context"
	"errors"
	"sync"
	"time"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/logger"
	"tubefetch/internal/models"
	"tubefetch/internal/urls"
)

// Prober fetches preview metadata from the backend.
type Prober interface {
	Probe(ctx context.Context, target string) (models.ProbeResponse, error)
}

// Loader coordinates the probe and image loads for one preview at a time.
type Loader struct {
	prober   Prober
	assets   AssetFetcher
	surface  models.Surface
	debounce time.Duration
	ceiling  time.Duration
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDebounce sets the delay between the last image load and the reveal.
func WithDebounce(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d >= 0 {
			l.debounce = d
		}
	}
}

// WithCeiling sets the longest time images are waited for.
func WithCeiling(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.ceiling = d
		}
	}
}

// NewLoader returns a preview loader. A nil assets fetcher skips image loads.
func NewLoader(p Prober, assets AssetFetcher, surface models.Surface, opts ...LoaderOption) *Loader {
	l := &Loader{
		prober:   p,
		assets:   assets,
		surface:  surface,
		debounce: consts.DefaultPreviewDebounce,
		ceiling:  consts.DefaultPreviewCeiling,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadPreview probes u, waits (bounded) for its images and shows the preview.
//
// A failed or rejected probe is reported to the surface and returned as a
// *models.ProbeError; nothing is shown in that case.
func (l *Loader) LoadPreview(ctx context.Context, u urls.NormalizedURL) (models.Preview, error) {
	l.surface.ClearPreview()

	resp, err := l.prober.Probe(ctx, u.String())
	if err != nil {
		var pe *models.ProbeError
		if !errors.As(err, &pe) {
			pe = &models.ProbeError{Message: "Probe failed", Err: err}
		}
		logger.Pl.E("Preview for %q failed: %v", u, pe)
		l.surface.Notify(models.NoticeError, pe.Message)
		return models.Preview{}, pe
	}

	var meta models.PreviewMetadata
	if resp.Meta != nil {
		meta = *resp.Meta
	}

	g := newGate(l.debounce, l.ceiling)
	defer g.stop()

	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu sync.Mutex
		pv = models.Preview{Source: u, Meta: meta}
	)

	if meta.ThumbnailURL != "" && l.assets != nil {
		g.expect(1)
		go func() {
			err := l.assets.Fetch(loadCtx, meta.ThumbnailURL)
			mu.Lock()
			pv.ThumbnailLoaded = err == nil
			mu.Unlock()
			g.complete()
		}()
	}

	if meta.ChannelAvatarURL != "" && l.assets != nil {
		g.expect(1)
		go func() {
			err := l.assets.Fetch(loadCtx, meta.ChannelAvatarURL)
			mu.Lock()
			if err == nil {
				pv.AvatarSrc = meta.ChannelAvatarURL
			} else {
				pv.AvatarSrc = InitialAvatar(meta.UploaderName)
				pv.AvatarGenerated = true
			}
			mu.Unlock()
			g.complete()
		}()
	} else {
		pv.AvatarSrc = InitialAvatar(meta.UploaderName)
		pv.AvatarGenerated = true
	}

	g.arm()

	select {
	case <-g.revealed():
	case <-ctx.Done():
		return models.Preview{}, ctx.Err()
	}
	cancel()

	mu.Lock()
	out := pv
	mu.Unlock()

	// An avatar still loading at the ceiling is shown as its fallback.
	if out.AvatarSrc == "" {
		out.AvatarSrc = InitialAvatar(meta.UploaderName)
		out.AvatarGenerated = true
	}
	out.TimedOut = g.hitCeiling()

	logger.Pl.D(2, "Revealing preview for %q (timed out: %v)", u, out.TimedOut)
	l.surface.ShowPreview(out)
	return out, nil
}
