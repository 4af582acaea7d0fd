package preview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/logger"

	"github.com/gocolly/colly"
)

// AssetFetcher loads one preview image. A nil error means it is displayable.
type AssetFetcher interface {
	Fetch(ctx context.Context, assetURL string) error
}

// CollyFetcher loads preview images with a colly collector.
type CollyFetcher struct {
	jar       *cookiejar.Jar
	transport http.RoundTripper
	timeout   time.Duration
}

// NewCollyFetcher returns a fetcher sharing jar with the backend client.
// A nil transport uses a clone of the default transport.
func NewCollyFetcher(jar *cookiejar.Jar, transport http.RoundTripper, timeout time.Duration) *CollyFetcher {
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if timeout <= 0 {
		timeout = consts.AssetTimeout
	}
	return &CollyFetcher{jar: jar, transport: transport, timeout: timeout}
}

// Fetch downloads assetURL and checks that it is an image.
//
// Data URIs are displayable as they are.
func (f *CollyFetcher) Fetch(ctx context.Context, assetURL string) error {
	if strings.HasPrefix(assetURL, "data:image/") {
		return nil
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxBodySize(consts.MaxAssetBytes),
		colly.UserAgent(consts.UserAgent),
	)
	collector.SetRequestTimeout(f.timeout)
	collector.WithTransport(f.transport)
	if f.jar != nil {
		collector.SetCookieJar(f.jar)
	}

	var fetchErr error
	collector.OnResponse(func(r *colly.Response) {
		ct := r.Headers.Get("Content-Type")
		if !strings.HasPrefix(strings.ToLower(ct), "image/") {
			fetchErr = fmt.Errorf("asset %q is %q, not an image", assetURL, ct)
			return
		}
		if len(r.Body) == 0 {
			fetchErr = fmt.Errorf("asset %q is empty", assetURL)
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("failed to load asset %q (HTTP %d): %w", assetURL, r.StatusCode, err)
	})

	done := make(chan error, 1)
	go func() {
		err := collector.Visit(assetURL)
		if fetchErr != nil {
			err = fetchErr
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Pl.D(2, "Preview asset unavailable: %v", err)
		}
		return err
	case <-ctx.Done():
		return errors.Join(fmt.Errorf("asset %q abandoned", assetURL), ctx.Err())
	}
}
