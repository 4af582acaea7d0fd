// Package backend is the HTTP client for the download service.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/logger"
	"tubefetch/internal/models"
	"tubefetch/internal/net"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// maxJSONBytes bounds any single JSON response.
const maxJSONBytes = 1 << 20

// Client talks to one backend instance.
type Client struct {
	base      *url.URL
	apiPrefix string
	timeout   time.Duration
	jar       *cookiejar.Jar
	transport *http.Transport
	http      *http.Client
	files     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIPrefix sets the path prefix of the JSON endpoints (default "/api").
func WithAPIPrefix(prefix string) Option {
	return func(c *Client) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		c.apiPrefix = strings.TrimSuffix(prefix, "/")
	}
}

// WithTimeout sets the per-request timeout of JSON calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient returns a client for the backend rooted at baseURL.
//
// Private network backends get a transport that accepts self-signed certificates.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend URL %q must use http or https", baseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("backend URL %q has no host", baseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		base:      base,
		apiPrefix: consts.DefaultAPIPrefix,
		timeout:   consts.HTTPClientTimeout,
		jar:       jar,
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if net.IsPrivateNetwork(base.Host) {
		logger.Pl.D(1, "Backend %q is on a private network, accepting self-signed certificates", base.Host)
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	c.transport = transport

	c.http = &http.Client{Timeout: c.timeout, Transport: transport, Jar: jar}
	c.files = &http.Client{Transport: transport, Jar: jar}
	return c, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Jar returns the cookie jar shared by every request to the backend.
func (c *Client) Jar() *cookiejar.Jar {
	return c.jar
}

// Transport returns the round tripper used for backend requests.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// Probe asks the backend for preview metadata of a normalized URL.
func (c *Client) Probe(ctx context.Context, target string) (models.ProbeResponse, error) {
	var resp models.ProbeResponse
	if _, err := c.doJSON(ctx, http.MethodPost, consts.PathProbe, models.ProbeRequest{URL: target}, &resp); err != nil {
		return resp, &models.ProbeError{Message: "Probe request failed", Err: err}
	}
	if !resp.OK {
		return resp, &models.ProbeError{Message: messageOr(resp.Error, "Probe failed.")}
	}
	if resp.Meta == nil {
		resp.Meta = &models.PreviewMetadata{}
	}
	return resp, nil
}

// Start creates a download job and returns its id.
func (c *Client) Start(ctx context.Context, target string) (string, error) {
	var resp models.StartResponse
	if _, err := c.doJSON(ctx, http.MethodPost, consts.PathStart, models.ProbeRequest{URL: target}, &resp); err != nil {
		return "", &models.StartError{Message: "Start request failed", Err: err}
	}
	if !resp.OK {
		return "", &models.StartError{Message: messageOr(resp.Error, "Start failed.")}
	}
	if strings.TrimSpace(resp.JobID) == "" {
		return "", &models.StartError{Message: "Backend accepted the job without returning an id."}
	}
	return resp.JobID, nil
}

// Progress fetches the current status of a job.
//
// A negative acknowledgment is returned as a payload with OK false, not as an
// error. Errors mean the status could not be read at all.
func (c *Client) Progress(ctx context.Context, jobID string) (models.ProgressPayload, error) {
	var p models.ProgressPayload
	if _, err := c.doJSON(ctx, http.MethodGet, consts.PathProgress+url.PathEscape(jobID), nil, &p); err != nil {
		return models.ProgressPayload{}, err
	}
	return p, nil
}

// Cancel asks the backend to cancel a job. Acceptance is advisory.
func (c *Client) Cancel(ctx context.Context, jobID string) (models.CancelResponse, error) {
	var resp models.CancelResponse
	if _, err := c.doJSON(ctx, http.MethodPost, consts.PathCancel+url.PathEscape(jobID), nil, &resp); err != nil {
		return resp, &models.CancelRequestError{JobID: jobID, Err: err}
	}
	if !resp.OK {
		return resp, &models.CancelRequestError{JobID: jobID, Message: resp.Message}
	}
	return resp, nil
}

// Recent lists the backend's most recent jobs, newest first.
func (c *Client) Recent(ctx context.Context) ([]models.RecentJob, error) {
	var resp models.RecentResponse
	if _, err := c.doJSON(ctx, http.MethodGet, consts.PathRecent, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	if !resp.OK {
		return nil, errors.New(messageOr(resp.Error, "backend refused to list recent jobs"))
	}
	return resp.Jobs, nil
}

// ResolveLink returns a backend-relative download link as an absolute URL.
func (c *Client) ResolveLink(link string) (string, error) {
	return c.resolve(link)
}

// endpoint joins the API prefix and an already escaped path onto the backend root.
func (c *Client) endpoint(path string) string {
	return c.base.String() + c.apiPrefix + path
}

// resolve turns a backend-relative link such as "/file/abc" into an absolute URL.
func (c *Client) resolve(link string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("invalid download link %q: %w", link, err)
	}
	return c.base.ResolveReference(ref).String(), nil
}

// doJSON sends body (if any) and decodes the JSON response into out.
//
// Non-2xx responses still decode when they carry JSON, since the backend
// reports rejections as {"ok": false, ...} with a 4xx status.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	endpoint := c.endpoint(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build %s %s: %w", method, endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", consts.ApplicationJSON)
	}
	req.Header.Set("Accept", consts.ApplicationJSON)
	req.Header.Set("User-Agent", consts.UserAgent)

	reqID := uuid.NewString()
	req.Header.Set(consts.HeaderRequestID, reqID)
	logger.Pl.D(4, "%s %s (request %s)", method, endpoint, reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Pl.E("Failed to close HTTP response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= 400 {
			return resp.StatusCode, fmt.Errorf("backend returned HTTP %d for %s", resp.StatusCode, endpoint)
		}
		return resp.StatusCode, fmt.Errorf("malformed response from %s: %w", endpoint, err)
	}
	logger.Pl.D(5, "Response %d for request %s: %s", resp.StatusCode, reqID, raw)
	return resp.StatusCode, nil
}

func messageOr(msg, fallback string) string {
	if msg = strings.TrimSpace(msg); msg != "" {
		return msg
	}
	return fallback
}
