package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/logger"
	"tubefetch/internal/parsing"
)

// FetchFile downloads a finished job's file into destDir.
//
// The name comes from filename, falling back to the response's
// Content-Disposition header. The file only appears under its final name once
// fully written.
func (c *Client) FetchFile(ctx context.Context, downloadURL, destDir, filename string) (path string, n int64, err error) {
	if downloadURL == "" {
		return "", 0, errors.New("job has no download link")
	}
	link, err := c.resolve(downloadURL)
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build request for %q: %w", link, err)
	}
	req.Header.Set("User-Agent", consts.UserAgent)

	resp, err := c.files.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch %q: %w", link, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Pl.E("Failed to close HTTP response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("fetching %q returned HTTP %d", link, resp.StatusCode)
	}

	name := parsing.SanitizeFilename(filename)
	if name == "" {
		name = dispositionName(resp.Header.Get("Content-Disposition"))
	}
	if name == "" {
		return "", 0, fmt.Errorf("no usable file name for %q", link)
	}

	if err := os.MkdirAll(destDir, consts.PermsGenericDir); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory %q: %w", destDir, err)
	}

	tmp, err := os.CreateTemp(destDir, "."+name+".*.part")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file in %q: %w", destDir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Pl.W("Failed to remove partial file %q: %v", tmpPath, rmErr)
			}
		}
	}()

	n, err = io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", n, fmt.Errorf("failed to write %q: %w", name, err)
	}

	if err = os.Chmod(tmpPath, consts.PermsVideoFile); err != nil {
		return "", n, fmt.Errorf("failed to set permissions on %q: %w", tmpPath, err)
	}

	path = filepath.Join(destDir, name)
	if err = os.Rename(tmpPath, path); err != nil {
		return "", n, fmt.Errorf("failed to move %q into place: %w", name, err)
	}

	logger.Pl.D(1, "Fetched %s into %q", parsing.FileSize(n), path)
	return path, n, nil
}

func dispositionName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return parsing.SanitizeFilename(params["filename"])
}
