// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package media fetches a draft's featured image and uploads it to the
// remote CMS media library.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/newsroomkit/publisher/internal/model"
	"github.com/newsroomkit/publisher/internal/util"
	"github.com/newsroomkit/publisher/internal/wordpress"
)

const (
	fetchTimeout  = 20 * time.Second
	maxImageBytes = 20 << 20 // 20MB upload ceiling
	fetchRetries  = 2        // retries after the first fetch attempt
)

// Resolver uploads a remote image URL to the CMS media library.
type Resolver struct {
	wp     *wordpress.Client
	http   *http.Client
	logger *slog.Logger
}

// NewResolver creates a media resolver. httpClient may be nil.
func NewResolver(wp *wordpress.Client, httpClient *http.Client, logger *slog.Logger) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{wp: wp, http: httpClient, logger: logger}
}

// Resolve fetches the image at imageURL and uploads it to the remote media
// library with title as alt text. Returns (0, false) when imageURL is empty
// or on any failure: a missing featured image never blocks the publish
// pipeline. Failures are logged with credentials redacted from the URL.
func (r *Resolver) Resolve(ctx context.Context, imageURL, title string) (int64, bool) {
	if imageURL == "" {
		return 0, false
	}

	data, contentType, err := r.fetch(ctx, imageURL)
	if err != nil {
		r.logger.Warn("featured image fetch failed, publishing without media",
			"category", model.EventCategoryMedia,
			"image_url", util.RedactURL(imageURL), "error", err)
		return 0, false
	}

	mediaID, err := r.wp.UploadMedia(ctx, filenameFromURL(imageURL), contentType, data, title)
	if err != nil {
		r.logger.Warn("media upload failed, publishing without media",
			"category", model.EventCategoryMedia,
			"image_url", util.RedactURL(imageURL), "error", err)
		return 0, false
	}

	r.logger.Info("featured image uploaded",
		"category", model.EventCategoryMedia, "media_id", mediaID)
	return mediaID, true
}

// fetch downloads the image bytes, retrying transient failures a bounded
// number of times.
func (r *Resolver) fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	var data []byte
	var contentType string

	backoff := retry.WithMaxRetries(fetchRetries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
		if err != nil {
			return err // malformed URL, not retryable
		}
		resp, err := r.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("HTTP %d fetching image", resp.StatusCode)
			if wordpress.RetryableStatus(resp.StatusCode) {
				return retry.RetryableError(err)
			}
			return err
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
		if err != nil {
			return retry.RetryableError(err)
		}
		if len(body) > maxImageBytes {
			return fmt.Errorf("image exceeds %d byte limit", maxImageBytes)
		}
		if len(body) == 0 {
			return fmt.Errorf("image response body is empty")
		}

		contentType = resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(body)
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// filenameFromURL derives an upload filename from the image URL path.
func filenameFromURL(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "featured-image"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "featured-image"
	}
	return name
}
