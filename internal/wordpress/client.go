// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package wordpress is the REST client for the remote CMS: posts, tags and
// media uploads, with retryable/permanent error classification.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	basePath       = "/wp-json/wp/v2"
	RequestTimeout = 30 * time.Second // HTTP request timeout
	MaxResponseLen = 64 * 1024        // Maximum response body read (64KB)
	UserAgent      = "newsroomkit-publisher/1.0"
)

// defaultHTTPClient is the shared HTTP client with appropriate timeouts.
var defaultHTTPClient = &http.Client{
	Timeout: RequestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Config configures the remote CMS client.
type Config struct {
	// BaseURL is the remote CMS root, e.g. https://news.example.com
	BaseURL string

	// Token is the bearer credential of the publishing account.
	Token string

	// RatePerSecond limits outbound calls; 0 disables limiting.
	RatePerSecond int

	// HTTPClient overrides the shared client (tests).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client talks to the remote CMS REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a remote CMS client. The base URL must be an absolute
// http(s) URL; this is validated before any remote call is made.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute http(s), got %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond*2)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// BaseURL returns the configured remote CMS root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostsURL returns the publish endpoint for a create.
func (c *Client) PostsURL() string {
	return c.baseURL + basePath + "/posts"
}

// PostURL returns the publish endpoint for editing an existing post.
// Edits are partial updates POSTed to the post's own URL.
func (c *Client) PostURL(id int64) string {
	return fmt.Sprintf("%s%s/posts/%d", c.baseURL, basePath, id)
}

// do performs an authenticated request and returns the status code and a
// bounded read of the response body.
func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body io.Reader) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	return resp.StatusCode, data, nil
}

// postJSON sends a JSON payload and returns the response body on 2xx, or an
// *APIError otherwise.
func (c *Client) postJSON(ctx context.Context, rawURL string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	status, body, err := c.do(ctx, http.MethodPost, rawURL, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, errorFromBody(status, body)
	}
	return body, nil
}

// getJSON fetches a URL and decodes the 2xx response into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	status, body, err := c.do(ctx, http.MethodGet, rawURL, "", nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return errorFromBody(status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// ParsePostID extracts the numeric post/media ID from a remote write
// response.
func ParsePostID(body []byte) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	if resp.ID <= 0 {
		return 0, fmt.Errorf("response carries no post id")
	}
	return resp.ID, nil
}

// term is the remote taxonomy term representation.
type term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FindTag searches the remote tags for a case-insensitive name match.
// Returns (0, false, nil) when no tag with that name exists.
func (c *Client) FindTag(ctx context.Context, name string) (int64, bool, error) {
	searchURL := fmt.Sprintf("%s%s/tags?search=%s&per_page=100",
		c.baseURL, basePath, url.QueryEscape(name))

	var terms []term
	if err := c.getJSON(ctx, searchURL, &terms); err != nil {
		return 0, false, fmt.Errorf("searching tags: %w", err)
	}
	for _, t := range terms {
		if strings.EqualFold(t.Name, name) {
			return t.ID, true, nil
		}
	}
	return 0, false, nil
}

// CreateTag creates a tag on the remote CMS and returns its ID. A
// duplicate-term rejection from a concurrent create is treated as success:
// the remote reports the existing term's ID and that is returned.
func (c *Client) CreateTag(ctx context.Context, name string) (int64, error) {
	body, err := c.postJSON(ctx, c.baseURL+basePath+"/tags", map[string]string{"name": name})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsDuplicateTerm() && apiErr.TermID > 0 {
			return apiErr.TermID, nil
		}
		return 0, fmt.Errorf("creating tag %q: %w", name, err)
	}

	var t term
	if err := json.Unmarshal(body, &t); err != nil {
		return 0, fmt.Errorf("decoding created tag: %w", err)
	}
	if t.ID <= 0 {
		return 0, fmt.Errorf("created tag %q carries no id", name)
	}
	return t.ID, nil
}

// UploadMedia uploads image bytes to the remote media library with the
// given title as alt text and caption, returning the assigned media ID.
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, data []byte, title string) (int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(data); err != nil {
		return 0, err
	}
	_ = mw.WriteField("title", title)
	_ = mw.WriteField("alt_text", title)
	_ = mw.WriteField("caption", title)
	if err := mw.Close(); err != nil {
		return 0, err
	}

	status, body, err := c.do(ctx, http.MethodPost, c.baseURL+basePath+"/media", mw.FormDataContentType(), &buf)
	if err != nil {
		return 0, fmt.Errorf("uploading media: %w", err)
	}
	if status < 200 || status >= 300 {
		return 0, fmt.Errorf("uploading media: %w", errorFromBody(status, body))
	}
	return ParsePostID(body)
}
