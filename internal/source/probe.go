// Package source validates video source URLs before they reach the
// playback engine, so obviously dead links fail fast with a useful
// error instead of an opaque player failure.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ProbeResult describes what a probe learned about a source URL.
type ProbeResult struct {
	URL           string
	StatusCode    int
	ContentType   string
	ContentLength int64 // -1 when unknown
	Reachable     bool
}

// Prober checks source URLs over HTTP.
type Prober struct {
	resty  *resty.Client
	logger *slog.Logger
}

// ProberConfig holds configuration for the prober
type ProberConfig struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	Logger    *slog.Logger
}

// NewProber creates a prober with the given configuration.
func NewProber(config ProberConfig) *Prober {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "vidbridge/1.0"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	restyClient := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "*/*")

	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500 || r.StatusCode() == 429
	})

	return &Prober{
		resty:  restyClient,
		logger: logger,
	}
}

// Probe checks whether a source URL looks playable. Non-HTTP URLs
// (local files, rtmp, etc) pass through unprobed. HEAD is tried first;
// servers that reject HEAD get a ranged GET instead.
func (p *Prober) Probe(ctx context.Context, rawURL string, headers map[string]string) (*ProbeResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ProbeResult{URL: rawURL, Reachable: true, ContentLength: -1}, nil
	}

	resp, err := p.request(ctx, resty.MethodHead, rawURL, headers)
	if err != nil || resp.StatusCode() == 405 || resp.StatusCode() == 501 {
		// Some CDNs refuse HEAD outright. A one-byte ranged GET is the
		// cheapest fallback.
		resp, err = p.request(ctx, resty.MethodGet, rawURL, withRange(headers))
		if err != nil {
			return nil, fmt.Errorf("source unreachable: %w", err)
		}
	}

	result := &ProbeResult{
		URL:           rawURL,
		StatusCode:    resp.StatusCode(),
		ContentType:   resp.Header().Get("Content-Type"),
		ContentLength: contentLength(resp),
		Reachable:     resp.StatusCode() >= 200 && resp.StatusCode() < 400,
	}

	if !result.Reachable {
		p.logger.Warn("source probe failed", "url", rawURL, "status", result.StatusCode)
		return result, fmt.Errorf("source returned HTTP %d", result.StatusCode)
	}

	p.logger.Debug("source probe ok",
		"url", rawURL,
		"status", result.StatusCode,
		"content_type", result.ContentType,
	)
	return result, nil
}

func (p *Prober) request(ctx context.Context, method, url string, headers map[string]string) (*resty.Response, error) {
	req := p.resty.R().SetContext(ctx)
	for key, value := range headers {
		req.SetHeader(key, value)
	}
	return req.Execute(method, url)
}

func withRange(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out["Range"] = "bytes=0-0"
	return out
}

func contentLength(resp *resty.Response) int64 {
	// A ranged GET reports the full size after the slash in
	// Content-Range.
	if cr := resp.Header().Get("Content-Range"); cr != "" {
		if idx := strings.LastIndex(cr, "/"); idx >= 0 {
			if size, err := strconv.ParseInt(cr[idx+1:], 10, 64); err == nil {
				return size
			}
		}
	}
	if cl := resp.Header().Get("Content-Length"); cl != "" {
		if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return size
		}
	}
	return -1
}
