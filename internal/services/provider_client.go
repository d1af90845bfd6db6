package services

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/codyseavey/cardprice/internal/metrics"
	"github.com/codyseavey/cardprice/internal/ratelimit"
)

const (
	providerDefaultTimeout = 30 * time.Second
	// retryAfterFallback applies when a 429 carries no usable Retry-After.
	retryAfterFallback = 60 * time.Second
	maxBodyBytes       = 8 << 20
)

// Pacing groups the shared request budget and the provider's own queue.
type Pacing struct {
	Limiter     *ratelimit.Limiter
	Queue       *ratelimit.Queue
	MaxRequests int
	Window      time.Duration
}

// providerClient is the HTTP plumbing every adapter shares: budget check,
// serialized dispatch through the provider queue, status mapping and body
// decoding.
type providerClient struct {
	name     string
	client   *http.Client
	pacing   Pacing
	decorate func(req *http.Request)
	now      func() time.Time
}

func newProviderClient(name string, pacing Pacing, decorate func(req *http.Request)) *providerClient {
	return &providerClient{
		name:     name,
		client:   &http.Client{Timeout: providerDefaultTimeout},
		pacing:   pacing,
		decorate: decorate,
		now:      time.Now,
	}
}

// get fetches url and returns the decoded response body.
// 404 maps to ErrNotFound and 429 to *RateLimitError.
func (p *providerClient) get(ctx context.Context, url string) ([]byte, error) {
	if err := p.admit(); err != nil {
		return nil, err
	}

	var body []byte
	run := func(ctx context.Context) error {
		var err error
		body, err = p.do(ctx, url)
		return err
	}

	var err error
	if p.pacing.Queue != nil {
		err = p.pacing.Queue.Do(ctx, run)
	} else {
		err = run(ctx)
	}
	return body, err
}

// getJSON fetches url and decodes the JSON body into out. An empty or
// malformed body is an error.
func (p *providerClient) getJSON(ctx context.Context, url string, out any) error {
	body, err := p.get(ctx, url)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("%s returned an empty body", p.name)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", p.name, err)
	}
	return nil
}

func (p *providerClient) admit() error {
	if p.pacing.Limiter == nil {
		return nil
	}
	if isBlocked, until := p.pacing.Limiter.IsBlocked(p.name); isBlocked {
		metrics.ProviderRateLimited.WithLabelValues(p.name, "local").Inc()
		return &RateLimitError{Provider: p.name, RetryAt: until}
	}
	if p.pacing.MaxRequests <= 0 {
		return nil
	}
	res := p.pacing.Limiter.CheckLimit(p.name, p.pacing.MaxRequests, p.pacing.Window)
	if !res.Allowed {
		metrics.ProviderRateLimited.WithLabelValues(p.name, "local").Inc()
		return &RateLimitError{Provider: p.name, RetryAt: res.ResetAt, Local: true}
	}
	return nil
}

func (p *providerClient) do(ctx context.Context, url string) ([]byte, error) {
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.decorate != nil {
		p.decorate(req)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.ObserveProvider(p.name, "error", started)
		return nil, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.ObserveProvider(p.name, "not_found", started)
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.ObserveProvider(p.name, "rate_limited", started)
		metrics.ProviderRateLimited.WithLabelValues(p.name, "remote").Inc()
		retryAt := ratelimit.ParseRetryAfter(resp.Header.Get("Retry-After"), p.now(), retryAfterFallback)
		if p.pacing.Limiter != nil {
			p.pacing.Limiter.SetRateLimited(p.name, retryAt)
		}
		log.Printf("%s: rate limited until %s", p.name, retryAt.Format(time.RFC3339))
		return nil, &RateLimitError{Provider: p.name, RetryAt: retryAt}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.ObserveProvider(p.name, "error", started)
		return nil, fmt.Errorf("%s API returned status %d", p.name, resp.StatusCode)
	}

	reader, err := decodedBody(resp)
	if err != nil {
		metrics.ObserveProvider(p.name, "error", started)
		return nil, fmt.Errorf("failed to decode %s body: %w", p.name, err)
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		metrics.ObserveProvider(p.name, "error", started)
		return nil, fmt.Errorf("failed to read %s body: %w", p.name, err)
	}

	metrics.ObserveProvider(p.name, "ok", started)
	return body, nil
}

// decodedBody unwraps gzip and brotli bodies. net/http only decodes gzip
// transparently when it set Accept-Encoding itself.
func decodedBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// outcomeLabel classifies an adapter error for logs.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsRateLimited(err):
		return "rate_limited"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	default:
		return "error"
	}
}
