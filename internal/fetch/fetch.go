// Package fetch implements a rate-limited HTTP client shared by the
// crawl engine and the external embedding/chat services.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Response is the result of a successful fetch. Non-2xx statuses are
// returned here rather than as an error; only transport failures error.
type Response struct {
	Status  int
	Body    []byte
	Headers http.Header
}

// Fetcher performs HTTP requests under two simultaneous pacing limits:
// a minimum inter-request delay and a rolling per-minute cap. It is
// safe for concurrent use; all pacing state is shared across callers.
type Fetcher struct {
	client    *http.Client
	userAgent string
	minDelay  time.Duration
	limiter   *rate.Limiter

	mu      sync.Mutex
	lastReq time.Time
}

// New builds a Fetcher. timeout bounds each request; maxRedirects caps
// the number of redirects followed; minDelay is the minimum spacing
// between any two requests; maxPerMinute is the rolling-window cap.
func New(timeout time.Duration, maxRedirects int, userAgent string, minDelay time.Duration, maxPerMinute int) *Fetcher {
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		minDelay:  minDelay,
		limiter:   rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), maxPerMinute),
	}
}

// Fetch issues a GET request, blocking as needed to respect the pacing
// policy. Only transport failures return an error; non-2xx responses
// are returned as a Response with the corresponding status.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Response, error) {
	if err := f.pace(ctx); err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	return f.do(req, url)
}

// FetchJSON issues a POST with a JSON body and the given timeout,
// used for the external embedding and chat services. It is subject to
// the same pacing policy as Fetch.
func (f *Fetcher) FetchJSON(ctx context.Context, url string, body []byte, timeout time.Duration) (Response, error) {
	if err := f.pace(ctx); err != nil {
		return Response{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Content-Type", "application/json")

	return f.do(req, url)
}

func (f *Fetcher) do(req *http.Request, url string) (Response, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("reading response body from %s: %w", url, err)
	}

	return Response{Status: resp.StatusCode, Body: bodyBytes, Headers: resp.Header}, nil
}

// pace blocks until both the inter-request delay and the per-minute
// cap permit another request to begin.
func (f *Fetcher) pace(ctx context.Context) error {
	f.mu.Lock()
	for !f.lastReq.IsZero() {
		wait := f.minDelay - time.Since(f.lastReq)
		if wait <= 0 {
			break
		}
		f.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		f.mu.Lock()
	}
	f.lastReq = time.Now()
	f.mu.Unlock()

	return f.limiter.Wait(ctx)
}
