package clusterer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	defaultSourceTimeout  = 30 * time.Second
	defaultSourceAttempts = 3
	defaultSourceBackoff  = 500 * time.Millisecond
	maxRetryAfter         = time.Minute
	maxCollectionBytes    = 50 << 20
)

// FetchOption configures a MarkerSource
type FetchOption func(*MarkerSource)

// WithTimeout sets the request timeout of the default HTTP client
func WithTimeout(d time.Duration) FetchOption {
	return func(s *MarkerSource) { s.timeout = d }
}

// WithAttempts sets how many times a request is tried
func WithAttempts(n int) FetchOption {
	return func(s *MarkerSource) { s.attempts = max(1, n) }
}

// WithBackoff sets the wait before the second attempt; it doubles after that
func WithBackoff(d time.Duration) FetchOption {
	return func(s *MarkerSource) { s.backoff = d }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) FetchOption {
	return func(s *MarkerSource) { s.client = client }
}

// MarkerSource reads a GeoJSON marker collection over HTTP. It remembers the
// ETag of the last collection so Refresh can skip unchanged ones.
type MarkerSource struct {
	url      string
	client   *http.Client
	timeout  time.Duration
	attempts int
	backoff  time.Duration

	mu   sync.Mutex
	etag string
}

// NewMarkerSource creates a source for url
func NewMarkerSource(url string, opts ...FetchOption) (*MarkerSource, error) {
	if url == "" {
		return nil, fmt.Errorf("marker source: URL is empty")
	}
	s := &MarkerSource{
		url:      url,
		timeout:  defaultSourceTimeout,
		attempts: defaultSourceAttempts,
		backoff:  defaultSourceBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.timeout}
	}
	return s, nil
}

// URL returns the collection URL
func (s *MarkerSource) URL() string { return s.url }

// FetchMarkers downloads the collection at url once
func FetchMarkers(ctx context.Context, url string, opts ...FetchOption) ([]MarkerUpdate, error) {
	s, err := NewMarkerSource(url, opts...)
	if err != nil {
		return nil, err
	}
	return s.Fetch(ctx)
}

// Fetch downloads the whole collection
func (s *MarkerSource) Fetch(ctx context.Context) ([]MarkerUpdate, error) {
	updates, _, err := s.get(ctx, "")
	return updates, err
}

// Refresh downloads the collection unless the server reports it unchanged
// since the last download, in which case changed is false.
func (s *MarkerSource) Refresh(ctx context.Context) (updates []MarkerUpdate, changed bool, err error) {
	s.mu.Lock()
	etag := s.etag
	s.mu.Unlock()
	return s.get(ctx, etag)
}

// Watch refreshes the collection every interval and hands changed
// collections to fn until ctx is done. Failed refreshes are logged.
func (s *MarkerSource) Watch(ctx context.Context, interval time.Duration, fn func([]MarkerUpdate)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		updates, changed, err := s.Refresh(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				log.Printf("[FEED] refreshing %s: %v", s.url, err)
			}
		case changed:
			fn(updates)
		}
	}
}

// statusError is a non-200 response
type statusError struct {
	code       int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

// retryable reports whether a later attempt may succeed
func (e *statusError) retryable() bool {
	return e.code == http.StatusRequestTimeout || e.code == http.StatusTooManyRequests || e.code >= 500
}

func (s *MarkerSource) get(ctx context.Context, etag string) ([]MarkerUpdate, bool, error) {
	var lastErr error
	wait := s.backoff
	for attempt := range s.attempts {
		if attempt > 0 {
			var se *statusError
			if errors.As(lastErr, &se) && se.retryAfter > 0 {
				wait = se.retryAfter
			}
			select {
			case <-ctx.Done():
				return nil, false, fmt.Errorf("marker source: %w", ctx.Err())
			case <-time.After(wait):
			}
			wait *= 2
		}

		body, newTag, err := s.request(ctx, etag)
		if err != nil {
			lastErr = err
			var se *statusError
			if errors.As(err, &se) && !se.retryable() {
				return nil, false, fmt.Errorf("marker source: GET %s: %w", s.url, err)
			}
			continue
		}
		if body == nil {
			return nil, false, nil
		}

		updates, err := ParseMarkersGeoJSON(body)
		if err != nil {
			return nil, false, fmt.Errorf("marker source: %w", err)
		}
		s.mu.Lock()
		s.etag = newTag
		s.mu.Unlock()
		return updates, true, nil
	}
	return nil, false, fmt.Errorf("marker source: GET %s failed after %d attempts: %w", s.url, s.attempts, lastErr)
}

// request performs one GET. A nil body with no error means 304 Not Modified.
func (s *MarkerSource) request(ctx context.Context, etag string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		return nil, etag, nil
	default:
		return nil, "", &statusError{code: resp.StatusCode, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCollectionBytes))
	if err != nil {
		return nil, "", fmt.Errorf("reading body: %w", err)
	}
	return body, resp.Header.Get("ETag"), nil
}

// parseRetryAfter reads the delay-seconds form of Retry-After, capped at a minute
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}
