// Package health checks bookmark URLs for dead links.
package health

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/smartmarks/smartmarks/internal/model"
)

// Status classifies the outcome of a URL check.
type Status int

const (
	StatusOK          Status = iota // 2xx or 3xx response
	StatusDead                      // 404 or 410 Gone
	StatusUnreachable               // timeout, DNS failure, connection refused, etc.
)

// Result holds the check outcome for a single bookmark.
type Result struct {
	Bookmark   model.Bookmark
	Status     Status
	StatusCode int    // HTTP status code (0 if connection failed)
	Detail     string // human-readable reason for non-OK statuses
}

// ProgressFunc is called after each URL is checked.
type ProgressFunc func(completed, total int)

// Options tunes a check run. Zero values get sensible defaults.
type Options struct {
	Concurrency int
	Timeout     time.Duration
	OnProgress  ProgressFunc
}

// Check probes every bookmark URL concurrently and reports per-URL results
// in input order. Cancelling the context stops in-flight requests.
func Check(ctx context.Context, bookmarks []model.Bookmark, opts Options) []Result {
	if len(bookmarks) == 0 {
		return nil
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	results := make([]Result, len(bookmarks))
	jobs := make(chan int, len(bookmarks))
	var wg sync.WaitGroup

	var progressMu sync.Mutex
	completed := 0

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = checkOne(ctx, client, bookmarks[idx])

				if opts.OnProgress != nil {
					progressMu.Lock()
					completed++
					opts.OnProgress(completed, len(bookmarks))
					progressMu.Unlock()
				}
			}
		}()
	}

	for i := range bookmarks {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// checkOne probes a single URL. HEAD first, GET as a fallback since some
// servers reject HEAD.
func checkOne(ctx context.Context, client *http.Client, bookmark model.Bookmark) Result {
	result := Result{Bookmark: bookmark}

	resp, err := do(ctx, client, http.MethodHead, bookmark.URL)
	if err != nil {
		resp, err = do(ctx, client, http.MethodGet, bookmark.URL)
		if err != nil {
			result.Status = StatusUnreachable
			result.Detail = normalizeError(err.Error())
			return result
		}
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.Status = StatusOK
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.Status = StatusDead
		result.Detail = http.StatusText(resp.StatusCode)
	default:
		// 500s and auth walls may be temporary; don't call them dead.
		result.Status = StatusUnreachable
		result.Detail = http.StatusText(resp.StatusCode)
	}

	return result
}

func do(ctx context.Context, client *http.Client, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

// normalizeError collapses verbose transport errors into readable categories.
func normalizeError(errStr string) string {
	lower := strings.ToLower(errStr)

	switch {
	case strings.Contains(lower, "no such host"):
		return "DNS failure"
	case strings.Contains(lower, "context deadline exceeded"),
		strings.Contains(lower, "timeout"):
		return "Timeout"
	case strings.Contains(lower, "connection refused"):
		return "Connection refused"
	case strings.Contains(lower, "certificate"):
		return "TLS/certificate error"
	case strings.Contains(lower, "tls:"):
		return "TLS error"
	default:
		return errStr
	}
}
