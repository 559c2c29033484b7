package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/scipunch/mytwt/fetcher/types"
)

// ErrFeedTooLarge is returned for response bodies above the size limit
var ErrFeedTooLarge = errors.New("feed too large")

// StatusError is a non-success HTTP response
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// TwtxtFetcher reads plain twtxt feeds over HTTP(S) or from the local filesystem
type TwtxtFetcher struct {
	get *getter
}

// newTwtxtFetcher creates a twtxt fetcher on top of the shared HTTP getter
func newTwtxtFetcher(g *getter) *TwtxtFetcher {
	return &TwtxtFetcher{get: g}
}

// Fetch returns the feed contents of src
func (f *TwtxtFetcher) Fetch(ctx context.Context, src types.Source) (string, error) {
	if !IsRemote(src.URL) {
		return readLocal(src.URL)
	}

	body, err := f.get.get(ctx, src.URL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// IsRemote reports whether url must be retrieved over HTTP
func IsRemote(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// ExpandPath resolves file:// prefixes and a leading ~ to a filesystem path
func ExpandPath(p string) string {
	p = strings.TrimPrefix(p, "file://")
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func readLocal(url string) (string, error) {
	p := ExpandPath(url)
	dat, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("failed to read local feed at '%s' with %w", p, err)
	}
	return string(dat), nil
}

// getter performs bounded GET requests shared by all remote fetchers
type getter struct {
	client    *http.Client
	timeout   time.Duration
	retries   uint64
	backoff   time.Duration
	userAgent string
	maxSize   int64
}

func (g *getter) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	attempt := 0

	b := retry.WithMaxRetries(g.retries, retry.NewFibonacci(g.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			slog.DebugContext(ctx, "retrying feed request", "attempt", attempt)
		}

		dat, err := g.once(ctx, url)
		if err != nil {
			// Parent cancellation is final
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		body = dat
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "fetched feed", "bytes", len(body), "attempts", attempt)
	return body, nil
}

func (g *getter) once(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request with %w", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	// One byte past the limit tells a full body from a cut one
	dat, err := io.ReadAll(io.LimitReader(resp.Body, g.maxSize+1))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("failed to read body with %w", err)}
	}
	if int64(len(dat)) > g.maxSize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrFeedTooLarge, g.maxSize)
	}
	return dat, nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return false
}
