package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/scipunch/mytwt/fetcher/types"
)

const (
	defaultTimeout = 5 * time.Second
	defaultBackoff = 250 * time.Millisecond
	maxFeedSize    = 8 << 20
)

// Options configures every fetcher built by New
type Options struct {
	Timeout   time.Duration // per attempt
	Retries   uint64        // extra attempts on transient failures
	Backoff   time.Duration // base of the fibonacci backoff between attempts
	UserAgent string
	Client    *http.Client
	MaxSize   int64 // largest accepted response body in bytes
}

// Fetcher dispatches a source to the fetcher registered for its kind
type Fetcher struct {
	fetchers map[types.Kind]types.FeedFetcher
}

// New creates fetchers for all supported source kinds
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = maxFeedSize
	}

	g := &getter{
		client:    opts.Client,
		timeout:   opts.Timeout,
		retries:   opts.Retries,
		backoff:   opts.Backoff,
		userAgent: opts.UserAgent,
		maxSize:   opts.MaxSize,
	}

	return &Fetcher{
		fetchers: map[types.Kind]types.FeedFetcher{
			types.Twtxt: newTwtxtFetcher(g),
			types.Feed:  newRSSFetcher(g),
		},
	}
}

// Fetch retrieves the raw twtxt text of src.
// Every failure is returned as a *types.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, src types.Source) (string, error) {
	kind := src.KindOrDefault()
	ff, ok := f.fetchers[kind]
	if !ok {
		return "", &types.FetchError{Source: src, Err: fmt.Errorf("unknown source type: %s", kind)}
	}

	raw, err := ff.Fetch(ctx, src)
	if err != nil {
		return "", &types.FetchError{Source: src, Err: err}
	}
	return raw, nil
}
