// Package timeline merges posts from every followed source into one ordered timeline.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scipunch/mytwt/fetcher/types"
	"github.com/scipunch/mytwt/logger"
	"github.com/scipunch/mytwt/parser"
)

// SortOrder is the display order of the retained posts
type SortOrder string

const (
	Ascending  SortOrder = "ascending"  // oldest first
	Descending SortOrder = "descending" // newest first
)

// ParseSortOrder accepts the long and short names of a sort order
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ascending", "asc":
		return Ascending, nil
	case "descending", "desc", "":
		return Descending, nil
	}
	return "", fmt.Errorf("unknown sort order %q, want ascending or descending", s)
}

const defaultConcurrency = 8

// Timeline is the outcome of a build.
// Errors holds one *types.FetchError per failed source; Warnings holds parser warnings.
type Timeline struct {
	Posts    []parser.Post
	Errors   []error
	Warnings []error
}

// Builder fetches, parses and merges sources
type Builder struct {
	fetcher     types.FeedFetcher
	concurrency int
	keep        func(parser.Post) bool
}

// Option customizes a Builder
type Option func(*Builder)

// WithConcurrency bounds the number of fetches in flight
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithFilter drops every post for which keep returns false, before sorting and limiting
func WithFilter(keep func(parser.Post) bool) Option {
	return func(b *Builder) {
		b.keep = keep
	}
}

// NewBuilder creates a Builder that fetches through f
func NewBuilder(f types.FeedFetcher, opts ...Option) *Builder {
	b := &Builder{
		fetcher:     f,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type sourceResult struct {
	posts    []parser.Post
	warnings []error
	err      error
}

// Build returns the most recent limit posts of sources and own, in the given order.
// A limit of zero or less keeps every post. Failing sources contribute no posts
// and are reported in Timeline.Errors; they never abort the build.
func (b *Builder) Build(ctx context.Context, sources []types.Source, own *types.Source, limit int, order SortOrder) Timeline {
	working := workingSet(sources, own)
	if len(working) == 0 {
		return Timeline{}
	}

	results := make([]sourceResult, len(working))

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, src := range working {
		g.Go(func() error {
			results[i] = b.collect(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var tl Timeline
	var posts []parser.Post
	for _, res := range results {
		if res.err != nil {
			tl.Errors = append(tl.Errors, res.err)
			continue
		}
		tl.Warnings = append(tl.Warnings, res.warnings...)
		for _, p := range res.posts {
			if b.keep != nil && !b.keep(p) {
				continue
			}
			posts = append(posts, p)
		}
	}

	if len(tl.Errors) > 0 {
		slog.WarnContext(ctx, "some sources could not be fetched", "failed", len(tl.Errors), "total", len(working), "errors", errors.Join(tl.Errors...))
	}

	tl.Posts = Arrange(posts, limit, order)
	slog.DebugContext(ctx, "timeline built", "sources", len(working), "posts", len(tl.Posts))
	return tl
}

// collect fetches and parses one source
func (b *Builder) collect(ctx context.Context, src types.Source) sourceResult {
	ctx = logger.Ctx(ctx, slog.String("nick", src.Nick), slog.String("url", src.URL))

	if err := ctx.Err(); err != nil {
		return sourceResult{err: &types.FetchError{Source: src, Err: err}}
	}

	raw, err := b.fetcher.Fetch(ctx, src)
	if err != nil {
		var fetchErr *types.FetchError
		if !errors.As(err, &fetchErr) {
			err = &types.FetchError{Source: src, Err: err}
		}
		slog.DebugContext(ctx, "source failed", "error", err)
		return sourceResult{err: err}
	}

	// A source finishing after cancellation contributes nothing
	if err := ctx.Err(); err != nil {
		return sourceResult{err: &types.FetchError{Source: src, Err: err}}
	}

	posts, warnings := parser.Parse(raw, src.Nick)
	for _, w := range warnings {
		slog.WarnContext(ctx, "skipping broken feed line", "error", w)
	}
	for i := range posts {
		posts[i].Author = src.Nick
	}
	return sourceResult{posts: posts, warnings: warnings}
}

// workingSet returns own followed by sources, with own replacing a followed source of the same nick
func workingSet(sources []types.Source, own *types.Source) []types.Source {
	working := make([]types.Source, 0, len(sources)+1)
	if own != nil {
		working = append(working, *own)
	}
	for _, src := range sources {
		if own != nil && src.Nick == own.Nick {
			continue
		}
		working = append(working, src)
	}
	return working
}

// Arrange stable sorts posts by timestamp, keeps the most recent limit of them and
// puts them in order. Unorderable posts count as the oldest. posts is sorted in place.
func Arrange(posts []parser.Post, limit int, order SortOrder) []parser.Post {
	slices.SortStableFunc(posts, comparePosts)

	if limit > 0 && len(posts) > limit {
		posts = posts[len(posts)-limit:]
	}

	out := slices.Clone(posts)
	if order == Descending {
		slices.Reverse(out)
	}
	return out
}

func comparePosts(a, b parser.Post) int {
	switch {
	case !a.Orderable() && !b.Orderable():
		return 0
	case !a.Orderable():
		return -1
	case !b.Orderable():
		return 1
	}
	return a.Timestamp.Compare(b.Timestamp)
}
