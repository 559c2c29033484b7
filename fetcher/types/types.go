package types

import (
	"context"
	"fmt"
)

// Kind selects how a source is retrieved and interpreted
type Kind = string

var (
	Twtxt = Kind("twtxt")
	Feed  = Kind("feed") // RSS or Atom, bridged into twtxt lines
)

// Source is a single followed feed
type Source struct {
	Nick string
	URL  string
	Kind Kind
}

// KindOrDefault returns the source kind, treating an empty kind as twtxt
func (s Source) KindOrDefault() Kind {
	if s.Kind == "" {
		return Twtxt
	}
	return s.Kind
}

// FeedFetcher retrieves the raw twtxt text of a source
type FeedFetcher interface {
	Fetch(ctx context.Context, src Source) (string, error)
}

// FetchError reports a failure to retrieve one source
type FetchError struct {
	Source Source
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch '%s' (%s) with %s", e.Source.Nick, e.Source.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
