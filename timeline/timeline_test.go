package timeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/mytwt/fetcher"
	"github.com/scipunch/mytwt/fetcher/types"
	"github.com/scipunch/mytwt/parser"
)

// fakeFetcher serves feeds keyed by URL
type fakeFetcher struct {
	mu    sync.Mutex
	feeds map[string]string
	fails map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, src types.Source) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, src.Nick)
	f.mu.Unlock()

	if err, ok := f.fails[src.URL]; ok {
		return "", err
	}
	raw, ok := f.feeds[src.URL]
	if !ok {
		return "", fmt.Errorf("no such feed %s", src.URL)
	}
	return raw, nil
}

func texts(posts []parser.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Text)
	}
	return out
}

func TestParseSortOrder(t *testing.T) {
	tests := []struct {
		in   string
		want SortOrder
		ok   bool
	}{
		{"ascending", Ascending, true},
		{"ASC", Ascending, true},
		{"descending", Descending, true},
		{"desc", Descending, true},
		{"", Descending, true},
		{"random", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSortOrder(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuild_LimitPicksMostRecent(t *testing.T) {
	f := &fakeFetcher{feeds: map[string]string{
		"a": "2020-01-01T00:00:00+0000\told\n",
		"b": "2021-01-01T00:00:00+0000\tnew\n",
	}}
	sources := []types.Source{{Nick: "alice", URL: "a"}, {Nick: "bob", URL: "b"}}

	tl := NewBuilder(f).Build(context.Background(), sources, nil, 1, Descending)
	require.Empty(t, tl.Errors)
	require.Len(t, tl.Posts, 1)
	assert.Equal(t, "new", tl.Posts[0].Text)
	assert.Equal(t, "bob", tl.Posts[0].Author)
}

func TestBuild_OrderDoesNotChangeSelection(t *testing.T) {
	f := &fakeFetcher{feeds: map[string]string{
		"a": "2021-01-03T00:00:00+0000\ta3\n2021-01-01T00:00:00+0000\ta1\n2021-01-05T00:00:00+0000\ta5\n",
		"b": "2021-01-02T00:00:00+0000\tb2\n2021-01-04T00:00:00+0000\tb4\n",
	}}
	sources := []types.Source{{Nick: "alice", URL: "a"}, {Nick: "bob", URL: "b"}}
	b := NewBuilder(f)

	desc := b.Build(context.Background(), sources, nil, 3, Descending)
	asc := b.Build(context.Background(), sources, nil, 3, Ascending)

	assert.Equal(t, []string{"a5", "b4", "a3"}, texts(desc.Posts))
	assert.Equal(t, []string{"a3", "b4", "a5"}, texts(asc.Posts))
}

func TestBuild_LimitBound(t *testing.T) {
	f := &fakeFetcher{feeds: map[string]string{
		"a": "2021-01-01T00:00:00+0000\t1\n2021-01-02T00:00:00+0000\t2\n2021-01-03T00:00:00+0000\t3\n",
		"b": "2021-01-04T00:00:00+0000\t4\n",
	}}
	sources := []types.Source{{Nick: "alice", URL: "a"}, {Nick: "bob", URL: "b"}}
	b := NewBuilder(f)

	for limit := 1; limit <= 6; limit++ {
		tl := b.Build(context.Background(), sources, nil, limit, Descending)
		assert.LessOrEqual(t, len(tl.Posts), limit)
		assert.Equal(t, min(limit, 4), len(tl.Posts))
	}

	tl := b.Build(context.Background(), sources, nil, 0, Ascending)
	assert.Equal(t, []string{"1", "2", "3", "4"}, texts(tl.Posts))
}

func TestBuild_StableTies(t *testing.T) {
	f := &fakeFetcher{feeds: map[string]string{
		"me": "2021-01-01T00:00:00+0000\tmine\n",
		"a":  "2021-01-01T00:00:00+0000\tfirst\n2021-01-01T00:00:00+0000\tsecond\n",
		"b":  "2021-01-01T01:00:00+0100\tthird\n",
	}}
	own := &types.Source{Nick: "me", URL: "me"}
	sources := []types.Source{{Nick: "alice", URL: "a"}, {Nick: "bob", URL: "b"}}

	tl := NewBuilder(f, WithConcurrency(3)).Build(context.Background(), sources, own, 10, Ascending)
	assert.Equal(t, []string{"mine", "first", "second", "third"}, texts(tl.Posts))
}

func TestBuild_FailingSourceIsolated(t *testing.T) {
	f := &fakeFetcher{
		feeds: map[string]string{
			"a": "2021-01-01T00:00:00+0000\thello\n",
		},
		fails: map[string]error{
			"b": &types.FetchError{Source: types.Source{Nick: "bob", URL: "b"}, Err: errors.New("connection refused")},
			"c": errors.New("plain failure"),
		},
	}
	sources := []types.Source{{Nick: "alice", URL: "a"}, {Nick: "bob", URL: "b"}, {Nick: "carol", URL: "c"}}

	tl := NewBuilder(f).Build(context.Background(), sources, nil, 20, Descending)
	require.Len(t, tl.Posts, 1)
	require.Len(t, tl.Errors, 2)

	for _, err := range tl.Errors {
		var fetchErr *types.FetchError
		assert.True(t, errors.As(err, &fetchErr), "got %T", err)
	}
	var carolErr *types.FetchError
	require.True(t, errors.As(tl.Errors[1], &carolErr))
	assert.Equal(t, "carol", carolErr.Source.Nick)
}

func TestBuild_Empty(t *testing.T) {
	f := &fakeFetcher{}
	tl := NewBuilder(f).Build(context.Background(), nil, nil, 20, Descending)
	assert.Empty(t, tl.Posts)
	assert.Empty(t, tl.Errors)
	assert.Empty(t, f.calls)
}

func TestBuild_OwnAlwaysIncluded(t *testing.T) {
	f := &fakeFetcher{feeds: map[string]string{
		"local.txt":  "2021-01-01T00:00:00+0000\tfrom file\n",
		"remote.txt": "2021-01-02T00:00:00+0000\tfrom url\n",
	}}
	own := &types.Source{Nick: "me", URL: "local.txt"}

	tl := NewBuilder(f).Build(context.Background(), nil, own, 20, Descending)
	assert.Equal(t, []string{"from file"}, texts(tl.Posts))

	// Following yourself does not duplicate your posts
	sources := []types.Source{{Nick: "me", URL: "remote.txt"}}
	tl = NewBuilder(f).Build(context.Background(), sources, own, 20, Descending)
	assert.Equal(t, []string{"from file"}, texts(tl.Posts))
}

func TestBuild_MalformedLinesAreWarnings(t *testing.T) {
	f := &fakeFetcher{feeds: map[string]string{
		"a": "no-tab-here\n2021-01-01T00:00:00+0000\tvalid\n",
	}}

	tl := NewBuilder(f).Build(context.Background(), []types.Source{{Nick: "alice", URL: "a"}}, nil, 20, Descending)
	assert.Empty(t, tl.Errors)
	require.Len(t, tl.Warnings, 1)
	assert.Equal(t, []string{"valid"}, texts(tl.Posts))

	var malformed *parser.MalformedLineError
	assert.True(t, errors.As(tl.Warnings[0], &malformed))
}

func TestBuild_UnorderableAreOldest(t *testing.T) {
	f := &fakeFetcher{feeds: map[string]string{
		"a": "someday\tmystery\n2021-01-01T00:00:00+0000\tknown\n2020-01-01T00:00:00+0000\tolder\n",
	}}
	sources := []types.Source{{Nick: "alice", URL: "a"}}
	b := NewBuilder(f)

	tl := b.Build(context.Background(), sources, nil, 0, Ascending)
	assert.Equal(t, []string{"mystery", "older", "known"}, texts(tl.Posts))

	tl = b.Build(context.Background(), sources, nil, 2, Descending)
	assert.Equal(t, []string{"known", "older"}, texts(tl.Posts))
}

func TestBuild_Filter(t *testing.T) {
	f := &fakeFetcher{feeds: map[string]string{
		"a": "2021-01-01T00:00:00+0000\tkeep\n2021-01-02T00:00:00+0000\tdrop\n2021-01-03T00:00:00+0000\tdrop\n",
	}}
	keep := func(p parser.Post) bool { return p.Text != "drop" }

	tl := NewBuilder(f, WithFilter(keep)).Build(context.Background(), []types.Source{{Nick: "alice", URL: "a"}}, nil, 1, Descending)
	assert.Equal(t, []string{"keep"}, texts(tl.Posts))
}

func TestBuild_TagOverridesNick(t *testing.T) {
	f := &fakeFetcher{feeds: map[string]string{
		"a": "2021-01-01T00:00:00+0000\t@<mallory https://evil.example> hi\n",
	}}
	tl := NewBuilder(f).Build(context.Background(), []types.Source{{Nick: "alice", URL: "a"}}, nil, 20, Descending)
	require.Len(t, tl.Posts, 1)
	assert.Equal(t, "alice", tl.Posts[0].Author)
}

func TestBuild_Cancelled(t *testing.T) {
	f := &fakeFetcher{feeds: map[string]string{
		"a": "2021-01-01T00:00:00+0000\thello\n",
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tl := NewBuilder(f).Build(ctx, []types.Source{{Nick: "alice", URL: "a"}}, nil, 20, Descending)
	assert.Empty(t, tl.Posts)
	require.Len(t, tl.Errors, 1)
	assert.True(t, errors.Is(tl.Errors[0], context.Canceled))
}

func TestBuild_ConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		fmt.Fprintf(w, "2021-01-01T00:00:00+0000\t%s\n", r.URL.Path)
	}))
	defer srv.Close()

	var sources []types.Source
	for i := range 6 {
		sources = append(sources, types.Source{Nick: fmt.Sprintf("n%d", i), URL: fmt.Sprintf("%s/%d", srv.URL, i)})
	}

	f := fetcher.New(fetcher.Options{Timeout: 2 * time.Second})
	tl := NewBuilder(f, WithConcurrency(2)).Build(context.Background(), sources, nil, 0, Ascending)

	assert.Empty(t, tl.Errors)
	assert.Len(t, tl.Posts, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	// Equal timestamps keep source order
	assert.Equal(t, "/0", tl.Posts[0].Text)
	assert.Equal(t, "/5", tl.Posts[5].Text)
}

func TestArrange_Empty(t *testing.T) {
	assert.Empty(t, Arrange(nil, 20, Descending))
}
