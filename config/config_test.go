package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/mytwt/fetcher/types"
)

const sampleConfig = `
[twtxt]
nick = "alice"
twtfile = "/tmp/alice.txt"
twturl = "https://alice.example/twtxt.txt"
sorting = "ascending"
limit_timeline = 5
timeout = 2.5
filters = ["noisy"]

[following]
bob = "https://bob.example/twtxt.txt"
carol = "https://carol.example/twtxt.txt"

[feeds]
blog = "https://blog.example/atom.xml"

[filters.noisy]
exclude_patterns = ["(?i)^ad:"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRead(t *testing.T) {
	conf, err := Read(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "alice", conf.Twtxt.Nick)
	assert.Equal(t, "ascending", conf.Twtxt.Sorting)
	assert.Equal(t, 5, conf.Twtxt.LimitTimeline)
	assert.Equal(t, 2500*time.Millisecond, conf.Twtxt.TimeoutDuration())
	assert.Equal(t, "https://bob.example/twtxt.txt", conf.Following["bob"])
	assert.Equal(t, []string{"(?i)^ad:"}, conf.Filters["noisy"].ExcludePatterns)

	// Unset keys keep their defaults
	assert.Equal(t, DefaultRetries, conf.Twtxt.Retries)
	assert.Equal(t, DefaultConcurrency, conf.Twtxt.Concurrency)
	assert.Equal(t, DefaultCharacterLimit, conf.Twtxt.CharacterLimit)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed toml", content: "[twtxt\nnick = "},
		{name: "negative limit", content: "[twtxt]\nlimit_timeline = -1\n"},
		{name: "zero timeout", content: "[twtxt]\ntimeout = 0.0\n"},
		{name: "unknown filter", content: "[twtxt]\nfilters = [\"missing\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(writeConfig(t, tt.content))
			var confErr *Error
			require.True(t, errors.As(err, &confErr), "got %v", err)
		})
	}
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.toml"))
	var confErr *Error
	require.True(t, errors.As(err, &confErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteRead_FollowList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	conf := Default()
	conf.Twtxt.Nick = "alice"
	conf.Follow("bob", "https://bob.example/twtxt.txt", types.Twtxt)
	conf.Follow("blog", "https://blog.example/rss", types.Feed)
	require.NoError(t, Write(path, conf))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, conf.Following, got.Following)
	assert.Equal(t, conf.Feeds, got.Feeds)
	assert.Equal(t, "alice", got.Twtxt.Nick)
}

func TestFollowUnfollow(t *testing.T) {
	conf := Default()

	conf.Follow("bob", "https://bob.example/twtxt.txt", types.Twtxt)
	conf.Follow("bob", "https://bob.example/atom.xml", types.Feed)
	assert.NotContains(t, conf.Following, "bob")
	assert.Equal(t, "https://bob.example/atom.xml", conf.Feeds["bob"])

	require.NoError(t, conf.Unfollow("bob"))
	assert.Empty(t, conf.Feeds)

	err := conf.Unfollow("bob")
	assert.True(t, errors.Is(err, ErrNotFollowing))
}

func TestSources(t *testing.T) {
	conf, err := Read(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []types.Source{
		{Nick: "blog", URL: "https://blog.example/atom.xml", Kind: types.Feed},
		{Nick: "bob", URL: "https://bob.example/twtxt.txt", Kind: types.Twtxt},
		{Nick: "carol", URL: "https://carol.example/twtxt.txt", Kind: types.Twtxt},
	}, conf.Sources())

	own := conf.OwnSource()
	require.NotNil(t, own)
	assert.Equal(t, types.Source{Nick: "alice", URL: "/tmp/alice.txt", Kind: types.Twtxt}, *own)

	assert.Nil(t, Default().OwnSource())
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/xdg/twtxt/config.toml", path)

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/alice")
	path, err = DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.config/twtxt/config.toml", path)

	t.Setenv("HOME", "")
	_, err = DefaultPath()
	assert.ErrorIs(t, err, ErrNoConfigDir)

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.NotContains(t, cfgErr.Error(), "''")
}

func TestQuickstart(t *testing.T) {
	in := strings.NewReader("alice\n\nhttps://alice.example/twtxt.txt\ny\n\n")
	var out bytes.Buffer

	conf, err := Quickstart(in, &out)
	require.NoError(t, err)

	assert.Equal(t, "alice", conf.Twtxt.Nick)
	assert.Equal(t, "~/twtxt.txt", conf.Twtxt.Twtfile)
	assert.Equal(t, "https://alice.example/twtxt.txt", conf.Twtxt.Twturl)
	assert.Equal(t, NewsURL, conf.Following[NewsNick])
	assert.Contains(t, out.String(), "desired nick")
}

func TestQuickstart_NoDisclosureNoNews(t *testing.T) {
	t.Setenv("USER", "")
	in := strings.NewReader("bob\n/tmp/bob.txt\nhttps://bob.example/twtxt.txt\nn\nn\n")

	conf, err := Quickstart(in, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/bob.txt", conf.Twtxt.Twtfile)
	assert.Empty(t, conf.Twtxt.Twturl)
	assert.Empty(t, conf.Following)
}

func TestQuickstart_RequiresNick(t *testing.T) {
	t.Setenv("USER", "")
	_, err := Quickstart(strings.NewReader("\n"), &bytes.Buffer{})
	assert.Error(t, err)
}
