package config

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/scipunch/mytwt/fetcher/types"
)

const baseCfgPath = "twtxt/config.toml"

const (
	DefaultLimit          = 20
	DefaultSorting        = "descending"
	DefaultTimeout        = 5.0
	DefaultRetries        = 1
	DefaultConcurrency    = 8
	DefaultCharacterLimit = 140
)

// ErrNotFollowing is returned when unfollowing an unknown nick
var ErrNotFollowing = errors.New("not following")

// ErrNoConfigDir is returned by DefaultPath when neither XDG_CONFIG_HOME nor HOME is set
var ErrNoConfigDir = errors.New("unclear where to search for the config file, set XDG_CONFIG_HOME or HOME")

// Error is a config file that is missing, unreadable, malformed or invalid
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %s", e.Err)
	}
	return fmt.Sprintf("config at '%s': %s", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Config struct {
	Twtxt     Settings          `toml:"twtxt"`
	Following map[string]string `toml:"following"`
	Feeds     map[string]string `toml:"feeds"`   // RSS/Atom sources bridged into the timeline
	Filters   map[string]Filter `toml:"filters"` // Named filters referenced by Settings.Filters
}

type Settings struct {
	Nick           string   `toml:"nick"`
	Twtfile        string   `toml:"twtfile"`
	Twturl         string   `toml:"twturl"`
	CheckFollowing bool     `toml:"check_following"`
	UsePager       bool     `toml:"use_pager"`
	Porcelain      bool     `toml:"porcelain"`
	LimitTimeline  int      `toml:"limit_timeline"`
	Sorting        string   `toml:"sorting"`
	Timeout        float64  `toml:"timeout"` // seconds per fetch attempt
	Retries        int      `toml:"retries"`
	Concurrency    int      `toml:"concurrency"`
	CharacterLimit int      `toml:"character_limit"`
	PostTweetHook  string   `toml:"post_tweet_hook"`
	Filters        []string `toml:"filters"`
}

// Filter mutes timeline posts
type Filter struct {
	MinLength       int      `toml:"min_length"`       // Minimum character count (0 = no limit)
	MinWords        int      `toml:"min_words"`        // Minimum word count (0 = no limit)
	ExcludePatterns []string `toml:"exclude_patterns"` // Regex patterns to exclude
	Nicks           []string `toml:"nicks"`            // Authors the filter applies to (empty = all)
}

// TimeoutDuration returns the per fetch timeout
func (s Settings) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout * float64(time.Second))
}

// Validate rejects settings no command can work with
func (c Config) Validate() error {
	if c.Twtxt.LimitTimeline < 0 {
		return fmt.Errorf("limit_timeline must not be negative, got %d", c.Twtxt.LimitTimeline)
	}
	if c.Twtxt.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Twtxt.Timeout)
	}
	if c.Twtxt.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Twtxt.Retries)
	}
	if c.Twtxt.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Twtxt.Concurrency)
	}
	for _, name := range c.Twtxt.Filters {
		if _, ok := c.Filters[name]; !ok {
			return fmt.Errorf("unknown filter '%s'", name)
		}
	}
	return nil
}

// Follow adds or replaces nick in the follow-list.
// A nick lives in exactly one of the twtxt and bridged feed lists.
func (c *Config) Follow(nick, url string, kind types.Kind) {
	if c.Following == nil {
		c.Following = map[string]string{}
	}
	if c.Feeds == nil {
		c.Feeds = map[string]string{}
	}
	delete(c.Following, nick)
	delete(c.Feeds, nick)
	if kind == types.Feed {
		c.Feeds[nick] = url
		return
	}
	c.Following[nick] = url
}

// Unfollow removes nick from the follow-list
func (c *Config) Unfollow(nick string) error {
	_, inFollowing := c.Following[nick]
	_, inFeeds := c.Feeds[nick]
	if !inFollowing && !inFeeds {
		return fmt.Errorf("%w '%s'", ErrNotFollowing, nick)
	}
	delete(c.Following, nick)
	delete(c.Feeds, nick)
	return nil
}

// Sources returns the follow-list ordered by nick
func (c Config) Sources() []types.Source {
	sources := make([]types.Source, 0, len(c.Following)+len(c.Feeds))
	for nick, url := range c.Following {
		sources = append(sources, types.Source{Nick: nick, URL: url, Kind: types.Twtxt})
	}
	for nick, url := range c.Feeds {
		sources = append(sources, types.Source{Nick: nick, URL: url, Kind: types.Feed})
	}
	slices.SortFunc(sources, func(a, b types.Source) int {
		return cmp.Compare(a.Nick, b.Nick)
	})
	return sources
}

// OwnSource returns the local user's feed, or nil if self info is not configured
func (c Config) OwnSource() *types.Source {
	if c.Twtxt.Nick == "" || c.Twtxt.Twtfile == "" {
		return nil
	}
	return &types.Source{Nick: c.Twtxt.Nick, URL: c.Twtxt.Twtfile, Kind: types.Twtxt}
}

func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, &Error{Path: path, Err: err}
	}
	if _, err := toml.Decode(string(dat), &conf); err != nil {
		return conf, &Error{Path: path, Err: fmt.Errorf("failed to decode with %w", err)}
	}
	if err := conf.Validate(); err != nil {
		return conf, &Error{Path: path, Err: err}
	}
	return conf, nil
}

func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := filepath.Dir(cfgPath)
	err = os.MkdirAll(basePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	slog.Debug("config written", "at", cfgPath)
	return nil
}

func Default() Config {
	return Config{
		Twtxt: Settings{
			Twtfile:        "~/twtxt.txt",
			CheckFollowing: true,
			LimitTimeline:  DefaultLimit,
			Sorting:        DefaultSorting,
			Timeout:        DefaultTimeout,
			Retries:        DefaultRetries,
			Concurrency:    DefaultConcurrency,
			CharacterLimit: DefaultCharacterLimit,
		},
		Following: map[string]string{},
		Feeds:     map[string]string{},
		Filters:   map[string]Filter{},
	}
}

// DefaultPath returns the config location under the XDG config directory
func DefaultPath() (string, error) {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return filepath.Join(xdgHome, baseCfgPath), nil
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return filepath.Join(home, ".config", baseCfgPath), nil
	}

	return "", &Error{Err: ErrNoConfigDir}
}
