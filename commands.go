package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/scipunch/mytwt/config"
	"github.com/scipunch/mytwt/fetcher"
	"github.com/scipunch/mytwt/fetcher/types"
	"github.com/scipunch/mytwt/filter"
	"github.com/scipunch/mytwt/render"
	"github.com/scipunch/mytwt/timeline"
	"github.com/scipunch/mytwt/tweet"
)

type followCommand struct {
	app  *app
	Feed bool `long:"feed" description:"the URL points to an RSS or Atom feed"`
	Args struct {
		Nick string `positional-arg-name:"nick"`
		URL  string `positional-arg-name:"url"`
	} `positional-args:"yes" required:"yes"`
}

func (c *followCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	conf, err := c.app.loadConfig()
	if err != nil {
		return err
	}

	kind := types.Twtxt
	if c.Feed {
		kind = types.Feed
	}
	src := types.Source{Nick: c.Args.Nick, URL: c.Args.URL, Kind: kind}

	if conf.Twtxt.CheckFollowing {
		f := newFetcher(c.app, conf)
		if _, err := f.Fetch(c.app.ctx, src); err != nil {
			fmt.Fprintf(c.app.stderr, "✗ %s\n", err)
			fmt.Fprintln(c.app.stderr, "  following anyway, the feed may become available later")
		}
	}

	conf.Follow(src.Nick, src.URL, kind)
	if err := config.Write(c.app.cfgPath, conf); err != nil {
		return err
	}
	fmt.Fprintf(c.app.stdout, "✓ You're now following %s.\n", src.Nick)
	return nil
}

type followingCommand struct {
	app *app
}

func (c *followingCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	conf, err := c.app.loadConfig()
	if err != nil {
		return err
	}

	sources := conf.Sources()
	if len(sources) == 0 {
		fmt.Fprintln(c.app.stdout, "You haven't followed anyone yet.")
		return nil
	}
	for _, src := range sources {
		line := fmt.Sprintf("➤ %s @ %s", src.Nick, src.URL)
		if src.Kind == types.Feed {
			line += " (feed)"
		}
		fmt.Fprintln(c.app.stdout, line)
	}
	return nil
}

type unfollowCommand struct {
	app  *app
	Args struct {
		Nick string `positional-arg-name:"nick"`
	} `positional-args:"yes" required:"yes"`
}

func (c *unfollowCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	conf, err := c.app.loadConfig()
	if err != nil {
		return err
	}

	if err := conf.Unfollow(c.Args.Nick); err != nil {
		if errors.Is(err, config.ErrNotFollowing) {
			return fmt.Errorf("you're not following %s", c.Args.Nick)
		}
		return err
	}
	if err := config.Write(c.app.cfgPath, conf); err != nil {
		return err
	}
	fmt.Fprintf(c.app.stdout, "✓ You've unfollowed %s.\n", c.Args.Nick)
	return nil
}

type quickstartCommand struct {
	app   *app
	Force bool `long:"force" description:"overwrite an existing config"`
}

func (c *quickstartCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	path := c.app.cfgPath
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("config already exists at '%s', use --force to overwrite it", path)
	}

	conf, err := config.Quickstart(c.app.stdin, c.app.stdout)
	if err != nil {
		return err
	}
	if err := config.Write(path, conf); err != nil {
		return err
	}

	twtfile := fetcher.ExpandPath(conf.Twtxt.Twtfile)
	if err := os.MkdirAll(filepath.Dir(twtfile), 0755); err != nil {
		return fmt.Errorf("failed to create twtfile directory with %w", err)
	}
	f, err := os.OpenFile(twtfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create twtfile at '%s' with %w", twtfile, err)
	}
	f.Close()

	fmt.Fprintf(c.app.stdout, "✓ Created config file at '%s'.\n", path)
	fmt.Fprintf(c.app.stdout, "✓ Created twtxt file at '%s'.\n", twtfile)
	return nil
}

type timelineCommand struct {
	app        *app
	Limit      *int `short:"l" long:"limit" description:"number of posts to show, 0 shows all (default from config)"`
	Ascending  bool `long:"ascending" description:"show oldest posts first"`
	Descending bool `long:"descending" description:"show newest posts first"`
	Porcelain  bool `long:"porcelain" description:"machine readable output"`
	Pager      bool `long:"pager" description:"page the output"`
	NoPager    bool `long:"no-pager" description:"don't page the output"`
}

func (c *timelineCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	if c.Ascending && c.Descending {
		return &usageError{msg: "--ascending and --descending are mutually exclusive"}
	}
	if c.Limit != nil && *c.Limit < 0 {
		return &usageError{msg: "--limit must not be negative"}
	}
	conf, err := c.app.loadConfig()
	if err != nil {
		return err
	}

	order, err := timeline.ParseSortOrder(conf.Twtxt.Sorting)
	if err != nil {
		return &config.Error{Path: c.app.cfgPath, Err: err}
	}
	if c.Ascending {
		order = timeline.Ascending
	}
	if c.Descending {
		order = timeline.Descending
	}
	limit := conf.Twtxt.LimitTimeline
	if c.Limit != nil {
		limit = *c.Limit
	}

	pipeline, err := filter.NewFilterPipeline(conf.Filters, conf.Twtxt.Filters)
	if err != nil {
		return err
	}
	b := timeline.NewBuilder(
		newFetcher(c.app, conf),
		timeline.WithConcurrency(conf.Twtxt.Concurrency),
		timeline.WithFilter(pipeline.Keep),
	)

	tl := b.Build(c.app.ctx, conf.Sources(), conf.OwnSource(), limit, order)

	lines := render.Render(tl.Posts, render.Options{
		Now:       c.app.now(),
		Porcelain: conf.Twtxt.Porcelain || c.Porcelain,
	})
	usePager := (conf.Twtxt.UsePager || c.Pager) && !c.NoPager
	if err := c.app.output(lines, usePager); err != nil {
		return err
	}

	for _, line := range render.RenderErrors(tl.Errors) {
		fmt.Fprintln(c.app.stderr, line)
	}
	return nil
}

type tweetCommand struct {
	app  *app
	Args struct {
		Text      string `positional-arg-name:"text" required:"yes"`
		Timestamp string `positional-arg-name:"timestamp"`
	} `positional-args:"yes"`
}

func (c *tweetCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	conf, err := c.app.loadConfig()
	if err != nil {
		return err
	}

	at, err := tweet.Timestamp(c.Args.Timestamp, c.app.now())
	if err != nil {
		return &usageError{msg: err.Error()}
	}

	text := tweet.Normalize(c.Args.Text)
	if tweet.ExceedsLength(text, conf.Twtxt.CharacterLimit) {
		ok, err := c.confirmLength(text, conf.Twtxt.CharacterLimit)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("tweet not posted")
		}
	}

	twtfile := fetcher.ExpandPath(conf.Twtxt.Twtfile)
	if _, err := tweet.Append(twtfile, text, at); err != nil {
		return err
	}
	slog.Info("tweet posted", "twtfile", twtfile)

	if conf.Twtxt.PostTweetHook != "" {
		vars := tweet.HookVars{Twtfile: twtfile, Twturl: conf.Twtxt.Twturl, Nick: conf.Twtxt.Nick}
		code, err := tweet.RunHook(c.app.ctx, conf.Twtxt.PostTweetHook, vars, c.app.stdout, c.app.stderr)
		if err != nil {
			slog.Error("post tweet hook failed", "error", err)
		} else if code != 0 {
			slog.Warn("post tweet hook exited with non-zero status", "status", code)
		}
	}
	return nil
}

// confirmLength asks whether an overlong tweet should be posted anyway.
// Without a terminal the answer is no.
func (c *tweetCommand) confirmLength(text string, limit int) (bool, error) {
	length := len([]rune(text))
	if !isTerminal(c.app.stdin) {
		fmt.Fprintf(c.app.stderr, "✗ tweet is longer than %d characters (%d)\n", limit, length)
		return false, nil
	}

	fmt.Fprintf(c.app.stdout, "tweet is longer than %d characters (%d). are you sure? (y/N) ", limit, length)
	answer, err := bufio.NewReader(c.app.stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read answer with %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y"), nil
}

func newFetcher(a *app, conf config.Config) *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{
		Timeout:   conf.Twtxt.TimeoutDuration(),
		Retries:   uint64(conf.Twtxt.Retries),
		UserAgent: a.userAgent(conf),
	})
}
