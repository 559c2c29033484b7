package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/scipunch/mytwt/config"
	"github.com/scipunch/mytwt/logger"
)

// Version is set at build time via -ldflags
var Version = "dev"

type globalOptions struct {
	Config  string `short:"c" long:"config" value-name:"PATH" description:"path to a TOML config"`
	Verbose bool   `short:"v" long:"verbose" description:"enable debug logging"`
}

type app struct {
	ctx     context.Context
	opts    globalOptions
	cfgPath string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	now     func() time.Time
}

// usageError is an invalid invocation that should print usage
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{
		ctx:    ctx,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}

	p := a.parser()
	_, err := p.ParseArgs(args)
	if err == nil {
		return 0
	}

	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) {
		if flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			return 0
		}
		fmt.Fprintf(stderr, "✗ %s\n\n", flagsErr.Message)
		p.WriteHelp(stderr)
		return 1
	}

	var uErr *usageError
	if errors.As(err, &uErr) {
		fmt.Fprintf(stderr, "✗ %s\n\n", uErr.msg)
		p.WriteHelp(stderr)
		return 1
	}

	fmt.Fprintf(stderr, "✗ %s\n", err)
	return 1
}

func (a *app) parser() *flags.Parser {
	p := flags.NewParser(&a.opts, flags.HelpFlag|flags.PassDoubleDash)
	p.Name = "mytwt"
	p.ShortDescription = "decentralised, minimalist microblogging"

	p.AddCommand("follow", "Add a new source to your followings", "Add nick with the given feed URL to the follow-list.", &followCommand{app: a})
	p.AddCommand("following", "Return the list of sources you're following", "", &followingCommand{app: a})
	p.AddCommand("quickstart", "Create a basic configuration", "Interactively write a config file and create your twtfile.", &quickstartCommand{app: a})
	p.AddCommand("timeline", "Retrieve your personal timeline", "Fetch all followed feeds plus your own and show the most recent posts.", &timelineCommand{app: a})
	p.AddCommand("tweet", "Append a new tweet to your twtxt file", "Post text, optionally with an explicit timestamp.", &tweetCommand{app: a})
	p.AddCommand("unfollow", "Remove an existing source from your followings", "", &unfollowCommand{app: a})

	p.CommandHandler = func(cmd flags.Commander, args []string) error {
		a.setupLogging()
		if cmd == nil {
			return nil
		}
		path, err := a.resolveConfigPath()
		if err != nil {
			return err
		}
		a.cfgPath = path
		return cmd.Execute(args)
	}
	return p
}

func (a *app) setupLogging() {
	verbose := a.opts.Verbose || os.Getenv("DEBUG") != ""
	slog.SetDefault(logger.New(a.stderr, verbose))
}

func (a *app) resolveConfigPath() (string, error) {
	if a.opts.Config != "" {
		return a.opts.Config, nil
	}
	return config.DefaultPath()
}

func (a *app) loadConfig() (config.Config, error) {
	conf, err := config.Read(a.cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		return conf, fmt.Errorf("%w (run 'mytwt quickstart' to create one)", err)
	}
	return conf, err
}

func (a *app) userAgent(conf config.Config) string {
	ua := "mytwt/" + Version
	if conf.Twtxt.Nick != "" && conf.Twtxt.Twturl != "" {
		ua += fmt.Sprintf(" (+%s; @%s)", conf.Twtxt.Twturl, conf.Twtxt.Nick)
	}
	return ua
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func noExtraArgs(args []string) error {
	if len(args) > 0 {
		return &usageError{msg: fmt.Sprintf("unexpected arguments: %v", args)}
	}
	return nil
}
