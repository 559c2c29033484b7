package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/scipunch/mytwt/fetcher/types"
	"github.com/scipunch/mytwt/parser"
)

type Options struct {
	Now       time.Time // reference for relative times; zero disables them
	Porcelain bool      // machine readable, one line per post
}

// Render turns posts into display lines, in the given order.
// Pretty output separates posts with a blank line.
func Render(posts []parser.Post, opts Options) []string {
	if opts.Porcelain {
		lines := make([]string, 0, len(posts))
		for _, p := range posts {
			lines = append(lines, fmt.Sprintf("%s\t%s\t%s", p.Author, p.RawTimestamp, p.Text))
		}
		return lines
	}

	lines := make([]string, 0, len(posts)*3)
	for i, p := range posts {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, header(p, opts.Now), p.Text)
	}
	return lines
}

func header(p parser.Post, now time.Time) string {
	if !p.Orderable() || now.IsZero() {
		return fmt.Sprintf("➤ %s (%s):", p.Author, p.RawTimestamp)
	}
	rel := humanize.RelTime(p.Timestamp, now, "ago", "from now")
	return fmt.Sprintf("➤ %s (%s, %s):", p.Author, p.RawTimestamp, rel)
}

// RenderErrors describes failed sources as warning lines
func RenderErrors(errs []error) []string {
	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		var fetchErr *types.FetchError
		if errors.As(err, &fetchErr) {
			lines = append(lines, fmt.Sprintf("✗ could not fetch %s (%s): %s", fetchErr.Source.Nick, fetchErr.Source.URL, fetchErr.Err))
			continue
		}
		lines = append(lines, fmt.Sprintf("✗ %s", err))
	}
	return lines
}
