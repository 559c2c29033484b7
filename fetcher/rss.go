package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/scipunch/mytwt/fetcher/types"
	"github.com/scipunch/mytwt/parser"
)

// RSSFetcher bridges RSS and Atom feeds into twtxt lines using gofeed
type RSSFetcher struct {
	get    *getter
	parser *gofeed.Parser
}

func newRSSFetcher(g *getter) *RSSFetcher {
	return &RSSFetcher{
		get:    g,
		parser: gofeed.NewParser(),
	}
}

// Fetch retrieves the feed and renders every dated item as "timestamp<TAB>title link"
func (f *RSSFetcher) Fetch(ctx context.Context, src types.Source) (string, error) {
	var raw string
	if IsRemote(src.URL) {
		body, err := f.get.get(ctx, src.URL)
		if err != nil {
			return "", err
		}
		raw = string(body)
	} else {
		dat, err := readLocal(src.URL)
		if err != nil {
			return "", err
		}
		raw = dat
	}

	feed, err := f.parser.ParseString(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse RSS feed with %w", err)
	}

	return ToTwtxt(feed), nil
}

// ToTwtxt converts a parsed feed into twtxt text
func ToTwtxt(feed *gofeed.Feed) string {
	var b strings.Builder
	skipped := 0
	for _, item := range feed.Items {
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		} else {
			skipped++
			continue
		}

		text := strings.TrimSpace(strings.Join(strings.Fields(item.Title), " "))
		if item.Link != "" {
			text = strings.TrimSpace(text + " " + item.Link)
		}
		if text == "" {
			skipped++
			continue
		}

		b.WriteString(parser.FormatTimestamp(published))
		b.WriteByte('\t')
		b.WriteString(text)
		b.WriteByte('\n')
	}
	if skipped > 0 {
		slog.Debug("skipped feed items without date or title", "feed", feed.Title, "count", skipped)
	}
	return b.String()
}
