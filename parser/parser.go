package parser

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the timestamp format written by this client
const Layout = "2006-01-02T15:04:05-0700"

// Accepted timestamp layouts, tried in order
var layouts = []string{
	Layout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04-0700",
	"2006-01-02T15:04Z07:00",
}

// Post is a single twtxt entry
type Post struct {
	Author       string
	Timestamp    time.Time
	RawTimestamp string
	Text         string
}

// Orderable reports whether the timestamp was parsed
func (p Post) Orderable() bool {
	return !p.Timestamp.IsZero()
}

// MalformedLineError is a feed line without a tab separator
type MalformedLineError struct {
	Nick    string
	Line    int
	Content string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed line %d in '%s' feed: no tab separator in %q", e.Line, e.Nick, truncate(e.Content, 40))
}

// TimestampParseError is a feed line whose timestamp could not be parsed.
// The post is still returned, with RawTimestamp set.
type TimestampParseError struct {
	Nick  string
	Line  int
	Value string
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("unparsable timestamp on line %d in '%s' feed: %q", e.Line, e.Nick, truncate(e.Value, 40))
}

// Parse splits raw feed text into posts authored by nick.
// Broken lines never abort parsing, they are reported as warnings instead.
func Parse(raw string, nick string) ([]Post, []error) {
	var posts []Post
	var warnings []error

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		rawTS, text, ok := strings.Cut(line, "\t")
		if !ok {
			warnings = append(warnings, &MalformedLineError{Nick: nick, Line: i + 1, Content: line})
			continue
		}

		rawTS = strings.TrimSpace(rawTS)
		post := Post{
			Author:       nick,
			RawTimestamp: rawTS,
			Text:         cleanText(text),
		}

		ts, err := ParseTimestamp(rawTS)
		if err != nil {
			warnings = append(warnings, &TimestampParseError{Nick: nick, Line: i + 1, Value: rawTS})
		} else {
			post.Timestamp = ts
		}

		posts = append(posts, post)
	}

	return posts, warnings
}

// ParseTimestamp parses a twtxt timestamp in any of the accepted layouts
func ParseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range layouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// FormatTimestamp renders t the way posts are written to a twtfile
func FormatTimestamp(t time.Time) string {
	return t.Format(Layout)
}

// cleanText keeps post text on a single field
func cleanText(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\r', '\n':
			return ' '
		}
		return r
	}, s)
}

// truncate shortens s to maxLen runes
func truncate(s string, maxLen int) string {
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
