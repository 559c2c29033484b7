package tweet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/scipunch/mytwt/parser"
)

// ErrEmpty is returned when the text has nothing to post
var ErrEmpty = errors.New("tweet text is empty")

// ExceedsLength reports whether text is longer than limit characters.
// A limit of zero or less never exceeds.
func ExceedsLength(text string, limit int) bool {
	return limit > 0 && utf8.RuneCountInString(text) > limit
}

// Normalize collapses tabs and newlines so the text fits a single feed line
func Normalize(text string) string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\r', '\n':
			return ' '
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}

// Line formats a feed line without the trailing newline
func Line(text string, at time.Time) string {
	return parser.FormatTimestamp(at) + "\t" + text
}

// Timestamp resolves the optional user supplied timestamp, defaulting to now
func Timestamp(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	ts, err := parser.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q with %w", raw, err)
	}
	return ts, nil
}

// Append adds text as a new post at the end of the twtfile at path, creating it if needed.
// Existing lines are never rewritten.
func Append(path, text string, at time.Time) (string, error) {
	text = Normalize(text)
	if text == "" {
		return "", ErrEmpty
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create twtfile directory with %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open twtfile at '%s' with %w", path, err)
	}
	defer f.Close()

	if err := ensureTrailingNewline(path); err != nil {
		return "", err
	}

	line := Line(text, at)
	if _, err := f.WriteString(line + "\n"); err != nil {
		return "", fmt.Errorf("failed to write into twtfile at '%s' with %w", path, err)
	}
	slog.Debug("tweet appended", "twtfile", path)
	return line, nil
}

// ensureTrailingNewline appends a newline to a file whose last byte is not one,
// so a new post never joins a previous unterminated line.
func ensureTrailingNewline(path string) error {
	r, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open twtfile at '%s' with %w", path, err)
	}
	defer r.Close()

	info, err := r.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat twtfile with %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := r.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("failed to read twtfile with %w", err)
	}
	if last[0] == '\n' {
		return nil
	}

	w, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open twtfile at '%s' with %w", path, err)
	}
	defer w.Close()
	_, err = w.WriteString("\n")
	return err
}

// HookVars are substituted into the post hook command
type HookVars struct {
	Twtfile string
	Twturl  string
	Nick    string
}

// ExpandHook substitutes {twtfile}, {twturl} and {nick} in cmd
func ExpandHook(cmd string, vars HookVars) string {
	return strings.NewReplacer(
		"{twtfile}", vars.Twtfile,
		"{twturl}", vars.Twturl,
		"{nick}", vars.Nick,
	).Replace(cmd)
}

// RunHook runs cmd through the shell and returns its exit status.
// A non-zero status is not an error; err is only set when the command could not run.
func RunHook(ctx context.Context, cmd string, vars HookVars, stdout, stderr io.Writer) (int, error) {
	if strings.TrimSpace(cmd) == "" {
		return 0, nil
	}

	c := exec.CommandContext(ctx, "sh", "-c", ExpandHook(cmd, vars))
	c.Stdout = stdout
	c.Stderr = stderr

	err := c.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("failed to run post tweet hook with %w", err)
	}
	return 0, nil
}
