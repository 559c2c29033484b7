package main

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

const defaultPager = "less -R"

// output writes lines to stdout, through $PAGER when paging is wanted and stdout is a terminal
func (a *app) output(lines []string, usePager bool) error {
	if len(lines) == 0 {
		return nil
	}
	text := strings.Join(lines, "\n") + "\n"

	if !usePager || !isTerminal(a.stdout) {
		_, err := fmt.Fprint(a.stdout, text)
		return err
	}

	pager := cmp.Or(os.Getenv("PAGER"), defaultPager)
	cmd := exec.CommandContext(a.ctx, "sh", "-c", pager)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = a.stdout
	cmd.Stderr = a.stderr
	if err := cmd.Run(); err != nil {
		slog.Warn("pager failed, printing directly", "pager", pager, "error", err)
		_, err := fmt.Fprint(a.stdout, text)
		return err
	}
	return nil
}
