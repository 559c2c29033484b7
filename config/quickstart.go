package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// NewsNick and NewsURL identify the twtxt project announcement feed offered during quickstart
const (
	NewsNick = "twtxt"
	NewsURL  = "https://buckket.org/twtxt_news.txt"
)

// Quickstart asks the user for the basic settings and returns a config built on Default
func Quickstart(in io.Reader, out io.Writer) (Config, error) {
	conf := Default()
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "Welcome! This wizard creates a basic configuration for you.")
	fmt.Fprintln(out)

	nick, err := ask(reader, out, "Please enter your desired nick", os.Getenv("USER"))
	if err != nil {
		return conf, err
	}
	if nick == "" {
		return conf, fmt.Errorf("nick is required")
	}
	conf.Twtxt.Nick = nick

	twtfile, err := ask(reader, out, "Please enter the desired location for your twtxt file", conf.Twtxt.Twtfile)
	if err != nil {
		return conf, err
	}
	conf.Twtxt.Twtfile = twtfile

	twturl, err := ask(reader, out, "Please enter the URL your twtxt file will be accessible from", "")
	if err != nil {
		return conf, err
	}
	conf.Twtxt.Twturl = twturl

	disclose, err := confirm(reader, out, "Do you want to disclose your identity? Your nick and URL will be shared when making HTTP requests", false)
	if err != nil {
		return conf, err
	}
	if !disclose {
		conf.Twtxt.Twturl = ""
	}

	news, err := confirm(reader, out, "Do you want to follow the twtxt news feed?", true)
	if err != nil {
		return conf, err
	}
	if news {
		conf.Following[NewsNick] = NewsURL
	}

	fmt.Fprintln(out)
	return conf, nil
}

func ask(reader *bufio.Reader, out io.Writer, question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(out, "➤ %s [%s]: ", question, def)
	} else {
		fmt.Fprintf(out, "➤ %s: ", question)
	}
	answer, err := reader.ReadString('\n')
	if err != nil && !(err == io.EOF && answer != "") {
		return "", fmt.Errorf("failed to read answer with %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func confirm(reader *bufio.Reader, out io.Writer, question string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer, err := ask(reader, out, fmt.Sprintf("%s (%s)", question, hint), "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
