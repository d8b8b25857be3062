package ui

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

type command struct {
	Name  string
	Usage string
	Help  string
}

var commands = []command{
	{Name: "index", Usage: "<path>", Help: "Add a file or zip archive to the current index"},
	{Name: "web", Usage: "<url>", Help: "Add a web page to the current index"},
	{Name: "key", Usage: "llm|index <value>", Help: "Set an API key for this session"},
	{Name: "indexname", Usage: "<name>", Help: "Switch to another index"},
	{Name: "copy", Help: "Copy the last answer to the clipboard"},
	{Name: "reset", Help: "Clear the conversation and the session keys"},
	{Name: "help", Help: "Show or hide this list"},
	{Name: "quit", Help: "Exit"},
}

func commandNames() []string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Name
	}
	return names
}

// parseCommand splits "/name rest of line". Names that are not exact are
// resolved with fuzzy matching, best score first.
func parseCommand(line string) (name, rest string, err error) {
	line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	word, rest, _ := strings.Cut(line, " ")
	word = strings.ToLower(word)
	rest = strings.TrimSpace(rest)
	if word == "" {
		return "", "", fmt.Errorf("empty command, try /help")
	}

	names := commandNames()
	for _, n := range names {
		if n == word {
			return n, rest, nil
		}
	}
	matches := fuzzy.Find(word, names)
	if len(matches) == 0 {
		return "", "", fmt.Errorf("unknown command /%s, try /help", word)
	}
	return matches[0].Str, rest, nil
}

// parseKeyArgs reads "llm <value>" or "index <value>".
func parseKeyArgs(rest string) (kind, value string, err error) {
	kind, value, _ = strings.Cut(strings.TrimSpace(rest), " ")
	value = strings.TrimSpace(value)
	switch kind {
	case "llm", "index":
	default:
		return "", "", fmt.Errorf("usage: /key llm|index <value>")
	}
	if value == "" {
		return "", "", fmt.Errorf("usage: /key %s <value>", kind)
	}
	return kind, value, nil
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Commands") + "\n")
	for _, c := range commands {
		usage := "/" + c.Name
		if c.Usage != "" {
			usage += " " + c.Usage
		}
		fmt.Fprintf(&sb, "  %-26s %s\n", usage, DimStyle.Render(c.Help))
	}
	sb.WriteString(DimStyle.Render("  Commands can be abbreviated: /idx, /cp, /q"))
	return sb.String()
}
