package ui

import (
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"mentor/config"
	"mentor/model"
)

// renderMarkdown renders an answer for the terminal. Autolinks stay off so
// plain URLs are left for the terminal to detect.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}
	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width, 0)
	doc := p.Parse([]byte(content))
	return strings.TrimRight(string(gomarkdown.Render(doc, r)), "\n")
}

func (a App) renderMarkdownAsync(content string) tea.Cmd {
	width := a.width - 4
	return func() tea.Msg {
		start := time.Now()
		rendered := renderMarkdown(content, width)
		config.Debugf("[UI] rendered %d chars of markdown in %v", len(content), time.Since(start))
		return markdownRenderedMsg{Content: content, Rendered: rendered}
	}
}

// renderTranscript lays out the conversation for the viewport, followed by
// the answer still streaming, if any.
func (a App) renderTranscript() string {
	width := a.width - 2
	if width < 10 {
		width = 10
	}
	wrap := lipgloss.NewStyle().Width(width)

	var blocks []string
	for _, m := range a.transcript {
		switch m.Role {
		case model.RoleHuman:
			blocks = append(blocks, UserStyle.Render("You")+"\n"+wrap.Render(m.Content))
		case model.RoleAssistant:
			body, ok := a.rendered[m.Content]
			if !ok || body == "" {
				body = wrap.Render(m.Content)
			}
			blocks = append(blocks, AssistantStyle.Render("Mentor")+"\n"+body)
		}
	}
	if a.busy == busyTurn {
		body := a.pending.String()
		if body == "" {
			body = a.spinner.View() + DimStyle.Render(" thinking...")
		} else {
			body = wrap.Render(body)
		}
		blocks = append(blocks, AssistantStyle.Render("Mentor")+"\n"+body)
	}
	return strings.Join(blocks, "\n\n")
}

func (a App) renderStatus() string {
	width := a.width
	if width <= 0 {
		width = 80
	}
	var line string
	switch {
	case a.toast != "" && a.toastErr:
		line = ErrorStyle.Render(runewidth.Truncate(a.toast, width, "…"))
	case a.toast != "":
		line = ToastStyle.Render(runewidth.Truncate(a.toast, width, "…"))
	case a.busy != busyIdle:
		line = a.spinner.View() + " " + StatusStyle.Render(runewidth.Truncate(a.busy.String(), width-2, "…"))
	default:
		line = StatusStyle.Render(runewidth.Truncate(a.status, width, "…"))
	}
	return line
}

func (a App) renderFooter() string {
	return FormatFooter("Enter", "Send", "PgUp/PgDn", "Scroll", "/help", "Commands", "Ctrl+C", "Quit")
}
