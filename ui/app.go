// Package ui is the terminal chat surface: a transcript viewport, an input
// line and slash commands for keys and indexing.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mentor/chat"
	"mentor/config"
	"mentor/indexing"
	"mentor/model"
	"mentor/router"
)

// Rows taken by everything except the viewport: header, divider, status,
// input and footer.
const chromeHeight = 5

const (
	eventBuffer     = 64
	defaultToastTTL = 4 * time.Second
	waitNotice      = "Please wait for the current answer to finish"
	searchNotice    = "Searching the course material, please wait a moment"
)

type busyState int

const (
	busyIdle busyState = iota
	busyTurn
	busyIndexing
	busyRecovering
)

func (b busyState) String() string {
	switch b {
	case busyTurn:
		return "Answering..."
	case busyIndexing:
		return "Indexing course material..."
	case busyRecovering:
		return chat.ResetNotice + "..."
	default:
		return ""
	}
}

type Deps struct {
	Service *chat.Service
	Session *chat.Session
	Indexer *indexing.Indexer

	// Model is shown in the header.
	Model string

	// SaveCredential persists a key entered with /key. Optional.
	SaveCredential func(name, value string) error
	// SaveIndexName persists the index chosen with /indexname. Optional.
	SaveIndexName func(name string) error
}

type App struct {
	deps Deps

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	transcript []model.Message
	// rendered caches markdown output by message content.
	rendered   map[string]string
	pending    *strings.Builder // Pointer to avoid copy panic
	events     chan tea.Msg
	lastAnswer string
	indexName  string

	busy     busyState
	status   string
	toast    string
	toastErr bool
	toastSeq int
	toastTTL time.Duration
	showHelp bool

	copy   func(string) error
	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(deps Deps) App {
	ti := textinput.New()
	ti.Placeholder = "Ask about your course, or /help"
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	ctx, cancel := context.WithCancel(context.Background())
	return App{
		deps:       deps,
		input:      ti,
		spinner:    sp,
		transcript: deps.Session.Snapshot(),
		rendered:   map[string]string{},
		pending:    &strings.Builder{},
		indexName:  deps.Session.CurrentCredentials().IndexName,
		status:     "Type a question, or /help for commands",
		toastTTL:   defaultToastTTL,
		copy:       clipboard.WriteAll,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (a App) Init() tea.Cmd {
	return textinput.Blink
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return a.resize(msg)

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tokenMsg:
		a.pending.WriteString(string(msg))
		a.refresh(true)
		return a, waitForEvent(a.events)

	case stateMsg:
		if router.State(msg) != router.StateRetrieving {
			return a, waitForEvent(a.events)
		}
		next, toastCmd := a.showToast(searchNotice, false)
		return next, tea.Batch(toastCmd, waitForEvent(next.events))

	case turnDoneMsg:
		return a.finishTurn(msg)

	case recoveredMsg:
		a.busy = busyIdle
		if msg.Err != nil {
			config.Debugf("[UI] recovery interrupted: %v", msg.Err)
		}
		a.syncTranscript()
		a.refresh(true)
		if msg.Reset {
			a.lastAnswer = ""
			return a.showToast("Chat history restarted. Set your keys again with /key.", false)
		}
		return a, nil

	case indexDoneMsg:
		a.busy = busyIdle
		if msg.Err != nil {
			config.Debugf("[UI] indexing failed: %v", msg.Err)
			return a.showToast("Indexing failed: "+msg.Err.Error(), true)
		}
		text := msg.Report.String()
		if len(msg.Report.Skipped) > 0 {
			text += ". Skipped: " + strings.Join(msg.Report.Skipped, "; ")
		}
		return a.showToast(text, false)

	case markdownRenderedMsg:
		a.rendered[msg.Content] = msg.Rendered
		a.refresh(false)
		return a, nil

	case clearToastMsg:
		if msg.Seq == a.toastSeq {
			a.toast = ""
			a.toastErr = false
		}
		return a, nil

	case spinner.TickMsg:
		if a.busy == busyIdle {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		if a.busy == busyTurn && a.pending.Len() == 0 {
			a.refresh(false)
		}
		return a, cmd
	}
	return a, nil
}

func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	header := TitleStyle.Render("mentor") + DimStyle.Render(fmt.Sprintf(" · %s · index %s", a.deps.Model, orNone(a.indexName)))
	divider := BorderStyle.Render(strings.Repeat("─", max(a.width, 1)))
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		a.viewport.View(),
		divider,
		a.renderStatus(),
		a.input.View(),
		a.renderFooter(),
	)
}

func (a App) resize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	a.width, a.height = msg.Width, msg.Height
	vpHeight := max(msg.Height-chromeHeight, 3)
	if !a.ready {
		a.viewport = viewport.New(msg.Width, vpHeight)
		a.ready = true
	} else {
		a.viewport.Width = msg.Width
		a.viewport.Height = vpHeight
	}
	a.input.Width = max(msg.Width-4, 10)

	// Markdown is laid out for a width; render everything again.
	a.rendered = map[string]string{}
	a.refresh(true)
	return a, a.renderAll()
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		a.cancel()
		return a, tea.Quit
	case tea.KeyEsc:
		if a.showHelp {
			a.showHelp = false
			a.refresh(false)
		}
		return a, nil
	case tea.KeyEnter:
		if a.busy != busyIdle {
			return a.showToast(waitNotice, false)
		}
		text := a.input.Value()
		a.input.Reset()
		return a.submit(text)
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit handles one line of input: a slash command or a question.
func (a App) submit(text string) (App, tea.Cmd) {
	text = strings.TrimSpace(text)
	if text == "" {
		return a, nil
	}
	if a.busy != busyIdle {
		return a.showToast(waitNotice, false)
	}
	if strings.HasPrefix(text, "/") {
		return a.runCommand(text)
	}
	return a.startTurn(text)
}

func (a App) startTurn(text string) (App, tea.Cmd) {
	a.toast = ""
	a.busy = busyTurn
	a.pending.Reset()
	a.transcript = append(a.transcript, model.NewHumanMessage(text))
	a.events = make(chan tea.Msg, eventBuffer)
	a.refresh(true)
	return a, tea.Batch(a.spinner.Tick, a.runTurn(text, a.events))
}

// runTurn starts the turn in the background and returns its first event.
// Tokens and the final turnDoneMsg arrive on events in order.
func (a App) runTurn(text string, events chan tea.Msg) tea.Cmd {
	svc, sess, ctx := a.deps.Service, a.deps.Session, a.ctx
	send := func(msg tea.Msg) {
		select {
		case events <- msg:
		case <-ctx.Done():
		}
	}
	return func() tea.Msg {
		go func() {
			defer close(events)
			out, err := svc.HandleUserInput(ctx, sess, text, turnDisplay{send: send})
			send(turnDoneMsg{Outcome: out, Err: err})
		}()
		return waitForEvent(events)()
	}
}

// turnDisplay forwards a running turn's tokens and state changes to the
// event channel.
type turnDisplay struct {
	send func(tea.Msg)
}

func (d turnDisplay) AppendToken(token string) { d.send(tokenMsg(token)) }

func (d turnDisplay) EnterState(s router.State) { d.send(stateMsg(s)) }

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (a App) finishTurn(msg turnDoneMsg) (App, tea.Cmd) {
	a.busy = busyIdle
	a.pending.Reset()
	a.events = nil
	a.syncTranscript()

	if msg.Err != nil {
		kind := chat.Classify(msg.Err)
		config.Debugf("[UI] turn failed (%s): %v", kind, msg.Err)
		a.refresh(true)
		next, toastCmd := a.showToast(chat.UserMessage(msg.Err), true)
		if kind.Recovery() != chat.RecoveryReset {
			return next, toastCmd
		}
		next.busy = busyRecovering
		return next, tea.Batch(toastCmd, next.spinner.Tick, next.recoverSession(msg.Err))
	}

	if a.toast == searchNotice {
		a.toast = ""
	}
	a.lastAnswer = msg.Outcome.Answer
	a.status = routeStatus(msg.Outcome)
	a.refresh(true)
	return a, a.renderMarkdownAsync(msg.Outcome.Answer)
}

func (a App) recoverSession(err error) tea.Cmd {
	svc, sess, ctx := a.deps.Service, a.deps.Session, a.ctx
	return func() tea.Msg {
		reset, recoverErr := svc.Recover(ctx, sess, err)
		return recoveredMsg{Reset: reset, Err: recoverErr}
	}
}

func routeStatus(out *router.Outcome) string {
	switch out.Route {
	case router.RouteRetrieval:
		return fmt.Sprintf("Answered from course material (%d document(s))", len(out.Documents))
	case router.RouteFallback:
		return "Answered directly (the search request could not be read)"
	default:
		return "Answered directly"
	}
}

func (a App) runCommand(line string) (App, tea.Cmd) {
	name, rest, err := parseCommand(line)
	if err != nil {
		return a.showToast(err.Error(), true)
	}
	config.Debugf("[UI] command /%s", name)

	switch name {
	case "help":
		a.showHelp = !a.showHelp
		a.refresh(true)
		return a, nil

	case "quit":
		a.cancel()
		return a, tea.Quit

	case "reset":
		a.deps.Session.Reset()
		a.indexName = ""
		a.lastAnswer = ""
		a.syncTranscript()
		a.refresh(true)
		return a.showToast("Conversation and session keys cleared", false)

	case "copy":
		return a.copyLastAnswer()

	case "key":
		return a.setKey(rest)

	case "indexname":
		if rest == "" {
			return a.showToast("usage: /indexname <name>", true)
		}
		a.deps.Session.UpdateCredentials(func(c *model.Credentials) { c.IndexName = rest })
		a.indexName = rest
		if a.deps.SaveIndexName != nil {
			if err := a.deps.SaveIndexName(rest); err != nil {
				return a.showToast("Index set for this session but not saved: "+err.Error(), true)
			}
		}
		return a.showToast("Using index "+rest, false)

	case "index":
		return a.startIndexing(rest, false)

	case "web":
		return a.startIndexing(rest, true)
	}
	return a.showToast("unknown command /"+name, true)
}

func (a App) setKey(rest string) (App, tea.Cmd) {
	kind, value, err := parseKeyArgs(rest)
	if err != nil {
		return a.showToast(err.Error(), true)
	}

	credName, label := config.CredentialLLMKey, "LLM API key"
	if kind == "index" {
		credName, label = config.CredentialIndexKey, "Index API key"
	}
	a.deps.Session.UpdateCredentials(func(c *model.Credentials) {
		if kind == "index" {
			c.IndexKey = value
		} else {
			c.LLMKey = value
		}
	})
	config.Debugf("[UI] %s set to %s", label, config.Redact(value))

	if a.deps.SaveCredential != nil {
		if err := a.deps.SaveCredential(credName, value); err != nil {
			return a.showToast(label+" set for this session but not saved: "+err.Error(), true)
		}
	}
	return a.showToast(fmt.Sprintf("%s set (%s)", label, config.Redact(value)), false)
}

func (a App) startIndexing(target string, web bool) (App, tea.Cmd) {
	if target == "" {
		if web {
			return a.showToast("usage: /web <url>", true)
		}
		return a.showToast("usage: /index <path>", true)
	}
	if a.deps.Indexer == nil {
		return a.showToast("Indexing is not available", true)
	}

	creds := a.deps.Session.CurrentCredentials()
	params := model.IndexParams{APIKey: creds.IndexKey, IndexName: creds.IndexName, EmbeddingModel: creds.EmbeddingModel}
	if err := params.Validate(); err != nil {
		return a.showToast(chat.UserMessage(err), true)
	}

	a.toast = ""
	a.busy = busyIndexing
	indexer, ctx := a.deps.Indexer, a.ctx
	return a, tea.Batch(a.spinner.Tick, func() tea.Msg {
		var (
			report indexing.Report
			err    error
		)
		if web {
			report, err = indexer.IndexURL(ctx, params, target)
		} else {
			report, err = indexer.IndexFile(ctx, params, target)
		}
		return indexDoneMsg{Report: report, Err: err}
	})
}

func (a App) copyLastAnswer() (App, tea.Cmd) {
	text := a.lastAnswer
	if text == "" {
		for i := len(a.transcript) - 1; i >= 0; i-- {
			if a.transcript[i].Role == model.RoleAssistant {
				text = a.transcript[i].Content
				break
			}
		}
	}
	if text == "" {
		return a.showToast("Nothing to copy yet", false)
	}
	if err := a.copy(text); err != nil {
		return a.showToast("Copy failed: "+err.Error(), true)
	}
	return a.showToast("Last answer copied to clipboard", false)
}

// showToast sets the toast line. Info toasts clear themselves after
// toastTTL; error toasts stay until the next toast or turn.
func (a App) showToast(text string, isErr bool) (App, tea.Cmd) {
	a.toastSeq++
	a.toast = text
	a.toastErr = isErr
	if isErr || a.toastTTL <= 0 {
		return a, nil
	}
	seq := a.toastSeq
	return a, tea.Tick(a.toastTTL, func(time.Time) tea.Msg {
		return clearToastMsg{Seq: seq}
	})
}

// syncTranscript reloads the transcript from the session. Only call it
// while no turn is running: the session lock is held for a whole turn.
func (a *App) syncTranscript() {
	a.transcript = a.deps.Session.Snapshot()
}

func (a App) renderAll() tea.Cmd {
	var cmds []tea.Cmd
	for _, m := range a.transcript {
		if m.Role == model.RoleAssistant {
			cmds = append(cmds, a.renderMarkdownAsync(m.Content))
		}
	}
	return tea.Batch(cmds...)
}

func (a *App) refresh(gotoBottom bool) {
	if !a.ready {
		return
	}
	content := a.renderTranscript()
	if a.showHelp {
		content += "\n\n" + helpText()
	}
	a.viewport.SetContent(content)
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
