// Package router runs one tutoring turn: it asks the model whether the
// student's message needs course material, then either streams a direct
// answer or retrieves documents and streams an answer grounded on them.
//
// A turn moves through these states:
//
//	AwaitingDecision -> Responding ------------------------> Done
//	AwaitingDecision -> Retrieving -> Generating ----------> Done
//
// Every successful turn ends with exactly one new Human and one new
// Assistant message in the history. A failed turn leaves the history as it
// was before the turn started.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mentor/config"
	"mentor/model"
	"mentor/retrieval"
	"mentor/toolcall"
)

type State int

const (
	StateAwaitingDecision State = iota
	StateResponding
	StateRetrieving
	StateGenerating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingDecision:
		return "AwaitingDecision"
	case StateResponding:
		return "Responding"
	case StateRetrieving:
		return "Retrieving"
	case StateGenerating:
		return "Generating"
	case StateDone:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Route tells how a turn produced its answer.
type Route int

const (
	RouteDirect Route = iota
	RouteRetrieval
	// RouteFallback: the decision looked like a tool call but did not
	// parse, and was answered directly.
	RouteFallback
)

func (r Route) String() string {
	switch r {
	case RouteDirect:
		return "direct"
	case RouteRetrieval:
		return "retrieval"
	case RouteFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Route(%d)", int(r))
	}
}

// FallbackPolicy decides what happens when the decision starts with "{"
// but no tool call can be parsed from it.
type FallbackPolicy string

const (
	FallbackDirectAnswer FallbackPolicy = "direct"
	FallbackError        FallbackPolicy = "error"
)

var (
	// ErrNoToolResult means Generating found no Tool message to ground on.
	ErrNoToolResult = fmt.Errorf("%w: no tool result found after retrieval", model.ErrInternal)

	// ErrNoQuestion means Generating found no Human message to answer.
	ErrNoQuestion = fmt.Errorf("%w: no question found to ground", model.ErrInternal)

	// ErrUnroutable is returned under FallbackError for "{"-prefixed
	// decisions that are not valid tool calls.
	ErrUnroutable = errors.New("decision is not a valid tool call")
)

// RetrievalError carries a failed lookup's message with the error marker
// removed.
type RetrievalError struct {
	Message string
}

func (e *RetrievalError) Error() string {
	return "retrieval failed: " + e.Message
}

type Options struct {
	Fallback FallbackPolicy
	// Timeout bounds the whole turn. Zero means no bound.
	Timeout time.Duration
	Trim    model.TrimConfig
	// OnState, when set, is called on every state entry.
	OnState func(State)
}

func DefaultOptions() Options {
	return Options{
		Fallback: FallbackDirectAnswer,
		Timeout:  config.DefaultTimeout,
		Trim:     model.DefaultTrimConfig(),
	}
}

// StateObserver is implemented by displays that follow a turn's progress.
// EnterState is called on every state entry, after Options.OnState.
type StateObserver interface {
	EnterState(State)
}

// Turn is the input of one Run. History is mutated in place.
type Turn struct {
	Provider    model.Provider
	History     *model.History
	Credentials model.Credentials
	Input       string
	Display     model.Display
}

// Outcome describes a finished turn. States lists every state entered, in
// order, and is filled even when the turn fails.
type Outcome struct {
	Route     Route
	Answer    string
	ToolCall  *model.ToolCall
	Documents []model.Document
	States    []State
}

type Router struct {
	tool      *retrieval.Tool
	counter   model.TokenCounter
	prompts   *Prompts
	generator *Generator
	opts      Options
}

// New builds a router. A nil counter falls back to a character estimator.
func New(tool *retrieval.Tool, counter model.TokenCounter, opts Options) *Router {
	if counter == nil {
		counter = model.NewCharEstimator()
	}
	if opts.Fallback == "" {
		opts.Fallback = FallbackDirectAnswer
	}
	if opts.Trim.Strategy == "" {
		opts.Trim = model.DefaultTrimConfig()
	}
	prompts := NewPrompts()
	return &Router{
		tool:      tool,
		counter:   counter,
		prompts:   prompts,
		generator: NewGenerator(prompts),
		opts:      opts,
	}
}

// Run executes one turn. The returned Outcome is never nil. On error the
// history is truncated back to its length before the turn.
func (r *Router) Run(ctx context.Context, turn Turn) (*Outcome, error) {
	out := &Outcome{}
	if turn.History == nil || turn.Provider == nil {
		return out, fmt.Errorf("%w: turn needs a history and a provider", model.ErrInternal)
	}
	input := strings.TrimSpace(turn.Input)
	if input == "" {
		return out, &model.ConfigError{Reason: "message is empty"}
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	base := turn.History.Len()
	turn.History.Append(model.NewHumanMessage(input))

	if err := r.run(ctx, turn, out); err != nil {
		config.Debugf("[Router] ERROR: turn failed in %s: %v", out.lastState(), err)
		turn.History.Truncate(base)
		return out, err
	}
	r.enter(turn, out, StateDone)
	return out, nil
}

func (r *Router) run(ctx context.Context, turn Turn, out *Outcome) error {
	r.enter(turn, out, StateAwaitingDecision)
	prompt, err := r.decisionPrompt(turn.History, turn.Credentials)
	if err != nil {
		return err
	}

	decision, err := turn.Provider.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	decision = strings.TrimSpace(decision)
	config.Debugf("[Router] decision: %q", decision)

	if !toolcall.LooksLikeToolCall(decision) {
		out.Route = RouteDirect
		return r.respond(ctx, turn, prompt, out)
	}

	repaired := toolcall.RepairBraces(decision)
	call, result := toolcall.Parse(repaired)
	if result != toolcall.Parsed {
		config.Debugf("[Router] decision starts with '{' but did not parse (%s), fallback=%s", result, r.opts.Fallback)
		if r.opts.Fallback == FallbackError {
			return fmt.Errorf("%w: %s", ErrUnroutable, result)
		}
		out.Route = RouteFallback
		return r.respond(ctx, turn, prompt, out)
	}

	out.Route = RouteRetrieval
	out.ToolCall = call
	turn.History.Append(model.NewToolCallMessage(repaired, *call))

	r.enter(turn, out, StateRetrieving)
	res := r.tool.Run(ctx, *call, turn.Credentials)
	turn.History.Append(model.NewToolMessage(*call, res.Content))
	out.Documents = res.Artifact

	return r.generate(ctx, turn, out)
}

// respond re-issues the decision prompt as a stream and records the answer.
func (r *Router) respond(ctx context.Context, turn Turn, prompt []model.Message, out *Outcome) error {
	r.enter(turn, out, StateResponding)
	answer, err := model.Collect(turn.Provider.Stream(ctx, prompt), turn.Display)
	if err != nil {
		return err
	}
	out.Answer = answer
	turn.History.Append(model.NewAssistantMessage(answer))
	return nil
}

func (r *Router) generate(ctx context.Context, turn Turn, out *Outcome) error {
	r.enter(turn, out, StateGenerating)
	tools, start := turn.History.TrailingTools()
	if len(tools) == 0 {
		return ErrNoToolResult
	}
	if retrieval.IsError(tools[0].Content) {
		msg := retrieval.StripMarker(tools[0].Content)
		config.Debugf("[Router] retrieval failed: %s", msg)
		return &RetrievalError{Message: msg}
	}

	question, ok := turn.History.LastHuman()
	if !ok {
		return ErrNoQuestion
	}
	contents := make([]string, len(tools))
	for i, m := range tools {
		contents[i] = m.Content
	}

	answer, err := r.generator.Generate(ctx, turn.Provider, turn.Display, contents, question)
	if err != nil {
		return err
	}

	turn.History.Truncate(start)
	if _, ok := turn.History.PopLastIf(model.RoleAssistant); !ok {
		return fmt.Errorf("%w: tool-call message missing before tool results", model.ErrInternal)
	}
	turn.History.Append(model.NewAssistantMessage(answer))
	out.Answer = answer
	return nil
}

// decisionPrompt is the routing instructions, the session persona and the
// trimmed conversation.
func (r *Router) decisionPrompt(h *model.History, creds model.Credentials) ([]model.Message, error) {
	routing, err := r.prompts.Routing(retrieval.ToolName, creds.IndexName, creds.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("%w: render routing prompt: %v", model.ErrInternal, err)
	}
	prompt := []model.Message{model.NewSystemMessage(routing)}
	if sys, ok := h.System(); ok {
		prompt = append(prompt, sys)
	}

	trimmed, err := model.Trim(h.NonSystem(), r.opts.Trim, r.counter)
	if err != nil {
		return nil, fmt.Errorf("%w: trim history: %v", model.ErrConfiguration, err)
	}
	if len(trimmed) == 0 {
		// The new message alone is over budget; send it anyway.
		last, _ := h.Last()
		config.Debugf("[Router] history does not fit in %d tokens, sending the latest message only", r.opts.Trim.MaxTokens)
		trimmed = []model.Message{last}
	}
	return append(prompt, trimmed...), nil
}

func (r *Router) enter(turn Turn, out *Outcome, s State) {
	config.Debugf("[Router] -> %s", s)
	out.States = append(out.States, s)
	if r.opts.OnState != nil {
		r.opts.OnState(s)
	}
	if obs, ok := turn.Display.(StateObserver); ok {
		obs.EnterState(s)
	}
}

func (o *Outcome) lastState() State {
	if len(o.States) == 0 {
		return StateAwaitingDecision
	}
	return o.States[len(o.States)-1]
}
