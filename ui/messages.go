package ui

import (
	"mentor/indexing"
	"mentor/router"
)

// tokenMsg is one streamed answer fragment.
type tokenMsg string

// stateMsg reports a running turn entering a router state.
type stateMsg router.State

type turnDoneMsg struct {
	Outcome *router.Outcome
	Err     error
}

// recoveredMsg reports the end of a grace delay after a reset-class error.
type recoveredMsg struct {
	Reset bool
	Err   error
}

type indexDoneMsg struct {
	Report indexing.Report
	Err    error
}

type markdownRenderedMsg struct {
	Content  string
	Rendered string
}

type clearToastMsg struct {
	Seq int
}
