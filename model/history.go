package model

import "fmt"

// History is the ordered message sequence of one session. Entries can only
// be appended, popped from the tail or have their content replaced; nothing
// is removed from the middle.
type History struct {
	messages []Message
}

func NewHistory(initial ...Message) *History {
	return &History{messages: append([]Message(nil), initial...)}
}

func (h *History) Append(msgs ...Message) {
	h.messages = append(h.messages, msgs...)
}

func (h *History) Len() int {
	return len(h.messages)
}

// Messages returns a copy of the sequence.
func (h *History) Messages() []Message {
	return append([]Message(nil), h.messages...)
}

// At returns the message at index i.
func (h *History) At(i int) Message {
	return h.messages[i]
}

// Last returns the newest message, if any.
func (h *History) Last() (Message, bool) {
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// System returns the leading System message, if the history has one.
func (h *History) System() (Message, bool) {
	if len(h.messages) == 0 || h.messages[0].Role != RoleSystem {
		return Message{}, false
	}
	return h.messages[0], true
}

// NonSystem returns every message that is not a System message, in order.
func (h *History) NonSystem() []Message {
	out := make([]Message, 0, len(h.messages))
	for _, m := range h.messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// PopLast removes and returns the newest message.
func (h *History) PopLast() (Message, bool) {
	if len(h.messages) == 0 {
		return Message{}, false
	}
	last := h.messages[len(h.messages)-1]
	h.messages = h.messages[:len(h.messages)-1]
	return last, true
}

// PopLastIf removes the newest message only when it has the given role.
func (h *History) PopLastIf(role Role) (Message, bool) {
	last, ok := h.Last()
	if !ok || last.Role != role {
		return Message{}, false
	}
	return h.PopLast()
}

// Truncate drops every message from index n on.
func (h *History) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(h.messages) {
		h.messages = h.messages[:n]
	}
}

func (h *History) ReplaceContent(i int, content string) error {
	if i < 0 || i >= len(h.messages) {
		return fmt.Errorf("message index %d out of range [0,%d)", i, len(h.messages))
	}
	h.messages[i].Content = content
	return nil
}

// LastHuman returns the most recent Human message.
func (h *History) LastHuman() (Message, bool) {
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].Role == RoleHuman {
			return h.messages[i], true
		}
	}
	return Message{}, false
}

// TrailingTools returns the most recent contiguous run of Tool messages at
// the tail, oldest first, and the index where the run starts.
func (h *History) TrailingTools() ([]Message, int) {
	start := len(h.messages)
	for start > 0 && h.messages[start-1].Role == RoleTool {
		start--
	}
	return append([]Message(nil), h.messages[start:]...), start
}

// Validate checks that every Tool message answers a call made by an
// earlier Assistant message in the same contiguous block.
func (h *History) Validate() error {
	for i, m := range h.messages {
		if m.Role != RoleTool {
			continue
		}
		j := i - 1
		for j >= 0 && h.messages[j].Role == RoleTool {
			j--
		}
		if j < 0 || !h.messages[j].HasToolCalls() {
			return fmt.Errorf("tool message %d is not preceded by a tool-call message", i)
		}
		found := false
		for _, c := range h.messages[j].ToolCalls {
			if c.ID == m.ToolCallID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("tool message %d answers unknown call %q", i, m.ToolCallID)
		}
	}
	return nil
}

// Reset empties the history.
func (h *History) Reset() {
	h.messages = nil
}
