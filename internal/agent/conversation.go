package agent

import (
	"github.com/draco28/ragcore/internal/assemble"
	"github.com/draco28/ragcore/internal/providers"
)

// Conversation is a bounded sliding window of chat messages (spec.md
// §4.14), grounded on the teacher's maybeSummarize/adjustCutIndexForToolDeps
// token-budget trimming but simplified to plain drop-oldest truncation. It
// has no summarization hook: dropped messages are not replaced by a summary.
type Conversation struct {
	messages  []providers.ChatMessage
	maxTokens int
	counter   assemble.TokenCounter
}

// NewConversation builds a Conversation bounded to maxTokens, using counter
// to estimate message cost (falls back to assemble.FallbackTokenCounter when
// nil).
func NewConversation(maxTokens int, counter assemble.TokenCounter) *Conversation {
	if counter == nil {
		counter = assemble.FallbackTokenCounter
	}
	return &Conversation{maxTokens: maxTokens, counter: counter}
}

// Messages returns the current window, in order.
func (c *Conversation) Messages() []providers.ChatMessage {
	out := make([]providers.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// AddMessage appends msg to the window.
func (c *Conversation) AddMessage(msg providers.ChatMessage) {
	c.messages = append(c.messages, msg)
}

// Truncate repeatedly removes the oldest non-system message until the
// window's token count is within maxTokens, or only the system message (if
// any) remains (spec.md §4.14). The system message at index 0 is always
// preserved.
func (c *Conversation) Truncate() {
	if c.maxTokens <= 0 {
		return
	}
	systemAt0 := len(c.messages) > 0 && c.messages[0].Role == providers.RoleSystem
	floor := 0
	if systemAt0 {
		floor = 1
	}
	for c.countTokens() > c.maxTokens && len(c.messages) > floor {
		c.messages = append(c.messages[:floor], c.messages[floor+1:]...)
	}
}

func (c *Conversation) countTokens() int {
	total := 0
	for _, m := range c.messages {
		total += c.counter(m.Content)
		for _, p := range m.Parts {
			total += c.counter(p.Text)
		}
	}
	return total
}
