// Package store holds conversation memory: a bounded FIFO window of turns per
// session, kept in process by [MemorySessionStore] or persisted in SQLite by
// [SQLiteSessionStore]. The orchestrator only sees the [SessionStore]
// interface, so the backing is chosen at startup.
package store

import (
	"context"
	"time"
)

// DefaultWindow is the number of turns kept per session when no cap is set.
const DefaultWindow = 10

// Role identifies the author of a turn.
type Role string

const (
	// RoleUser is a message sent by the human.
	RoleUser Role = "user"
	// RoleAssistant is a reply produced by the model.
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation.
type Turn struct {
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// CreatedAt is when the turn was recorded.
	CreatedAt time.Time
}

// Conversation is a bounded FIFO of turns. Appending beyond the cap evicts
// the oldest turn. It is not safe for concurrent use; session stores guard it.
type Conversation struct {
	limit int
	turns []Turn
}

// NewConversation returns an empty conversation holding at most limit turns.
// A non-positive limit selects DefaultWindow.
func NewConversation(limit int) *Conversation {
	if limit <= 0 {
		limit = DefaultWindow
	}
	return &Conversation{limit: limit, turns: make([]Turn, 0, limit)}
}

// Append adds t, evicting the oldest turn when full.
func (c *Conversation) Append(t Turn) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if len(c.turns) == c.limit {
		copy(c.turns, c.turns[1:])
		c.turns = c.turns[:c.limit-1]
	}
	c.turns = append(c.turns, t)
}

// Window returns a copy of the retained turns, oldest first.
func (c *Conversation) Window() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of retained turns.
func (c *Conversation) Len() int { return len(c.turns) }

// Cap returns the maximum number of retained turns.
func (c *Conversation) Cap() int { return c.limit }

// SessionStore keeps one Conversation per session id.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Append records turns for session in order, evicting the oldest beyond
	// the window.
	Append(ctx context.Context, session string, turns ...Turn) error
	// Window returns the retained turns of session, oldest first. An unknown
	// session has an empty window.
	Window(ctx context.Context, session string) ([]Turn, error)
	// Clear forgets session.
	Clear(ctx context.Context, session string) error
	// Close releases any resources held by the store.
	Close() error
}
