// Package history keeps the most recent exchanges of a conversation so they
// can be replayed into an agent's prompt.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
)

// DefaultLimit is the number of turns a store keeps unless told otherwise.
const DefaultLimit = 10

// Turn is one user message and the bot's answer to it.
type Turn struct {
	User      string          `json:"user"`
	Bot       string          `json:"bot"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// Store is a bounded conversation log. Recent returns turns oldest first.
type Store interface {
	Add(ctx context.Context, turn Turn) error
	Recent(ctx context.Context) ([]Turn, error)
}

// Render formats turns as a context block for a system prompt.
func Render(turns []Turn) string {
	if len(turns) == 0 {
		return "No previous conversation"
	}

	var b strings.Builder
	b.WriteString("=== Recent Conversation History ===\n")
	for i, turn := range turns {
		fmt.Fprintf(&b, "%d. User: %s\n", i+1, turn.User)
		fmt.Fprintf(&b, "   You: %s\n\n", turn.Bot)
	}
	return b.String()
}

// Context loads the recent turns of a store and renders them.
func Context(ctx context.Context, store Store) (string, error) {
	turns, err := store.Recent(ctx)
	if err != nil {
		return "", err
	}
	return Render(turns), nil
}
