package history

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
)

var _ Store = (*Memory)(nil)

// Memory keeps turns in process.
type Memory struct {
	mu    sync.RWMutex
	limit int
	turns []Turn
}

func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Memory{limit: limit}
}

func (m *Memory) Add(_ context.Context, turn Turn) error {
	if time.Time(turn.Timestamp).IsZero() {
		turn.Timestamp = strfmt.DateTime(time.Now().UTC())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	if over := len(m.turns) - m.limit; over > 0 {
		m.turns = slices.Delete(m.turns, 0, over)
	}
	return nil
}

func (m *Memory) Recent(context.Context) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.turns), nil
}
