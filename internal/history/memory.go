package history

import (
	"context"
	"strings"
	"sync"

	"github.com/sells-group/opslens/internal/model"
)

// MemoryStore keeps history in process memory. Each operator has its own
// lock, so appends for different operators never wait on each other.
type MemoryStore struct {
	max int

	mu   sync.RWMutex
	logs map[string]*operatorLog
}

type operatorLog struct {
	mu    sync.Mutex
	turns []model.ConversationTurn // oldest first
}

// NewMemory creates an in-memory store capped at maxTurns per operator.
func NewMemory(maxTurns int) *MemoryStore {
	return &MemoryStore{
		max:  capOrDefault(maxTurns),
		logs: make(map[string]*operatorLog),
	}
}

func (s *MemoryStore) Append(_ context.Context, turn model.ConversationTurn) error {
	turn, err := prepare(turn)
	if err != nil {
		return err
	}
	l := s.log(turn.OperatorID, true)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, cloneTurn(turn))
	if over := len(l.turns) - s.max; over > 0 {
		n := copy(l.turns, l.turns[over:])
		clear(l.turns[n:])
		l.turns = l.turns[:n]
	}
	return nil
}

func (s *MemoryStore) History(_ context.Context, operatorID string, limit int) ([]model.ConversationTurn, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, ErrMissingOperator
	}
	l := s.log(operatorID, false)
	if l == nil {
		return []model.ConversationTurn{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.turns)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.ConversationTurn, 0, n)
	for i := len(l.turns) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, cloneTurn(l.turns[i]))
	}
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, operatorID string) error {
	if strings.TrimSpace(operatorID) == "" {
		return ErrMissingOperator
	}
	s.mu.Lock()
	delete(s.logs, operatorID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) log(operatorID string, create bool) *operatorLog {
	s.mu.RLock()
	l, ok := s.logs[operatorID]
	s.mu.RUnlock()
	if ok || !create {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.logs[operatorID]; ok {
		return l
	}
	l = &operatorLog{}
	s.logs[operatorID] = l
	return l
}

func cloneTurn(t model.ConversationTurn) model.ConversationTurn {
	if t.Sources != nil {
		t.Sources = append([]string(nil), t.Sources...)
	}
	return t
}
