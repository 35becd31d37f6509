// Package history keeps the per-operator conversation log. Every backing
// caps each operator at a fixed number of turns and evicts the oldest first.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/opslens/internal/config"
	"github.com/sells-group/opslens/internal/model"
)

// DefaultMaxTurns is the per-operator cap when none is configured.
const DefaultMaxTurns = 50

// ErrMissingOperator is returned when a call has no operator id.
var ErrMissingOperator = eris.New("history: operator id is required")

// Store persists conversation turns per operator.
type Store interface {
	// Append records a turn, evicting the operator's oldest turns beyond the cap.
	Append(ctx context.Context, turn model.ConversationTurn) error
	// History returns up to limit turns, most recent first. A limit of zero
	// or less returns every retained turn.
	History(ctx context.Context, operatorID string, limit int) ([]model.ConversationTurn, error)
	// Clear drops every turn of the operator.
	Clear(ctx context.Context, operatorID string) error
	Close() error
}

// Open builds the store selected by cfg.Driver: memory, sqlite or postgres.
func Open(ctx context.Context, cfg config.StoreConfig, maxTurns int) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(maxTurns), nil
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "opslens.db"
		}
		s, err := NewSQLite(dsn, maxTurns)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns}, maxTurns)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("history: unknown store driver %q", cfg.Driver)
	}
}

func capOrDefault(maxTurns int) int {
	if maxTurns <= 0 {
		return DefaultMaxTurns
	}
	return maxTurns
}

// prepare validates a turn and fills its id and timestamp when unset.
func prepare(turn model.ConversationTurn) (model.ConversationTurn, error) {
	if strings.TrimSpace(turn.OperatorID) == "" {
		return turn, ErrMissingOperator
	}
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	return turn, nil
}
