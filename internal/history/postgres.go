package history

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/opslens/internal/model"
)

// pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// PostgresStore persists history in PostgreSQL. Appends take a transaction
// scoped advisory lock on the operator id, so one operator's appends are
// serialized while other operators proceed in parallel.
type PostgresStore struct {
	pool pool
	max  int
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, maxTurns int) (*PostgresStore, error) {
	if connString == "" {
		return nil, eris.New("postgres: database_url is required")
	}
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: p, max: capOrDefault(maxTurns)}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	operator_id TEXT NOT NULL,
	project_id  TEXT NOT NULL DEFAULT '',
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	sources     JSONB NOT NULL DEFAULT '[]',
	intent      TEXT NOT NULL DEFAULT '',
	strategy    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_operator ON conversation_turns(operator_id, seq DESC);
`

// Migrate creates the history table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, turn model.ConversationTurn) error {
	turn, err := prepare(turn)
	if err != nil {
		return err
	}
	sources, err := json.Marshal(nonNil(turn.Sources))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin append")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, turn.OperatorID); err != nil {
		return eris.Wrapf(err, "postgres: lock history for %s", turn.OperatorID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO conversation_turns (id, operator_id, project_id, question, answer, confidence, sources, intent, strategy, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		turn.ID, turn.OperatorID, turn.ProjectID, turn.Question, turn.Answer, turn.Confidence,
		sources, string(turn.Intent), string(turn.Strategy), turn.Timestamp,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert turn for %s", turn.OperatorID)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM conversation_turns WHERE operator_id = $1 AND seq NOT IN (
			SELECT seq FROM conversation_turns WHERE operator_id = $1 ORDER BY seq DESC LIMIT $2)`,
		turn.OperatorID, s.max,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: trim history for %s", turn.OperatorID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit append")
}

func (s *PostgresStore) History(ctx context.Context, operatorID string, limit int) ([]model.ConversationTurn, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, ErrMissingOperator
	}
	if limit <= 0 {
		limit = s.max
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, operator_id, project_id, question, answer, confidence, sources, intent, strategy, created_at
		 FROM conversation_turns WHERE operator_id = $1 ORDER BY seq DESC LIMIT $2`,
		operatorID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query history for %s", operatorID)
	}
	defer rows.Close()

	out := []model.ConversationTurn{}
	for rows.Next() {
		var (
			t       model.ConversationTurn
			sources []byte
			intent  string
			strat   string
		)
		if err := rows.Scan(&t.ID, &t.OperatorID, &t.ProjectID, &t.Question, &t.Answer, &t.Confidence, &sources, &intent, &strat, &t.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan turn")
		}
		if err := json.Unmarshal(sources, &t.Sources); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal sources of turn %s", t.ID)
		}
		t.Intent = model.IntentCategory(intent)
		t.Strategy = model.AnswerStrategy(strat)
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate history")
}

func (s *PostgresStore) Clear(ctx context.Context, operatorID string) error {
	if strings.TrimSpace(operatorID) == "" {
		return ErrMissingOperator
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM conversation_turns WHERE operator_id = $1`, operatorID)
	return eris.Wrapf(err, "postgres: clear history for %s", operatorID)
}
