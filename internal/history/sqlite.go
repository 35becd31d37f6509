package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/opslens/internal/model"
)

// SQLiteStore persists history with modernc.org/sqlite. SQLite has a single
// writer, so appends are serialized across operators as well.
type SQLiteStore struct {
	db  *sql.DB
	max int
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, maxTurns int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, max: capOrDefault(maxTurns)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	operator_id TEXT NOT NULL,
	project_id  TEXT NOT NULL DEFAULT '',
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	confidence  REAL NOT NULL DEFAULT 0,
	sources     TEXT NOT NULL DEFAULT '[]',
	intent      TEXT NOT NULL DEFAULT '',
	strategy    TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_operator ON conversation_turns(operator_id, seq);
`

// Migrate creates the history table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, turn model.ConversationTurn) error {
	turn, err := prepare(turn)
	if err != nil {
		return err
	}
	sources, err := json.Marshal(nonNil(turn.Sources))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversation_turns (id, operator_id, project_id, question, answer, confidence, sources, intent, strategy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.OperatorID, turn.ProjectID, turn.Question, turn.Answer, turn.Confidence,
		string(sources), string(turn.Intent), string(turn.Strategy), turn.Timestamp.UTC().UnixNano(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert turn for %s", turn.OperatorID)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM conversation_turns WHERE operator_id = ? AND seq NOT IN (
			SELECT seq FROM conversation_turns WHERE operator_id = ? ORDER BY seq DESC LIMIT ?)`,
		turn.OperatorID, turn.OperatorID, s.max,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: trim history for %s", turn.OperatorID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit append")
}

func (s *SQLiteStore) History(ctx context.Context, operatorID string, limit int) ([]model.ConversationTurn, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, ErrMissingOperator
	}
	if limit <= 0 {
		limit = s.max
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operator_id, project_id, question, answer, confidence, sources, intent, strategy, created_at
		 FROM conversation_turns WHERE operator_id = ? ORDER BY seq DESC LIMIT ?`,
		operatorID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query history for %s", operatorID)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.ConversationTurn{}
	for rows.Next() {
		var (
			t       model.ConversationTurn
			sources string
			intent  string
			strat   string
			nanos   int64
		)
		if err := rows.Scan(&t.ID, &t.OperatorID, &t.ProjectID, &t.Question, &t.Answer, &t.Confidence, &sources, &intent, &strat, &nanos); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan turn")
		}
		if err := json.Unmarshal([]byte(sources), &t.Sources); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal sources of turn %s", t.ID)
		}
		t.Intent = model.IntentCategory(intent)
		t.Strategy = model.AnswerStrategy(strat)
		t.Timestamp = time.Unix(0, nanos).UTC()
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate history")
}

func (s *SQLiteStore) Clear(ctx context.Context, operatorID string) error {
	if strings.TrimSpace(operatorID) == "" {
		return ErrMissingOperator
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_turns WHERE operator_id = ?`, operatorID)
	return eris.Wrapf(err, "sqlite: clear history for %s", operatorID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
