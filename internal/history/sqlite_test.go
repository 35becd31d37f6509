package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/opslens/internal/config"
	"github.com/sells-group/opslens/internal/model"
)

func newTestSQLite(t *testing.T, maxTurns int) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "history.db"), maxTurns)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func TestSQLite_CapEvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, 2)

	for _, q := range []string{"q1", "q2", "q3"} {
		require.NoError(t, s.Append(ctx, turn("A", q)))
	}

	got, err := s.History(ctx, "A", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"q3", "q2"}, questions(got))
}

func TestSQLite_RoundTripsFields(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, 5)

	in := turn("A", "what did we spend?")
	in.ID = "turn-1"
	in.Timestamp = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	in.Sources = []string{"aws", "insights"}
	require.NoError(t, s.Append(ctx, in))

	got, err := s.History(ctx, "A", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, in, got[0])
}

func TestSQLite_ClearAndIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, 5)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, turn("A", fmt.Sprintf("a%d", i))))
		require.NoError(t, s.Append(ctx, turn("B", fmt.Sprintf("b%d", i))))
	}
	require.NoError(t, s.Clear(ctx, "A"))

	a, err := s.History(ctx, "A", 0)
	require.NoError(t, err)
	assert.Empty(t, a)

	b, err := s.History(ctx, "B", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b2", "b1", "b0"}, questions(b))
}

func TestSQLite_NilSources(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, 5)
	in := turn("A", "q")
	in.Sources = nil
	require.NoError(t, s.Append(ctx, in))

	got, err := s.History(ctx, "A", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Sources)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, config.StoreConfig{Driver: "memory"}, 3)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, mem)

	lite, err := Open(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "h.db")}, 3)
	require.NoError(t, err)
	defer lite.Close() //nolint:errcheck
	require.NoError(t, lite.Append(ctx, model.ConversationTurn{OperatorID: "A", Question: "q", Answer: "a"}))

	_, err = Open(ctx, config.StoreConfig{Driver: "postgres"}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url is required")

	_, err = Open(ctx, config.StoreConfig{Driver: "redis"}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}
