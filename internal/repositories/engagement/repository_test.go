package engagement

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
)

// execDB stubs the single method repoint uses. Anything else panics via the
// embedded nil interface.
type execDB struct {
	database.DB
	result sql.Result
	err    error
	query  string
}

func (d *execDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	d.query = query
	return d.result, d.err
}

type fakeResult struct {
	rows    int64
	rowsErr error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.rowsErr }

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {})
}

func TestRepointInteractions_ReturnsMovedCount(t *testing.T) {
	db := &execDB{result: fakeResult{rows: 3}}
	repo := NewRepository(db, silentLogger())

	moved, err := repo.RepointInteractions(context.Background(), "from-id", "to-id")
	require.NoError(t, err)
	assert.Equal(t, int64(3), moved)
	assert.Contains(t, db.query, "UPDATE interactions")
}

func TestRepoint_RowsAffectedErrorSurfaces(t *testing.T) {
	db := &execDB{result: fakeResult{rowsErr: errors.New("driver does not support RowsAffected")}}
	repo := NewRepository(db, silentLogger())

	moved, err := repo.RepointConversations(context.Background(), "from-id", "to-id")
	assert.Error(t, err)
	assert.Zero(t, moved)
}

func TestRepoint_ExecErrorSurfaces(t *testing.T) {
	db := &execDB{err: errors.New("connection reset")}
	repo := NewRepository(db, silentLogger())

	moved, err := repo.RepointReminders(context.Background(), "from-id", "to-id")
	assert.Error(t, err)
	assert.Zero(t, moved)
}
