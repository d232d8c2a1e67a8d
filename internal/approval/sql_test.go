package approval

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS proposals")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewSQLStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestSQLStoreCreate(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Unix(1_700_000_000, 0)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO proposals")).
		WithArgs("p1", "treasury", []byte("x"), "18446744073709551615", "s1", created.UnixNano(), `["s1"]`, false, false, int64(0), false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Create(context.Background(), Proposal{
		ID:        "p1",
		Target:    "treasury",
		Payload:   []byte("x"),
		Value:     ^uint64(0),
		Proposer:  "s1",
		CreatedAt: created,
		Approvals: []string{"s1"},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreGet(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Unix(1_700_000_000, 0)

	rows := sqlmock.NewRows([]string{"id", "target", "payload", "value", "proposer", "created_at", "approvals", "executed", "cancelled", "executed_at", "emergency"}).
		AddRow("p1", "treasury", []byte("x"), "42", "s1", created.UnixNano(), `["s1","s2"]`, true, false, created.Add(time.Hour).UnixNano(), false)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, target, payload, value, proposer, created_at, approvals, executed, cancelled, executed_at, emergency FROM proposals WHERE id = ?")).
		WithArgs("p1").
		WillReturnRows(rows)

	p, err := store.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p.Value)
	assert.Equal(t, []string{"s1", "s2"}, p.Approvals)
	assert.True(t, p.Executed)
	assert.True(t, p.CreatedAt.Equal(created))
	assert.True(t, p.ExecutedAt.Equal(created.Add(time.Hour)))
}

func TestSQLStoreGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestSQLStoreUpdateMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET")).
		WithArgs(`[]`, true, false, sqlmock.AnyArg(), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), Proposal{ID: "gone", Executed: true, ExecutedAt: time.Now()})
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestSQLStoreBackendError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
		WithArgs("p1").
		WillReturnError(errors.New("disk I/O error"))

	_, err := store.Get(context.Background(), "p1")
	assert.True(t, errors.Is(err, ErrStoreUnavailable), "got %v", err)
}
