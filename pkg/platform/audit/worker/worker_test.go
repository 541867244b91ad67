package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	produced map[string][]byte
	failKeys map[string]bool
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{
		produced: make(map[string][]byte),
		failKeys: make(map[string]bool),
	}
}

func (p *fakeProducer) Produce(_ context.Context, key string, payload []byte) error {
	if p.failKeys[key] {
		return errors.New("broker unavailable")
	}
	p.produced[key] = payload
	return nil
}

func claimQuery(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT id, aggregate_id, payload FROM outbox`).
		WithArgs(2).
		WillReturnRows(rows)
}

func TestDrainOncePublishesAndMarksRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	producer := newFakeProducer()
	w := New(db, producer, slog.Default(), 0, 2)

	mock.ExpectBegin()
	claimQuery(mock, sqlmock.NewRows([]string{"id", "aggregate_id", "payload"}).
		AddRow("row-1", "user-1", []byte(`{"action":"session_created"}`)).
		AddRow("row-2", "user-2", []byte(`{"action":"session_expired"}`)))
	mock.ExpectExec(`UPDATE outbox SET published_at`).WithArgs("row-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE outbox SET published_at`).WithArgs("row-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, w.DrainOnce(context.Background()))
	assert.Len(t, producer.produced, 2)
	assert.JSONEq(t, `{"action":"session_created"}`, string(producer.produced["user-1"]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrainOnceSkipsFailedPublish(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	producer := newFakeProducer()
	producer.failKeys["user-1"] = true
	w := New(db, producer, slog.Default(), 0, 2)

	// The failed row stays unclaimed; only the published row is marked.
	mock.ExpectBegin()
	claimQuery(mock, sqlmock.NewRows([]string{"id", "aggregate_id", "payload"}).
		AddRow("row-1", "user-1", []byte(`{"action":"ip_rejected"}`)).
		AddRow("row-2", "user-2", []byte(`{"action":"ip_verified"}`)))
	mock.ExpectExec(`UPDATE outbox SET published_at`).WithArgs("row-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, w.DrainOnce(context.Background()))
	assert.Len(t, producer.produced, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrainOnceEmptyOutbox(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	producer := newFakeProducer()
	w := New(db, producer, slog.Default(), 0, 2)

	mock.ExpectBegin()
	claimQuery(mock, sqlmock.NewRows([]string{"id", "aggregate_id", "payload"}))
	mock.ExpectRollback()

	require.NoError(t, w.DrainOnce(context.Background()))
	assert.Empty(t, producer.produced)
	assert.NoError(t, mock.ExpectationsWereMet())
}
