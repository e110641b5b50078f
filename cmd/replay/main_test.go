package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-be/internal/events"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var notificationColumns = []string{"id", "transaction_id", "event_type", "current_status", "old_status", "raw_data", "created_at"}

func TestReplay_MarksUnrecognizedProcessed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM notifications WHERE processed = false`).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(notificationColumns).
			AddRow("n-1", "", "", "", nil, []byte(`not json`), time.Now()))
	mock.ExpectExec(`UPDATE notifications SET processed = true`).
		WithArgs("n-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	done, err := replay(context.Background(), db, events.Noop{}, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplay_ListFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM notifications WHERE processed = false`).
		WithArgs(10).
		WillReturnError(errors.New("connection refused"))

	done, err := replay(context.Background(), db, events.Noop{}, 10)
	assert.Error(t, err)
	assert.Zero(t, done)
}

func TestReplay_NothingPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM notifications WHERE processed = false`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(notificationColumns))

	done, err := replay(context.Background(), db, events.Noop{}, 10)
	require.NoError(t, err)
	assert.Zero(t, done)
}
