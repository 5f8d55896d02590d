package store

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexhub/convault/internal/logging"
	"github.com/plexhub/convault/internal/provider"
)

// sqlmock covers engine failures a healthy sqlite file can't produce.

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := newStore(db,
		provider.NewSetWith(provider.NewPlain()),
		logging.NewWithWriter(io.Discard, false, true))
	return s, mock
}

func TestPutInsertFailure(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectExec("INSERT INTO secrets").
		WillReturnError(errors.New("database is locked"))

	_, _, err := s.Put(context.Background(), []byte("v"), Meta{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert secret")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetQueryFailure(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery("SELECT provider, ciphertext FROM secrets").
		WillReturnError(errors.New("disk I/O error"))

	_, err := s.Get(context.Background(), "some-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load secret")
}

func TestDeleteExecFailure(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectExec("DELETE FROM secrets").
		WillReturnError(errors.New("database is locked"))

	_, err := s.Delete(context.Background(), "some-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete secret")
}

func TestGetUnknownProviderTag(t *testing.T) {
	s, mock := mockStore(t)
	rows := sqlmock.NewRows([]string{"provider", "ciphertext"}).
		AddRow("dpapi", []byte("junk"))
	mock.ExpectQuery("SELECT provider, ciphertext FROM secrets").
		WillReturnRows(rows)

	_, err := s.Get(context.Background(), "some-id")
	require.Error(t, err)

	var unknownErr *provider.UnknownTypeError
	assert.ErrorAs(t, err, &unknownErr)
}

// The driver only honors pragmas in _pragma=name(value) form; a DSN typo
// would silently fall back to journal_mode=delete and busy_timeout=0.
func TestOpenAppliesConnectionPragmas(t *testing.T) {
	s, err := Open(t.TempDir(),
		provider.NewSetWith(provider.NewPlain()),
		logging.NewWithWriter(io.Discard, false, true))
	require.NoError(t, err)
	defer s.Close()

	var journalMode string
	require.NoError(t, s.db.QueryRowContext(context.Background(),
		"PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, s.db.QueryRowContext(context.Background(),
		"PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)
}
