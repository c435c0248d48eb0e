package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := New(sqlx.NewDb(db, "sqlmock"),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { return "fixed" }),
	)
	return s, mock
}

func TestCreateSurfacesDriverError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnError(errors.New("disk I/O error"))

	_, err := s.Create(context.Background(), NewSubmission{Prompt: "soap"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert submission")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSurfacesQueryError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, prompt")).
		WithArgs("abc").
		WillReturnError(errors.New("database is locked"))

	_, err := s.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRejectsCorruptJSON(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "prompt", "category", "location", "city", "status",
		"formulation", "assessment", "insights", "error", "created_at", "updated_at"}).
		AddRow("abc", "soap", "", "", "", "completed", "{not json", nil, nil, "",
			"2026-03-01T00:00:00.000000000Z", "2026-03-01T00:00:00.000000000Z")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, prompt")).WithArgs("abc").WillReturnRows(rows)

	_, err := s.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode formulation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS submissions")).
		WillReturnError(errors.New("read-only database"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create schema")
}
