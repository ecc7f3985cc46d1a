package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSerializationConflict(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("connection refused"), want: false},
		{name: "pgx serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "pgx unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "pgx other error", err: &pgconn.PgError{Code: "42P01"}, want: false},
		{name: "wrapped pgx serialization failure", err: fmt.Errorf("failed to insert events: %w", &pgconn.PgError{Code: "40001"}), want: true},
		{name: "pq serialization failure", err: &pq.Error{Code: "40001"}, want: true},
		{name: "pq unique violation", err: &pq.Error{Code: "23505"}, want: false},
		{name: "pq syntax error", err: &pq.Error{Code: "42601"}, want: false},
		{name: "sqlite busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, want: true},
		{name: "sqlite locked", err: sqlite3.Error{Code: sqlite3.ErrLocked}, want: true},
		{name: "sqlite unique constraint", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isSerializationConflict(tc.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pgx unique violation", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "wrapped pq unique violation", err: fmt.Errorf("failed to insert events: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "pgx serialization failure", err: &pgconn.PgError{Code: "40001"}, want: false},
		{name: "sqlite unique constraint", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, want: true},
		{name: "sqlite not null constraint", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isUniqueViolation(tc.err))
		})
	}
}

func TestUniqueViolationsAreRetriedOnlyWithRestarts(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	conflict := &pgconn.PgError{Code: "40001"}

	assert.True(t, retryable(true)(unique))
	assert.False(t, retryable(false)(unique))

	assert.True(t, retryable(true)(conflict))
	assert.True(t, retryable(false)(conflict))

	assert.False(t, retryable(true)(errors.New("boom")))
}

func TestPureGoSQLiteErrorsAreClassified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conflict.db")
	dsn := path + "?_txlock=immediate&_pragma=busy_timeout(0)"

	first, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })

	second, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	ctx := context.Background()

	_, err = first.ExecContext(ctx, "CREATE TABLE streams (id TEXT NOT NULL UNIQUE)")
	require.NoError(t, err)

	_, err = first.ExecContext(ctx, "INSERT INTO streams (id) VALUES ('a')")
	require.NoError(t, err)

	_, err = first.ExecContext(ctx, "INSERT INTO streams (id) VALUES ('a')")
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), err)
	assert.False(t, isSerializationConflict(err), err)

	tx, err := first.BeginTx(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })

	_, err = second.BeginTx(ctx, nil)
	require.Error(t, err)
	assert.True(t, isSerializationConflict(err), err)
}
