package eventstore

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

const (
	codeSerializationFailure = "40001"
	codeUniqueViolation      = "23505"
)

// isSerializationConflict reports whether err is a transient conflict
// between concurrent transactions which is resolved by re-running the append
func isSerializationConflict(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == codeSerializationFailure
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	var moderncErr *moderncsqlite.Error
	if errors.As(err, &moderncErr) {
		code := moderncErr.Code() & 0xff

		return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
	}

	return false
}

// isUniqueViolation reports whether err is a violation of a unique key,
// on the events table that is the stream sequence key
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == codeUniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	var moderncErr *moderncsqlite.Error
	if errors.As(err, &moderncErr) {
		code := moderncErr.Code()

		return code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlitelib.SQLITE_CONSTRAINT && strings.Contains(moderncErr.Error(), "UNIQUE constraint failed")
	}

	return false
}

// retryable returns the classifier deciding which failed appends are re-run.
// A unique violation on the stream sequence key means a concurrent append
// won the race. Only a new transaction sees the winner's events, so it is
// retried when transactions are restarted and returned as is otherwise
func retryable(restartTransactions bool) func(error) bool {
	return func(err error) bool {
		if isSerializationConflict(err) {
			return true
		}

		return restartTransactions && isUniqueViolation(err)
	}
}
