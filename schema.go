package eventstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const defaultTable = "events"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type dialect int

const (
	// dialectPostgres covers both CockroachDB and PostgreSQL
	dialectPostgres dialect = iota
	dialectSQLite
)

// CreateTableSQL returns CockroachDB (and PostgreSQL) DDL creating the
// events table with the given name, "events" if empty
func CreateTableSQL(table string) string {
	if table == "" {
		table = defaultTable
	}

	return strings.Join(schemaStatements(dialectPostgres, table), ";\n") + ";\n"
}

func schemaStatements(d dialect, table string) []string {
	prefix := strings.ReplaceAll(table, ".", "_")

	if d == dialectSQLite {
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	stream_context TEXT NOT NULL,
	stream_name TEXT NOT NULL,
	stream_id TEXT NOT NULL,
	type TEXT NOT NULL,
	sequence_number INTEGER NOT NULL,
	data BLOB,
	correlation_id TEXT,
	transaction_id TEXT NOT NULL,
	stored_on DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (stream_context, stream_name, stream_id, sequence_number)
)`, table),
			fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %s_stream_context_stream_name_id_idx ON %s (stream_context, stream_name, id)`,
				prefix, table,
			),
		}
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	stream_context TEXT NOT NULL,
	stream_name TEXT NOT NULL,
	stream_id TEXT NOT NULL,
	type TEXT NOT NULL,
	sequence_number BIGINT NOT NULL,
	data BYTEA,
	correlation_id TEXT,
	transaction_id TEXT NOT NULL,
	stored_on TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CONSTRAINT %s_stream_context_stream_name_stream_id_sequence_number_key
		UNIQUE (stream_context, stream_name, stream_id, sequence_number)
)`, table, prefix),
		fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_stream_context_stream_name_id_idx ON %s (stream_context, stream_name, id)`,
			prefix, table,
		),
	}
}

// Migrate creates the events table and its indexes if they do not exist
func (es *EventStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(es.cfg.dialect, es.cfg.Table) {
		if err := es.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to migrate %s: %w", es.cfg.Table, err)
		}
	}

	es.cfg.Logger.Info(ctx, "events table migrated", "table", es.cfg.Table)

	return nil
}
