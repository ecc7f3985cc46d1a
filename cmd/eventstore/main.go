package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	eventstore "github.com/aneshas/cockroach-eventstore"
)

// storeFlags selects and configures the backing database of every command
// that opens the event store
type storeFlags struct {
	sqlite      string
	postgresDSN string

	host     string
	port     int
	database string
	user     string
	password string
	driver   string
	sslCA    string
	sslCert  string
	sslKey   string

	table     string
	batchSize int
	retries   int
	debug     bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags storeFlags

	rootCmd := &cobra.Command{
		Use:   "eventstore",
		Short: "CockroachDB event store command line interface",
		Long: `eventstore appends events to and reads events from a CockroachDB
(or postgres / sqlite) backed event store, and serves it over HTTP.
CockroachDB is used unless --sqlite or --postgres-dsn is provided.`,
		SilenceUsage: true,
	}

	d := eventstore.DefaultCockroachConfig()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.sqlite, "sqlite", "", "Use the sqlite database at this path instead of CockroachDB")
	pf.StringVar(&flags.postgresDSN, "postgres-dsn", "", "Use the postgres database at this DSN instead of CockroachDB")
	pf.StringVar(&flags.host, "host", d.Host, "CockroachDB host")
	pf.IntVar(&flags.port, "port", d.Port, "CockroachDB port")
	pf.StringVar(&flags.database, "database", d.Database, "CockroachDB database")
	pf.StringVar(&flags.user, "user", d.User, "CockroachDB user")
	pf.StringVar(&flags.password, "password", os.Getenv("EVENTSTORE_PASSWORD"), "CockroachDB password (defaults to $EVENTSTORE_PASSWORD)")
	pf.StringVar(&flags.driver, "driver", string(d.Driver), "database/sql driver: pgx or postgres")
	pf.StringVar(&flags.sslCA, "ssl-ca", "", "CA certificate path, enables verify-full TLS together with --ssl-cert and --ssl-key")
	pf.StringVar(&flags.sslCert, "ssl-cert", "", "Client certificate path")
	pf.StringVar(&flags.sslKey, "ssl-key", "", "Client key path")
	pf.StringVar(&flags.table, "table", eventstore.DefaultCfg().Table, "Events table name")
	pf.IntVar(&flags.batchSize, "batch-size", eventstore.DefaultCfg().BatchSize, "Rows fetched per read query")
	pf.IntVar(&flags.retries, "max-retries", eventstore.DefaultCfg().MaxRetries, "Serialization conflict retries per append")
	pf.BoolVar(&flags.debug, "debug", false, "Log debug messages")

	rootCmd.AddCommand(newServeCommand(&flags))
	rootCmd.AddCommand(newSchemaCommand(&flags))
	rootCmd.AddCommand(newMigrateCommand(&flags))
	rootCmd.AddCommand(newAppendCommand(&flags))
	rootCmd.AddCommand(newReadCommand(&flags))
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}

func (f *storeFlags) logger() eventstore.Logger {
	return eventstore.NewStdLogger(log.New(os.Stderr, "", log.LstdFlags), f.debug)
}

func (f *storeFlags) options() []eventstore.Option {
	opts := []eventstore.Option{
		eventstore.WithTable(f.table),
		eventstore.WithBatchSize(f.batchSize),
		eventstore.WithMaxRetries(f.retries),
		eventstore.WithLogger(f.logger()),
	}

	switch {
	case f.sqlite != "":
		opts = append(opts, eventstore.WithSQLiteDB(f.sqlite))

	case f.postgresDSN != "":
		opts = append(opts, eventstore.WithPostgresDB(f.postgresDSN))

	default:
		cfg := eventstore.CockroachConfig{
			Host:     f.host,
			Port:     f.port,
			Database: f.database,
			User:     f.user,
			Password: f.password,
			Driver:   eventstore.Driver(f.driver),
		}

		if f.sslCA != "" || f.sslCert != "" || f.sslKey != "" {
			cfg.SSL = &eventstore.SSLConfig{
				CA:   f.sslCA,
				Cert: f.sslCert,
				Key:  f.sslKey,
			}
		}

		opts = append(opts, eventstore.WithCockroachDB(cfg))
	}

	return opts
}

func (f *storeFlags) open(extra ...eventstore.Option) (*eventstore.EventStore, error) {
	es, err := eventstore.New(append(f.options(), extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}

	return es, nil
}

// parseStream parses context:name:id
func parseStream(s string) (eventstore.StreamIdentity, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return eventstore.StreamIdentity{}, fmt.Errorf("stream must be in context:name:id form, got %q", s)
	}

	return eventstore.StreamIdentity{
		Context: parts[0],
		Name:    parts[1],
		ID:      parts[2],
	}, nil
}

// parseStreamType parses context:name
func parseStreamType(s string) (eventstore.StreamType, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return eventstore.StreamType{}, fmt.Errorf("stream type must be in context:name form, got %q", s)
	}

	return eventstore.StreamType{
		Context: parts[0],
		Name:    parts[1],
	}, nil
}
