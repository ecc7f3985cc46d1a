package eventstore

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultBatchSize      = 500
	defaultMaxPoolClients = 10
	defaultIdleTimeout    = 10 * time.Second
	defaultMaxRetries     = 100

	minBatchSize   = 50
	minIdleTimeout = time.Second
)

// Driver selects the database/sql driver used to talk to CockroachDB
type Driver string

const (
	// DriverPgx uses github.com/jackc/pgx/v5 (default)
	DriverPgx Driver = "pgx"

	// DriverPQ uses github.com/lib/pq
	DriverPQ Driver = "postgres"
)

// SSLConfig holds paths to the PEM encoded CA certificate, client
// certificate and client key used for verify-full TLS connections
type SSLConfig struct {
	CA   string
	Cert string
	Key  string
}

// CockroachConfig describes how to connect to a CockroachDB cluster.
// Zero values are replaced by DefaultCockroachConfig values
type CockroachConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSL      *SSLConfig
	Driver   Driver
}

// DefaultCockroachConfig returns a config pointing at a local insecure node
func DefaultCockroachConfig() CockroachConfig {
	return CockroachConfig{
		Host:     "localhost",
		Port:     26257,
		Database: "eventstore",
		User:     "root",
		Driver:   DriverPgx,
	}
}

func (c CockroachConfig) withDefaults() CockroachConfig {
	d := DefaultCockroachConfig()

	if c.Host == "" {
		c.Host = d.Host
	}

	if c.Port == 0 {
		c.Port = d.Port
	}

	if c.Database == "" {
		c.Database = d.Database
	}

	if c.User == "" {
		c.User = d.User
	}

	if c.Driver == "" {
		c.Driver = d.Driver
	}

	return c
}

// DSN returns the postgresql:// connection string for the config
func (c CockroachConfig) DSN() string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.User(c.User),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}

	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}

	q := url.Values{}
	q.Set("application_name", "eventstore")

	if c.SSL == nil {
		q.Set("sslmode", "disable")
	} else {
		q.Set("sslmode", "verify-full")
		q.Set("sslrootcert", c.SSL.CA)
		q.Set("sslcert", c.SSL.Cert)
		q.Set("sslkey", c.SSL.Key)
	}

	u.RawQuery = q.Encode()

	return u.String()
}

func (c CockroachConfig) validate() error {
	var errs []error

	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, configErr("host must be a non empty string, got %q", c.Host))
	}

	if c.Port <= 1 || c.Port > 65535 {
		errs = append(errs, configErr("port must be a valid port number, got %d", c.Port))
	}

	if strings.TrimSpace(c.Database) == "" {
		errs = append(errs, configErr("database must be a non empty string, got %q", c.Database))
	}

	if strings.TrimSpace(c.User) == "" {
		errs = append(errs, configErr("user must be a non empty string, got %q", c.User))
	}

	if c.SSL != nil &&
		(strings.TrimSpace(c.SSL.CA) == "" ||
			strings.TrimSpace(c.SSL.Cert) == "" ||
			strings.TrimSpace(c.SSL.Key) == "") {
		errs = append(errs, configErr("ssl must either be nil or provide ca, cert and key"))
	}

	if c.Driver != DriverPgx && c.Driver != DriverPQ {
		errs = append(errs, configErr("unknown driver %q", c.Driver))
	}

	return errors.Join(errs...)
}

// Cfg represents event store configuration
type Cfg struct {
	PostgresDSN      string
	SQLitePath       string
	PureGoSQLitePath string
	Cockroach        *CockroachConfig

	// Table is the name of the events table
	Table string

	// BatchSize is the number of rows fetched per query by the read operations
	BatchSize int

	MaxPoolClients int
	IdleTimeout    time.Duration

	// MaxRetries bounds how many times an append is retried after a
	// serialization conflict before ErrRetryExhausted is returned
	MaxRetries int

	// RestartTransactions retries by opening a new transaction instead of
	// rolling back to a savepoint
	RestartTransactions bool

	// Migrate creates the events table when the store is constructed
	Migrate bool

	Logger     Logger
	GormLogger logger.Interface

	dialect dialect
}

// DefaultCfg returns the configuration New starts from
func DefaultCfg() Cfg {
	return Cfg{
		Table:          defaultTable,
		BatchSize:      defaultBatchSize,
		MaxPoolClients: defaultMaxPoolClients,
		IdleTimeout:    defaultIdleTimeout,
		MaxRetries:     defaultMaxRetries,
		Logger:         NoOpLogger{},
	}
}

// Option represents event store configuration option
type Option func(Cfg) Cfg

// WithCockroachDB configures the event store to use CockroachDB as a backing storage
func WithCockroachDB(c CockroachConfig) Option {
	return func(cfg Cfg) Cfg {
		c = c.withDefaults()
		cfg.Cockroach = &c

		return cfg
	}
}

// WithPostgresDB is an event store option that can be used to configure
// the eventstore to use postgres as a backing storage (pgx driver).
// Postgres keeps the transaction snapshot across a rollback to savepoint,
// so conflicts are retried in a new transaction
func WithPostgresDB(dsn string) Option {
	return func(cfg Cfg) Cfg {
		cfg.PostgresDSN = dsn
		cfg.RestartTransactions = true

		return cfg
	}
}

// WithSQLiteDB is an event store option that can be used to configure
// the eventstore to use sqlite as a backing storage (cgo driver).
// Unless the dsn says otherwise transactions take the write lock on begin
// and wait up to 5s for it. A rollback to savepoint keeps the sqlite lock,
// so conflicts are retried in a new transaction
func WithSQLiteDB(path string) Option {
	return func(cfg Cfg) Cfg {
		cfg.SQLitePath = path
		cfg.RestartTransactions = true

		return cfg
	}
}

// WithPureGoSQLiteDB configures sqlite as a backing storage using the
// pure Go modernc.org/sqlite driver, with the same defaults as WithSQLiteDB
func WithPureGoSQLiteDB(path string) Option {
	return func(cfg Cfg) Cfg {
		cfg.PureGoSQLitePath = path
		cfg.RestartTransactions = true

		return cfg
	}
}

// WithTable sets the name of the events table
func WithTable(table string) Option {
	return func(cfg Cfg) Cfg {
		cfg.Table = table

		return cfg
	}
}

// WithBatchSize sets the number of events fetched per read query
func WithBatchSize(size int) Option {
	return func(cfg Cfg) Cfg {
		cfg.BatchSize = size

		return cfg
	}
}

// WithMaxPoolClients sets the maximum number of open connections
func WithMaxPoolClients(n int) Option {
	return func(cfg Cfg) Cfg {
		cfg.MaxPoolClients = n

		return cfg
	}
}

// WithIdleTimeout sets how long a connection may stay idle in the pool
func WithIdleTimeout(d time.Duration) Option {
	return func(cfg Cfg) Cfg {
		cfg.IdleTimeout = d

		return cfg
	}
}

// WithMaxRetries bounds the number of serialization conflict retries per append
func WithMaxRetries(n int) Option {
	return func(cfg Cfg) Cfg {
		cfg.MaxRetries = n

		return cfg
	}
}

// WithTransactionRestarts makes appends retry conflicts by restarting the
// whole transaction. Use it with databases lacking savepoint support
func WithTransactionRestarts() Option {
	return func(cfg Cfg) Cfg {
		cfg.RestartTransactions = true

		return cfg
	}
}

// WithMigration creates the events table on New
func WithMigration() Option {
	return func(cfg Cfg) Cfg {
		cfg.Migrate = true

		return cfg
	}
}

// WithLogger sets the event store logger
func WithLogger(l Logger) Option {
	return func(cfg Cfg) Cfg {
		cfg.Logger = l

		return cfg
	}
}

// WithGormLogger sets the logger gorm uses for SQL statements
func WithGormLogger(l logger.Interface) Option {
	return func(cfg Cfg) Cfg {
		cfg.GormLogger = l

		return cfg
	}
}

func (cfg Cfg) validate() error {
	var errs []error

	backends := 0

	for _, set := range []bool{
		cfg.Cockroach != nil,
		cfg.PostgresDSN != "",
		cfg.SQLitePath != "",
		cfg.PureGoSQLitePath != "",
	} {
		if set {
			backends++
		}
	}

	if backends != 1 {
		errs = append(errs, configErr("exactly one of cockroach, postgres or sqlite storage must be configured"))
	}

	if cfg.Cockroach != nil {
		errs = append(errs, cfg.Cockroach.validate())
	}

	if !tableNameRe.MatchString(cfg.Table) {
		errs = append(errs, configErr("table must be a valid sql identifier, got %q", cfg.Table))
	}

	if cfg.MaxPoolClients <= 1 {
		errs = append(errs, configErr("max pool clients must be an integer higher than 1, got %d", cfg.MaxPoolClients))
	}

	if cfg.IdleTimeout < minIdleTimeout {
		errs = append(errs, configErr("idle timeout must be at least %s, got %s", minIdleTimeout, cfg.IdleTimeout))
	}

	if cfg.BatchSize < minBatchSize {
		errs = append(errs, configErr("batch size must be at least %d, got %d", minBatchSize, cfg.BatchSize))
	}

	if cfg.MaxRetries < 0 {
		errs = append(errs, configErr("max retries cannot be negative, got %d", cfg.MaxRetries))
	}

	return errors.Join(errs...)
}

func (cfg Cfg) dialector() (gorm.Dialector, dialect) {
	switch {
	case cfg.Cockroach != nil:
		if cfg.Cockroach.Driver == DriverPQ {
			return postgres.New(postgres.Config{
				DriverName: string(DriverPQ),
				DSN:        cfg.Cockroach.DSN(),
			}), dialectPostgres
		}

		return postgres.Open(cfg.Cockroach.DSN()), dialectPostgres

	case cfg.PostgresDSN != "":
		return postgres.Open(cfg.PostgresDSN), dialectPostgres

	case cfg.PureGoSQLitePath != "":
		return &sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        pureGoSQLiteDSN(cfg.PureGoSQLitePath),
		}, dialectSQLite

	default:
		return sqlite.Open(sqliteDSN(cfg.SQLitePath)), dialectSQLite
	}
}

func sqliteDSN(path string) string {
	if !hasDSNParam(path, "_txlock") {
		path = withDSNParam(path, "_txlock=immediate")
	}

	if !hasDSNParam(path, "_busy_timeout") && !hasDSNParam(path, "_timeout") {
		path = withDSNParam(path, "_busy_timeout=5000")
	}

	return path
}

func pureGoSQLiteDSN(path string) string {
	if !hasDSNParam(path, "_txlock") {
		path = withDSNParam(path, "_txlock=immediate")
	}

	if !hasDSNPragma(path, "busy_timeout") {
		path = withDSNParam(path, "_pragma=busy_timeout(5000)")
	}

	if !hasDSNParam(path, "_time_format") {
		path = withDSNParam(path, "_time_format=sqlite")
	}

	return path
}

func dsnParams(path string) url.Values {
	_, query, ok := strings.Cut(path, "?")
	if !ok {
		return nil
	}

	params, _ := url.ParseQuery(query)

	return params
}

func hasDSNParam(path, key string) bool {
	return dsnParams(path).Has(key)
}

func hasDSNPragma(path, pragma string) bool {
	for _, p := range dsnParams(path)["_pragma"] {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(p)), pragma) {
			return true
		}
	}

	return false
}

func withDSNParam(path, param string) string {
	if strings.Contains(path, "?") {
		return path + "&" + param
	}

	return path + "?" + param
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("eventstore config validation: "+format, args...)
}
