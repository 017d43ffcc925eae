package repository

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package state.
var migrateMu sync.Mutex

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config holds SQL database connection configuration.
type Config struct {
	Driver string
	// DSN is a PostgreSQL connection string or a SQLite file path.
	DSN string
	// Logger receives migration output. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewDB opens the database, verifies the connection and applies migrations.
func NewDB(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	var dsn string
	switch cfg.Driver {
	case DriverPostgres:
		dsn = cfg.DSN
	case DriverSQLite:
		dsn = sqliteDSN(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite allows one writer; a single connection also keeps in-memory databases alive.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(ctx, db, cfg.Logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate applies the embedded migrations for the database's driver.
// A nil logger uses slog.Default().
func Migrate(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	dialect, dir := "postgres", "migrations/postgres"
	if db.DriverName() == DriverSQLite {
		dialect, dir = "sqlite3", "migrations/sqlite"
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	if logger == nil {
		logger = slog.Default()
	}
	goose.SetLogger(&gooseLogger{logger: logger.With("component", "migrate")})
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, db.DB, dir)
}

// gooseLogger adapts slog to goose.Logger.
type gooseLogger struct {
	logger *slog.Logger
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}

// sqliteDefaults are appended to every SQLite DSN unless already set.
// Timestamps must use the sqlite text format so string comparison orders them.
var sqliteDefaults = []struct{ key, param string }{
	{key: "_pragma=busy_timeout", param: "_pragma=busy_timeout(5000)"},
	{key: "_time_format=", param: "_time_format=sqlite"},
}

// sqliteDSN turns a path or file URI into a modernc DSN. Foreign keys are
// always enabled since messages rely on ON DELETE CASCADE.
func sqliteDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	path, query, _ := strings.Cut(dsn, "?")

	params := []string{}
	for _, p := range strings.Split(query, "&") {
		if p == "" || strings.HasPrefix(p, "_pragma=foreign_keys") {
			continue
		}
		params = append(params, p)
	}
	params = append(params, "_pragma=foreign_keys(1)")

	for _, d := range sqliteDefaults {
		if !hasParam(params, d.key) {
			params = append(params, d.param)
		}
	}
	return path + "?" + strings.Join(params, "&")
}

func hasParam(params []string, key string) bool {
	for _, p := range params {
		if strings.HasPrefix(p, key) {
			return true
		}
	}
	return false
}
