package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// containsIgnoreCase returns true if s contains substr (case-insensitive)
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// DB wraps the database connection
type DB struct {
	*sql.DB
	Dialect Dialect
	logger  *zap.Logger
}

// NewPostgres opens a Postgres connection from the provided connection string
func NewPostgres(connectionString string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if connectionString == "" {
		return nil, fmt.Errorf("database connection string is required")
	}

	sqlDB, err := sql.Open(string(Postgres), connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		// Try with SSL disabled if connection fails and SSL mode not specified
		if !containsIgnoreCase(connectionString, "sslmode") {
			logger.Info("retrying database connection with SSL disabled")
			sqlDB.Close()
			sslDisabledConnection := connectionString
			if strings.Contains(connectionString, "?") {
				sslDisabledConnection += "&sslmode=disable"
			} else {
				sslDisabledConnection += "?sslmode=disable"
			}
			var err2 error
			sqlDB, err2 = sql.Open(string(Postgres), sslDisabledConnection)
			if err2 != nil {
				return nil, fmt.Errorf("failed to open database: %w", err2)
			}
		}
		if err := sqlDB.Ping(); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return &DB{DB: sqlDB, Dialect: Postgres, logger: logger}, nil
}

// NewSQLite opens (creating if needed) a SQLite database file.
func NewSQLite(dsn string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dsn == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}
	if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	sqlDB, err := sql.Open(string(SQLite), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// sqlite serializes writers anyway
	sqlDB.SetMaxOpenConns(1)
	return &DB{DB: sqlDB, Dialect: SQLite, logger: logger}, nil
}

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck() error {
	return db.Ping()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// RunMigrations applies the embedded migrations for the connection's dialect.
func (db *DB) RunMigrations() error {
	sub, err := fs.Sub(migrationsFS, path.Join("migrations", db.dialectDir()))
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	return db.runMigrations(sub)
}

func (db *DB) dialectDir() string {
	if db.Dialect == SQLite {
		return "sqlite"
	}
	return "postgres"
}

func (db *DB) runMigrations(fsys fs.FS) error {
	migrations, err := readMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	if len(migrations) == 0 {
		db.logger.Info("no migrations found", zap.String("dialect", string(db.Dialect)))
		return nil
	}

	if _, err := db.Exec(schemaMigrationsDDL); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	applied, err := db.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Number] {
			db.logger.Debug("migration already applied, skipping", zap.Int("version", m.Number))
			continue
		}
		db.logger.Info("applying migration", zap.Int("version", m.Number), zap.String("name", m.Name))
		if err := db.apply(m); err != nil {
			return err
		}
	}
	return nil
}

// apply runs one migration and records it in the same transaction.
func (db *DB) apply(m Migration) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", m.Number, err)
	}
	if _, err = tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Number, m.Name); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Number, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Number, err)
	}
	return nil
}

const schemaMigrationsDDL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
`

func (db *DB) appliedVersions() (map[int]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

// Migration is one NNN_name.sql file.
type Migration struct {
	Number int
	Name   string
	SQL    string
}

// readMigrations reads every NNN_name.sql file under fsys, sorted by number.
// Files without a numeric prefix are ignored.
func readMigrations(fsys fs.FS) ([]Migration, error) {
	var out []Migration
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path.Ext(p) != ".sql" {
			return nil
		}
		prefix, rest, ok := strings.Cut(strings.TrimSuffix(d.Name(), ".sql"), "_")
		if !ok {
			return nil
		}
		n, convErr := strconv.Atoi(prefix)
		if convErr != nil {
			return nil
		}
		b, readErr := fs.ReadFile(fsys, p)
		if readErr != nil {
			return fmt.Errorf("failed to read migration file %s: %w", p, readErr)
		}
		out = append(out, Migration{Number: n, Name: rest, SQL: string(b)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}
