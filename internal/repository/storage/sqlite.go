package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	// import the SQLite driver to register it with the database/sql package.
	_ "modernc.org/sqlite"
)

const migrationTable = "schema_migrations"

//go:embed migrations/*.sql
var migrations embed.FS

type Storage struct {
	Connection *sql.DB
}

func NewSQLiteStorage(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	if err = conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("can't connect to database: %w", err)
	}

	return &Storage{Connection: conn}, nil
}

// Init applies the embedded migrations that have not run yet, in file name order.
func (that *Storage) Init(ctx context.Context) error {
	createSQL := `CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (name TEXT PRIMARY KEY, applied_at INTEGER NOT NULL)`
	if _, err := that.Connection.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("can't create migration table: %w", err)
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("can't list migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		if err = that.apply(ctx, file); err != nil {
			return err
		}
	}

	return nil
}

func (that *Storage) Close() error {
	return that.Connection.Close()
}

func (that *Storage) apply(ctx context.Context, file string) error {
	var found int
	err := that.Connection.QueryRowContext(ctx, `SELECT 1 FROM `+migrationTable+` WHERE name = ?`, file).Scan(&found)
	if err == nil {
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("can't check migration %s: %w", file, err)
	}

	content, err := migrations.ReadFile(file)
	if err != nil {
		return fmt.Errorf("can't read migration %s: %w", file, err)
	}

	tx, err := that.Connection.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin migration %s: %w", file, err)
	}

	if _, err = tx.ExecContext(ctx, upSection(string(content))); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("can't run migration %s: %w", file, err)
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`, file, time.Now().UTC().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("can't record migration %s: %w", file, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit migration %s: %w", file, err)
	}

	return nil
}

func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"

	start := strings.Index(content, up)
	if start == -1 {
		return content
	}

	content = content[start+len(up):]
	if end := strings.Index(content, down); end != -1 {
		content = content[:end]
	}

	return content
}
