package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a row is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("already exists")
)

// SQLiteDriver is go-sqlite3 with lower() replaced by a Unicode case fold, so
// search matches "Équipe" the way it does on postgres.
const SQLiteDriver = "sqlite3_unicode"

func init() {
	sql.Register(SQLiteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", strings.ToLower, true)
		},
	})
}

//go:embed schema/*.sql
var schemas embed.FS

// Connect opens the process-wide connection pool and verifies it with a ping.
// The caller owns the returned handle and must Close it on shutdown.
// The sqlite3 driver name is served by SQLiteDriver.
func Connect(driverName, dsn string) (*sql.DB, error) {
	if driverName == "sqlite3" {
		driverName = SQLiteDriver
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}

// Migrate applies the schema for the given driver ("postgres" or "sqlite3").
// Every statement is idempotent, so it is safe to run on each start.
func Migrate(ctx context.Context, db *sql.DB, driverName string) error {
	var file string
	switch driverName {
	case "postgres":
		file = "schema/postgres.sql"
	case "sqlite3":
		file = "schema/sqlite.sql"
	default:
		return fmt.Errorf("unsupported driver %q", driverName)
	}
	ddl, err := schemas.ReadFile(file)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply %s: %w", file, err)
	}
	return nil
}
