package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// setupTodosDB opens a migrated in-memory database. A single connection keeps
// every statement on the same in-memory database.
func setupTodosDB(t *testing.T) *sql.DB {
	t.Helper()
	dbx, err := sql.Open(SQLiteDriver, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbx.SetMaxOpenConns(1)
	if err := Migrate(context.Background(), dbx, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { dbx.Close() })
	return dbx
}

func insertUser(t *testing.T, dbx *sql.DB, name string) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	id := uuid.New()
	_, err := dbx.Exec(`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
	                    VALUES ($1,$2,$3,$4,$5,$6)`,
		id, name, name+"@example.com", "hash", now, now)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name          string
		driverName    string
		dsn           string
		expectedError bool
	}{
		{
			name:          "Successful connection with SQLite",
			driverName:    "sqlite3",
			dsn:           ":memory:",
			expectedError: false,
		},
		{
			name:          "Failed connection with invalid DSN",
			driverName:    "sqlite3",
			dsn:           "file::memory:?mode=invalid",
			expectedError: true,
		},
		{
			name:          "Unknown driver",
			driverName:    "nope",
			dsn:           "whatever",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := Connect(tt.driverName, tt.dsn)

			if tt.expectedError {
				if err == nil {
					t.Error("Expected error, got none")
				}
				if conn != nil {
					t.Error("Expected nil connection on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			defer conn.Close()
			if conn.Stats().MaxOpenConnections != 10 {
				t.Errorf("Expected MaxOpenConnections to be 10, got %d", conn.Stats().MaxOpenConnections)
			}
		})
	}
}

func TestMigrate(t *testing.T) {
	dbx := setupTodosDB(t)

	// running twice must be harmless
	if err := Migrate(context.Background(), dbx, "sqlite3"); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var n int
	err := dbx.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_todos_%'`).Scan(&n)
	if err != nil {
		t.Fatalf("count indexes: %v", err)
	}
	if n != 5 {
		t.Errorf("want 5 todo indexes, got %d", n)
	}

	if err := Migrate(context.Background(), dbx, "mysql"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestMigrate_PriorityCheck(t *testing.T) {
	dbx := setupTodosDB(t)
	owner := insertUser(t, dbx, "alice")
	now := time.Now().UTC()

	_, err := dbx.Exec(`INSERT INTO todos (owner_id, title, priority, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		owner, "bad", "urgent", now, now)
	if err == nil {
		t.Fatal("expected CHECK violation for unknown priority")
	}

	_, err = dbx.Exec(`INSERT INTO todos (owner_id, title, priority, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		owner, "ok", string(models.PriorityLow), now, now)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}
}
