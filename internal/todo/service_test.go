package todo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/db"
	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*db.TodoRepository, *sql.DB) {
	t.Helper()
	dbx, err := sql.Open(db.SQLiteDriver, ":memory:")
	require.NoError(t, err)
	dbx.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(context.Background(), dbx, "sqlite3"))
	t.Cleanup(func() { dbx.Close() })
	return db.NewTodoRepository(dbx), dbx
}

func addOwner(t *testing.T, dbx *sql.DB) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	id := uuid.New()
	err := db.NewUserRepository(dbx).Create(context.Background(), &models.User{
		ID:           id,
		Username:     "u" + id.String()[:8],
		Email:        id.String()[:8] + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return id
}

func ptr[T any](v T) *T { return &v }

// memCache is an in-process StatsCache that counts invalidations.
type memCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated int
}

func newMemCache() *memCache { return &memCache{entries: map[string][]byte{}} }

func (c *memCache) key(owner uuid.UUID, day string) string { return fmt.Sprintf("%s:%s", owner, day) }

func (c *memCache) Get(_ context.Context, owner uuid.UUID, day string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[c.key(owner, day)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, owner uuid.UUID, day string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(owner, day)] = raw
	return nil
}

func (c *memCache) Invalidate(_ context.Context, owner uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	for k := range c.entries {
		if k[:36] == owner.String() {
			delete(c.entries, k)
		}
	}
	return nil
}

func TestService_Create(t *testing.T) {
	store, dbx := setupStore(t)
	owner := addOwner(t, dbx)
	cache := newMemCache()
	svc := NewService(store, cache)
	ctx := context.Background()

	todo, err := svc.Create(ctx, owner, NewTodo{
		Title:       "Buy milk",
		Description: ptr(""),
		Category:    ptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, owner, todo.OwnerID)
	assert.Equal(t, models.PriorityMedium, todo.Priority)
	assert.Nil(t, todo.Description)
	assert.Nil(t, todo.Category)
	assert.False(t, todo.Completed)
	assert.Equal(t, 1, cache.invalidated)

	_, err = svc.Create(ctx, owner, NewTodo{Title: "x", Priority: "urgent"})
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestService_GetUpdateDelete(t *testing.T) {
	store, dbx := setupStore(t)
	alice := addOwner(t, dbx)
	bob := addOwner(t, dbx)
	svc := NewService(store, nil)
	ctx := context.Background()

	todo, err := svc.Create(ctx, alice, NewTodo{Title: "plan", Priority: models.PriorityLow})
	require.NoError(t, err)

	got, err := svc.Get(ctx, alice, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, "plan", got.Title)

	_, err = svc.Get(ctx, bob, todo.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, alice, todo.ID, models.TodoPatch{})
	assert.ErrorIs(t, err, ErrNoFields)

	_, err = svc.Update(ctx, alice, todo.ID, models.TodoPatch{Priority: ptr(models.Priority("urgent"))})
	assert.ErrorIs(t, err, ErrInvalidPriority)

	_, err = svc.Update(ctx, bob, todo.ID, models.TodoPatch{Title: ptr("stolen")})
	assert.ErrorIs(t, err, ErrNotFound)

	due := time.Date(2031, 1, 2, 0, 0, 0, 0, time.UTC)
	updated, err := svc.Update(ctx, alice, todo.ID, models.TodoPatch{
		Title:     ptr("plan v2"),
		Completed: ptr(true),
		DueDate:   &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "plan v2", updated.Title)
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.DueDate)
	assert.True(t, updated.DueDate.Equal(due))
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	assert.ErrorIs(t, svc.Delete(ctx, bob, todo.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, alice, todo.ID))
	assert.ErrorIs(t, svc.Delete(ctx, alice, todo.ID), ErrNotFound)
}

func TestService_Categories(t *testing.T) {
	store, dbx := setupStore(t)
	owner := addOwner(t, dbx)
	svc := NewService(store, nil)
	ctx := context.Background()

	for _, c := range []string{"work", "home", "work", "", "errands", "home", "work"} {
		_, err := svc.Create(ctx, owner, NewTodo{Title: "t", Category: ptr(c)})
		require.NoError(t, err)
	}

	cats, err := svc.Categories(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryCount{
		{Name: "work", Count: 3},
		{Name: "home", Count: 2},
		{Name: "errands", Count: 1},
	}, cats)

	cats, err = svc.Categories(ctx, addOwner(t, dbx))
	require.NoError(t, err)
	assert.Empty(t, cats)
}
