package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/google/uuid"
)

func newUser(username, email string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: "password",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepository_Create(t *testing.T) {
	db := setupTodosDB(t)

	repo := NewUserRepository(db)
	user := newUser("tester", "test_1@example.com")

	err := repo.Create(context.Background(), user)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	// verify user was created
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM users WHERE email = $1", user.Email).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query user: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 user, got %d", count)
	}
}

func TestUserRepository_Create_Duplicate(t *testing.T) {
	db := setupTodosDB(t)
	repo := NewUserRepository(db)

	if err := repo.Create(context.Background(), newUser("tester", "a@example.com")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := repo.Create(context.Background(), newUser("tester", "b@example.com"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate for same username, got %v", err)
	}
	err = repo.Create(context.Background(), newUser("other", "a@example.com"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate for same email, got %v", err)
	}
}

func TestUserRepository_GetByLogin(t *testing.T) {
	db := setupTodosDB(t)
	repo := NewUserRepository(db)

	user := newUser("tester", "test_1@example.com")
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, login := range []string{"tester", "test_1@example.com", "TEST_1@example.com"} {
		fetchedUser, err := repo.GetByLogin(context.Background(), login)
		if err != nil {
			t.Fatalf("GetByLogin(%q) failed: %v", login, err)
		}
		if fetchedUser.ID != user.ID {
			t.Errorf("Expected ID %v, got %v", user.ID, fetchedUser.ID)
		}
		if fetchedUser.PasswordHash != user.PasswordHash {
			t.Errorf("Expected password hash %v, got %v", user.PasswordHash, fetchedUser.PasswordHash)
		}
	}

	byID, err := repo.GetByID(context.Background(), user.ID)
	if err != nil || byID.Username != "tester" {
		t.Fatalf("GetByID: %v %+v", err, byID)
	}
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	db := setupTodosDB(t)

	repo := NewUserRepository(db)
	_, err := repo.GetByEmail(context.Background(), "nonexistent@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_Update(t *testing.T) {
	db := setupTodosDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := newUser("tester", "tester@example.com")
	other := newUser("other", "other@example.com")
	for _, u := range []*models.User{user, other} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("create %s: %v", u.Username, err)
		}
	}

	user.Username = "renamed"
	user.Email = "Renamed@Example.com"
	user.UpdatedAt = user.UpdatedAt.Add(time.Minute)
	if err := repo.Update(ctx, user); err != nil {
		t.Fatalf("Update: %v", err)
	}
	fetched, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Username != "renamed" || fetched.Email != "renamed@example.com" {
		t.Errorf("update not stored: %+v", fetched)
	}
	if !fetched.UpdatedAt.After(fetched.CreatedAt) {
		t.Errorf("updated_at %v should be after created_at %v", fetched.UpdatedAt, fetched.CreatedAt)
	}

	// taking the other user's username or email is a conflict
	user.Username = "other"
	if err := repo.Update(ctx, user); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for taken username, got %v", err)
	}
	user.Username = "renamed"
	user.Email = "other@example.com"
	if err := repo.Update(ctx, user); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for taken email, got %v", err)
	}

	missing := newUser("ghost", "ghost@example.com")
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
	}
}
