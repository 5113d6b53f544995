// Package todo holds the owner-scoped operations on todo records: listing with
// filters and paging, single-record CRUD, batch mutations and statistics.
// Callers supply an already authenticated owner id and validated input.
package todo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/db"
	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound        = errors.New("todo not found")
	ErrEmptyIDs        = errors.New("ids must not be empty")
	ErrInvalidAction   = errors.New("invalid batch action")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrNoFields        = errors.New("no fields to update")
)

// Store is the record store the service runs against. *db.TodoRepository implements it.
type Store interface {
	Create(ctx context.Context, todo *models.Todo) (*models.Todo, error)
	GetByID(ctx context.Context, owner uuid.UUID, id int64) (*models.Todo, error)
	Update(ctx context.Context, owner uuid.UUID, id int64, patch models.TodoPatch) (*models.Todo, error)
	Delete(ctx context.Context, owner uuid.UUID, id int64) error
	List(ctx context.Context, q *db.TodoQuery) ([]*models.Todo, int, error)
	ApplyBatch(ctx context.Context, owner uuid.UUID, ids []int64, change db.BatchChange) (int64, error)
	Totals(ctx context.Context, owner uuid.UUID, now time.Time) (db.TodoTotals, error)
	PendingByPriority(ctx context.Context, owner uuid.UUID) (map[string]int, error)
	CategoryCounts(ctx context.Context, owner uuid.UUID) ([]models.CategoryCount, error)
	Activity(ctx context.Context, owner uuid.UUID, dayStart, dayEnd time.Time) (db.TodoActivity, error)
}

// StatsCache stores computed stats per owner and calendar day.
type StatsCache interface {
	Get(ctx context.Context, owner uuid.UUID, day string, dest any) (bool, error)
	Set(ctx context.Context, owner uuid.UUID, day string, value any) error
	Invalidate(ctx context.Context, owner uuid.UUID) error
}

type Service struct {
	store Store
	cache StatsCache
	group singleflight.Group

	// gens counts writes per owner; stats computed under an older generation are not cached.
	gensMu sync.Mutex
	gens   map[uuid.UUID]uint64

	now func() time.Time
	loc *time.Location
}

// NewService builds a Service over store. cache may be nil.
func NewService(store Store, cache StatsCache) *Service {
	return &Service{store: store, cache: cache, gens: make(map[uuid.UUID]uint64), now: time.Now, loc: time.Local}
}

// NewTodo is the input of Create.
type NewTodo struct {
	Title       string
	Description *string
	Priority    models.Priority
	Category    *string
	DueDate     *time.Time
}

func (s *Service) Get(ctx context.Context, owner uuid.UUID, id int64) (*models.Todo, error) {
	todo, err := s.store.GetByID(ctx, owner, id)
	return todo, notFound(err)
}

func (s *Service) Create(ctx context.Context, owner uuid.UUID, in NewTodo) (*models.Todo, error) {
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}

	created, err := s.store.Create(ctx, &models.Todo{
		OwnerID:     owner,
		Title:       in.Title,
		Description: emptyToNil(in.Description),
		Priority:    priority,
		Category:    emptyToNil(in.Category),
		DueDate:     in.DueDate,
	})
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	s.invalidateStats(ctx, owner)
	return created, nil
}

// Update applies patch to one todo. An empty patch is rejected before the store is touched.
func (s *Service) Update(ctx context.Context, owner uuid.UUID, id int64, patch models.TodoPatch) (*models.Todo, error) {
	if patch.Empty() {
		return nil, ErrNoFields
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, ErrInvalidPriority
	}

	updated, err := s.store.Update(ctx, owner, id, patch)
	if err != nil {
		return nil, notFound(err)
	}
	s.invalidateStats(ctx, owner)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, owner uuid.UUID, id int64) error {
	if err := s.store.Delete(ctx, owner, id); err != nil {
		return notFound(err)
	}
	s.invalidateStats(ctx, owner)
	return nil
}

// Categories lists owner's categories with usage counts, most used first.
func (s *Service) Categories(ctx context.Context, owner uuid.UUID) ([]models.CategoryCount, error) {
	return s.store.CategoryCounts(ctx, owner)
}

func (s *Service) generation(owner uuid.UUID) uint64 {
	s.gensMu.Lock()
	defer s.gensMu.Unlock()
	return s.gens[owner]
}

// invalidateStats bumps owner's generation and then drops the cached entries.
func (s *Service) invalidateStats(ctx context.Context, owner uuid.UUID) {
	s.gensMu.Lock()
	s.gens[owner]++
	s.gensMu.Unlock()

	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, owner); err != nil {
		log.Printf("[cache] invalidate stats for %s: %v", owner, err)
	}
}

// notFound translates the store's not-found into ErrNotFound and passes anything else through.
func notFound(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
