package todo

import (
	"context"

	"github.com/chepyr/go-todo-tracker/internal/db"
	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListParams are the optional filters, ordering and paging of List.
// Nil filters and empty strings impose no constraint.
type ListParams struct {
	Completed *bool
	Priority  *models.Priority
	Category  string
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

type Page struct {
	Todos      []*models.Todo
	Pagination Pagination
}

// List returns one page of owner's todos matching p.
func (s *Service) List(ctx context.Context, owner uuid.UUID, p ListParams) (*Page, error) {
	page := max(p.Page, 1)
	limit := p.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	q := db.NewTodoQuery(owner)
	if p.Completed != nil {
		q.Where(db.ColCompleted, db.OpEq, *p.Completed)
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return nil, ErrInvalidPriority
		}
		q.Where(db.ColPriority, db.OpEq, string(*p.Priority))
	}
	if p.Category != "" {
		q.Where(db.ColCategory, db.OpEq, p.Category)
	}
	if p.Search != "" {
		q.WhereAnyContains(p.Search, db.ColTitle, db.ColDescription)
	}
	q.OrderBy(db.ParseSortField(p.SortBy), db.ParseSortOrder(p.SortOrder)).
		Page(limit, (page-1)*limit)

	todos, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, err
	}

	totalPages := (total + limit - 1) / limit
	return &Page{
		Todos: todos,
		Pagination: Pagination{
			CurrentPage:  page,
			TotalPages:   totalPages,
			TotalItems:   total,
			ItemsPerPage: limit,
			HasNextPage:  page < totalPages,
			HasPrevPage:  page > 1,
		},
	}, nil
}
