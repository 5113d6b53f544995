package todo

import (
	"context"
	"fmt"

	"github.com/chepyr/go-todo-tracker/internal/db"
	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/google/uuid"
)

type BatchAction string

const (
	ActionComplete   BatchAction = "complete"
	ActionIncomplete BatchAction = "incomplete"
	ActionDelete     BatchAction = "delete"
	ActionUpdate     BatchAction = "update"
)

func (a BatchAction) Valid() bool {
	switch a {
	case ActionComplete, ActionIncomplete, ActionDelete, ActionUpdate:
		return true
	}
	return false
}

// BatchRequest applies Action to every id in IDs. Priority and Category are read by ActionUpdate only.
type BatchRequest struct {
	IDs      []int64
	Action   BatchAction
	Priority *models.Priority
	Category *string
}

type BatchResult struct {
	SuccessCount int `json:"successCount"`
	FailedCount  int `json:"failedCount"`
	TotalCount   int `json:"totalCount"`
}

// Batch runs req as one owner-scoped statement. Ids that are missing or belong to
// someone else are not errors; they only show up in FailedCount.
func (s *Service) Batch(ctx context.Context, owner uuid.UUID, req BatchRequest) (*BatchResult, error) {
	change, err := req.change()
	if err != nil {
		return nil, err
	}

	affected, err := s.store.ApplyBatch(ctx, owner, req.IDs, change)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", req.Action, err)
	}
	if affected > 0 {
		s.invalidateStats(ctx, owner)
	}

	total := len(req.IDs)
	return &BatchResult{
		SuccessCount: int(affected),
		FailedCount:  total - int(affected),
		TotalCount:   total,
	}, nil
}

// change checks the preconditions and translates req into a store change.
func (req BatchRequest) change() (db.BatchChange, error) {
	if len(req.IDs) == 0 {
		return db.BatchChange{}, ErrEmptyIDs
	}
	if !req.Action.Valid() {
		return db.BatchChange{}, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return db.BatchChange{}, fmt.Errorf("%w: %q", ErrInvalidPriority, *req.Priority)
	}

	switch req.Action {
	case ActionComplete, ActionIncomplete:
		done := req.Action == ActionComplete
		return db.BatchChange{Completed: &done}, nil
	case ActionDelete:
		return db.BatchChange{Delete: true}, nil
	}

	// an empty category is treated as not supplied
	change := db.BatchChange{Priority: req.Priority}
	if req.Category != nil && *req.Category != "" {
		change.Category = req.Category
	}
	if change.Priority == nil && change.Category == nil {
		return db.BatchChange{}, ErrNoFields
	}
	return change, nil
}
