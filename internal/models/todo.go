package models

import (
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank orders priorities for sorting: high first, anything unknown last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Todo is a single task record. Description, Category and DueDate are nil when absent.
type Todo struct {
	ID          int64
	OwnerID     uuid.UUID
	Title       string
	Description *string
	Completed   bool
	Priority    Priority
	Category    *string
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TodoPatch lists the fields of a targeted update; nil means "leave as is".
// An empty Description or Category clears the column, ClearDueDate removes the due date.
type TodoPatch struct {
	Title        *string
	Description  *string
	Completed    *bool
	Priority     *Priority
	Category     *string
	DueDate      *time.Time
	ClearDueDate bool
}

func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil &&
		p.Priority == nil && p.Category == nil && p.DueDate == nil && !p.ClearDueDate
}

type CategoryCount struct {
	Name  string
	Count int
}
