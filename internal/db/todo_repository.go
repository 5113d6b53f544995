package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/google/uuid"
)

const todoColumns = `id, owner_id, title, description, completed, priority, category, due_date, created_at, updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BatchChange describes one bulk write. Delete wins over the field updates.
type BatchChange struct {
	Delete    bool
	Completed *bool
	Priority  *models.Priority
	Category  *string
}

type TodoTotals struct {
	Total     int
	Completed int
	Pending   int
	Overdue   int
}

type TodoActivity struct {
	CompletedToday int
	CreatedToday   int
	DueToday       int
}

// TodoRepository reads and writes todos. Every statement is scoped by owner_id.
type TodoRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewTodoRepository(db *sql.DB) *TodoRepository {
	return &TodoRepository{db: db, now: time.Now}
}

// Create inserts todo for todo.OwnerID and returns the stored row.
// Insert and read-back share one transaction.
func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) (*models.Todo, error) {
	now := r.now().UTC()
	priority := todo.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `INSERT INTO todos (owner_id, title, description, completed, priority, category, due_date, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	var id int64
	err = tx.QueryRowContext(ctx, query,
		todo.OwnerID, todo.Title, nullString(todo.Description), todo.Completed, string(priority),
		nullString(todo.Category), nullTime(todo.DueDate), now, now,
	).Scan(&id)
	if err != nil {
		return nil, err
	}

	created, err := getTodo(ctx, tx, todo.OwnerID, id)
	if err != nil {
		return nil, err
	}
	return created, tx.Commit()
}

func (r *TodoRepository) GetByID(ctx context.Context, owner uuid.UUID, id int64) (*models.Todo, error) {
	return getTodo(ctx, r.db, owner, id)
}

// Update applies patch to one of owner's todos and returns the updated row.
// Missing or foreign ids yield ErrNotFound before anything is written.
func (r *TodoRepository) Update(ctx context.Context, owner uuid.UUID, id int64, patch models.TodoPatch) (*models.Todo, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := getTodo(ctx, tx, owner, id)
	if err != nil {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	set := func(col Column, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Title != nil {
		set(ColTitle, *patch.Title)
	}
	if patch.Description != nil {
		set(ColDescription, nullString(patch.Description))
	}
	if patch.Completed != nil {
		set(ColCompleted, *patch.Completed)
	}
	if patch.Priority != nil {
		set(ColPriority, string(*patch.Priority))
	}
	if patch.Category != nil {
		set(ColCategory, nullString(patch.Category))
	}
	if patch.ClearDueDate {
		set(ColDueDate, nil)
	} else if patch.DueDate != nil {
		set(ColDueDate, nullTime(patch.DueDate))
	}

	now := r.now().UTC()
	if now.Before(existing.CreatedAt) {
		now = existing.CreatedAt
	}
	set(ColUpdatedAt, now)
	args = append(args, id, owner)
	query := fmt.Sprintf("UPDATE todos SET %s WHERE id = $%d AND owner_id = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	updated, err := getTodo(ctx, tx, owner, id)
	if err != nil {
		return nil, err
	}
	return updated, tx.Commit()
}

// Delete removes one of owner's todos, or returns ErrNotFound.
func (r *TodoRepository) Delete(ctx context.Context, owner uuid.UUID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM todos WHERE id = $1 AND owner_id = $2)`
	if err := tx.QueryRowContext(ctx, query, id, owner).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("todo %d: %w", id, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND owner_id = $2`, id, owner); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns one page of q together with the number of rows matching q's filters.
func (r *TodoRepository) List(ctx context.Context, q *TodoQuery) ([]*models.Todo, int, error) {
	countQuery, countArgs, err := q.CountSQL()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := q.SelectSQL()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	todos := []*models.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, 0, err
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return todos, total, nil
}

// ApplyBatch runs change against every id in ids owned by owner, as a single statement,
// and returns the number of rows affected. Ids that are missing or foreign are skipped.
func (r *TodoRepository) ApplyBatch(ctx context.Context, owner uuid.UUID, ids []int64, change BatchChange) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var (
		query string
		args  []any
	)
	if change.Delete {
		args = append(args, owner)
		query = "DELETE FROM todos WHERE owner_id = $1 AND id IN (" + placeholders(2, len(ids)) + ")"
	} else {
		var sets []string
		set := func(col Column, v any) {
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}
		if change.Completed != nil {
			set(ColCompleted, *change.Completed)
		}
		if change.Priority != nil {
			set(ColPriority, string(*change.Priority))
		}
		if change.Category != nil {
			set(ColCategory, nullString(change.Category))
		}
		if len(sets) == 0 {
			return 0, errors.New("batch change has no fields")
		}
		args = append(args, r.now().UTC())
		n := len(args)
		// keeps updated_at >= created_at even if the clock stepped back
		sets = append(sets, fmt.Sprintf("updated_at = CASE WHEN created_at > $%d THEN created_at ELSE $%d END", n, n))
		args = append(args, owner)
		query = fmt.Sprintf("UPDATE todos SET %s WHERE owner_id = $%d AND id IN (%s)",
			strings.Join(sets, ", "), len(args), placeholders(len(args)+1, len(ids)))
	}
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Totals counts owner's todos; overdue are pending todos due strictly before now.
func (r *TodoRepository) Totals(ctx context.Context, owner uuid.UUID, now time.Time) (TodoTotals, error) {
	query := `SELECT
	   COUNT(*),
	   COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0),
	   COALESCE(SUM(CASE WHEN NOT completed THEN 1 ELSE 0 END), 0),
	   COALESCE(SUM(CASE WHEN NOT completed AND due_date < $1 THEN 1 ELSE 0 END), 0)
	 FROM todos WHERE owner_id = $2`
	var t TodoTotals
	err := r.db.QueryRowContext(ctx, query, now.UTC(), owner).Scan(&t.Total, &t.Completed, &t.Pending, &t.Overdue)
	return t, err
}

// PendingByPriority counts owner's not-completed todos per priority.
func (r *TodoRepository) PendingByPriority(ctx context.Context, owner uuid.UUID) (map[string]int, error) {
	query := `SELECT priority, COUNT(*) FROM todos WHERE owner_id = $1 AND NOT completed GROUP BY priority`
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			priority string
			n        int
		)
		if err := rows.Scan(&priority, &n); err != nil {
			return nil, err
		}
		counts[priority] = n
	}
	return counts, rows.Err()
}

// CategoryCounts counts owner's todos per non-empty category, most used first.
func (r *TodoRepository) CategoryCounts(ctx context.Context, owner uuid.UUID) ([]models.CategoryCount, error) {
	query := `SELECT category, COUNT(*) AS n FROM todos
	 WHERE owner_id = $1 AND category IS NOT NULL AND category <> ''
	 GROUP BY category ORDER BY n DESC, category ASC`
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []models.CategoryCount{}
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Activity counts what happened to owner's todos within [dayStart, dayEnd).
// Placeholders are numbered in order of appearance; sqlite binds them that way.
func (r *TodoRepository) Activity(ctx context.Context, owner uuid.UUID, dayStart, dayEnd time.Time) (TodoActivity, error) {
	query := `SELECT
	   COALESCE(SUM(CASE WHEN completed AND updated_at >= $1 AND updated_at < $2 THEN 1 ELSE 0 END), 0),
	   COALESCE(SUM(CASE WHEN created_at >= $1 AND created_at < $2 THEN 1 ELSE 0 END), 0),
	   COALESCE(SUM(CASE WHEN NOT completed AND due_date >= $1 AND due_date < $2 THEN 1 ELSE 0 END), 0)
	 FROM todos WHERE owner_id = $3`
	var a TodoActivity
	err := r.db.QueryRowContext(ctx, query, dayStart.UTC(), dayEnd.UTC(), owner).
		Scan(&a.CompletedToday, &a.CreatedToday, &a.DueToday)
	return a, err
}

func getTodo(ctx context.Context, q querier, owner uuid.UUID, id int64) (*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND owner_id = $2`
	todo, err := scanTodo(q.QueryRowContext(ctx, query, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("todo %d: %w", id, ErrNotFound)
	}
	return todo, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	var (
		todo     models.Todo
		desc     sql.NullString
		category sql.NullString
		priority string
		due      sql.NullTime
	)
	err := row.Scan(
		&todo.ID, &todo.OwnerID, &todo.Title, &desc, &todo.Completed, &priority,
		&category, &due, &todo.CreatedAt, &todo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	todo.Priority = models.Priority(priority)
	if desc.Valid {
		todo.Description = &desc.String
	}
	if category.Valid {
		todo.Category = &category.String
	}
	if due.Valid {
		t := due.Time.UTC()
		todo.DueDate = &t
	}
	todo.CreatedAt = todo.CreatedAt.UTC()
	todo.UpdatedAt = todo.UpdatedAt.UTC()
	return &todo, nil
}

// nullString stores nil and "" as NULL.
func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
