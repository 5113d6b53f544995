package db

import (
	"fmt"
	"strings"

	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/google/uuid"
)

// Column is a todos column that may appear in a WHERE or ORDER BY clause.
type Column string

const (
	ColID          Column = "id"
	ColOwnerID     Column = "owner_id"
	ColTitle       Column = "title"
	ColDescription Column = "description"
	ColCompleted   Column = "completed"
	ColPriority    Column = "priority"
	ColCategory    Column = "category"
	ColDueDate     Column = "due_date"
	ColCreatedAt   Column = "created_at"
	ColUpdatedAt   Column = "updated_at"
)

var filterColumns = map[Column]bool{
	ColID: true, ColOwnerID: true, ColTitle: true, ColDescription: true, ColCompleted: true,
	ColPriority: true, ColCategory: true, ColDueDate: true, ColCreatedAt: true, ColUpdatedAt: true,
}

// Operator is a comparison allowed in a predicate. OpContains is a case-insensitive
// substring match.
type Operator string

const (
	OpEq       Operator = "="
	OpContains Operator = "CONTAINS"
)

var operators = map[Operator]bool{OpEq: true, OpContains: true}

// SortField is a column the list endpoint may be ordered by.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortDueDate   SortField = "due_date"
	SortPriority  SortField = "priority"
	SortTitle     SortField = "title"
)

// ParseSortField falls back to created_at for anything outside the allow-list.
func ParseSortField(s string) SortField {
	switch f := SortField(s); f {
	case SortCreatedAt, SortUpdatedAt, SortDueDate, SortPriority, SortTitle:
		return f
	}
	return SortCreatedAt
}

type SortOrder string

const (
	Asc  SortOrder = "ASC"
	Desc SortOrder = "DESC"
)

// ParseSortOrder maps "asc" (any case) to Asc and everything else to Desc.
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(s, "asc") {
		return Asc
	}
	return Desc
}

// priorityRankExpr is models.Priority.Rank as SQL.
var priorityRankExpr = rankCase(models.PriorityHigh, models.PriorityMedium, models.PriorityLow)

func rankCase(priorities ...models.Priority) string {
	var b strings.Builder
	b.WriteString("CASE priority")
	for _, p := range priorities {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p, p.Rank())
	}
	fmt.Fprintf(&b, " ELSE %d END", models.Priority("").Rank())
	return b.String()
}

// predicate is one (columns, operator, value) tuple. Several columns are OR'ed together.
type predicate struct {
	columns []Column
	op      Operator
	value   any
}

// TodoQuery accumulates filters, ordering and paging for a read over one owner's todos.
// The owner filter is installed by NewTodoQuery and cannot be removed or replaced.
type TodoQuery struct {
	preds  []predicate
	sort   SortField
	order  SortOrder
	limit  int
	offset int
	err    error
}

func NewTodoQuery(owner uuid.UUID) *TodoQuery {
	return &TodoQuery{
		preds: []predicate{{columns: []Column{ColOwnerID}, op: OpEq, value: owner}},
		sort:  SortCreatedAt,
		order: Desc,
	}
}

// Where adds a conjunctive predicate on a single column.
func (q *TodoQuery) Where(col Column, op Operator, value any) *TodoQuery {
	return q.whereAny([]Column{col}, op, value)
}

// WhereAnyContains matches rows where at least one of cols contains text, ignoring case.
func (q *TodoQuery) WhereAnyContains(text string, cols ...Column) *TodoQuery {
	return q.whereAny(cols, OpContains, text)
}

func (q *TodoQuery) whereAny(cols []Column, op Operator, value any) *TodoQuery {
	if q.err != nil {
		return q
	}
	if !operators[op] {
		q.err = fmt.Errorf("operator %q not allowed", op)
		return q
	}
	if len(cols) == 0 {
		q.err = fmt.Errorf("predicate without columns")
		return q
	}
	for _, c := range cols {
		if !filterColumns[c] || c == ColOwnerID {
			q.err = fmt.Errorf("column %q not filterable", c)
			return q
		}
	}
	if op == OpContains {
		s, ok := value.(string)
		if !ok {
			q.err = fmt.Errorf("contains needs a string value")
			return q
		}
		value = "%" + escapeLike(strings.ToLower(s)) + "%"
	}
	q.preds = append(q.preds, predicate{columns: cols, op: op, value: value})
	return q
}

func (q *TodoQuery) OrderBy(field SortField, order SortOrder) *TodoQuery {
	q.sort = ParseSortField(string(field))
	q.order = order
	if order != Asc {
		q.order = Desc
	}
	return q
}

// Page sets LIMIT/OFFSET. A non-positive limit means no paging.
func (q *TodoQuery) Page(limit, offset int) *TodoQuery {
	q.limit = limit
	q.offset = max(offset, 0)
	return q
}

// where renders the WHERE clause with $N placeholders numbered from 1.
func (q *TodoQuery) where() (string, []any) {
	var (
		parts []string
		args  []any
	)
	for _, p := range q.preds {
		var ors []string
		for _, c := range p.columns {
			args = append(args, p.value)
			n := len(args)
			if p.op == OpContains {
				ors = append(ors, fmt.Sprintf(`LOWER(COALESCE(%s, '')) LIKE $%d ESCAPE '\'`, c, n))
			} else {
				ors = append(ors, fmt.Sprintf("%s %s $%d", c, p.op, n))
			}
		}
		if len(ors) == 1 {
			parts = append(parts, ors[0])
		} else {
			parts = append(parts, "("+strings.Join(ors, " OR ")+")")
		}
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}

func (q *TodoQuery) orderBy() string {
	dir := string(q.order)
	switch q.sort {
	case SortPriority:
		return fmt.Sprintf("ORDER BY %s %s, id %s", priorityRankExpr, dir, dir)
	case SortDueDate:
		// rows without a due date go last in both directions
		return fmt.Sprintf("ORDER BY (due_date IS NULL) ASC, due_date %s, id %s", dir, dir)
	default:
		return fmt.Sprintf("ORDER BY %s %s, id %s", q.sort, dir, dir)
	}
}

// CountSQL renders the total-count statement, ignoring ordering and paging.
func (q *TodoQuery) CountSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	where, args := q.where()
	return "SELECT COUNT(*) FROM todos " + where, args, nil
}

// SelectSQL renders the page read.
func (q *TodoQuery) SelectSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	where, args := q.where()
	query := "SELECT " + todoColumns + " FROM todos " + where + " " + q.orderBy()
	if q.limit > 0 {
		args = append(args, q.limit, q.offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return query, args, nil
}

// escapeLike makes s match literally inside a LIKE pattern with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// placeholders returns "$from, $from+1, ..." for n values.
func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}
