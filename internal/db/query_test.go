package db

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestTodoQuery_OwnerAlwaysFirst(t *testing.T) {
	owner := uuid.New()
	q := NewTodoQuery(owner).
		Where(ColCompleted, OpEq, true).
		Where(ColPriority, OpEq, "high")

	query, args, err := q.CountSQL()
	if err != nil {
		t.Fatalf("CountSQL: %v", err)
	}
	want := "SELECT COUNT(*) FROM todos WHERE owner_id = $1 AND completed = $2 AND priority = $3"
	if query != want {
		t.Errorf("query mismatch\n got: %s\nwant: %s", query, want)
	}
	if len(args) != 3 || args[0] != owner {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestTodoQuery_OwnerCannotBeOverridden(t *testing.T) {
	q := NewTodoQuery(uuid.New()).Where(ColOwnerID, OpEq, uuid.New())
	if _, _, err := q.SelectSQL(); err == nil {
		t.Fatal("expected error when filtering on owner_id")
	}
}

func TestTodoQuery_RejectsUnknownColumnAndOperator(t *testing.T) {
	tests := []struct {
		name string
		q    *TodoQuery
	}{
		{"column", NewTodoQuery(uuid.New()).Where(Column("title; DROP TABLE todos"), OpEq, "x")},
		{"operator", NewTodoQuery(uuid.New()).Where(ColTitle, Operator("<>"), "x")},
		{"contains non-string", NewTodoQuery(uuid.New()).Where(ColTitle, OpContains, 5)},
		{"no columns", NewTodoQuery(uuid.New()).WhereAnyContains("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := tt.q.CountSQL(); err == nil {
				t.Error("expected error, got none")
			}
		})
	}
}

func TestTodoQuery_Search(t *testing.T) {
	q := NewTodoQuery(uuid.New()).WhereAnyContains("50%_Off", ColTitle, ColDescription)

	query, args, err := q.CountSQL()
	if err != nil {
		t.Fatalf("CountSQL: %v", err)
	}
	if !strings.Contains(query, `(LOWER(COALESCE(title, '')) LIKE $2 ESCAPE '\' OR LOWER(COALESCE(description, '')) LIKE $3 ESCAPE '\')`) {
		t.Errorf("unexpected search clause: %s", query)
	}
	if args[1] != `%50\%\_off%` || args[2] != args[1] {
		t.Errorf("unexpected pattern args: %v", args[1:])
	}
}

func TestTodoQuery_OrderAndPage(t *testing.T) {
	tests := []struct {
		name  string
		field SortField
		order SortOrder
		want  string
	}{
		{"default", "", "", "ORDER BY created_at DESC, id DESC"},
		{"title asc", SortTitle, Asc, "ORDER BY title ASC, id ASC"},
		{"unknown field", SortField("password"), Asc, "ORDER BY created_at ASC, id ASC"},
		{"priority", SortPriority, Asc, "ORDER BY " + priorityRankExpr + " ASC, id ASC"},
		{"due date", SortDueDate, Desc, "ORDER BY (due_date IS NULL) ASC, due_date DESC, id DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewTodoQuery(uuid.New()).OrderBy(tt.field, tt.order).Page(20, 40)
			query, args, err := q.SelectSQL()
			if err != nil {
				t.Fatalf("SelectSQL: %v", err)
			}
			if !strings.Contains(query, tt.want+" LIMIT $2 OFFSET $3") {
				t.Errorf("got %s, want suffix %q", query, tt.want)
			}
			if len(args) != 3 || args[1] != 20 || args[2] != 40 {
				t.Errorf("unexpected args: %v", args)
			}
		})
	}
}

func TestParseSort(t *testing.T) {
	if ParseSortField("due_date") != SortDueDate {
		t.Error("due_date should be accepted")
	}
	if ParseSortField("owner_id") != SortCreatedAt {
		t.Error("owner_id should fall back to created_at")
	}
	if ParseSortOrder("ASC") != Asc || ParseSortOrder("up") != Desc || ParseSortOrder("") != Desc {
		t.Error("unexpected sort order parsing")
	}
}

func TestPriorityRankExpr(t *testing.T) {
	want := `CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END`
	if priorityRankExpr != want {
		t.Errorf("priorityRankExpr = %s, want %s", priorityRankExpr, want)
	}
}
