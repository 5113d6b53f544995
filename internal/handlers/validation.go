package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/chepyr/go-todo-tracker/internal/todo"
)

const (
	maxBodyBytes      = 1 << 20 // 1MB
	maxTitleLen       = 100
	maxDescriptionLen = 500
	maxCategoryLen    = 20
)

var errValidation = errors.New("validation failed")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errValidation, fmt.Sprintf(format, args...))
}

// message strips the sentinel prefix for the client.
func message(err error) string {
	return strings.TrimPrefix(err.Error(), errValidation.Error()+": ")
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(strings.ToLower(ct), "application/json")
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
// On failure it writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !isJSONContentType(r) {
		sendError(w, http.StatusBadRequest, codeValidation, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid JSON body"
		if errors.Is(err, errValidation) {
			msg = message(err)
		} else if strings.HasPrefix(err.Error(), "json: unknown field") {
			msg = strings.TrimPrefix(err.Error(), "json: ")
		}
		sendError(w, http.StatusBadRequest, codeValidation, msg)
		return false
	}
	return true
}

// parseListParams validates the list query string.
func parseListParams(q url.Values) (todo.ListParams, error) {
	var p todo.ListParams
	var err error

	if p.Page, err = positiveInt(q, "page"); err != nil {
		return p, err
	}
	if p.Limit, err = positiveInt(q, "limit"); err != nil {
		return p, err
	}
	if v := q.Get("completed"); v != "" {
		var done bool
		switch strings.ToLower(v) {
		case "true":
			done = true
		case "false":
		default:
			return p, validationError("completed must be true or false")
		}
		p.Completed = &done
	}
	if v := q.Get("priority"); v != "" {
		priority := models.Priority(v)
		if !priority.Valid() {
			return p, validationError("priority must be one of low, medium, high")
		}
		p.Priority = &priority
	}
	p.Category = strings.TrimSpace(q.Get("category"))
	p.Search = strings.TrimSpace(q.Get("search"))
	p.SortBy = q.Get("sortBy")
	p.SortOrder = q.Get("sortOrder")
	return p, nil
}

func positiveInt(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, validationError("%s must be an integer", key)
	}
	if n < 1 {
		return 0, validationError("%s must be greater than 0", key)
	}
	return n, nil
}

type createInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Category    *string `json:"category"`
	DueDate     *string `json:"dueDate"`
}

func (in createInput) validate() (todo.NewTodo, error) {
	var out todo.NewTodo
	if in.Title == nil {
		return out, validationError("title is required")
	}
	title, err := checkTitle(*in.Title)
	if err != nil {
		return out, err
	}
	out.Title = title
	if out.Description, err = checkText(in.Description, "description", maxDescriptionLen); err != nil {
		return out, err
	}
	if out.Category, err = checkText(in.Category, "category", maxCategoryLen); err != nil {
		return out, err
	}
	if in.Priority != nil {
		if out.Priority, err = checkPriority(*in.Priority); err != nil {
			return out, err
		}
	}
	if in.DueDate != nil {
		due, err := parseISOTime(*in.DueDate)
		if err != nil {
			return out, err
		}
		out.DueDate = &due
	}
	return out, nil
}

// nullableTime tells an absent dueDate apart from an explicit null.
type nullableTime struct {
	Set   bool
	Value *time.Time
}

func (n *nullableTime) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return validationError("dueDate must be an ISO 8601 string or null")
	}
	t, err := parseISOTime(s)
	if err != nil {
		return err
	}
	n.Value = &t
	return nil
}

type updateInput struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Completed   *bool        `json:"completed"`
	Priority    *string      `json:"priority"`
	Category    *string      `json:"category"`
	DueDate     nullableTime `json:"dueDate"`
}

func (in updateInput) validate() (models.TodoPatch, error) {
	var patch models.TodoPatch
	if in.Title != nil {
		title, err := checkTitle(*in.Title)
		if err != nil {
			return patch, err
		}
		patch.Title = &title
	}
	if in.Description != nil {
		d, err := checkLength(*in.Description, "description", maxDescriptionLen)
		if err != nil {
			return patch, err
		}
		patch.Description = &d
	}
	if in.Category != nil {
		c, err := checkLength(*in.Category, "category", maxCategoryLen)
		if err != nil {
			return patch, err
		}
		patch.Category = &c
	}
	patch.Completed = in.Completed
	if in.Priority != nil {
		p, err := checkPriority(*in.Priority)
		if err != nil {
			return patch, err
		}
		patch.Priority = &p
	}
	if in.DueDate.Set {
		patch.DueDate = in.DueDate.Value
		patch.ClearDueDate = in.DueDate.Value == nil
	}
	if patch.Empty() {
		return patch, validationError("At least one field must be provided")
	}
	return patch, nil
}

type batchInput struct {
	IDs      []int64 `json:"ids"`
	Action   string  `json:"action"`
	Priority *string `json:"priority"`
	Category *string `json:"category"`
}

// request converts the body into a batch request. Action and id checks are left to the service.
func (in batchInput) request() (todo.BatchRequest, error) {
	req := todo.BatchRequest{IDs: in.IDs, Action: todo.BatchAction(in.Action)}
	for _, id := range in.IDs {
		if id < 1 {
			return req, validationError("ids must be positive integers")
		}
	}
	if in.Priority != nil && *in.Priority != "" {
		p := models.Priority(*in.Priority)
		req.Priority = &p
	}
	if in.Category != nil {
		c, err := checkLength(*in.Category, "category", maxCategoryLen)
		if err != nil {
			return req, err
		}
		req.Category = &c
	}
	return req, nil
}

func checkTitle(s string) (string, error) {
	title := strings.TrimSpace(s)
	if title == "" {
		return "", validationError("title must not be empty")
	}
	return checkLength(title, "title", maxTitleLen)
}

func checkLength(s, field string, limit int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > limit {
		return "", validationError("%s must be at most %d characters", field, limit)
	}
	return s, nil
}

func checkText(s *string, field string, limit int) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v, err := checkLength(*s, field, limit)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func checkPriority(s string) (models.Priority, error) {
	p := models.Priority(s)
	if !p.Valid() {
		return "", validationError("priority must be one of low, medium, high")
	}
	return p, nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

// parseISOTime accepts ISO 8601 timestamps. Date-only values are UTC midnight,
// date-times without an offset are server-local.
func parseISOTime(s string) (time.Time, error) {
	for _, layout := range isoLayouts {
		loc := time.Local
		if layout == time.DateOnly {
			loc = time.UTC
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, validationError("dueDate must be an ISO 8601 date")
}
