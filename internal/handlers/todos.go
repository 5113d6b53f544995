package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// isoLayout is RFC 3339 in UTC with millisecond precision.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

type todoResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	Priority    string    `json:"priority"`
	Category    *string   `json:"category"`
	DueDate     *string   `json:"dueDate"`
	CreatedAt   string    `json:"createdAt"`
	UpdatedAt   string    `json:"updatedAt"`
	UserID      uuid.UUID `json:"userId"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func newTodoResponse(t *models.Todo) todoResponse {
	resp := todoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		Category:    t.Category,
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
		UserID:      t.OwnerID,
	}
	if t.DueDate != nil {
		due := formatTime(*t.DueDate)
		resp.DueDate = &due
	}
	return resp
}

// owner reads the authenticated owner, writing a 401 when it is missing.
func owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := ownerFromContext(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized")
	}
	return id, ok
}

// todoID parses the {id} path variable, writing a 400 when it is not a positive integer.
func todoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		sendError(w, http.StatusBadRequest, codeInvalidTodoID, "Todo id must be a positive integer")
		return 0, false
	}
	return id, true
}

// ListTodos handles GET /api/todos
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	params, err := parseListParams(r.URL.Query())
	if err != nil {
		sendError(w, http.StatusBadRequest, codeInvalidQueryParams, message(err))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	page, err := h.Todos.List(ctx, userID, params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	todos := make([]todoResponse, 0, len(page.Todos))
	for _, t := range page.Todos {
		todos = append(todos, newTodoResponse(t))
	}
	sendJSON(w, http.StatusOK, "Todos retrieved", map[string]any{
		"todos":      todos,
		"pagination": page.Pagination,
	})
}

// GetTodo handles GET /api/todos/{id}
func (h *Handler) GetTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	t, err := h.Todos.Get(ctx, userID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, "Todo retrieved", map[string]any{"todo": newTodoResponse(t)})
}

// CreateTodo handles POST /api/todos
func (h *Handler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	var input createInput
	if !decodeJSON(w, r, &input) {
		return
	}
	newTodo, err := input.validate()
	if err != nil {
		sendError(w, http.StatusBadRequest, codeValidation, message(err))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	created, err := h.Todos.Create(ctx, userID, newTodo)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.WSHub.Broadcast(userID, Event{Name: EventTodoCreated, TodoID: created.ID, Todo: ptrTo(newTodoResponse(created))})
	w.Header().Set("Location", "/api/todos/"+strconv.FormatInt(created.ID, 10))
	sendJSON(w, http.StatusCreated, "Todo created", map[string]any{"todo": newTodoResponse(created)})
}

// UpdateTodo handles PUT /api/todos/{id}
func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	var input updateInput
	if !decodeJSON(w, r, &input) {
		return
	}
	patch, err := input.validate()
	if err != nil {
		sendError(w, http.StatusBadRequest, codeValidation, message(err))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	updated, err := h.Todos.Update(ctx, userID, id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.WSHub.Broadcast(userID, Event{Name: EventTodoUpdated, TodoID: updated.ID, Todo: ptrTo(newTodoResponse(updated))})
	sendJSON(w, http.StatusOK, "Todo updated", map[string]any{"todo": newTodoResponse(updated)})
}

// DeleteTodo handles DELETE /api/todos/{id}
func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	if err := h.Todos.Delete(ctx, userID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.WSHub.Broadcast(userID, Event{Name: EventTodoDeleted, TodoID: id})
	sendJSON(w, http.StatusOK, "Todo deleted", nil)
}

// BatchTodos handles PATCH /api/todos/batch
func (h *Handler) BatchTodos(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	var input batchInput
	if !decodeJSON(w, r, &input) {
		return
	}
	req, err := input.request()
	if err != nil {
		sendError(w, http.StatusBadRequest, codeValidation, message(err))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	res, err := h.Todos.Batch(ctx, userID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if res.SuccessCount > 0 {
		h.WSHub.Broadcast(userID, Event{Name: EventTodosBatch, Action: string(req.Action), IDs: req.IDs, Count: res.SuccessCount})
	}
	sendJSON(w, http.StatusOK, "Batch operation completed", res)
}

// GetStats handles GET /api/todos/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	stats, err := h.Todos.Stats(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, "Stats retrieved", map[string]any{"stats": stats})
}

type categoryResponse struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GetCategories handles GET /api/todos/categories
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	counts, err := h.Todos.Categories(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	categories := make([]categoryResponse, 0, len(counts))
	for _, c := range counts {
		categories = append(categories, categoryResponse{Name: c.Name, Count: c.Count})
	}
	sendJSON(w, http.StatusOK, "Categories retrieved", map[string]any{"categories": categories})
}

func ptrTo[T any](v T) *T { return &v }

