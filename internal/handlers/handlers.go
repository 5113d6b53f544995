package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/db"
	"github.com/chepyr/go-todo-tracker/internal/todo"
)

const defaultRequestTimeout = 5 * time.Second

// Error codes carried in the error envelope.
const (
	codeInvalidQueryParams = "INVALID_QUERY_PARAMS"
	codeInvalidTodoID      = "INVALID_TODO_ID"
	codeTodoNotFound       = "TODO_NOT_FOUND"
	codeValidation         = "VALIDATION_ERROR"
	codeEmptyIDs           = "EMPTY_IDS_ARRAY"
	codeInvalidAction      = "INVALID_ACTION"
	codeInvalidPriority    = "INVALID_PRIORITY"
	codeNoFields           = "NO_FIELDS_TO_UPDATE"
	codeInternal           = "INTERNAL_SERVER_ERROR"
	codeUnauthorized       = "UNAUTHORIZED"
	codeInvalidToken       = "INVALID_TOKEN"
	codeTokenExpired       = "TOKEN_EXPIRED"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeConflict           = "RESOURCE_CONFLICT"
	codeRateLimited        = "RATE_LIMIT_EXCEEDED"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	Todos          *todo.Service
	UserRepo       db.UserRepositoryInterface
	RateLimiter    *RateLimiter
	WSHub          *WSHub
	JWTSecret      []byte
	RequestTimeout time.Duration
	AllowedOrigins []string
	DB             Pinger
	Cache          Pinger
}

type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorEnvelope struct {
	ErrorCode string   `json:"error_code"`
	Message   string   `json:"message"`
	Data      struct{} `json:"data"`
}

func sendJSON(w http.ResponseWriter, status int, message string, data any) {
	if data == nil {
		data = struct{}{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Message: message, Data: data}); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorEnvelope{ErrorCode: code, Message: message}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// writeServiceError maps errors from the todo service onto the error envelope.
// Anything unrecognised is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, todo.ErrNotFound):
		sendError(w, http.StatusNotFound, codeTodoNotFound, "Todo not found or not accessible")
	case errors.Is(err, todo.ErrEmptyIDs):
		sendError(w, http.StatusBadRequest, codeEmptyIDs, "ids must be a non-empty array")
	case errors.Is(err, todo.ErrInvalidAction):
		sendError(w, http.StatusBadRequest, codeInvalidAction, "action must be one of complete, incomplete, delete, update")
	case errors.Is(err, todo.ErrInvalidPriority):
		sendError(w, http.StatusBadRequest, codeInvalidPriority, "priority must be one of low, medium, high")
	case errors.Is(err, todo.ErrNoFields):
		sendError(w, http.StatusBadRequest, codeNoFields, "At least one field must be provided")
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("[todos] %s %s timed out: %v", r.Method, r.URL.Path, err)
		sendError(w, http.StatusGatewayTimeout, codeInternal, "Request timed out")
	default:
		log.Printf("[todos] %s %s failed: %v", r.Method, r.URL.Path, err)
		sendError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
	}
}

// requestContext bounds the work of one request.
func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(r.Context(), timeout)
}

// Health answers GET /healthz. The database must be reachable; the stats cache is
// optional and only reported.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			log.Printf("[health] database ping failed: %v", err)
			sendError(w, http.StatusServiceUnavailable, codeInternal, "Database unavailable")
			return
		}
	}

	status := map[string]string{"database": "up", "cache": "disabled"}
	if h.Cache != nil {
		status["cache"] = "up"
		if err := h.Cache.PingContext(ctx); err != nil {
			log.Printf("[health] cache ping failed: %v", err)
			status["cache"] = "down"
		}
	}
	sendJSON(w, http.StatusOK, "OK", status)
}
