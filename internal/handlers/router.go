package handlers

import (
	"net/http"
	"os"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// NewRouter wires every route of the service and wraps them with CORS,
// access logging and panic recovery.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", h.Limit(h.Register)).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Limit(h.Login)).Methods(http.MethodPost)
	api.HandleFunc("/user/profile", h.AuthMiddleware(h.GetProfile)).Methods(http.MethodGet)
	api.HandleFunc("/user/profile", h.AuthMiddleware(h.UpdateProfile)).Methods(http.MethodPut)

	// fixed paths before /todos/{id}
	api.HandleFunc("/todos", h.AuthMiddleware(h.ListTodos)).Methods(http.MethodGet)
	api.HandleFunc("/todos", h.AuthMiddleware(h.CreateTodo)).Methods(http.MethodPost)
	api.HandleFunc("/todos/stats", h.AuthMiddleware(h.GetStats)).Methods(http.MethodGet)
	api.HandleFunc("/todos/categories", h.AuthMiddleware(h.GetCategories)).Methods(http.MethodGet)
	api.HandleFunc("/todos/batch", h.AuthMiddleware(h.BatchTodos)).Methods(http.MethodPatch)
	api.HandleFunc("/todos/{id}", h.AuthMiddleware(h.GetTodo)).Methods(http.MethodGet)
	api.HandleFunc("/todos/{id}", h.AuthMiddleware(h.UpdateTodo)).Methods(http.MethodPut)
	api.HandleFunc("/todos/{id}", h.AuthMiddleware(h.DeleteTodo)).Methods(http.MethodDelete)
	api.HandleFunc("/ws", h.AuthMiddleware(h.HandleWebSocket)).Methods(http.MethodGet)

	origins := h.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"}),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedOrigins(origins),
	)

	var handler http.Handler = cors(r)
	handler = gorillahandlers.RecoveryHandler(gorillahandlers.PrintRecoveryStack(true))(handler)
	return gorillahandlers.CombinedLoggingHandler(os.Stdout, handler)
}
