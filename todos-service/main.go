package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/cache"
	"github.com/chepyr/go-todo-tracker/internal/config"
	"github.com/chepyr/go-todo-tracker/internal/db"
	"github.com/chepyr/go-todo-tracker/internal/handlers"
	"github.com/chepyr/go-todo-tracker/internal/todo"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dbConn := initDB(cfg)
	defer dbConn.Close()

	statsCache := initCache(cfg)
	if statsCache != nil {
		defer func() {
			log.Printf("[cache] stats cache counters: %+v", statsCache.Counters())
			statsCache.Close()
		}()
	}

	handler := initHandlers(cfg, dbConn, statsCache)
	server := initServer(cfg, handlers.NewRouter(handler))
	startServer(server)
}

func initDB(cfg *config.Config) *sql.DB {
	dbConn, err := db.Connect(cfg.DBDriver, cfg.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Migrate(ctx, dbConn, cfg.DBDriver); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Printf("Connected to %s database", cfg.DBDriver)
	return dbConn
}

// initCache returns nil when REDIS_ADDR is unset or redis is unreachable;
// stats are then computed on every request.
func initCache(cfg *config.Config) *cache.StatsCache {
	if cfg.RedisAddr == "" {
		log.Println("[cache] REDIS_ADDR not set, stats cache disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		log.Printf("[cache] %v, stats cache disabled", err)
		return nil
	}
	log.Printf("[cache] stats cache on %s, ttl %s", cfg.RedisAddr, cfg.StatsCacheTTL)
	return cache.NewStatsCache(client, cache.DefaultPrefix, cfg.StatsCacheTTL)
}

func initHandlers(cfg *config.Config, dbConn *sql.DB, statsCache *cache.StatsCache) *handlers.Handler {
	handler := &handlers.Handler{
		UserRepo:       db.NewUserRepository(dbConn),
		RateLimiter:    handlers.NewRateLimiter(10, time.Minute),
		WSHub:          handlers.NewWSHub(),
		JWTSecret:      []byte(cfg.JWTSecret),
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
		DB:             dbConn,
	}

	store := db.NewTodoRepository(dbConn)
	// a nil *StatsCache must not end up inside the interface
	if statsCache != nil {
		handler.Todos = todo.NewService(store, statsCache)
		handler.Cache = statsCache
	} else {
		handler.Todos = todo.NewService(store, nil)
	}
	return handler
}

func initServer(cfg *config.Config, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func startServer(server *http.Server) {
	log.Printf("Starting todos server on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
		return
	}
	log.Println("Server stopped")
}
