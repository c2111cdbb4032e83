package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nicpaesk/killer-game/internal/api/handler"
	"github.com/nicpaesk/killer-game/internal/api/middleware"
	"github.com/nicpaesk/killer-game/internal/realtime"
	"github.com/nicpaesk/killer-game/internal/services/game"
	"github.com/nicpaesk/killer-game/internal/services/summary"
	"github.com/nicpaesk/killer-game/internal/storage"
	"github.com/nicpaesk/killer-game/internal/web"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	BaseURL        string
	Storage        storage.Storage
	GameController *game.Controller
	SummaryService *summary.Service
	Registry       *realtime.Registry
	WSHandler      http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	gameHandler := handler.NewGameHandler(cfg.GameController, cfg.SummaryService, cfg.BaseURL, cfg.Logger)
	healthHandler := handler.NewHealthHandler(cfg.Storage, cfg.Registry, cfg.Logger)

	// Create middleware
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)
	api.Use(middleware.Token)

	// Game routes
	api.HandleFunc("/games", gameHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/games/{code}", gameHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/games/{code}/summary", gameHandler.Summary).Methods(http.MethodGet)
	api.HandleFunc("/games/{code}/qr", gameHandler.QR).Methods(http.MethodGet)
	api.HandleFunc("/games/{code}/assignments", gameHandler.Assignments).Methods(http.MethodGet)

	// Health check endpoint
	api.HandleFunc("/health", healthHandler.Check).Methods(http.MethodGet)

	// Real-time channel, logged on upgrade only
	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(recoveryMiddleware)
	ws.Use(loggingMiddleware)
	ws.Handle("", cfg.WSHandler).Methods(http.MethodGet)

	// Join and results pages
	web.Register(r, web.RouterConfig{
		Logger:         cfg.Logger,
		BaseURL:        cfg.BaseURL,
		GameController: cfg.GameController,
		SummaryService: cfg.SummaryService,
	})

	return r
}
