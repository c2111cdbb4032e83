package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nicpaesk/killer-game/internal/middleware"
	"github.com/nicpaesk/killer-game/internal/services/game"
	"github.com/nicpaesk/killer-game/internal/services/summary"
	"github.com/nicpaesk/killer-game/internal/web/handler"
	webmiddleware "github.com/nicpaesk/killer-game/internal/web/middleware"
)

// RouterConfig holds configuration for the web router
type RouterConfig struct {
	Logger         *slog.Logger
	BaseURL        string
	GameController *game.Controller
	SummaryService *summary.Service
}

// Register adds the join and results pages to r
func Register(r *mux.Router, cfg RouterConfig) {
	joinHandler := handler.NewJoinHandler(cfg.GameController, cfg.SummaryService, cfg.BaseURL, cfg.Logger)

	pages := r.NewRoute().Subrouter()
	pages.Use(webmiddleware.Recovery(cfg.Logger))
	pages.Use(middleware.Logging(cfg.Logger))

	pages.HandleFunc("/join/{code}", joinHandler.Join).Methods(http.MethodGet)
	pages.HandleFunc("/results/{code}", joinHandler.Results).Methods(http.MethodGet)
}

// NewRouter creates a standalone router serving only the web pages
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	Register(r, cfg)
	return r
}
