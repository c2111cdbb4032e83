package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/gorilla/mux"

	"github.com/nicpaesk/killer-game/internal/api/apierr"
	apihandler "github.com/nicpaesk/killer-game/internal/api/handler"
	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/services/game"
	"github.com/nicpaesk/killer-game/internal/services/summary"
	"github.com/nicpaesk/killer-game/internal/web/page"
)

// JoinHandler serves the pages behind join links
type JoinHandler struct {
	games   *game.Controller
	summary *summary.Service
	baseURL string
	logger  *slog.Logger
}

// NewJoinHandler creates a new JoinHandler
func NewJoinHandler(games *game.Controller, summary *summary.Service, baseURL string, logger *slog.Logger) *JoinHandler {
	return &JoinHandler{
		games:   games,
		summary: summary,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Join renders the landing page for a game code
func (h *JoinHandler) Join(w http.ResponseWriter, r *http.Request) {
	code := model.GameCode(mux.Vars(r)["code"]).Normalize()

	roster, err := h.games.Roster(r.Context(), code)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, page.Join(page.JoinData{
		Code:    code,
		Status:  roster.Status,
		Players: roster.Players,
		JoinURL: apihandler.JoinURL(h.baseURL, code),
		QRPath:  "/api/v1/games/" + string(code) + "/qr",
		Server:  h.baseURL,
	}))
}

// Results renders the summary of a game, personalised by ?session=
func (h *JoinHandler) Results(w http.ResponseWriter, r *http.Request) {
	code := model.GameCode(mux.Vars(r)["code"]).Normalize()

	sum, err := h.summary.Summary(r.Context(), code, r.URL.Query().Get("session"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, page.Results(sum))
}

func (h *JoinHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.Status(err)
	message := "Internal Server Error"
	if status < http.StatusInternalServerError {
		message = err.Error()
	} else {
		h.logger.Error("page request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	h.render(w, r, status, page.Error(status, message))
}

func (h *JoinHandler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("rendering page", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}
