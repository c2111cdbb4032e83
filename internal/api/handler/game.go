package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"

	"github.com/nicpaesk/killer-game/internal/api/middleware"
	"github.com/nicpaesk/killer-game/internal/api/request"
	"github.com/nicpaesk/killer-game/internal/api/response"
	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/services/game"
	"github.com/nicpaesk/killer-game/internal/services/summary"
	"github.com/nicpaesk/killer-game/internal/services/tasks"
)

const (
	// maxCreateBody bounds JSON bodies and multipart uploads
	maxCreateBody = 1 << 20

	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// GameHandler handles game endpoints
type GameHandler struct {
	games   *game.Controller
	summary *summary.Service
	baseURL string
	logger  *slog.Logger
}

// NewGameHandler creates a new game handler. baseURL is the public origin
// used to build join links.
func NewGameHandler(games *game.Controller, summary *summary.Service, baseURL string, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		games:   games,
		summary: summary,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With(slog.String("component", "game_handler")),
	}
}

// JoinURL is the link players open to join a game
func JoinURL(baseURL string, code model.GameCode) string {
	return strings.TrimRight(baseURL, "/") + "/join/" + string(code)
}

// Create handles POST /api/v1/games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)

	var (
		names, taskList []string
		err             error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		names, taskList, err = parseMultipartCreate(r)
	} else {
		names, taskList, err = parseJSONCreate(r)
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	created, err := h.games.CreateGame(r.Context(), names, taskList)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.CreateGameResponseFromModel(created, JoinURL(h.baseURL, created.Game.Code)))
}

func parseJSONCreate(r *http.Request) ([]string, []string, error) {
	var req request.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, NewInvalidRequestError("Invalid request body")
	}
	return tasks.ParseLines(req.Players), tasks.ParseLines(req.Tasks), nil
}

func parseMultipartCreate(r *http.Request) ([]string, []string, error) {
	if err := r.ParseMultipartForm(maxCreateBody); err != nil {
		return nil, nil, NewInvalidRequestError("Invalid multipart form")
	}

	names := tasks.ParseLines(r.FormValue(request.FieldPlayers))
	inline := tasks.ParseLines(r.FormValue(request.FieldTasks))

	file, _, err := r.FormFile(request.FieldTasksFile)
	if errors.Is(err, http.ErrMissingFile) {
		return names, inline, nil
	}
	if err != nil {
		return nil, nil, NewInvalidRequestError("Invalid tasks file")
	}
	defer func() { _ = file.Close() }()

	if len(inline) > 0 {
		return nil, nil, model.ErrTaskSources
	}
	fromFile, err := tasks.ReadLines(file)
	if err != nil {
		return nil, nil, NewInvalidRequestError("Could not read tasks file")
	}
	return names, fromFile, nil
}

// Get handles GET /api/v1/games/{code}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := model.GameCode(mux.Vars(r)["code"])

	g, err := h.games.GetGame(r.Context(), code)
	if err != nil {
		WriteError(w, err)
		return
	}
	roster, err := h.games.Roster(r.Context(), g.Code)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameStateFromModel(g, roster))
}

// Summary handles GET /api/v1/games/{code}/summary
func (h *GameHandler) Summary(w http.ResponseWriter, r *http.Request) {
	code := model.GameCode(mux.Vars(r)["code"])

	sum, err := h.summary.Summary(r.Context(), code, middleware.GetToken(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, sum)
}

// QR handles GET /api/v1/games/{code}/qr
func (h *GameHandler) QR(w http.ResponseWriter, r *http.Request) {
	code := model.GameCode(mux.Vars(r)["code"])

	size := defaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < minQRSize || n > maxQRSize {
			WriteError(w, NewInvalidRequestError("size must be between 128 and 1024"))
			return
		}
		size = n
	}

	g, err := h.games.GetGame(r.Context(), code)
	if err != nil {
		WriteError(w, err)
		return
	}

	png, err := qrcode.Encode(JoinURL(h.baseURL, g.Code), qrcode.Medium, size)
	if err != nil {
		h.logger.Error("failed to encode qr code",
			slog.String("game_code", string(g.Code)),
			slog.String("error", err.Error()),
		)
		WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Assignments handles GET /api/v1/games/{code}/assignments
func (h *GameHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	code := model.GameCode(mux.Vars(r)["code"])

	token := middleware.GetToken(r.Context())
	if token == "" {
		WriteError(w, model.ErrNotCreator)
		return
	}

	overview, err := h.games.AssignmentOverview(r.Context(), code, token)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AssignmentOverviewFromModel(overview))
}
