package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nicpaesk/killer-game/internal/dependencies/clock"
	"github.com/nicpaesk/killer-game/internal/dependencies/random"
	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/services/assignment"
	"github.com/nicpaesk/killer-game/internal/services/tasks"
	"github.com/nicpaesk/killer-game/internal/storage"
)

// creatorPrefix marks creator tokens
const creatorPrefix = "c_"

// Config holds configuration for the game controller
type Config struct {
	// MaxCodeAttempts bounds game code regeneration on collision
	MaxCodeAttempts int
}

// DefaultConfig returns default controller configuration
func DefaultConfig() Config {
	return Config{
		MaxCodeAttempts: 64,
	}
}

// Controller manages the game state machine and eliminations
type Controller struct {
	storage storage.Storage
	engine  *assignment.Engine
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
	cfg     Config
}

// NewController creates a new game Controller
func NewController(
	storage storage.Storage,
	engine *assignment.Engine,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
	cfg Config,
) *Controller {
	if cfg.MaxCodeAttempts <= 0 {
		cfg.MaxCodeAttempts = DefaultConfig().MaxCodeAttempts
	}
	return &Controller{
		storage: storage,
		engine:  engine,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "game")),
		cfg:     cfg,
	}
}

// Created is a newly created game with its player slots
type Created struct {
	Game    *model.Game
	Players []*model.Player
}

// Started is the state right after a game starts
type Started struct {
	Game    *model.Game
	Players []*model.Player
}

// Challenge is a pending kill awaiting the victim's answer
type Challenge struct {
	GameCode model.GameCode
	Killer   *model.Player
	Victim   *model.Player
	Task     string
}

// Resolution is the outcome of a victim answering a kill challenge
type Resolution struct {
	GameCode  model.GameCode
	Confirmed bool
	Killer    *model.Player
	Victim    *model.Player

	// Set only when confirmed
	Kill       *model.KillRecord
	NewTarget  *model.Player
	AliveCount int
	Winner     *model.Player
	Roster     model.RosterPayload
}

// Assignment is a player's current target and task
type Assignment struct {
	Player *model.Player
	Target *model.Player
	Task   string
}

// OverviewEntry is one row of the creator's assignment listing
type OverviewEntry struct {
	Name       string
	Status     model.PlayerStatus
	TargetName string
	Task       string
}

// Overview lists every player's assignment, sorted by name
type Overview struct {
	Code        model.GameCode
	Status      model.GameStatus
	Entries     []OverviewEntry
	SingleCycle bool
}

// CreateGame creates a game in the lobby with one unclaimed slot per name
func (c *Controller) CreateGame(ctx context.Context, names, taskList []string) (*Created, error) {
	names, err := tasks.ParsePlayers(names)
	if err != nil {
		return nil, err
	}
	taskList, err = tasks.ParseTasks(taskList)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	for attempt := 0; attempt < c.cfg.MaxCodeAttempts; attempt++ {
		code := model.GameCode(c.random.String(model.GameCodeLength, model.GameCodeAlphabet))
		if model.ValidateGameCode(code) != nil {
			continue
		}

		game := &model.Game{
			Code:         code,
			CreatorToken: random.Token(creatorPrefix),
			Status:       model.GameStatusLobby,
			Tasks:        append([]string(nil), taskList...),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		players := make([]*model.Player, len(names))
		for i, name := range names {
			players[i] = &model.Player{
				ID:       model.PlayerID(uuid.NewString()),
				GameCode: code,
				Name:     name,
				Status:   model.PlayerStatusNotJoined,
			}
		}

		err := c.storage.CreateGame(ctx, game, players)
		if errors.Is(err, model.ErrGameCodeTaken) {
			c.logger.Debug("game code collision", slog.String("game_code", string(code)))
			continue
		}
		if err != nil {
			c.logger.Error("failed to save game",
				slog.String("game_code", string(code)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		c.logger.Info("game created",
			slog.String("game_code", string(code)),
			slog.Int("player_count", len(players)),
			slog.Int("task_count", len(taskList)),
		)
		model.SortPlayers(players)
		return &Created{Game: game, Players: players}, nil
	}
	return nil, fmt.Errorf("no free game code after %d attempts: %w", c.cfg.MaxCodeAttempts, model.ErrGameCodeTaken)
}

// GetGame retrieves a game by code
func (c *Controller) GetGame(ctx context.Context, code model.GameCode) (*model.Game, error) {
	code = code.Normalize()
	if err := model.ValidateGameCode(code); err != nil {
		return nil, err
	}
	return c.storage.GetGame(ctx, code)
}

// Roster returns the public view of a game's player slots
func (c *Controller) Roster(ctx context.Context, code model.GameCode) (model.RosterPayload, error) {
	code = code.Normalize()
	if err := model.ValidateGameCode(code); err != nil {
		return model.RosterPayload{}, err
	}
	snap, err := c.storage.LoadSnapshot(ctx, code)
	if err != nil {
		return model.RosterPayload{}, err
	}
	return NewRoster(snap), nil
}

// NewRoster builds the room-wide roster view of a snapshot
func NewRoster(snap *model.Snapshot) model.RosterPayload {
	entries := make([]model.RosterEntry, len(snap.Players))
	for i, p := range snap.Players {
		entries[i] = model.RosterEntry{ID: p.ID, Name: p.Name, Status: p.Status}
	}
	return model.RosterPayload{Status: snap.Game.Status, Players: entries}
}

// StartGame moves a game from the lobby to active, assigning every joined
// player a target and task in a single cycle
func (c *Controller) StartGame(ctx context.Context, code model.GameCode, creatorToken string) (*Started, error) {
	code = code.Normalize()
	if err := model.ValidateGameCode(code); err != nil {
		return nil, err
	}

	var started *Started
	err := c.storage.Update(ctx, code, func(snap *model.Snapshot) error {
		if !snap.Game.IsCreator(creatorToken) {
			return model.ErrNotCreator
		}
		if snap.Game.Status != model.GameStatusLobby {
			return model.ErrGameAlreadyStarted
		}
		if _, err := c.engine.Start(snap); err != nil {
			return err
		}
		snap.Game.Status = model.GameStatusActive
		snap.Game.UpdatedAt = c.clock.Now()

		started = &Started{Game: snap.Game.Clone(), Players: clonePlayers(snap.Players)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("game started",
		slog.String("game_code", string(code)),
		slog.Int("alive_count", countAlive(started.Players)),
	)
	return started, nil
}

// ClaimKill lets a killer claim they eliminated their target. Nothing is
// written until the target answers.
func (c *Controller) ClaimKill(ctx context.Context, code model.GameCode, token string) (*Challenge, error) {
	code = code.Normalize()
	if err := model.ValidateGameCode(code); err != nil {
		return nil, err
	}
	snap, err := c.storage.LoadSnapshot(ctx, code)
	if err != nil {
		return nil, err
	}

	killer := snap.PlayerBySession(token)
	if killer == nil {
		return nil, model.ErrInvalidSession
	}
	if snap.Game.Status == model.GameStatusActive && killer.IsAlive() && killer.TargetID == "" {
		return nil, model.ErrNoTarget
	}
	killer, victim, err := assignment.CheckKill(snap, killer.ID, killer.TargetID)
	if err != nil {
		return nil, err
	}

	c.logger.Info("kill claimed",
		slog.String("game_code", string(code)),
		slog.String("killer_id", string(killer.ID)),
		slog.String("victim_id", string(victim.ID)),
	)
	return &Challenge{GameCode: code, Killer: killer, Victim: victim, Task: killer.Task}, nil
}

// ResolveKill records the victim's answer to a kill challenge. The victim
// is identified by token. A confirmed kill is applied atomically and may
// finish the game.
func (c *Controller) ResolveKill(ctx context.Context, token string, killerID model.PlayerID, confirmed bool) (*Resolution, error) {
	if token == "" {
		return nil, model.ErrNotIdentified
	}
	ref, err := c.storage.FindSession(ctx, token)
	if err != nil {
		return nil, err
	}
	code := ref.GameCode

	if !confirmed {
		snap, err := c.storage.LoadSnapshot(ctx, code)
		if err != nil {
			return nil, err
		}
		victim := snap.PlayerBySession(token)
		if victim == nil {
			return nil, model.ErrInvalidSession
		}
		killer, victim, err := assignment.CheckKill(snap, killerID, victim.ID)
		if err != nil {
			return nil, err
		}
		c.logger.Info("kill denied",
			slog.String("game_code", string(code)),
			slog.String("killer_id", string(killer.ID)),
			slog.String("victim_id", string(victim.ID)),
		)
		return &Resolution{GameCode: code, Killer: killer, Victim: victim}, nil
	}

	var res *Resolution
	err = c.storage.Update(ctx, code, func(snap *model.Snapshot) error {
		victim := snap.PlayerBySession(token)
		if victim == nil {
			return model.ErrInvalidSession
		}
		elim, err := c.engine.Eliminate(snap, killerID, victim.ID, c.clock.Now())
		if err != nil {
			return err
		}

		kill := elim.Kill
		res = &Resolution{
			GameCode:   code,
			Confirmed:  true,
			Killer:     elim.Killer.Clone(),
			Victim:     elim.Victim.Clone(),
			Kill:       &kill,
			AliveCount: len(snap.Alive()),
			Roster:     NewRoster(snap),
		}
		if t := snap.Player(elim.Killer.TargetID); t != nil {
			res.NewTarget = t.Clone()
		}
		if elim.Won {
			res.Winner = elim.Killer.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("kill confirmed",
		slog.String("game_code", string(code)),
		slog.String("killer_id", string(res.Killer.ID)),
		slog.String("victim_id", string(res.Victim.ID)),
		slog.Int("alive_count", res.AliveCount),
	)
	if res.Winner != nil {
		c.logger.Info("game finished",
			slog.String("game_code", string(code)),
			slog.String("winner_id", string(res.Winner.ID)),
		)
	}
	return res, nil
}

// Assignment returns the current target and task of the player bound to token
func (c *Controller) Assignment(ctx context.Context, code model.GameCode, token string) (*Assignment, error) {
	code = code.Normalize()
	if err := model.ValidateGameCode(code); err != nil {
		return nil, err
	}
	snap, err := c.storage.LoadSnapshot(ctx, code)
	if err != nil {
		return nil, err
	}
	player := snap.PlayerBySession(token)
	if player == nil {
		return nil, model.ErrInvalidSession
	}
	if snap.Game.Status == model.GameStatusLobby {
		return nil, model.ErrGameNotActive
	}
	return &Assignment{Player: player, Target: snap.Player(player.TargetID), Task: player.Task}, nil
}

// AssignmentOverview lists every assignment for the game creator
func (c *Controller) AssignmentOverview(ctx context.Context, code model.GameCode, creatorToken string) (*Overview, error) {
	code = code.Normalize()
	if err := model.ValidateGameCode(code); err != nil {
		return nil, err
	}
	snap, err := c.storage.LoadSnapshot(ctx, code)
	if err != nil {
		return nil, err
	}
	if !snap.Game.IsCreator(creatorToken) {
		return nil, model.ErrNotCreator
	}

	overview := &Overview{
		Code:        code,
		Status:      snap.Game.Status,
		Entries:     make([]OverviewEntry, 0, len(snap.Players)),
		SingleCycle: assignment.VerifyCycle(snap.Players) == nil,
	}
	for _, p := range snap.Players {
		entry := OverviewEntry{Name: p.Name, Status: p.Status, Task: p.Task}
		if t := snap.Player(p.TargetID); t != nil {
			entry.TargetName = t.Name
		}
		overview.Entries = append(overview.Entries, entry)
	}
	return overview, nil
}

func clonePlayers(players []*model.Player) []*model.Player {
	out := make([]*model.Player, len(players))
	for i, p := range players {
		out[i] = p.Clone()
	}
	return out
}

func countAlive(players []*model.Player) int {
	n := 0
	for _, p := range players {
		if p.IsAlive() {
			n++
		}
	}
	return n
}
