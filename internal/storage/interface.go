package storage

import (
	"context"
	"errors"

	"github.com/nicpaesk/killer-game/internal/model"
)

// ErrTxConflict is returned when an optimistic update kept losing races
var ErrTxConflict = errors.New("storage: too many concurrent updates")

// UpdateFunc mutates a freshly loaded snapshot. Returning an error aborts
// the update and nothing is written. It may run more than once when a
// backend retries, so it must only touch the snapshot and its own locals.
type UpdateFunc func(s *model.Snapshot) error

// SessionRef locates the player a session token is bound to
type SessionRef struct {
	GameCode model.GameCode
	PlayerID model.PlayerID
}

// Storage is the single source of truth for games, players and kill history
type Storage interface {
	// CreateGame persists a new game with its unclaimed player rows.
	// Returns model.ErrGameCodeTaken if the code is already used.
	CreateGame(ctx context.Context, game *model.Game, players []*model.Player) error
	GameExists(ctx context.Context, code model.GameCode) (bool, error)
	GetGame(ctx context.Context, code model.GameCode) (*model.Game, error)

	// ListPlayers returns every player slot of a game ordered by name
	ListPlayers(ctx context.Context, code model.GameCode) ([]*model.Player, error)

	// ListKills returns the kill history ordered by timestamp ascending
	ListKills(ctx context.Context, code model.GameCode) ([]model.KillRecord, error)

	// LoadSnapshot returns a consistent read-only view of a game
	LoadSnapshot(ctx context.Context, code model.GameCode) (*model.Snapshot, error)

	// FindSession resolves a session token. Returns model.ErrInvalidSession if unknown.
	FindSession(ctx context.Context, token string) (SessionRef, error)

	// Update runs fn against the current state of a game and commits the
	// game, every player and appended kills as one indivisible unit.
	Update(ctx context.Context, code model.GameCode, fn UpdateFunc) error

	Close() error
}

// SessionChanges compares session tokens before and after an update and
// returns the tokens to drop and the tokens to (re)index.
func SessionChanges(before map[model.PlayerID]string, after []*model.Player) (removed []string, added map[string]model.PlayerID) {
	added = make(map[string]model.PlayerID)
	for _, p := range after {
		old := before[p.ID]
		if old == p.SessionToken {
			continue
		}
		if old != "" {
			removed = append(removed, old)
		}
		if p.SessionToken != "" {
			added[p.SessionToken] = p.ID
		}
	}
	return removed, added
}

// SessionTokens indexes the current session tokens of players by ID
func SessionTokens(players []*model.Player) map[model.PlayerID]string {
	tokens := make(map[model.PlayerID]string, len(players))
	for _, p := range players {
		tokens[p.ID] = p.SessionToken
	}
	return tokens
}

// Pinger is implemented by backends that hold a connection worth checking
type Pinger interface {
	Ping(ctx context.Context) error
}
