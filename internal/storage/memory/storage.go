package memory

import (
	"context"
	"sync"

	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Each game has its own mutex; Update holds it for the whole
// read-modify-write so updates to one game never interleave.
type Storage struct {
	mu sync.RWMutex

	games    map[model.GameCode]*gameEntry
	sessions map[string]storage.SessionRef
}

type gameEntry struct {
	mu      sync.Mutex
	game    *model.Game
	players []*model.Player
	kills   []model.KillRecord
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		games:    make(map[model.GameCode]*gameEntry),
		sessions: make(map[string]storage.SessionRef),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateGame(ctx context.Context, game *model.Game, players []*model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game.Code]; ok {
		return model.ErrGameCodeTaken
	}

	entry := &gameEntry{game: game.Clone()}
	for _, p := range players {
		entry.players = append(entry.players, p.Clone())
		if p.SessionToken != "" {
			s.sessions[p.SessionToken] = storage.SessionRef{GameCode: game.Code, PlayerID: p.ID}
		}
	}
	model.SortPlayers(entry.players)
	s.games[game.Code] = entry
	return nil
}

func (s *Storage) GameExists(ctx context.Context, code model.GameCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.games[code]
	return ok, nil
}

func (s *Storage) GetGame(ctx context.Context, code model.GameCode) (*model.Game, error) {
	entry, err := s.entry(code)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.game.Clone(), nil
}

func (s *Storage) ListPlayers(ctx context.Context, code model.GameCode) ([]*model.Player, error) {
	entry, err := s.entry(code)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return clonePlayers(entry.players), nil
}

func (s *Storage) ListKills(ctx context.Context, code model.GameCode) ([]model.KillRecord, error) {
	entry, err := s.entry(code)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	kills := append([]model.KillRecord(nil), entry.kills...)
	entry.mu.Unlock()

	model.SortKills(kills)
	return kills, nil
}

func (s *Storage) LoadSnapshot(ctx context.Context, code model.GameCode) (*model.Snapshot, error) {
	entry, err := s.entry(code)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return model.NewSnapshot(entry.game.Clone(), clonePlayers(entry.players)), nil
}

func (s *Storage) FindSession(ctx context.Context, token string) (storage.SessionRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.sessions[token]
	if !ok || token == "" {
		return storage.SessionRef{}, model.ErrInvalidSession
	}
	return ref, nil
}

func (s *Storage) Update(ctx context.Context, code model.GameCode, fn storage.UpdateFunc) error {
	entry, err := s.entry(code)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	// fn works on copies; a failed fn leaves the entry untouched
	snap := model.NewSnapshot(entry.game.Clone(), clonePlayers(entry.players))
	before := storage.SessionTokens(snap.Players)
	if err := fn(snap); err != nil {
		return err
	}

	removed, added := storage.SessionChanges(before, snap.Players)
	s.mu.Lock()
	for _, token := range removed {
		delete(s.sessions, token)
	}
	for token, playerID := range added {
		s.sessions[token] = storage.SessionRef{GameCode: code, PlayerID: playerID}
	}
	s.mu.Unlock()

	entry.game = snap.Game
	entry.players = snap.Players
	entry.kills = append(entry.kills, snap.Kills...)
	return nil
}

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}

func (s *Storage) entry(code model.GameCode) (*gameEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.games[code]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return entry, nil
}

func clonePlayers(players []*model.Player) []*model.Player {
	out := make([]*model.Player, len(players))
	for i, p := range players {
		out[i] = p.Clone()
	}
	return out
}
