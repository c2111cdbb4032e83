package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/nicpaesk/killer-game/internal/dependencies/clock"
	"github.com/nicpaesk/killer-game/internal/dependencies/random"
	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/storage"
)

// sessionPrefix marks player session tokens
const sessionPrefix = "s_"

// Session is a player identity bound to a fresh session token
type Session struct {
	Token  string
	Player *model.Player
	Status model.GameStatus
}

// Reclaimed is a session recovered with a name and PIN
type Reclaimed struct {
	Session
	// PreviousToken is the superseded token, empty if none was live
	PreviousToken string
}

// Service binds player slots to session tokens
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	cost    int

	// dummyHash keeps reclaim timing uniform for unknown names
	dummyHash []byte
}

// Config holds configuration for the identity service
type Config struct {
	// BcryptCost is the work factor for PIN hashes
	BcryptCost int
}

// DefaultConfig returns default identity configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// New creates a new identity Service
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("00000000"), cfg.BcryptCost)
	return &Service{
		storage:   storage,
		clock:     clock,
		logger:    logger.With(slog.String("component", "identity")),
		cost:      cfg.BcryptCost,
		dummyHash: dummy,
	}
}

// Claim takes an unclaimed player slot and protects it with a PIN
func (s *Service) Claim(ctx context.Context, code model.GameCode, name, pin string) (*Session, error) {
	code = code.Normalize()
	if err := model.ValidateGameCode(code); err != nil {
		return nil, err
	}
	if err := model.ValidateName(name); err != nil {
		return nil, err
	}
	if err := model.ValidatePIN(pin); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}
	token := random.Token(sessionPrefix)

	var session *Session
	err = s.storage.Update(ctx, code, func(snap *model.Snapshot) error {
		if err := requireLobby(snap.Game); err != nil {
			return err
		}
		player := snap.PlayerByName(name)
		if player == nil {
			return model.ErrPlayerNotFound
		}
		if player.Status != model.PlayerStatusNotJoined {
			return model.ErrPlayerUnavailable
		}

		now := s.clock.Now()
		player.SessionToken = token
		player.PINHash = string(hash)
		player.Status = model.PlayerStatusAlive
		player.JoinedAt = &now
		snap.Game.UpdatedAt = now

		session = &Session{Token: token, Player: player.Clone(), Status: snap.Game.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("identity claimed",
		slog.String("game_code", string(code)),
		slog.String("player_id", string(session.Player.ID)),
	)
	return session, nil
}

// Reclaim recovers a previously claimed slot. Any mismatch fails with
// ErrReclaimFailed so callers cannot tell which credential was wrong.
func (s *Service) Reclaim(ctx context.Context, code model.GameCode, name, pin string) (*Reclaimed, error) {
	code = code.Normalize()
	if err := model.ValidateGameCode(code); err != nil {
		return nil, err
	}

	players, err := s.storage.ListPlayers(ctx, code)
	if err != nil {
		return nil, err
	}
	var hash string
	for _, p := range players {
		if p.Name == name {
			hash = p.PINHash
		}
	}
	if !s.checkPIN(hash, pin) {
		return nil, model.ErrReclaimFailed
	}

	token := random.Token(sessionPrefix)
	var result *Reclaimed
	err = s.storage.Update(ctx, code, func(snap *model.Snapshot) error {
		player := snap.PlayerByName(name)
		// The hash may have changed since it was checked
		if player == nil || player.PINHash != hash {
			return model.ErrReclaimFailed
		}

		now := s.clock.Now()
		previous := player.SessionToken
		player.SessionToken = token
		if snap.Game.Status == model.GameStatusLobby && player.Status == model.PlayerStatusNotJoined {
			player.Status = model.PlayerStatusAlive
			player.JoinedAt = &now
		}
		snap.Game.UpdatedAt = now

		result = &Reclaimed{
			Session:       Session{Token: token, Player: player.Clone(), Status: snap.Game.Status},
			PreviousToken: previous,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("identity reclaimed",
		slog.String("game_code", string(code)),
		slog.String("player_id", string(result.Player.ID)),
		slog.Bool("superseded", result.PreviousToken != ""),
	)
	return result, nil
}

// Cancel releases the slot bound to token. The PIN hash is kept so the
// player can reclaim it later.
func (s *Service) Cancel(ctx context.Context, code model.GameCode, token string) (*model.Player, error) {
	code = code.Normalize()
	if err := model.ValidateGameCode(code); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, model.ErrInvalidSession
	}

	var canceled *model.Player
	err := s.storage.Update(ctx, code, func(snap *model.Snapshot) error {
		player := snap.PlayerBySession(token)
		if player == nil {
			return model.ErrInvalidSession
		}
		if err := requireLobby(snap.Game); err != nil {
			return err
		}
		if !player.IsAlive() {
			return model.ErrPlayerNotAlive
		}

		player.SessionToken = ""
		player.Status = model.PlayerStatusNotJoined
		player.JoinedAt = nil
		snap.Game.UpdatedAt = s.clock.Now()

		canceled = player.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("identity canceled",
		slog.String("game_code", string(code)),
		slog.String("player_id", string(canceled.ID)),
	)
	return canceled, nil
}

// Resolve returns the player currently bound to token
func (s *Service) Resolve(ctx context.Context, token string) (*model.Player, error) {
	if token == "" {
		return nil, model.ErrInvalidSession
	}
	ref, err := s.storage.FindSession(ctx, token)
	if err != nil {
		return nil, err
	}
	players, err := s.storage.ListPlayers(ctx, ref.GameCode)
	if err != nil {
		if errors.Is(err, model.ErrGameNotFound) {
			return nil, model.ErrInvalidSession
		}
		return nil, err
	}
	for _, p := range players {
		if p.ID == ref.PlayerID && p.SessionToken == token {
			return p, nil
		}
	}
	return nil, model.ErrInvalidSession
}

// ResolveInGame is Resolve restricted to one game
func (s *Service) ResolveInGame(ctx context.Context, code model.GameCode, token string) (*model.Player, error) {
	player, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if player.GameCode != code.Normalize() {
		return nil, model.ErrInvalidSession
	}
	return player, nil
}

// checkPIN compares pin against hash, always paying the bcrypt cost
func (s *Service) checkPIN(hash, pin string) bool {
	if hash == "" || model.ValidatePIN(pin) != nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(pin))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

func requireLobby(game *model.Game) error {
	switch game.Status {
	case model.GameStatusLobby:
		return nil
	case model.GameStatusFinished:
		return model.ErrGameFinished
	default:
		return model.ErrGameAlreadyStarted
	}
}

// ServiceInterface is the identity surface used by the delivery layer
type ServiceInterface interface {
	Claim(ctx context.Context, code model.GameCode, name, pin string) (*Session, error)
	Reclaim(ctx context.Context, code model.GameCode, name, pin string) (*Reclaimed, error)
	Cancel(ctx context.Context, code model.GameCode, token string) (*model.Player, error)
	Resolve(ctx context.Context, token string) (*model.Player, error)
	ResolveInGame(ctx context.Context, code model.GameCode, token string) (*model.Player, error)
}

var _ ServiceInterface = (*Service)(nil)

