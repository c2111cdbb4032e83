package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Updates WATCH the game and player keys and commit in MULTI/EXEC,
// retrying when another writer got there first.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

type sessionRecord struct {
	GameCode model.GameCode `json:"game_code"`
	PlayerID model.PlayerID `json:"player_id"`
}

func (s *Storage) CreateGame(ctx context.Context, game *model.Game, players []*model.Player) error {
	gKey := gameKey(game.Code)

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, gKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrGameCodeTaken
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.writeSnapshot(ctx, pipe, model.NewSnapshot(game, players), nil)
		})
		return err
	}

	err := s.client.Watch(ctx, txf, gKey)
	if errors.Is(err, redis.TxFailedErr) {
		// Someone created the same code between EXISTS and EXEC
		return model.ErrGameCodeTaken
	}
	return err
}

func (s *Storage) GameExists(ctx context.Context, code model.GameCode) (bool, error) {
	exists, err := s.client.Exists(ctx, gameKey(code)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *Storage) GetGame(ctx context.Context, code model.GameCode) (*model.Game, error) {
	return getGame(ctx, s.client, code)
}

func (s *Storage) ListPlayers(ctx context.Context, code model.GameCode) ([]*model.Player, error) {
	if _, err := getGame(ctx, s.client, code); err != nil {
		return nil, err
	}
	players, err := getPlayers(ctx, s.client, code)
	if err != nil {
		return nil, err
	}
	model.SortPlayers(players)
	return players, nil
}

func (s *Storage) ListKills(ctx context.Context, code model.GameCode) ([]model.KillRecord, error) {
	if _, err := getGame(ctx, s.client, code); err != nil {
		return nil, err
	}

	values, err := s.client.LRange(ctx, killsKey(code), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	kills := make([]model.KillRecord, 0, len(values))
	for _, val := range values {
		var k model.KillRecord
		if err := json.Unmarshal([]byte(val), &k); err != nil {
			return nil, fmt.Errorf("decoding kill record: %w", err)
		}
		kills = append(kills, k)
	}
	model.SortKills(kills)
	return kills, nil
}

func (s *Storage) LoadSnapshot(ctx context.Context, code model.GameCode) (*model.Snapshot, error) {
	var snap *model.Snapshot
	// WATCH without writes gives a consistent read of game + players
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var err error
		snap, err = loadSnapshot(ctx, tx, code)
		return err
	}, gameKey(code), playersKey(code))
	return snap, err
}

func (s *Storage) FindSession(ctx context.Context, token string) (storage.SessionRef, error) {
	if token == "" {
		return storage.SessionRef{}, model.ErrInvalidSession
	}
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storage.SessionRef{}, model.ErrInvalidSession
		}
		return storage.SessionRef{}, err
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return storage.SessionRef{}, fmt.Errorf("decoding session: %w", err)
	}
	return storage.SessionRef{GameCode: rec.GameCode, PlayerID: rec.PlayerID}, nil
}

func (s *Storage) Update(ctx context.Context, code model.GameCode, fn storage.UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		snap, err := loadSnapshot(ctx, tx, code)
		if err != nil {
			return err
		}
		before := storage.SessionTokens(snap.Players)
		if err := fn(snap); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.writeSnapshot(ctx, pipe, snap, before)
		})
		return err
	}

	for i := 0; i < s.cfg.MaxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, gameKey(code), playersKey(code))
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return storage.ErrTxConflict
}

// writeSnapshot queues every write of a snapshot on pipe. before holds the
// session tokens at load time (nil for a new game).
func (s *Storage) writeSnapshot(ctx context.Context, pipe redis.Pipeliner, snap *model.Snapshot, before map[model.PlayerID]string) error {
	code := snap.Game.Code
	ttl := s.cfg.GameTTL

	gameData, err := json.Marshal(snap.Game)
	if err != nil {
		return err
	}
	pipe.Set(ctx, gameKey(code), gameData, ttl)

	fields := make(map[string]any, len(snap.Players))
	for _, p := range snap.Players {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		fields[string(p.ID)] = data
	}
	if len(fields) > 0 {
		pipe.HSet(ctx, playersKey(code), fields)
	}
	pipe.Expire(ctx, playersKey(code), ttl)

	for _, k := range snap.Kills {
		data, err := json.Marshal(k)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, killsKey(code), data)
	}
	pipe.Expire(ctx, killsKey(code), ttl)

	removed, added := storage.SessionChanges(before, snap.Players)
	for _, token := range removed {
		pipe.Del(ctx, sessionKey(token))
	}
	for token, playerID := range added {
		data, err := json.Marshal(sessionRecord{GameCode: code, PlayerID: playerID})
		if err != nil {
			return err
		}
		pipe.Set(ctx, sessionKey(token), data, ttl)
	}
	for _, p := range snap.Players {
		if _, isNew := added[p.SessionToken]; p.SessionToken != "" && !isNew {
			pipe.Expire(ctx, sessionKey(p.SessionToken), ttl)
		}
	}
	return nil
}

func getGame(ctx context.Context, c redis.Cmdable, code model.GameCode) (*model.Game, error) {
	data, err := c.Get(ctx, gameKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}

	var game model.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, fmt.Errorf("decoding game: %w", err)
	}
	return &game, nil
}

func getPlayers(ctx context.Context, c redis.Cmdable, code model.GameCode) ([]*model.Player, error) {
	values, err := c.HGetAll(ctx, playersKey(code)).Result()
	if err != nil {
		return nil, err
	}

	players := make([]*model.Player, 0, len(values))
	for _, val := range values {
		var p model.Player
		if err := json.Unmarshal([]byte(val), &p); err != nil {
			return nil, fmt.Errorf("decoding player: %w", err)
		}
		players = append(players, &p)
	}
	return players, nil
}

func loadSnapshot(ctx context.Context, c redis.Cmdable, code model.GameCode) (*model.Snapshot, error) {
	game, err := getGame(ctx, c, code)
	if err != nil {
		return nil, err
	}
	players, err := getPlayers(ctx, c, code)
	if err != nil {
		return nil, err
	}
	return model.NewSnapshot(game, players), nil
}
