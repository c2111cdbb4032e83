package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/storage"
	"github.com/nicpaesk/killer-game/internal/storage/sqlite/migrations"
)

// Fixed-width UTC layout so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Storage is a SQLite implementation of the storage interface.
// The pool is limited to one connection, so every transaction is
// serialized and Update is a single indivisible commit.
type Storage struct {
	db *sql.DB
}

// Open creates the database at path, configures it and runs migrations
func Open(ctx context.Context, path string) (*Storage, error) {
	// Pragmas go in the DSN so every pooled connection gets them
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Storage) CreateGame(ctx context.Context, game *model.Game, players []*model.Player) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		tasks, err := json.Marshal(game.Tasks)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO games (code, creator_token, status, tasks, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, game.Code, game.CreatorToken, game.Status, string(tasks),
			formatTime(game.CreatedAt), formatTime(game.UpdatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return model.ErrGameCodeTaken
			}
			return fmt.Errorf("inserting game: %w", err)
		}

		for _, p := range players {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO players (id, game_code, name, session_token, pin_hash, target_id, task, status, joined_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, playerArgs(p)...)
			if err != nil {
				return fmt.Errorf("inserting player: %w", err)
			}
		}
		return nil
	})
}

func (s *Storage) GameExists(ctx context.Context, code model.GameCode) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games WHERE code = ?`, code).Scan(&n)
	return n > 0, err
}

func (s *Storage) GetGame(ctx context.Context, code model.GameCode) (*model.Game, error) {
	return getGame(ctx, s.db, code)
}

func (s *Storage) ListPlayers(ctx context.Context, code model.GameCode) ([]*model.Player, error) {
	if _, err := getGame(ctx, s.db, code); err != nil {
		return nil, err
	}
	return listPlayers(ctx, s.db, code)
}

func (s *Storage) ListKills(ctx context.Context, code model.GameCode) ([]model.KillRecord, error) {
	if _, err := getGame(ctx, s.db, code); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_code, killer_id, victim_id, task, created_at
		FROM kill_history
		WHERE game_code = ?
		ORDER BY created_at, id
	`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kills []model.KillRecord
	for rows.Next() {
		var k model.KillRecord
		var createdAt string
		if err := rows.Scan(&k.ID, &k.GameCode, &k.KillerID, &k.VictimID, &k.Task, &createdAt); err != nil {
			return nil, err
		}
		if k.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		kills = append(kills, k)
	}
	return kills, rows.Err()
}

func (s *Storage) LoadSnapshot(ctx context.Context, code model.GameCode) (*model.Snapshot, error) {
	var snap *model.Snapshot
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		snap, err = loadSnapshot(ctx, tx, code)
		return err
	})
	return snap, err
}

func (s *Storage) FindSession(ctx context.Context, token string) (storage.SessionRef, error) {
	var ref storage.SessionRef
	if token == "" {
		return ref, model.ErrInvalidSession
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT game_code, id FROM players WHERE session_token = ?
	`, token).Scan(&ref.GameCode, &ref.PlayerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ref, model.ErrInvalidSession
	}
	return ref, err
}

func (s *Storage) Update(ctx context.Context, code model.GameCode, fn storage.UpdateFunc) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		snap, err := loadSnapshot(ctx, tx, code)
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}

		tasks, err := json.Marshal(snap.Game.Tasks)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE games SET status = ?, tasks = ?, updated_at = ? WHERE code = ?
		`, snap.Game.Status, string(tasks), formatTime(snap.Game.UpdatedAt), code)
		if err != nil {
			return fmt.Errorf("updating game: %w", err)
		}

		// Clear tokens first so a token moving between rows never trips UNIQUE
		if _, err := tx.ExecContext(ctx, `UPDATE players SET session_token = NULL WHERE game_code = ?`, code); err != nil {
			return fmt.Errorf("clearing sessions: %w", err)
		}
		for _, p := range snap.Players {
			_, err := tx.ExecContext(ctx, `
				UPDATE players
				SET session_token = ?, pin_hash = ?, target_id = ?, task = ?, status = ?, joined_at = ?
				WHERE id = ? AND game_code = ?
			`, nullString(p.SessionToken), nullString(p.PINHash), nullString(string(p.TargetID)),
				nullString(p.Task), p.Status, nullTime(p.JoinedAt), p.ID, code)
			if err != nil {
				return fmt.Errorf("updating player: %w", err)
			}
		}

		for _, k := range snap.Kills {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO kill_history (id, game_code, killer_id, victim_id, task, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, k.ID, code, k.KillerID, k.VictimID, k.Task, formatTime(k.Timestamp))
			if err != nil {
				return fmt.Errorf("inserting kill record: %w", err)
			}
		}
		return nil
	})
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func getGame(ctx context.Context, q querier, code model.GameCode) (*model.Game, error) {
	var g model.Game
	var tasks, createdAt, updatedAt string
	err := q.QueryRowContext(ctx, `
		SELECT code, creator_token, status, tasks, created_at, updated_at
		FROM games WHERE code = ?
	`, code).Scan(&g.Code, &g.CreatorToken, &g.Status, &tasks, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tasks), &g.Tasks); err != nil {
		return nil, fmt.Errorf("decoding tasks: %w", err)
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func listPlayers(ctx context.Context, q querier, code model.GameCode) ([]*model.Player, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, game_code, name, session_token, pin_hash, target_id, task, status, joined_at
		FROM players
		WHERE game_code = ?
		ORDER BY name, id
	`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []*model.Player
	for rows.Next() {
		var p model.Player
		var token, pinHash, targetID, task, joinedAt sql.NullString
		if err := rows.Scan(&p.ID, &p.GameCode, &p.Name, &token, &pinHash, &targetID, &task, &p.Status, &joinedAt); err != nil {
			return nil, err
		}
		p.SessionToken = token.String
		p.PINHash = pinHash.String
		p.TargetID = model.PlayerID(targetID.String)
		p.Task = task.String
		if joinedAt.Valid {
			t, err := parseTime(joinedAt.String)
			if err != nil {
				return nil, err
			}
			p.JoinedAt = &t
		}
		players = append(players, &p)
	}
	return players, rows.Err()
}

func loadSnapshot(ctx context.Context, q querier, code model.GameCode) (*model.Snapshot, error) {
	game, err := getGame(ctx, q, code)
	if err != nil {
		return nil, err
	}
	players, err := listPlayers(ctx, q, code)
	if err != nil {
		return nil, err
	}
	return model.NewSnapshot(game, players), nil
}

func playerArgs(p *model.Player) []any {
	return []any{
		p.ID, p.GameCode, p.Name, nullString(p.SessionToken), nullString(p.PINHash),
		nullString(string(p.TargetID)), nullString(p.Task), p.Status, nullTime(p.JoinedAt),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
