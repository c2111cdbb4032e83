package model

import (
	"strings"
	"time"
)

// GameCode is the short human-enterable identifier players type to join
type GameCode string

// Normalize upper-cases and trims a code as typed by a player
func (c GameCode) Normalize() GameCode {
	return GameCode(strings.ToUpper(strings.TrimSpace(string(c))))
}

// GameStatus is the lifecycle state of a game
type GameStatus string

const (
	GameStatusLobby    GameStatus = "lobby"    // Players claim identities, creator may start
	GameStatusActive   GameStatus = "active"   // Assignments live, kills resolve
	GameStatusFinished GameStatus = "finished" // Terminal
)

// Game is a single elimination game
type Game struct {
	Code         GameCode
	CreatorToken string
	Status       GameStatus
	Tasks        []string // Task pool supplied at creation, in order
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsCreator reports whether token is the creator credential for this game
func (g *Game) IsCreator(token string) bool {
	return token != "" && token == g.CreatorToken
}

// Clone returns a deep copy of the game
func (g *Game) Clone() *Game {
	c := *g
	c.Tasks = append([]string(nil), g.Tasks...)
	return &c
}
