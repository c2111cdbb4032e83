package model

import "time"

// PlayerID durably identifies a player slot within a game
type PlayerID string

// PlayerStatus is the participation state of a player slot
type PlayerStatus string

const (
	PlayerStatusNotJoined  PlayerStatus = "not_joined"
	PlayerStatusAlive      PlayerStatus = "alive"
	PlayerStatusEliminated PlayerStatus = "eliminated"
)

// Player is a named slot in a game. The row exists from game creation;
// a participant claims it with a PIN and receives a session token.
type Player struct {
	ID           PlayerID
	GameCode     GameCode
	Name         string
	SessionToken string // empty when unclaimed
	PINHash      string // bcrypt hash, kept across cancel for reclaim
	TargetID     PlayerID
	Task         string
	Status       PlayerStatus
	JoinedAt     *time.Time
}

// IsAlive returns true if the player is in play
func (p *Player) IsAlive() bool {
	return p.Status == PlayerStatusAlive
}

// HasSession returns true if a participant currently holds this slot
func (p *Player) HasSession() bool {
	return p.SessionToken != ""
}

// Clone returns a deep copy of the player
func (p *Player) Clone() *Player {
	c := *p
	if p.JoinedAt != nil {
		t := *p.JoinedAt
		c.JoinedAt = &t
	}
	return &c
}
