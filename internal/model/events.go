package model

import "time"

// EventType identifies an outbound real-time event
type EventType string

const (
	// Room-wide events
	EventRoster           EventType = "roster"
	EventPlayerEliminated EventType = "player_eliminated"
	EventGameState        EventType = "game_state"
	EventGameOver         EventType = "game_over"

	// Connection-private events
	EventIdentityConfirmed  EventType = "identity_confirmed"
	EventIdentityReclaimed  EventType = "identity_reclaimed"
	EventIdentityCanceled   EventType = "identity_canceled"
	EventSessionInvalidated EventType = "session_invalidated"
	EventError              EventType = "error"

	// Player-private events
	EventAssignment    EventType = "assignment"
	EventKillChallenge EventType = "kill_challenge"
	EventKillDenied    EventType = "kill_denied"
	EventNewTarget     EventType = "new_target"
	EventEliminated    EventType = "eliminated"
)

// Event is an outbound notification
type Event struct {
	Type      EventType `json:"type"`
	GameCode  GameCode  `json:"game_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// RosterEntry is one player as shown to the whole room
type RosterEntry struct {
	ID     PlayerID     `json:"id"`
	Name   string       `json:"name"`
	Status PlayerStatus `json:"status"`
}

// RosterPayload lists every player slot and the game status
type RosterPayload struct {
	Status  GameStatus    `json:"status"`
	Players []RosterEntry `json:"players"`
}

// IdentityPayload is sent when a connection gains or loses a player identity
type IdentityPayload struct {
	PlayerID     PlayerID     `json:"player_id"`
	Name         string       `json:"name"`
	Status       PlayerStatus `json:"status"`
	SessionToken string       `json:"session_token,omitempty"`
}

// SessionInvalidatedPayload tells a superseded connection it lost its identity
type SessionInvalidatedPayload struct {
	PlayerID PlayerID `json:"player_id"`
	Reason   string   `json:"reason"`
}

// AssignmentPayload reveals a player's current target and task
type AssignmentPayload struct {
	TargetID   PlayerID `json:"target_id,omitempty"`
	TargetName string   `json:"target_name,omitempty"`
	Task       string   `json:"task,omitempty"`
}

// KillChallengePayload asks a target to confirm they were eliminated
type KillChallengePayload struct {
	KillerID   PlayerID `json:"killer_id"`
	KillerName string   `json:"killer_name"`
	Task       string   `json:"task"`
}

// KillDeniedPayload tells a killer the target denied the kill
type KillDeniedPayload struct {
	VictimID   PlayerID `json:"victim_id"`
	VictimName string   `json:"victim_name"`
}

// EliminatedPayload tells a victim who eliminated them
type EliminatedPayload struct {
	KillerName string `json:"killer_name"`
	Task       string `json:"task"`
}

// PlayerEliminatedPayload announces an elimination to the room
type PlayerEliminatedPayload struct {
	VictimID   PlayerID `json:"victim_id"`
	VictimName string   `json:"victim_name"`
	AliveCount int      `json:"alive_count"`
}

// GameStatePayload announces a lifecycle transition
type GameStatePayload struct {
	Status GameStatus `json:"status"`
}

// GameOverPayload announces the winner
type GameOverPayload struct {
	WinnerID   PlayerID `json:"winner_id,omitempty"`
	WinnerName string   `json:"winner_name,omitempty"`
}

// ErrorPayload reports a rejected operation to the requester
type ErrorPayload struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Request string    `json:"request,omitempty"`
}
