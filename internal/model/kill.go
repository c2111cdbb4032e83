package model

import "time"

// KillID identifies a kill record
type KillID string

// KillRecord is an immutable log entry of one elimination
type KillRecord struct {
	ID        KillID
	GameCode  GameCode
	KillerID  PlayerID
	VictimID  PlayerID
	Task      string // Task the killer held when the kill was confirmed
	Timestamp time.Time
}
