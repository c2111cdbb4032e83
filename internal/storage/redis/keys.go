package redis

import (
	"fmt"

	"github.com/nicpaesk/killer-game/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "killer"

// gameKey returns the Redis key for a Game (JSON string)
func gameKey(code model.GameCode) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, code)
}

// playersKey returns the Redis key for the HASH of player ID -> Player JSON
func playersKey(code model.GameCode) string {
	return fmt.Sprintf("%s:players:%s", keyPrefix, code)
}

// killsKey returns the Redis key for the append-only LIST of kill records
func killsKey(code model.GameCode) string {
	return fmt.Sprintf("%s:kills:%s", keyPrefix, code)
}

// sessionKey returns the Redis key for the session token -> player index
func sessionKey(token string) string {
	return fmt.Sprintf("%s:idx:session:%s", keyPrefix, token)
}
