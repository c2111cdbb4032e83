package model

import "sort"

// Snapshot is the full mutable state of one game as loaded inside an
// atomic storage update. Storage commits Game, every Player and any
// appended Kills together, or nothing.
type Snapshot struct {
	Game    *Game
	Players []*Player    // Sorted by name
	Kills   []KillRecord // Records appended during this update only
}

// NewSnapshot builds a snapshot with players ordered by name
func NewSnapshot(game *Game, players []*Player) *Snapshot {
	SortPlayers(players)
	return &Snapshot{Game: game, Players: players}
}

// Player returns the player with the given ID, or nil
func (s *Snapshot) Player(id PlayerID) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerByName returns the player with the given display name, or nil
func (s *Snapshot) PlayerByName(name string) *Player {
	for _, p := range s.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// PlayerBySession returns the player currently bound to token, or nil
func (s *Snapshot) PlayerBySession(token string) *Player {
	if token == "" {
		return nil
	}
	for _, p := range s.Players {
		if p.SessionToken == token {
			return p
		}
	}
	return nil
}

// Alive returns all alive players in name order
func (s *Snapshot) Alive() []*Player {
	var alive []*Player
	for _, p := range s.Players {
		if p.IsAlive() {
			alive = append(alive, p)
		}
	}
	return alive
}

// AppendKill records a kill to be committed with this update
func (s *Snapshot) AppendKill(k KillRecord) {
	s.Kills = append(s.Kills, k)
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{Game: s.Game.Clone()}
	c.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		c.Players[i] = p.Clone()
	}
	c.Kills = append([]KillRecord(nil), s.Kills...)
	return c
}

// SortPlayers orders players by name, then ID
func SortPlayers(players []*Player) {
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Name != players[j].Name {
			return players[i].Name < players[j].Name
		}
		return players[i].ID < players[j].ID
	})
}

// SortKills orders kill records by timestamp ascending, then ID. IDs are
// time-ordered so equal timestamps keep insertion order.
func SortKills(kills []KillRecord) {
	sort.SliceStable(kills, func(i, j int) bool {
		if !kills[i].Timestamp.Equal(kills[j].Timestamp) {
			return kills[i].Timestamp.Before(kills[j].Timestamp)
		}
		return kills[i].ID < kills[j].ID
	})
}
