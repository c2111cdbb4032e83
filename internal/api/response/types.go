package response

import (
	"time"

	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/services/game"
)

// CreateGameResponse is returned once to the game creator
type CreateGameResponse struct {
	Code         string   `json:"code"`
	CreatorToken string   `json:"creator_token"`
	JoinURL      string   `json:"join_url"`
	Players      []string `json:"players"`
	TaskCount    int      `json:"task_count"`
}

// CreateGameResponseFromModel converts a created game
func CreateGameResponseFromModel(c *game.Created, joinURL string) CreateGameResponse {
	names := make([]string, len(c.Players))
	for i, p := range c.Players {
		names[i] = p.Name
	}
	return CreateGameResponse{
		Code:         string(c.Game.Code),
		CreatorToken: c.Game.CreatorToken,
		JoinURL:      joinURL,
		Players:      names,
		TaskCount:    len(c.Game.Tasks),
	}
}

// Player is one player slot as shown publicly
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// GameState is the public view of a game
type GameState struct {
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Players   []Player  `json:"players"`
	Alive     int       `json:"alive"`
}

// GameStateFromModel builds the public view from a game and its roster
func GameStateFromModel(g *model.Game, roster model.RosterPayload) GameState {
	state := GameState{
		Code:      string(g.Code),
		Status:    string(g.Status),
		CreatedAt: g.CreatedAt,
		Players:   make([]Player, len(roster.Players)),
	}
	for i, p := range roster.Players {
		state.Players[i] = Player{ID: string(p.ID), Name: p.Name, Status: string(p.Status)}
		if p.Status == model.PlayerStatusAlive {
			state.Alive++
		}
	}
	return state
}

// AssignmentEntry is one row of the creator's assignment listing
type AssignmentEntry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Target string `json:"target,omitempty"`
	Task   string `json:"task,omitempty"`
}

// AssignmentOverview is the creator-only listing of every assignment
type AssignmentOverview struct {
	Code        string            `json:"code"`
	Status      string            `json:"status"`
	SingleCycle bool              `json:"single_cycle"`
	Entries     []AssignmentEntry `json:"entries"`
}

// AssignmentOverviewFromModel converts a game overview
func AssignmentOverviewFromModel(o *game.Overview) AssignmentOverview {
	resp := AssignmentOverview{
		Code:        string(o.Code),
		Status:      string(o.Status),
		SingleCycle: o.SingleCycle,
		Entries:     make([]AssignmentEntry, len(o.Entries)),
	}
	for i, e := range o.Entries {
		resp.Entries[i] = AssignmentEntry{
			Name:   e.Name,
			Status: string(e.Status),
			Target: e.TargetName,
			Task:   e.Task,
		}
	}
	return resp
}

// Health is the health check body
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
	Rooms   int    `json:"rooms"`
}
