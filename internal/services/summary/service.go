package summary

import (
	"context"
	"sort"
	"time"

	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/storage"
)

// Kill is one kill history entry with display names resolved
type Kill struct {
	KillerName string    `json:"killer_name"`
	VictimName string    `json:"victim_name"`
	Task       string    `json:"task"`
	Timestamp  time.Time `json:"timestamp"`
	IsMine     bool      `json:"is_mine"`
}

// KillCount is the number of kills a player made
type KillCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary is the derived end-of-game (or in-progress) report
type Summary struct {
	Code       model.GameCode   `json:"code"`
	Status     model.GameStatus `json:"status"`
	Winner     string           `json:"winner,omitempty"`
	Kills      []Kill           `json:"kills"`
	KillCounts []KillCount      `json:"kill_counts"`
	You        string           `json:"you,omitempty"`
}

// Service derives game summaries from persisted state
type Service struct {
	storage storage.Storage
}

// New creates a new summary Service
func New(storage storage.Storage) *Service {
	return &Service{storage: storage}
}

// Summary builds the report for a game. token is optional; when it is
// bound to a player in this game, that player's kills are marked. Until the
// game finishes, only kills the requester took part in are listed and kill
// counts are withheld, since they would reveal who is hunting whom.
func (s *Service) Summary(ctx context.Context, code model.GameCode, token string) (*Summary, error) {
	code = code.Normalize()
	if err := model.ValidateGameCode(code); err != nil {
		return nil, err
	}
	snap, err := s.storage.LoadSnapshot(ctx, code)
	if err != nil {
		return nil, err
	}
	kills, err := s.storage.ListKills(ctx, code)
	if err != nil {
		return nil, err
	}
	return Build(snap, kills, token), nil
}

// Build derives a summary from a snapshot and its kill history
func Build(snap *model.Snapshot, kills []model.KillRecord, token string) *Summary {
	sum := &Summary{
		Code:   snap.Game.Code,
		Status: snap.Game.Status,
		Kills:  make([]Kill, 0, len(kills)),
	}

	var me model.PlayerID
	if p := snap.PlayerBySession(token); p != nil {
		me = p.ID
		sum.You = p.Name
	}

	if alive := snap.Alive(); len(alive) == 1 {
		sum.Winner = alive[0].Name
	}

	sorted := append([]model.KillRecord(nil), kills...)
	model.SortKills(sorted)

	counts := make(map[model.PlayerID]int)
	for _, p := range snap.Players {
		if p.Status != model.PlayerStatusNotJoined {
			counts[p.ID] = 0
		}
	}
	finished := snap.Game.Status == model.GameStatusFinished
	for _, k := range sorted {
		counts[k.KillerID]++
		if !finished && (me == "" || (k.KillerID != me && k.VictimID != me)) {
			continue
		}
		sum.Kills = append(sum.Kills, Kill{
			KillerName: name(snap, k.KillerID),
			VictimName: name(snap, k.VictimID),
			Task:       k.Task,
			Timestamp:  k.Timestamp,
			IsMine:     me != "" && k.KillerID == me,
		})
	}

	sum.KillCounts = make([]KillCount, 0, len(counts))
	if !finished {
		return sum
	}
	for id, n := range counts {
		sum.KillCounts = append(sum.KillCounts, KillCount{Name: name(snap, id), Count: n})
	}
	SortKillCounts(sum.KillCounts)
	return sum
}

// SortKillCounts orders by count descending, then name ascending
func SortKillCounts(counts []KillCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})
}

func name(snap *model.Snapshot, id model.PlayerID) string {
	if p := snap.Player(id); p != nil {
		return p.Name
	}
	return string(id)
}
