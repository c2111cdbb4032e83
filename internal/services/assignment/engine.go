// Package assignment builds and maintains the single elimination cycle.
package assignment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nicpaesk/killer-game/internal/dependencies/random"
	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/services/tasks"
)

// ErrBrokenCycle is returned by VerifyCycle when the alive players do not
// form exactly one target cycle
var ErrBrokenCycle = errors.New("targets do not form a single cycle")

// Cycle is a player ordering where each player targets the next one,
// and the last player targets the first
type Cycle []model.PlayerID

// Target returns the target of the player at position i
func (c Cycle) Target(i int) model.PlayerID {
	return c[(i+1)%len(c)]
}

// Elimination describes a resolved kill
type Elimination struct {
	Kill   model.KillRecord
	Killer *model.Player
	Victim *model.Player
	// Won is true when the killer is the last alive player
	Won bool
}

// Engine computes assignments. All randomness comes from the injected source.
type Engine struct {
	random random.Random
}

// New creates a new assignment Engine
func New(random random.Random) *Engine {
	return &Engine{random: random}
}

// BuildCycle orders ids uniformly at random into one cycle
func (e *Engine) BuildCycle(ids []model.PlayerID) (Cycle, error) {
	if len(ids) < 2 {
		return nil, model.ErrInsufficientPlayers
	}
	cycle := make(Cycle, len(ids))
	for i, p := range random.Perm(e.random, len(ids)) {
		cycle[i] = ids[p]
	}
	return cycle, nil
}

// AssignTasks picks n tasks from pool, falling back to the default pool
// when it is empty. Tasks only repeat once every distinct task is used.
func (e *Engine) AssignTasks(pool []string, n int) []string {
	if n <= 0 {
		return nil
	}
	pool = distinct(pool)
	if len(pool) == 0 {
		pool = tasks.Default()
	}

	out := make([]string, 0, n)
	if len(pool) >= n {
		for _, i := range random.Perm(e.random, len(pool))[:n] {
			out = append(out, pool[i])
		}
		return out
	}

	out = append(out, pool...)
	for len(out) < n {
		out = append(out, pool[e.random.Intn(len(pool))])
	}
	random.Shuffle(e.random, len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Start assigns a target and task to every alive player in the snapshot.
// Players who never joined are left unassigned.
func (e *Engine) Start(snap *model.Snapshot) (Cycle, error) {
	alive := snap.Alive()
	ids := make([]model.PlayerID, len(alive))
	for i, p := range alive {
		ids[i] = p.ID
	}

	cycle, err := e.BuildCycle(ids)
	if err != nil {
		return nil, err
	}
	assigned := e.AssignTasks(snap.Game.Tasks, len(cycle))

	for i, id := range cycle {
		p := snap.Player(id)
		p.TargetID = cycle.Target(i)
		p.Task = assigned[i]
	}
	return cycle, nil
}

// CheckKill verifies that killerID may eliminate victimID right now
func CheckKill(snap *model.Snapshot, killerID, victimID model.PlayerID) (killer, victim *model.Player, err error) {
	switch snap.Game.Status {
	case model.GameStatusActive:
	case model.GameStatusFinished:
		return nil, nil, model.ErrGameFinished
	default:
		return nil, nil, model.ErrGameNotActive
	}

	killer = snap.Player(killerID)
	if killer == nil {
		return nil, nil, model.ErrKillerNotFound
	}
	victim = snap.Player(victimID)
	if victim == nil {
		return nil, nil, model.ErrPlayerNotFound
	}
	if !killer.IsAlive() {
		return nil, nil, model.ErrPlayerNotAlive
	}
	if !victim.IsAlive() {
		return nil, nil, model.ErrVictimNotAlive
	}
	if killer.TargetID != victim.ID {
		return nil, nil, model.ErrTargetMismatch
	}
	return killer, victim, nil
}

// Eliminate removes victimID from the cycle on behalf of killerID. The
// killer takes over the victim's target and task, and one kill record is
// appended. The game finishes when a single player is left alive.
func (e *Engine) Eliminate(snap *model.Snapshot, killerID, victimID model.PlayerID, now time.Time) (*Elimination, error) {
	killer, victim, err := CheckKill(snap, killerID, victimID)
	if err != nil {
		return nil, err
	}

	// Version 7 IDs are monotonic, so kills in the same clock tick keep
	// their insertion order when sorted
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating kill id: %w", err)
	}
	kill := model.KillRecord{
		ID:        model.KillID(id.String()),
		GameCode:  snap.Game.Code,
		KillerID:  killer.ID,
		VictimID:  victim.ID,
		Task:      killer.Task,
		Timestamp: now,
	}

	victim.Status = model.PlayerStatusEliminated
	if victim.TargetID == killer.ID {
		killer.TargetID = ""
	} else {
		killer.TargetID = victim.TargetID
	}
	killer.Task = victim.Task
	victim.TargetID = ""
	victim.Task = ""
	snap.AppendKill(kill)

	won := len(snap.Alive()) == 1
	if won {
		killer.TargetID = ""
		snap.Game.Status = model.GameStatusFinished
	}
	snap.Game.UpdatedAt = now

	return &Elimination{Kill: kill, Killer: killer, Victim: victim, Won: won}, nil
}

// VerifyCycle checks that the alive players form exactly one target cycle.
// A lone survivor must have no target.
func VerifyCycle(players []*model.Player) error {
	alive := make(map[model.PlayerID]*model.Player)
	var start *model.Player
	for _, p := range players {
		if p.IsAlive() {
			alive[p.ID] = p
			if start == nil {
				start = p
			}
		}
	}

	switch len(alive) {
	case 0:
		return nil
	case 1:
		if start.TargetID != "" {
			return ErrBrokenCycle
		}
		return nil
	}

	seen := make(map[model.PlayerID]struct{}, len(alive))
	cur := start
	for range alive {
		if _, ok := seen[cur.ID]; ok {
			return ErrBrokenCycle
		}
		seen[cur.ID] = struct{}{}
		next, ok := alive[cur.TargetID]
		if !ok {
			return ErrBrokenCycle
		}
		cur = next
	}
	if cur.ID != start.ID {
		return ErrBrokenCycle
	}
	return nil
}

func distinct(pool []string) []string {
	seen := make(map[string]struct{}, len(pool))
	out := make([]string, 0, len(pool))
	for _, t := range pool {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
