package realtime

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nicpaesk/killer-game/internal/dependencies/clock"
	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/results"
	"github.com/nicpaesk/killer-game/internal/services/game"
	"github.com/nicpaesk/killer-game/internal/services/identity"
	"github.com/nicpaesk/killer-game/internal/services/summary"
)

// Dispatcher runs inbound requests against the services and turns their
// results into outbound events. It is the only place events are emitted.
type Dispatcher struct {
	registry  *Registry
	games     *game.Controller
	identity  identity.ServiceInterface
	summary   *summary.Service
	publisher results.Publisher
	clock     clock.Clock
	logger    *slog.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(
	registry *Registry,
	games *game.Controller,
	identity identity.ServiceInterface,
	summary *summary.Service,
	publisher results.Publisher,
	clock clock.Clock,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		games:     games,
		identity:  identity,
		summary:   summary,
		publisher: publisher,
		clock:     clock,
		logger:    logger.With(slog.String("component", "dispatcher")),
	}
}

// HandleMessage decodes and handles one raw inbound message
func (d *Dispatcher) HandleMessage(ctx context.Context, c *Client, data []byte) {
	typ, req, err := DecodeRequest(data)
	if err != nil {
		d.sendError(c, typ, err)
		return
	}
	d.Handle(ctx, c, req)
}

// Handle runs one request. Any failure becomes a single error event sent
// to the requesting connection only.
func (d *Dispatcher) Handle(ctx context.Context, c *Client, req Request) {
	var err error
	switch r := req.(type) {
	case *JoinRoomRequest:
		err = d.joinRoom(ctx, c, r)
	case *ClaimIdentityRequest:
		err = d.claimIdentity(ctx, c, r)
	case *ReclaimIdentityRequest:
		err = d.reclaimIdentity(ctx, c, r)
	case *CancelIdentityRequest:
		err = d.cancelIdentity(ctx, c, r)
	case *StartGameRequest:
		err = d.startGame(ctx, c, r)
	case *ClaimKillRequest:
		err = d.claimKill(ctx, c, r)
	case *ResolveKillRequest:
		err = d.resolveKill(ctx, c, r)
	default:
		err = model.ErrInvalidRequest
	}
	if err != nil {
		d.sendError(c, req.Type(), err)
	}
}

func (d *Dispatcher) joinRoom(ctx context.Context, c *Client, r *JoinRoomRequest) error {
	roster, err := d.games.Roster(ctx, r.GameCode)
	if err != nil {
		return err
	}
	d.registry.Join(c, r.GameCode)
	d.registry.Send(c, d.event(model.EventRoster, r.GameCode, roster))
	return nil
}

func (d *Dispatcher) claimIdentity(ctx context.Context, c *Client, r *ClaimIdentityRequest) error {
	session, err := d.identity.Claim(ctx, r.GameCode, r.Name, r.PIN)
	if err != nil {
		return err
	}
	d.registry.Join(c, r.GameCode)
	d.registry.Bind(c, r.GameCode, session.Player.ID, session.Token)
	d.registry.Send(c, d.event(model.EventIdentityConfirmed, r.GameCode, identityPayload(session.Player, session.Token)))
	d.broadcastRoster(ctx, r.GameCode)
	return nil
}

func (d *Dispatcher) reclaimIdentity(ctx context.Context, c *Client, r *ReclaimIdentityRequest) error {
	reclaimed, err := d.identity.Reclaim(ctx, r.GameCode, r.Name, r.PIN)
	if err != nil {
		return err
	}
	player := reclaimed.Player

	if reclaimed.PreviousToken != "" {
		if old := d.registry.ReleaseSession(reclaimed.PreviousToken); old != nil && old != c {
			d.registry.Send(old, d.event(model.EventSessionInvalidated, r.GameCode, model.SessionInvalidatedPayload{
				PlayerID: player.ID,
				Reason:   "this player was reclaimed on another connection",
			}))
		}
	}

	d.registry.Join(c, r.GameCode)
	d.registry.Bind(c, r.GameCode, player.ID, reclaimed.Token)
	d.registry.Send(c, d.event(model.EventIdentityReclaimed, r.GameCode, identityPayload(player, reclaimed.Token)))

	// Resynchronize private state after a reconnect
	if reclaimed.Status != model.GameStatusLobby && player.IsAlive() {
		if a, err := d.games.Assignment(ctx, r.GameCode, reclaimed.Token); err == nil {
			d.registry.Send(c, d.event(model.EventAssignment, r.GameCode, assignmentPayload(a)))
		}
	}
	d.broadcastRoster(ctx, r.GameCode)
	return nil
}

func (d *Dispatcher) cancelIdentity(ctx context.Context, c *Client, r *CancelIdentityRequest) error {
	player, err := d.identity.Cancel(ctx, r.GameCode, r.SessionToken)
	if err != nil {
		return err
	}
	d.registry.ReleaseSession(r.SessionToken)
	d.registry.Send(c, d.event(model.EventIdentityCanceled, r.GameCode, identityPayload(player, "")))
	d.broadcastRoster(ctx, r.GameCode)
	return nil
}

func (d *Dispatcher) startGame(ctx context.Context, c *Client, r *StartGameRequest) error {
	started, err := d.games.StartGame(ctx, r.GameCode, r.CreatorToken)
	if err != nil {
		return err
	}
	code := started.Game.Code
	d.registry.Join(c, code)
	d.registry.Broadcast(code, d.event(model.EventGameState, code, model.GameStatePayload{Status: started.Game.Status}))
	d.registry.Broadcast(code, d.event(model.EventRoster, code, game.NewRoster(model.NewSnapshot(started.Game, started.Players))))

	byID := make(map[model.PlayerID]*model.Player, len(started.Players))
	for _, p := range started.Players {
		byID[p.ID] = p
	}
	for _, p := range started.Players {
		if !p.IsAlive() {
			continue
		}
		a := &game.Assignment{Player: p, Target: byID[p.TargetID], Task: p.Task}
		d.registry.SendToPlayer(p.ID, d.event(model.EventAssignment, code, assignmentPayload(a)))
	}
	return nil
}

func (d *Dispatcher) claimKill(ctx context.Context, c *Client, r *ClaimKillRequest) error {
	challenge, err := d.games.ClaimKill(ctx, r.GameCode, r.SessionToken)
	if err != nil {
		return err
	}
	d.registry.SendToPlayer(challenge.Victim.ID, d.event(model.EventKillChallenge, challenge.GameCode, model.KillChallengePayload{
		KillerID:   challenge.Killer.ID,
		KillerName: challenge.Killer.Name,
		Task:       challenge.Task,
	}))
	return nil
}

func (d *Dispatcher) resolveKill(ctx context.Context, c *Client, r *ResolveKillRequest) error {
	res, err := d.games.ResolveKill(ctx, r.SessionToken, r.KillerID, r.Confirmed)
	if err != nil {
		return err
	}
	code := res.GameCode

	if !res.Confirmed {
		d.registry.SendToPlayer(res.Killer.ID, d.event(model.EventKillDenied, code, model.KillDeniedPayload{
			VictimID:   res.Victim.ID,
			VictimName: res.Victim.Name,
		}))
		return nil
	}

	d.registry.SendToPlayer(res.Victim.ID, d.event(model.EventEliminated, code, model.EliminatedPayload{
		KillerName: res.Killer.Name,
		Task:       res.Kill.Task,
	}))
	d.registry.SendToPlayer(res.Killer.ID, d.event(model.EventNewTarget, code, assignmentPayload(&game.Assignment{
		Player: res.Killer,
		Target: res.NewTarget,
		Task:   res.Killer.Task,
	})))
	d.registry.Broadcast(code, d.event(model.EventPlayerEliminated, code, model.PlayerEliminatedPayload{
		VictimID:   res.Victim.ID,
		VictimName: res.Victim.Name,
		AliveCount: res.AliveCount,
	}))
	d.registry.Broadcast(code, d.event(model.EventRoster, code, res.Roster))

	if res.Winner != nil {
		d.registry.Broadcast(code, d.event(model.EventGameState, code, model.GameStatePayload{Status: model.GameStatusFinished}))
		d.registry.Broadcast(code, d.event(model.EventGameOver, code, model.GameOverPayload{
			WinnerID:   res.Winner.ID,
			WinnerName: res.Winner.Name,
		}))
		d.publishResult(ctx, code)
	}
	return nil
}

func (d *Dispatcher) publishResult(ctx context.Context, code model.GameCode) {
	sum, err := d.summary.Summary(ctx, code, "")
	if err == nil {
		err = d.publisher.Publish(ctx, sum)
	}
	if err != nil {
		d.logger.Error("failed to publish game result",
			slog.String("game_code", string(code)),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) broadcastRoster(ctx context.Context, code model.GameCode) {
	roster, err := d.games.Roster(ctx, code)
	if err != nil {
		d.logger.Error("failed to load roster",
			slog.String("game_code", string(code)),
			slog.String("error", err.Error()),
		)
		return
	}
	d.registry.Broadcast(code, d.event(model.EventRoster, code, roster))
}

// sendError reports a rejected request to the requester only. Unexpected
// errors are logged and replaced with a generic message.
func (d *Dispatcher) sendError(c *Client, typ RequestType, err error) {
	kind := model.KindOf(err)
	var message string

	var domainErr *model.Error
	if !errors.As(err, &domainErr) {
		d.logger.Error("request failed",
			slog.String("client_id", c.id),
			slog.String("request", string(typ)),
			slog.String("error", err.Error()),
		)
		message = "something went wrong, please try again"
	} else {
		message = domainErr.Message
		d.logger.Debug("request rejected",
			slog.String("client_id", c.id),
			slog.String("request", string(typ)),
			slog.String("kind", string(kind)),
		)
	}

	d.registry.Send(c, d.event(model.EventError, "", model.ErrorPayload{
		Kind:    kind,
		Message: message,
		Request: string(typ),
	}))
}

func (d *Dispatcher) event(typ model.EventType, code model.GameCode, payload any) model.Event {
	return model.Event{Type: typ, GameCode: code, Timestamp: d.clock.Now(), Payload: payload}
}

func identityPayload(p *model.Player, token string) model.IdentityPayload {
	return model.IdentityPayload{PlayerID: p.ID, Name: p.Name, Status: p.Status, SessionToken: token}
}

func assignmentPayload(a *game.Assignment) model.AssignmentPayload {
	payload := model.AssignmentPayload{Task: a.Task}
	if a.Target != nil {
		payload.TargetID = a.Target.ID
		payload.TargetName = a.Target.Name
	} else {
		payload.Task = ""
	}
	return payload
}
