package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/nicpaesk/killer-game/internal/dependencies/mocks"
	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/services/assignment"
	"github.com/nicpaesk/killer-game/internal/services/game"
	"github.com/nicpaesk/killer-game/internal/services/identity"
	"github.com/nicpaesk/killer-game/internal/services/summary"
	"github.com/nicpaesk/killer-game/internal/storage/memory"
	"github.com/nicpaesk/killer-game/internal/testutil"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []*summary.Summary
}

func (p *recordingPublisher) Publish(ctx context.Context, sum *summary.Summary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, sum)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type received struct {
	Type     model.EventType `json:"type"`
	GameCode model.GameCode  `json:"game_code"`
	Payload  json.RawMessage `json:"payload"`
}

type DispatcherSuite struct {
	suite.Suite
	storage    *memory.Storage
	random     *mocks.MockRandom
	registry   *Registry
	games      *game.Controller
	publisher  *recordingPublisher
	dispatcher *Dispatcher
	ctx        context.Context
	creator    string
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	logger := testutil.NopLogger()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	clk.Step = time.Second
	s.storage = memory.New()
	s.random = mocks.NewMockRandom()
	s.registry = NewRegistry(logger)
	s.games = game.NewController(s.storage, assignment.New(s.random), clk, s.random, logger, game.DefaultConfig())
	ids := identity.New(s.storage, clk, logger, identity.Config{BcryptCost: bcrypt.MinCost})
	s.publisher = &recordingPublisher{}
	s.dispatcher = NewDispatcher(s.registry, s.games, ids, summary.New(s.storage), s.publisher, clk, logger)
	s.ctx = context.Background()
}

func (s *DispatcherSuite) createGame(names ...string) {
	s.random.QueueString("ABC234")
	created, err := s.games.CreateGame(s.ctx, names, []string{"say banana"})
	s.Require().NoError(err)
	s.creator = created.Game.CreatorToken
}

func (s *DispatcherSuite) send(c *Client, req Request) {
	s.Require().NoError(req.Validate())
	s.dispatcher.Handle(s.ctx, c, req)
}

func (s *DispatcherSuite) drain(c *Client) []received {
	var out []received
	for {
		select {
		case data := <-c.Messages():
			var r received
			s.Require().NoError(json.Unmarshal(data, &r))
			out = append(out, r)
		default:
			return out
		}
	}
}

func types(msgs []received) []model.EventType {
	out := make([]model.EventType, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func (s *DispatcherSuite) find(msgs []received, typ model.EventType, into any) {
	for _, m := range msgs {
		if m.Type == typ {
			s.Require().NoError(json.Unmarshal(m.Payload, into))
			return
		}
	}
	s.Failf("event not received", "%s not in %v", typ, types(msgs))
}

// claim binds a new client to name and returns it with its session token
func (s *DispatcherSuite) claim(name string) (*Client, string) {
	c := NewClient(32)
	s.send(c, &ClaimIdentityRequest{GameCode: "ABC234", Name: name, PIN: "1234"})
	var identity model.IdentityPayload
	s.find(s.drain(c), model.EventIdentityConfirmed, &identity)
	return c, identity.SessionToken
}

func (s *DispatcherSuite) TestJoinRoomSendsRoster() {
	s.createGame("Alice", "Bob")
	c := NewClient(8)

	s.send(c, &JoinRoomRequest{GameCode: "abc234"})

	msgs := s.drain(c)
	s.Equal([]model.EventType{model.EventRoster}, types(msgs))
	var roster model.RosterPayload
	s.find(msgs, model.EventRoster, &roster)
	s.Equal(model.GameStatusLobby, roster.Status)
	s.Len(roster.Players, 2)
	s.True(s.registry.InRoom(c, "ABC234"))
}

func (s *DispatcherSuite) TestJoinUnknownRoomIsError() {
	c := NewClient(8)
	s.send(c, &JoinRoomRequest{GameCode: "XYZ789"})

	msgs := s.drain(c)
	var payload model.ErrorPayload
	s.find(msgs, model.EventError, &payload)
	s.Equal(model.KindNotFound, payload.Kind)
	s.Equal(string(RequestJoinRoom), payload.Request)
	s.False(s.registry.InRoom(c, "XYZ789"))
}

func (s *DispatcherSuite) TestClaimBroadcastsRoster() {
	s.createGame("Alice", "Bob")
	watcher := NewClient(8)
	s.send(watcher, &JoinRoomRequest{GameCode: "ABC234"})
	s.drain(watcher)

	c := NewClient(8)
	s.send(c, &ClaimIdentityRequest{GameCode: "ABC234", Name: "Alice", PIN: "1234"})

	s.Equal([]model.EventType{model.EventIdentityConfirmed, model.EventRoster}, types(s.drain(c)))
	msgs := s.drain(watcher)
	s.Equal([]model.EventType{model.EventRoster}, types(msgs))
	var roster model.RosterPayload
	s.find(msgs, model.EventRoster, &roster)
	s.Equal(model.PlayerStatusAlive, roster.Players[0].Status)
}

func (s *DispatcherSuite) TestErrorsGoToRequesterOnly() {
	s.createGame("Alice", "Bob")
	watcher := NewClient(8)
	s.send(watcher, &JoinRoomRequest{GameCode: "ABC234"})
	s.drain(watcher)
	s.claim("Alice")
	s.drain(watcher)

	c := NewClient(8)
	s.send(c, &ClaimIdentityRequest{GameCode: "ABC234", Name: "Alice", PIN: "9999"})

	var payload model.ErrorPayload
	s.find(s.drain(c), model.EventError, &payload)
	s.Equal(model.KindConflict, payload.Kind)
	s.Equal(model.ErrPlayerUnavailable.Message, payload.Message)
	s.Empty(s.drain(watcher))
}

func (s *DispatcherSuite) TestFullGame() {
	s.createGame("Alice", "Bob")
	alice, aliceToken := s.claim("Alice")
	bob, bobToken := s.claim("Bob")
	watcher := NewClient(32)
	s.send(watcher, &JoinRoomRequest{GameCode: "ABC234"})
	s.drain(alice)
	s.drain(bob)
	s.drain(watcher)

	// Start
	creator := NewClient(32)
	s.send(creator, &StartGameRequest{GameCode: "ABC234", CreatorToken: s.creator})
	s.Equal([]model.EventType{model.EventGameState, model.EventRoster}, types(s.drain(watcher)))

	aliceMsgs := s.drain(alice)
	s.Equal([]model.EventType{model.EventGameState, model.EventRoster, model.EventAssignment}, types(aliceMsgs))
	var assignment model.AssignmentPayload
	s.find(aliceMsgs, model.EventAssignment, &assignment)
	s.Equal("Bob", assignment.TargetName)
	s.Equal("say banana", assignment.Task)
	s.drain(bob)

	// Alice claims the kill, only Bob is challenged
	s.send(alice, &ClaimKillRequest{GameCode: "ABC234", SessionToken: aliceToken})
	s.Empty(s.drain(alice))
	s.Empty(s.drain(watcher))
	var challenge model.KillChallengePayload
	s.find(s.drain(bob), model.EventKillChallenge, &challenge)
	s.Equal("Alice", challenge.KillerName)

	// Bob denies
	s.send(bob, &ResolveKillRequest{SessionToken: bobToken, KillerID: challenge.KillerID, Confirmed: false})
	var denied model.KillDeniedPayload
	s.find(s.drain(alice), model.EventKillDenied, &denied)
	s.Equal("Bob", denied.VictimName)
	s.Empty(s.drain(watcher))

	// Bob confirms
	s.send(bob, &ResolveKillRequest{SessionToken: bobToken, KillerID: challenge.KillerID, Confirmed: true})

	bobMsgs := s.drain(bob)
	var eliminated model.EliminatedPayload
	s.find(bobMsgs, model.EventEliminated, &eliminated)
	s.Equal("Alice", eliminated.KillerName)

	aliceMsgs = s.drain(alice)
	var newTarget model.AssignmentPayload
	s.find(aliceMsgs, model.EventNewTarget, &newTarget)
	s.Empty(newTarget.TargetID)

	watcherMsgs := s.drain(watcher)
	s.Equal([]model.EventType{
		model.EventPlayerEliminated,
		model.EventRoster,
		model.EventGameState,
		model.EventGameOver,
	}, types(watcherMsgs))
	var over model.GameOverPayload
	s.find(watcherMsgs, model.EventGameOver, &over)
	s.Equal("Alice", over.WinnerName)

	s.Require().Len(s.publisher.published, 1)
	s.Equal("Alice", s.publisher.published[0].Winner)
}

func (s *DispatcherSuite) TestStartByNonCreatorFails() {
	s.createGame("Alice", "Bob")
	alice, _ := s.claim("Alice")
	s.claim("Bob")
	s.drain(alice)

	s.send(alice, &StartGameRequest{GameCode: "ABC234", CreatorToken: "c_wrong"})

	var payload model.ErrorPayload
	s.find(s.drain(alice), model.EventError, &payload)
	s.Equal(model.KindUnauthorized, payload.Kind)
}

func (s *DispatcherSuite) TestReclaimInvalidatesOldConnection() {
	s.createGame("Alice", "Bob")
	old, oldToken := s.claim("Alice")
	s.drain(old)

	c := NewClient(32)
	s.send(c, &ReclaimIdentityRequest{GameCode: "ABC234", Name: "Alice", PIN: "1234"})

	var identity model.IdentityPayload
	s.find(s.drain(c), model.EventIdentityReclaimed, &identity)
	s.NotEqual(oldToken, identity.SessionToken)

	var invalidated model.SessionInvalidatedPayload
	s.find(s.drain(old), model.EventSessionInvalidated, &invalidated)
	s.Equal(identity.PlayerID, invalidated.PlayerID)

	s.Equal(c, s.registry.ClientForPlayer(identity.PlayerID))
	s.Nil(s.registry.ClientForSession(oldToken))
}

func (s *DispatcherSuite) TestReclaimReleasesOtherIdentityOnConnection() {
	s.createGame("Alice", "Bob")
	bob, _ := s.claim("Bob")
	_, aliceToken := s.claim("Alice")

	// Bob's connection reclaims Alice
	s.send(bob, &ReclaimIdentityRequest{GameCode: "ABC234", Name: "Alice", PIN: "1234"})
	s.drain(bob)

	playerID, _, ok := s.registry.Identity(bob, "ABC234")
	s.True(ok)
	snap, err := s.storage.LoadSnapshot(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(snap.PlayerByName("Alice").ID, playerID)
	s.Nil(s.registry.ClientForPlayer(snap.PlayerByName("Bob").ID))
	s.Nil(s.registry.ClientForSession(aliceToken))
}

func (s *DispatcherSuite) TestReclaimDuringGameResendsAssignment() {
	s.createGame("Alice", "Bob")
	s.claim("Alice")
	s.claim("Bob")
	s.send(NewClient(32), &StartGameRequest{GameCode: "ABC234", CreatorToken: s.creator})

	c := NewClient(32)
	s.send(c, &ReclaimIdentityRequest{GameCode: "ABC234", Name: "Alice", PIN: "1234"})

	msgs := s.drain(c)
	var assignment model.AssignmentPayload
	s.find(msgs, model.EventAssignment, &assignment)
	s.Equal("Bob", assignment.TargetName)
}

func (s *DispatcherSuite) TestReclaimWrongPINFailsUniformly() {
	s.createGame("Alice", "Bob")
	s.claim("Alice")

	for _, name := range []string{"Alice", "Bob", "Nobody"} {
		c := NewClient(8)
		s.send(c, &ReclaimIdentityRequest{GameCode: "ABC234", Name: name, PIN: "0000"})
		var payload model.ErrorPayload
		s.find(s.drain(c), model.EventError, &payload)
		s.Equal(model.KindReclaimFailed, payload.Kind)
		s.Equal(model.ErrReclaimFailed.Message, payload.Message)
	}
}

func (s *DispatcherSuite) TestCancelReleasesBinding() {
	s.createGame("Alice", "Bob")
	c, token := s.claim("Alice")

	s.send(c, &CancelIdentityRequest{GameCode: "ABC234", SessionToken: token})

	s.Equal([]model.EventType{model.EventIdentityCanceled, model.EventRoster}, types(s.drain(c)))
	s.Nil(s.registry.ClientForSession(token))
	_, _, ok := s.registry.Identity(c, "ABC234")
	s.False(ok)
}

func (s *DispatcherSuite) TestHandleMessageRejectsMalformedInput() {
	c := NewClient(8)

	s.dispatcher.HandleMessage(s.ctx, c, []byte("not json"))
	s.dispatcher.HandleMessage(s.ctx, c, []byte(`{"type":"dance","payload":{}}`))
	s.dispatcher.HandleMessage(s.ctx, c, []byte(`{"type":"claim_identity","payload":{"game_code":"ABC234","name":"Alice","pin":"12"}}`))

	msgs := s.drain(c)
	s.Require().Len(msgs, 3)
	for _, m := range msgs {
		s.Equal(model.EventError, m.Type)
		var payload model.ErrorPayload
		s.Require().NoError(json.Unmarshal(m.Payload, &payload))
		s.Equal(model.KindValidation, payload.Kind)
	}
}
