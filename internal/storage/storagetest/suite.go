// Package storagetest holds the behavior every storage backend must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/storage"
)

// Suite runs the storage contract against the backend built by New
type Suite struct {
	suite.Suite
	New func() storage.Storage

	storage storage.Storage
	ctx     context.Context
	now     time.Time
}

func (s *Suite) SetupTest() {
	s.storage = s.New()
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *Suite) createGame(code model.GameCode, names ...string) []*model.Player {
	game := &model.Game{
		Code:         code,
		CreatorToken: "creator-" + string(code),
		Status:       model.GameStatusLobby,
		Tasks:        []string{"touch your nose", "say banana"},
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	players := make([]*model.Player, len(names))
	for i, name := range names {
		players[i] = &model.Player{
			ID:       model.PlayerID(fmt.Sprintf("%s-p%d", code, i)),
			GameCode: code,
			Name:     name,
			Status:   model.PlayerStatusNotJoined,
		}
	}
	s.Require().NoError(s.storage.CreateGame(s.ctx, game, players))
	return players
}

func (s *Suite) TestCreateAndGetGame() {
	s.createGame("ABC234", "Zoe", "Alice")

	game, err := s.storage.GetGame(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(model.GameStatusLobby, game.Status)
	s.Equal("creator-ABC234", game.CreatorToken)
	s.Equal([]string{"touch your nose", "say banana"}, game.Tasks)
	s.True(game.CreatedAt.Equal(s.now))

	exists, err := s.storage.GameExists(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *Suite) TestListPlayersSortedByName() {
	s.createGame("ABC234", "Zoe", "Alice", "Bob")

	players, err := s.storage.ListPlayers(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Require().Len(players, 3)
	s.Equal("Alice", players[0].Name)
	s.Equal("Bob", players[1].Name)
	s.Equal("Zoe", players[2].Name)
	s.Equal(model.PlayerStatusNotJoined, players[0].Status)
	s.Nil(players[0].JoinedAt)
}

func (s *Suite) TestCreateGameDuplicateCode() {
	s.createGame("ABC234", "Alice", "Bob")

	err := s.storage.CreateGame(s.ctx, &model.Game{
		Code:      "ABC234",
		Status:    model.GameStatusLobby,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}, nil)
	s.ErrorIs(err, model.ErrGameCodeTaken)
}

func (s *Suite) TestGetGameNotFound() {
	_, err := s.storage.GetGame(s.ctx, "NOPE22")
	s.ErrorIs(err, model.ErrGameNotFound)

	_, err = s.storage.ListPlayers(s.ctx, "NOPE22")
	s.ErrorIs(err, model.ErrGameNotFound)

	err = s.storage.Update(s.ctx, "NOPE22", func(*model.Snapshot) error { return nil })
	s.ErrorIs(err, model.ErrGameNotFound)

	exists, err := s.storage.GameExists(s.ctx, "NOPE22")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *Suite) TestUpdateCommitsEverything() {
	players := s.createGame("ABC234", "Alice", "Bob")
	joined := s.now.Add(time.Minute)

	err := s.storage.Update(s.ctx, "ABC234", func(snap *model.Snapshot) error {
		snap.Game.Status = model.GameStatusActive
		alice := snap.PlayerByName("Alice")
		bob := snap.PlayerByName("Bob")
		alice.Status, bob.Status = model.PlayerStatusAlive, model.PlayerStatusAlive
		alice.TargetID, bob.TargetID = bob.ID, alice.ID
		alice.Task, bob.Task = "say banana", "touch your nose"
		alice.PINHash = "hash"
		alice.JoinedAt = &joined
		return nil
	})
	s.Require().NoError(err)

	snap, err := s.storage.LoadSnapshot(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(model.GameStatusActive, snap.Game.Status)
	alice := snap.PlayerByName("Alice")
	s.Equal(players[1].ID, alice.TargetID)
	s.Equal("say banana", alice.Task)
	s.Equal("hash", alice.PINHash)
	s.Require().NotNil(alice.JoinedAt)
	s.True(alice.JoinedAt.Equal(joined))
}

func (s *Suite) TestUpdateErrorWritesNothing() {
	s.createGame("ABC234", "Alice", "Bob")

	err := s.storage.Update(s.ctx, "ABC234", func(snap *model.Snapshot) error {
		snap.Game.Status = model.GameStatusActive
		snap.PlayerByName("Alice").Status = model.PlayerStatusAlive
		snap.PlayerByName("Alice").SessionToken = "tok-1"
		return model.ErrInsufficientPlayers
	})
	s.ErrorIs(err, model.ErrInsufficientPlayers)

	snap, err := s.storage.LoadSnapshot(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(model.GameStatusLobby, snap.Game.Status)
	s.Equal(model.PlayerStatusNotJoined, snap.PlayerByName("Alice").Status)

	_, err = s.storage.FindSession(s.ctx, "tok-1")
	s.ErrorIs(err, model.ErrInvalidSession)
}

func (s *Suite) TestSessionIndexFollowsTokens() {
	players := s.createGame("ABC234", "Alice", "Bob")

	setToken := func(token string) {
		err := s.storage.Update(s.ctx, "ABC234", func(snap *model.Snapshot) error {
			snap.PlayerByName("Alice").SessionToken = token
			return nil
		})
		s.Require().NoError(err)
	}

	setToken("tok-1")
	ref, err := s.storage.FindSession(s.ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal(model.GameCode("ABC234"), ref.GameCode)
	s.Equal(players[0].ID, ref.PlayerID)

	setToken("tok-2")
	_, err = s.storage.FindSession(s.ctx, "tok-1")
	s.ErrorIs(err, model.ErrInvalidSession)
	ref, err = s.storage.FindSession(s.ctx, "tok-2")
	s.Require().NoError(err)
	s.Equal(players[0].ID, ref.PlayerID)

	setToken("")
	_, err = s.storage.FindSession(s.ctx, "tok-2")
	s.ErrorIs(err, model.ErrInvalidSession)
	_, err = s.storage.FindSession(s.ctx, "")
	s.ErrorIs(err, model.ErrInvalidSession)
}

func (s *Suite) TestKillsReturnedInTimestampOrder() {
	players := s.createGame("ABC234", "Alice", "Bob", "Carol")

	// Appended out of order across two updates
	times := []time.Time{s.now.Add(3 * time.Minute), s.now.Add(time.Minute), s.now.Add(2 * time.Minute)}
	for i, ts := range times {
		err := s.storage.Update(s.ctx, "ABC234", func(snap *model.Snapshot) error {
			snap.AppendKill(model.KillRecord{
				ID:        model.KillID(fmt.Sprintf("k%d", i)),
				GameCode:  "ABC234",
				KillerID:  players[0].ID,
				VictimID:  players[1+i%2].ID,
				Task:      "say banana",
				Timestamp: ts,
			})
			return nil
		})
		s.Require().NoError(err)
	}

	kills, err := s.storage.ListKills(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Require().Len(kills, 3)
	s.Equal(model.KillID("k1"), kills[0].ID)
	s.Equal(model.KillID("k2"), kills[1].ID)
	s.Equal(model.KillID("k0"), kills[2].ID)
	s.True(kills[0].Timestamp.Equal(s.now.Add(time.Minute)))
}

func (s *Suite) TestSnapshotIsACopy() {
	s.createGame("ABC234", "Alice", "Bob")

	snap, err := s.storage.LoadSnapshot(s.ctx, "ABC234")
	s.Require().NoError(err)
	snap.Game.Status = model.GameStatusFinished
	snap.Players[0].Status = model.PlayerStatusEliminated

	game, err := s.storage.GetGame(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(model.GameStatusLobby, game.Status)
	players, err := s.storage.ListPlayers(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(model.PlayerStatusNotJoined, players[0].Status)
}

func (s *Suite) TestConcurrentUpdatesDoNotInterleave() {
	s.createGame("ABC234", "Alice", "Bob")
	const writers = 8

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.storage.Update(s.ctx, "ABC234", func(snap *model.Snapshot) error {
				snap.Game.Tasks = append(snap.Game.Tasks, fmt.Sprintf("task %d", i))
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	game, err := s.storage.GetGame(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Len(game.Tasks, 2+writers)
}
