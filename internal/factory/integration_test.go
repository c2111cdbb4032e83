package factory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/services/assignment"
	"github.com/nicpaesk/killer-game/internal/services/identity"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) claimAll(code model.GameCode, names ...string) map[string]*identity.Session {
	sessions := make(map[string]*identity.Session, len(names))
	for _, name := range names {
		sess, err := s.app.IdentityService.Claim(s.ctx, code, name, "1234")
		s.Require().NoError(err)
		sessions[name] = sess
	}
	return sessions
}

func (s *IntegrationSuite) sessionFor(sessions map[string]*identity.Session, id model.PlayerID) *identity.Session {
	for _, sess := range sessions {
		if sess.Player.ID == id {
			return sess
		}
	}
	s.FailNow("no session for player", string(id))
	return nil
}

// Test: Complete game flow from creation to a single survivor
func (s *IntegrationSuite) TestCompleteGameFlow() {
	s.app.MockRandom.QueueString("PARTY2")

	names := []string{"Alice", "Bob", "Charlie", "Dana"}
	created, err := s.app.GameController.CreateGame(s.ctx, names, []string{"hand them a spoon", "make them say banana"})
	s.Require().NoError(err)
	code := created.Game.Code
	s.Equal(model.GameCode("PARTY2"), code)
	s.Equal(model.GameStatusLobby, created.Game.Status)

	sessions := s.claimAll(code, names...)

	started, err := s.app.GameController.StartGame(s.ctx, code, created.Game.CreatorToken)
	s.Require().NoError(err)
	s.Equal(model.GameStatusActive, started.Game.Status)
	s.Require().NoError(assignment.VerifyCycle(started.Players))

	overview, err := s.app.GameController.AssignmentOverview(s.ctx, code, created.Game.CreatorToken)
	s.Require().NoError(err)
	s.True(overview.SingleCycle)
	s.Len(overview.Entries, 4)

	// Alice keeps killing until she is the last one standing
	killer := sessions["Alice"]
	for kills := 1; kills <= 3; kills++ {
		s.app.MockClock.Advance(time.Minute)

		challenge, err := s.app.GameController.ClaimKill(s.ctx, code, killer.Token)
		s.Require().NoError(err)
		victim := s.sessionFor(sessions, challenge.Victim.ID)

		res, err := s.app.GameController.ResolveKill(s.ctx, victim.Token, killer.Player.ID, true)
		s.Require().NoError(err)
		s.True(res.Confirmed)
		s.Equal(4-kills, res.AliveCount)

		snap, err := s.app.Storage.LoadSnapshot(s.ctx, code)
		s.Require().NoError(err)
		s.Require().NoError(assignment.VerifyCycle(snap.Players))

		if kills < 3 {
			s.Nil(res.Winner)
			s.NotNil(res.NewTarget)
		} else {
			s.Require().NotNil(res.Winner)
			s.Equal("Alice", res.Winner.Name)
		}
	}

	game, err := s.app.GameController.GetGame(s.ctx, code)
	s.Require().NoError(err)
	s.Equal(model.GameStatusFinished, game.Status)

	sum, err := s.app.SummaryService.Summary(s.ctx, code, killer.Token)
	s.Require().NoError(err)
	s.Equal("Alice", sum.Winner)
	s.Equal("Alice", sum.You)
	s.Len(sum.Kills, 3)
	for _, k := range sum.Kills {
		s.True(k.IsMine)
	}
	s.Require().Len(sum.KillCounts, 4)
	s.Equal("Alice", sum.KillCounts[0].Name)
	s.Equal(3, sum.KillCounts[0].Count)

	// Nothing leaves finished
	_, err = s.app.GameController.ClaimKill(s.ctx, code, killer.Token)
	s.ErrorIs(err, model.ErrGameFinished)
}

// Test: A reclaim on a second device keeps the assignment and retires the old token
func (s *IntegrationSuite) TestReclaimMidGame() {
	s.app.MockRandom.QueueString("PARTY3")

	created, err := s.app.GameController.CreateGame(s.ctx, []string{"Alice", "Bob", "Charlie"}, []string{"borrow their pen"})
	s.Require().NoError(err)
	code := created.Game.Code
	sessions := s.claimAll(code, "Alice", "Bob", "Charlie")

	_, err = s.app.GameController.StartGame(s.ctx, code, created.Game.CreatorToken)
	s.Require().NoError(err)

	before, err := s.app.GameController.Assignment(s.ctx, code, sessions["Bob"].Token)
	s.Require().NoError(err)

	reclaimed, err := s.app.IdentityService.Reclaim(s.ctx, code, "Bob", "1234")
	s.Require().NoError(err)
	s.Equal(sessions["Bob"].Token, reclaimed.PreviousToken)
	s.NotEqual(reclaimed.PreviousToken, reclaimed.Token)

	after, err := s.app.GameController.Assignment(s.ctx, code, reclaimed.Token)
	s.Require().NoError(err)
	s.Equal(before.Target.ID, after.Target.ID)
	s.Equal(before.Task, after.Task)

	_, err = s.app.GameController.Assignment(s.ctx, code, sessions["Bob"].Token)
	s.ErrorIs(err, model.ErrInvalidSession)
}

func TestNewWithStorageTypes(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		app, err := New(ctx, Config{})
		require.NoError(t, err)
		defer func() { _ = app.Close() }()

		assert.NotNil(t, app.GameController)
		assert.NotNil(t, app.WSHandler)
	})

	t.Run("sqlite", func(t *testing.T) {
		app, err := New(ctx, Config{
			StorageType: StorageTypeSQLite,
			SQLitePath:  filepath.Join(t.TempDir(), "killer.db"),
		})
		require.NoError(t, err)
		defer func() { _ = app.Close() }()

		created, err := app.GameController.CreateGame(ctx, []string{"Alice", "Bob"}, []string{"wave"})
		require.NoError(t, err)
		got, err := app.GameController.GetGame(ctx, created.Game.Code)
		require.NoError(t, err)
		assert.Equal(t, model.GameStatusLobby, got.Status)
	})

	t.Run("redis without config", func(t *testing.T) {
		_, err := New(ctx, Config{StorageType: StorageTypeRedis})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := New(ctx, Config{StorageType: "postgres"})
		assert.Error(t, err)
	})
}
