package memory

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/bingo"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/internal/repository"
)

func testBoard() []string {
	board := make([]string, bingo.StatementCount)
	for i := range board {
		board[i] = "statement " + strconv.Itoa(i+1)
	}

	return board
}

func ptr[T any](v T) *T {
	return &v
}

func nextEvent(t *testing.T, sub repository.Subscription) repository.ChangeEvent {
	t.Helper()

	select {
	case event, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return event
	case <-time.After(time.Second):
		require.FailNow(t, "no change event received")
	}

	return repository.ChangeEvent{}
}

func TestStore_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates a waiting session", func(t *testing.T) {
		store := New()

		// When: a session is created
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "Standup", Board: testBoard(), Code: "ABCD23"})

		// Then: it is waiting and can be read by code and id
		require.NoError(t, err)
		assert.Equal(t, entity.StatusWaiting, session.Status)

		byCode, err := store.GetSessionByCode(ctx, "ABCD23")
		require.NoError(t, err)
		assert.Equal(t, session.ID, byCode.ID)

		byID, err := store.GetSessionByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "Standup", byID.Name)
	})

	t.Run("Rejects a code in use", func(t *testing.T) {
		store := New()
		_, err := store.CreateSession(ctx, repository.NewSession{Name: "one", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)

		// When: the same code is used again
		_, err = store.CreateSession(ctx, repository.NewSession{Name: "two", Board: testBoard(), Code: "ABCD23"})

		// Then: ErrConflict is returned
		require.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("Unknown code is not found", func(t *testing.T) {
		_, err := New().GetSessionByCode(ctx, "ZZZZZZ")

		require.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestStore_Players(t *testing.T) {
	ctx := context.Background()

	t.Run("Lists players in creation order", func(t *testing.T) {
		store := New()
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "s", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)

		for _, name := range []string{"Host", "Ann", "Bob"} {
			_, err = store.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: name, IsHost: name == "Host"})
			require.NoError(t, err)
		}

		players, err := store.ListPlayers(ctx, session.ID)

		require.NoError(t, err)
		require.Len(t, players, 3)
		assert.Equal(t, "Host", players[0].Name)
		assert.True(t, players[0].IsHost)
		assert.Equal(t, "Bob", players[2].Name)
	})

	t.Run("Player of unknown session is not created", func(t *testing.T) {
		_, err := New().CreatePlayer(ctx, repository.NewPlayer{SessionID: "missing", Name: "Ann"})

		require.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("Update with a stale round is rejected", func(t *testing.T) {
		// Given: a finished session with one marking player
		store := New()
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "s", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)
		player, err := store.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: "Ann"})
		require.NoError(t, err)

		_, err = store.UpdateSession(ctx, session.ID, repository.SessionPatch{Status: ptr(entity.StatusFinished)})
		require.NoError(t, err)

		// When: the session is reset and a mark computed before the reset arrives
		_, _, err = store.ResetSession(ctx, session.ID, repository.ResetPatch{})
		require.NoError(t, err)

		var cells [bingo.CellCount]bool
		cells[0] = true
		_, err = store.UpdatePlayer(ctx, player.ID, repository.PlayerPatch{MarkedCells: &cells, ExpectedRound: ptr(player.Round)})

		// Then: the mark is refused and the player stays cleared
		require.ErrorIs(t, err, apperror.ErrStaleRound)

		players, err := store.ListPlayers(ctx, session.ID)
		require.NoError(t, err)
		assert.False(t, players[0].MarkedCells[0])
	})

	t.Run("Update computed from an old row version is rejected", func(t *testing.T) {
		// Given: a player whose row moved on after version 1 was read
		store := New()
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "s", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)
		player, err := store.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: "Ann"})
		require.NoError(t, err)

		var first [bingo.CellCount]bool
		first[0] = true
		_, err = store.UpdatePlayer(ctx, player.ID, repository.PlayerPatch{MarkedCells: &first, ExpectedVersion: ptr(player.Version)})
		require.NoError(t, err)

		// When: a write built on version 1 arrives
		var second [bingo.CellCount]bool
		second[1] = true
		_, err = store.UpdatePlayer(ctx, player.ID, repository.PlayerPatch{MarkedCells: &second, ExpectedVersion: ptr(player.Version)})

		// Then: it is refused and the first mark survives
		require.ErrorIs(t, err, apperror.ErrConflict)

		players, err := store.ListPlayers(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, players[0].MarkedCells[0])
		assert.False(t, players[0].MarkedCells[1])
	})

	t.Run("Players get distinct secrets", func(t *testing.T) {
		store := New()
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "s", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)

		ann, err := store.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: "Ann"})
		require.NoError(t, err)
		bob, err := store.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: "Bob"})
		require.NoError(t, err)

		assert.NotEmpty(t, ann.Secret)
		assert.NotEqual(t, ann.Secret, bob.Secret)
		assert.NotEqual(t, ann.ID, ann.Secret)
	})
}

func TestStore_UpdateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("From status guard", func(t *testing.T) {
		store := New()
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "s", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)

		// When: a status change expects playing while the session waits
		_, err = store.UpdateSession(ctx, session.ID, repository.SessionPatch{
			Status:     ptr(entity.StatusFinished),
			FromStatus: ptr(entity.StatusPlaying),
		})

		// Then: it is rejected as an invalid transition
		require.ErrorIs(t, err, apperror.ErrInvalidTransition)
	})

	t.Run("Version increases on every write", func(t *testing.T) {
		store := New()
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "s", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)

		updated, err := store.UpdateSession(ctx, session.ID, repository.SessionPatch{Status: ptr(entity.StatusPlaying)})

		require.NoError(t, err)
		assert.Greater(t, updated.Version, session.Version)
	})
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("Delivers changes in order", func(t *testing.T) {
		// Given: a session with a subscriber
		store := New()
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "s", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)

		sub, err := store.Subscribe(ctx, session.ID)
		require.NoError(t, err)
		defer sub.Close()

		// When: a player joins and the host starts
		player, err := store.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: "Ann"})
		require.NoError(t, err)
		_, err = store.UpdateSession(ctx, session.ID, repository.SessionPatch{Status: ptr(entity.StatusPlaying)})
		require.NoError(t, err)

		// Then: both changes arrive in order
		first := nextEvent(t, sub)
		assert.Equal(t, repository.EntityPlayer, first.Entity)
		assert.Equal(t, repository.KindInsert, first.Kind)
		assert.Equal(t, player.ID, first.Player.ID)

		second := nextEvent(t, sub)
		assert.Equal(t, repository.EntitySession, second.Entity)
		assert.Equal(t, entity.StatusPlaying, second.Session.Status)
	})

	t.Run("Reset publishes the session and every player", func(t *testing.T) {
		store := New()
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "s", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)
		_, err = store.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: "Host", IsHost: true})
		require.NoError(t, err)
		_, err = store.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: "Ann"})
		require.NoError(t, err)

		sub, err := store.Subscribe(ctx, session.ID)
		require.NoError(t, err)
		defer sub.Close()

		reset, players, err := store.ResetSession(ctx, session.ID, repository.ResetPatch{AllowedFrom: []string{entity.StatusWaiting}})
		require.NoError(t, err)
		assert.Equal(t, int64(2), reset.Round)
		require.Len(t, players, 2)

		assert.Equal(t, repository.EntitySession, nextEvent(t, sub).Entity)
		for range players {
			event := nextEvent(t, sub)
			assert.Equal(t, repository.EntityPlayer, event.Entity)
			assert.Equal(t, int64(2), event.Player.Round)
		}
	})

	t.Run("Close stops delivery and is idempotent", func(t *testing.T) {
		store := New()
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "s", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)

		sub, err := store.Subscribe(ctx, session.ID)
		require.NoError(t, err)

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())

		_, err = store.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: "Ann"})
		require.NoError(t, err)

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(time.Second):
			require.FailNow(t, "events channel was not closed")
		}
	})

	t.Run("Context cancel closes the subscription", func(t *testing.T) {
		store := New()
		session, err := store.CreateSession(ctx, repository.NewSession{Name: "s", Board: testBoard(), Code: "ABCD23"})
		require.NoError(t, err)

		subCtx, cancel := context.WithCancel(ctx)
		sub, err := store.Subscribe(subCtx, session.ID)
		require.NoError(t, err)

		cancel()

		assert.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.Events():
				return !ok
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)
	})
}
