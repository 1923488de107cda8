package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/testing/suite"
)

func TestRedisStore_CreatePlayer(t *testing.T) {
	t.Run("CreatePlayer_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		store := NewRedisStore(st.Logger, st.Storage, time.Hour)

		session, err := store.CreateSession(ctx, NewSession{Name: "s", Board: suite.Board(), Code: "ABCD23"})
		require.NoError(t, err)

		// When: a host and a guest are created
		host, err := store.CreatePlayer(ctx, NewPlayer{SessionID: session.ID, Name: entity.DefaultHostName, IsHost: true})
		require.NoError(t, err)

		guest, err := store.CreatePlayer(ctx, NewPlayer{SessionID: session.ID, Name: "Ann"})
		require.NoError(t, err)

		// Then: both are listed in creation order, stamped with the session round
		players, err := store.ListPlayers(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, players, 2)
		assert.Equal(t, host.ID, players[0].ID)
		assert.True(t, players[0].IsHost)
		assert.Equal(t, guest.ID, players[1].ID)
		assert.Equal(t, session.Round, players[1].Round)
	})

	t.Run("CreatePlayer_SessionNotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		store := NewRedisStore(st.Logger, st.Storage, 0)

		_, err := store.CreatePlayer(ctx, NewPlayer{SessionID: "missing", Name: "Ann"})

		require.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestRedisStore_ListPlayers_Empty(t *testing.T) {
	ctx, st := suite.New(t)

	store := NewRedisStore(st.Logger, st.Storage, 0)

	players, err := store.ListPlayers(ctx, "nobody")

	require.NoError(t, err)
	assert.Empty(t, players)
}

func TestRedisStore_UpdatePlayer(t *testing.T) {
	t.Run("UpdatePlayer_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		store := NewRedisStore(st.Logger, st.Storage, 0)

		session, err := store.CreateSession(ctx, NewSession{Name: "s", Board: suite.Board(), Code: "ABCD23"})
		require.NoError(t, err)
		player, err := store.CreatePlayer(ctx, NewPlayer{SessionID: session.ID, Name: "Ann"})
		require.NoError(t, err)

		// When: a mark is written for the current round
		cells := player.MarkedCells
		cells[7] = true
		updated, err := store.UpdatePlayer(ctx, player.ID, PlayerPatch{MarkedCells: &cells, ExpectedRound: ptr(player.Round)})

		// Then: the mark is stored and the version increases
		require.NoError(t, err)
		assert.True(t, updated.MarkedCells[7])
		assert.Equal(t, player.Version+1, updated.Version)
	})

	t.Run("UpdatePlayer_StaleRound", func(t *testing.T) {
		ctx, st := suite.New(t)

		store := NewRedisStore(st.Logger, st.Storage, 0)

		// Given: a player whose session has been reset since the mark was computed
		session, err := store.CreateSession(ctx, NewSession{Name: "s", Board: suite.Board(), Code: "ABCD23"})
		require.NoError(t, err)
		player, err := store.CreatePlayer(ctx, NewPlayer{SessionID: session.ID, Name: "Ann"})
		require.NoError(t, err)

		_, _, err = store.ResetSession(ctx, session.ID, ResetPatch{})
		require.NoError(t, err)

		// When: the slow mark arrives
		cells := player.MarkedCells
		cells[3] = true
		_, err = store.UpdatePlayer(ctx, player.ID, PlayerPatch{MarkedCells: &cells, ExpectedRound: ptr(player.Round)})

		// Then: ErrStaleRound is returned and the stored marks stay cleared
		require.ErrorIs(t, err, apperror.ErrStaleRound)

		players, err := store.ListPlayers(ctx, session.ID)
		require.NoError(t, err)
		assert.False(t, players[0].MarkedCells[3])
	})

	t.Run("UpdatePlayer_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		store := NewRedisStore(st.Logger, st.Storage, 0)

		_, err := store.UpdatePlayer(ctx, "missing", PlayerPatch{Name: ptr("x")})

		require.ErrorIs(t, err, apperror.ErrNotFound)
	})
}
