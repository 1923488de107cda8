package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rocketscienceinc/bingo-backend/internal/bingo"
)

func TestPlayer_Cells(t *testing.T) {
	t.Run("Free cell is always marked", func(t *testing.T) {
		// Given: a player whose stored free cell is false
		player := NewPlayer("p1", "s1", "Ann", false, 1, time.Now())

		// When: reading the cells
		cells := player.Cells()

		// Then: index 12 reads as marked while storage stays untouched
		assert.True(t, cells[bingo.FreeCell])
		assert.False(t, player.MarkedCells[bingo.FreeCell])
		assert.True(t, player.IsMarked(bingo.FreeCell))
	})

	t.Run("Out of range cell is never marked", func(t *testing.T) {
		player := &Player{}

		assert.False(t, player.IsMarked(-1))
		assert.False(t, player.IsMarked(bingo.CellCount))
	})

	t.Run("Closest to win counts the free cell", func(t *testing.T) {
		player := &Player{}
		player.MarkedCells[10] = true
		player.MarkedCells[11] = true

		assert.Equal(t, 3, player.ClosestToWin())
	})
}

func TestPlayer_ResetForRound(t *testing.T) {
	// Given: a player who has won
	wonAt := time.Now()
	player := &Player{HasWon: true, WonAt: &wonAt, Round: 1}
	for i := 0; i < 5; i++ {
		player.MarkedCells[i] = true
	}

	// When: the player is reset for round 2
	player.ResetForRound(2)

	// Then: marks and win state are cleared and the round is stamped
	assert.False(t, player.HasWon)
	assert.Nil(t, player.WonAt)
	assert.Equal(t, int64(2), player.Round)
	assert.Equal(t, [bingo.CellCount]bool{}, player.MarkedCells)
	assert.True(t, player.Cells()[bingo.FreeCell])
}

func TestPlayer_Less(t *testing.T) {
	now := time.Now()

	first := &Player{ID: "b", CreatedAt: now}
	second := &Player{ID: "a", CreatedAt: now.Add(time.Second)}
	sameTime := &Player{ID: "c", CreatedAt: now}

	assert.True(t, first.Less(second))
	assert.False(t, second.Less(first))
	assert.True(t, first.Less(sameTime))
}

func TestPlayer_Clone(t *testing.T) {
	wonAt := time.Now()
	player := &Player{ID: "p1", WonAt: &wonAt}

	clone := player.Clone()
	*clone.WonAt = wonAt.Add(time.Hour)
	clone.MarkedCells[0] = true

	assert.Equal(t, wonAt, *player.WonAt)
	assert.False(t, player.MarkedCells[0])
}
