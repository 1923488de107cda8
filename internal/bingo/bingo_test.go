package bingo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellsOf(marked ...int) [CellCount]bool {
	var cells [CellCount]bool
	for _, idx := range marked {
		cells[idx] = true
	}

	return cells
}

func TestEvaluate(t *testing.T) {
	t.Run("Top row wins", func(t *testing.T) {
		// Given: cells 0..4 marked, the free cell not set
		cells := cellsOf(0, 1, 2, 3, 4)

		// When: the card is evaluated
		result := Evaluate(cells)

		// Then: the first row is the winning line
		assert.True(t, result.Won)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, result.WinningLine)
	})

	t.Run("Main diagonal wins", func(t *testing.T) {
		// Given: only the main diagonal marked
		cells := cellsOf(0, 6, 12, 18, 24)

		// When: the card is evaluated
		result := Evaluate(cells)

		// Then: the diagonal is reported
		assert.True(t, result.Won)
		assert.Equal(t, []int{0, 6, 12, 18, 24}, result.WinningLine)
	})

	t.Run("Anti diagonal wins", func(t *testing.T) {
		result := Evaluate(cellsOf(4, 8, 12, 16, 20))

		assert.True(t, result.Won)
		assert.Equal(t, []int{4, 8, 12, 16, 20}, result.WinningLine)
	})

	t.Run("Column wins", func(t *testing.T) {
		result := Evaluate(cellsOf(2, 7, 12, 17, 22))

		assert.True(t, result.Won)
		assert.Equal(t, []int{2, 7, 12, 17, 22}, result.WinningLine)
	})

	t.Run("Rows take precedence over columns and diagonals", func(t *testing.T) {
		// Given: the last row and the first column and the main diagonal all complete
		cells := cellsOf(20, 21, 22, 23, 24, 0, 5, 10, 15, 6, 12, 18)

		// When: the card is evaluated
		result := Evaluate(cells)

		// Then: the row wins the tie-break
		require.True(t, result.Won)
		assert.Equal(t, []int{20, 21, 22, 23, 24}, result.WinningLine)
	})

	t.Run("Columns take precedence over diagonals", func(t *testing.T) {
		result := Evaluate(cellsOf(4, 9, 14, 19, 24, 0, 6, 12, 18))

		require.True(t, result.Won)
		assert.Equal(t, []int{4, 9, 14, 19, 24}, result.WinningLine)
	})

	t.Run("Four of five is not a win", func(t *testing.T) {
		result := Evaluate(cellsOf(0, 1, 2, 3, 12))

		assert.False(t, result.Won)
		assert.Nil(t, result.WinningLine)
	})

	t.Run("Empty card is not a win", func(t *testing.T) {
		result := Evaluate([CellCount]bool{})

		assert.False(t, result.Won)
	})
}

func TestEvaluate_MatchesLineScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42)) //nolint: gosec // deterministic test data

	for i := 0; i < 2000; i++ {
		var cells [CellCount]bool
		for idx := range cells {
			cells[idx] = rng.Intn(3) == 0
		}

		var expected []int
		for _, line := range Lines() {
			full := true
			for _, idx := range line {
				full = full && cells[idx]
			}
			if full {
				expected = append([]int(nil), line[:]...)
				break
			}
		}

		result := Evaluate(cells)
		require.Equal(t, expected != nil, result.Won, "cells %v", cells)
		require.Equal(t, expected, result.WinningLine, "cells %v", cells)
	}
}

func TestClosestToWin(t *testing.T) {
	t.Run("Counts the best line", func(t *testing.T) {
		assert.Equal(t, 0, ClosestToWin([CellCount]bool{}))
		assert.Equal(t, 1, ClosestToWin(cellsOf(12)))
		assert.Equal(t, 3, ClosestToWin(cellsOf(0, 6, 12, 1)))
		assert.Equal(t, 5, ClosestToWin(cellsOf(0, 1, 2, 3, 4)))
	})

	t.Run("Never decreases when a cell is marked", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7)) //nolint: gosec // deterministic test data

		for i := 0; i < 500; i++ {
			var cells [CellCount]bool
			for idx := range cells {
				cells[idx] = rng.Intn(2) == 0
			}

			before := ClosestToWin(cells)
			cells[rng.Intn(CellCount)] = true

			assert.GreaterOrEqual(t, ClosestToWin(cells), before)
		}
	})
}

func TestLines(t *testing.T) {
	// Given: a copy of the canonical lines
	got := Lines()
	got[0][0] = 99

	// Then: the package table stays intact and every cell sits on a line
	assert.Len(t, Lines(), 12)
	assert.Equal(t, 0, Lines()[0][0])

	seen := make(map[int]bool)
	for _, line := range Lines() {
		for _, idx := range line {
			seen[idx] = true
		}
	}
	assert.Len(t, seen, CellCount)
}

func TestStatementIndex(t *testing.T) {
	pos, ok := StatementIndex(0)
	assert.True(t, ok)
	assert.Equal(t, 0, pos)

	pos, ok = StatementIndex(11)
	assert.True(t, ok)
	assert.Equal(t, 11, pos)

	_, ok = StatementIndex(FreeCell)
	assert.False(t, ok)

	pos, ok = StatementIndex(13)
	assert.True(t, ok)
	assert.Equal(t, 12, pos)

	pos, ok = StatementIndex(24)
	assert.True(t, ok)
	assert.Equal(t, 23, pos)

	_, ok = StatementIndex(25)
	assert.False(t, ok)
	_, ok = StatementIndex(-1)
	assert.False(t, ok)
}
