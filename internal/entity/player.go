package entity

import (
	"time"

	"github.com/rocketscienceinc/bingo-backend/internal/bingo"
)

type Player struct {
	ID          string                `json:"id"`
	SessionID   string                `json:"session_id"`
	Name        string                `json:"name"`
	MarkedCells [bingo.CellCount]bool `json:"marked_cells"`
	HasWon      bool                  `json:"has_won"`
	WonAt       *time.Time            `json:"won_at,omitempty"`
	IsHost      bool                  `json:"is_host"`
	Secret      string                `json:"secret,omitempty"`
	Round       int64                 `json:"round"`
	Version     int64                 `json:"version"`
	CreatedAt   time.Time             `json:"created_at"`
}

func NewPlayer(id, sessionID, name string, isHost bool, round int64, now time.Time) *Player {
	return &Player{
		ID:        id,
		SessionID: sessionID,
		Name:      name,
		IsHost:    isHost,
		Round:     round,
		Version:   1,
		CreatedAt: now,
	}
}

// Cells returns the marks with the free cell always set. The stored value at
// the free cell is never consulted.
func (that *Player) Cells() [bingo.CellCount]bool {
	cells := that.MarkedCells
	cells[bingo.FreeCell] = true

	return cells
}

func (that *Player) IsMarked(cell int) bool {
	if cell < 0 || cell >= bingo.CellCount {
		return false
	}

	return that.Cells()[cell]
}

func (that *Player) ClosestToWin() int {
	return bingo.ClosestToWin(that.Cells())
}

// ResetForRound clears marks and win state and stamps the player with a new round.
func (that *Player) ResetForRound(round int64) {
	that.MarkedCells = [bingo.CellCount]bool{}
	that.HasWon = false
	that.WonAt = nil
	that.Round = round
}

func (that *Player) Clone() *Player {
	if that == nil {
		return nil
	}

	clone := *that
	if that.WonAt != nil {
		wonAt := *that.WonAt
		clone.WonAt = &wonAt
	}

	return &clone
}

// Less orders players for display: creation time, then id.
func (that *Player) Less(other *Player) bool {
	if !that.CreatedAt.Equal(other.CreatedAt) {
		return that.CreatedAt.Before(other.CreatedAt)
	}

	return that.ID < other.ID
}
