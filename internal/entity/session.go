package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/bingo"
)

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"

	DefaultHostName = "Host"
)

// transitions lists the only allowed status changes.
var transitions = map[string]string{
	StatusWaiting:  StatusPlaying,
	StatusPlaying:  StatusFinished,
	StatusFinished: StatusWaiting,
}

type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Board     []string  `json:"board"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	WinnerID  string    `json:"winner_id,omitempty"`
	Round     int64     `json:"round"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

func NewSession(id, name, code string, board []string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Board:     NormalizeBoard(board),
		Code:      code,
		Status:    StatusWaiting,
		Round:     1,
		Version:   1,
		CreatedAt: now,
	}
}

func (that *Session) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Session) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Session) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Session) CanTransition(to string) bool {
	return transitions[that.Status] == to
}

// Transition moves the session to the given status.
func (that *Session) Transition(to string) error {
	if !that.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", apperror.ErrInvalidTransition, that.Status, to)
	}

	that.Status = to

	return nil
}

// Statement returns the text shown at a cell index, "FREE" for the center.
func (that *Session) Statement(cell int) string {
	if cell == bingo.FreeCell {
		return "FREE"
	}

	pos, ok := bingo.StatementIndex(cell)
	if !ok || pos >= len(that.Board) {
		return ""
	}

	return that.Board[pos]
}

func (that *Session) Clone() *Session {
	if that == nil {
		return nil
	}

	clone := *that
	clone.Board = append([]string(nil), that.Board...)

	return &clone
}

// NormalizeBoard trims every statement.
func NormalizeBoard(board []string) []string {
	out := make([]string, len(board))
	for i, statement := range board {
		out[i] = strings.TrimSpace(statement)
	}

	return out
}

// ValidateBoard checks a board holds exactly 24 non-empty statements.
func ValidateBoard(board []string) error {
	if len(board) != bingo.StatementCount {
		return fmt.Errorf("%w: want %d statements, got %d", apperror.ErrInvalidBoard, bingo.StatementCount, len(board))
	}

	for i, statement := range board {
		if strings.TrimSpace(statement) == "" {
			return fmt.Errorf("%w: statement %d is empty", apperror.ErrInvalidBoard, i+1)
		}
	}

	return nil
}
