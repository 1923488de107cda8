package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/bingo"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
)

const (
	EntitySession = "session"
	EntityPlayer  = "player"

	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
	// KindGap carries no row: changes may have been missed and the subscriber
	// must refetch.
	KindGap = "gap"
)

// Store keeps sessions and players and notifies subscribers about every row change.
type Store interface {
	CreateSession(ctx context.Context, session NewSession) (*entity.Session, error)
	CreatePlayer(ctx context.Context, player NewPlayer) (*entity.Player, error)

	GetSessionByCode(ctx context.Context, code string) (*entity.Session, error)
	GetSessionByID(ctx context.Context, id string) (*entity.Session, error)
	ListPlayers(ctx context.Context, sessionID string) ([]*entity.Player, error)

	UpdateSession(ctx context.Context, id string, patch SessionPatch) (*entity.Session, error)
	UpdatePlayer(ctx context.Context, id string, patch PlayerPatch) (*entity.Player, error)
	ResetSession(ctx context.Context, id string, patch ResetPatch) (*entity.Session, []*entity.Player, error)

	Subscribe(ctx context.Context, sessionID string) (Subscription, error)
}

// Subscription delivers change events for one session until closed.
type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

type ChangeEvent struct {
	Entity  string          `json:"entity"`
	Kind    string          `json:"kind"`
	Session *entity.Session `json:"session,omitempty"`
	Player  *entity.Player  `json:"player,omitempty"`
}

func GapEvent() ChangeEvent {
	return ChangeEvent{Kind: KindGap}
}

func (that ChangeEvent) IsGap() bool {
	return that.Kind == KindGap
}

type NewSession struct {
	Name  string
	Board []string
	Code  string
}

type NewPlayer struct {
	SessionID string
	Name      string
	IsHost    bool
}

// SessionPatch updates the set fields only. FromStatus, when set, must match
// the stored status or the update fails with ErrInvalidTransition.
type SessionPatch struct {
	Status     *string
	FromStatus *string
	WinnerID   *string
}

// Apply mutates the session and bumps its version.
func (that SessionPatch) Apply(session *entity.Session) error {
	if that.FromStatus != nil && session.Status != *that.FromStatus {
		return fmt.Errorf("%w: status is %s, expected %s", apperror.ErrInvalidTransition, session.Status, *that.FromStatus)
	}

	if that.Status != nil {
		session.Status = *that.Status
	}

	if that.WinnerID != nil {
		session.WinnerID = *that.WinnerID
	}

	session.Version++

	return nil
}

// PlayerPatch updates the set fields only. ExpectedRound, when set, must match
// the session's current round or the update fails with ErrStaleRound.
// ExpectedVersion, when set, must match the stored row version or the update
// fails with ErrConflict.
type PlayerPatch struct {
	Name            *string
	MarkedCells     *[bingo.CellCount]bool
	HasWon          *bool
	WonAt           *time.Time
	ExpectedRound   *int64
	ExpectedVersion *int64
}

// Apply mutates the player for the given session round and bumps its version.
func (that PlayerPatch) Apply(player *entity.Player, sessionRound int64) error {
	if that.ExpectedRound != nil && *that.ExpectedRound != sessionRound {
		return fmt.Errorf("%w: session round is %d, mark computed for %d", apperror.ErrStaleRound, sessionRound, *that.ExpectedRound)
	}

	if that.ExpectedVersion != nil && *that.ExpectedVersion != player.Version {
		return fmt.Errorf("%w: player version is %d, patch computed for %d", apperror.ErrConflict, player.Version, *that.ExpectedVersion)
	}

	if that.Name != nil {
		player.Name = *that.Name
	}

	if that.MarkedCells != nil {
		player.MarkedCells = *that.MarkedCells
	}

	if that.HasWon != nil {
		player.HasWon = *that.HasWon
	}

	if that.WonAt != nil {
		wonAt := *that.WonAt
		player.WonAt = &wonAt
	}

	player.Round = sessionRound
	player.Version++

	return nil
}

// ResetPatch guards a bulk reset. AllowedFrom lists the statuses a reset may start from.
type ResetPatch struct {
	AllowedFrom []string
}

// Apply returns the session to waiting with a new round and clears every player.
func (that ResetPatch) Apply(session *entity.Session, players []*entity.Player) error {
	if len(that.AllowedFrom) > 0 && !slices.Contains(that.AllowedFrom, session.Status) {
		return fmt.Errorf("%w: cannot reset from %s", apperror.ErrInvalidTransition, session.Status)
	}

	session.Status = entity.StatusWaiting
	session.WinnerID = ""
	session.Round++
	session.Version++

	for _, player := range players {
		player.ResetForRound(session.Round)
		player.Version++
	}

	return nil
}
