package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/internal/pkg"
	"github.com/rocketscienceinc/bingo-backend/internal/repository"
)

const maxCodeAttempts = 5

type sessionRepo interface {
	CreateSession(ctx context.Context, session repository.NewSession) (*entity.Session, error)
	CreatePlayer(ctx context.Context, player repository.NewPlayer) (*entity.Player, error)
	GetSessionByCode(ctx context.Context, code string) (*entity.Session, error)
	ListPlayers(ctx context.Context, sessionID string) ([]*entity.Player, error)
}

// Snapshot is a point read of one session and its players in join order.
type Snapshot struct {
	Session *entity.Session
	Players []*entity.Player
}

type SessionManager struct {
	logger *slog.Logger
	repo   sessionRepo

	generateCode func() (string, error)
}

func NewSessionManager(logger *slog.Logger, repo sessionRepo) *SessionManager {
	return &SessionManager{
		logger: logger.With("component", "session-manager"),
		repo:   repo,

		generateCode: pkg.GenerateGameCode,
	}
}

// CreateSession stores a new waiting session under a fresh join code and adds
// its host. A code collision is retried with a new code.
func (that *SessionManager) CreateSession(
	ctx context.Context, name string, statements []string, hostName string,
) (*entity.Session, *entity.Player, error) {
	log := that.logger.With("method", "CreateSession")

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: game name is required", apperror.ErrInvalidName)
	}

	board := entity.NormalizeBoard(statements)
	if err := entity.ValidateBoard(board); err != nil {
		return nil, nil, err
	}

	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		hostName = entity.DefaultHostName
	}

	session, err := that.createWithFreshCode(ctx, name, board)
	if err != nil {
		return nil, nil, err
	}

	host, err := that.repo.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: hostName, IsHost: true})
	if err != nil {
		return nil, nil, apperror.WriteFailed(fmt.Errorf("failed to create host: %w", err))
	}

	log.Info("session created", "sessionID", session.ID, "code", session.Code, "hostID", host.ID)

	return session, host, nil
}

// GetSnapshot reads a session by its join code.
func (that *SessionManager) GetSnapshot(ctx context.Context, code string) (*Snapshot, error) {
	session, err := that.repo.GetSessionByCode(ctx, pkg.NormalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	players, err := that.repo.ListPlayers(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	return &Snapshot{Session: session, Players: players}, nil
}

func (that *SessionManager) createWithFreshCode(ctx context.Context, name string, board []string) (*entity.Session, error) {
	log := that.logger.With("method", "createWithFreshCode")

	var lastErr error

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := that.generateCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}

		session, err := that.repo.CreateSession(ctx, repository.NewSession{Name: name, Board: board, Code: code})
		if err == nil {
			return session, nil
		}

		if !errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.WriteFailed(fmt.Errorf("failed to create session: %w", err))
		}

		log.Warn("join code already in use", "code", code, "attempt", attempt)
		lastErr = err
	}

	return nil, apperror.WriteFailed(fmt.Errorf("no free join code after %d attempts: %w", maxCodeAttempts, lastErr))
}
