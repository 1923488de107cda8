package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
)

// IdentityRepository remembers which player this profile is, per session code.
type IdentityRepository interface {
	Remember(ctx context.Context, code, playerID string) error
	Lookup(ctx context.Context, code string) (string, error)
	Forget(ctx context.Context, code string) error
}

type identityRepository struct {
	conn *sql.DB
	now  func() time.Time
}

func NewIdentityRepository(conn *sql.DB) IdentityRepository {
	return &identityRepository{
		conn: conn,
		now:  time.Now,
	}
}

func (that *identityRepository) Remember(ctx context.Context, code, playerID string) error {
	query := `INSERT INTO identities (code, player_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET player_id = excluded.player_id, updated_at = excluded.updated_at`

	_, err := that.conn.ExecContext(ctx, query, code, playerID, that.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("can't save identity: %w", err)
	}

	return nil
}

func (that *identityRepository) Lookup(ctx context.Context, code string) (string, error) {
	query := `SELECT player_id FROM identities WHERE code = ?`

	var playerID string

	err := that.conn.QueryRowContext(ctx, query, code).Scan(&playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: identity for %s", apperror.ErrNotFound, code)
	}
	if err != nil {
		return "", fmt.Errorf("can't find identity: %w", err)
	}

	return playerID, nil
}

func (that *identityRepository) Forget(ctx context.Context, code string) error {
	query := `DELETE FROM identities WHERE code = ?`

	if _, err := that.conn.ExecContext(ctx, query, code); err != nil {
		return fmt.Errorf("can't delete identity: %w", err)
	}

	return nil
}
