package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/internal/pkg"
)

func (that *RedisStore) CreateSession(ctx context.Context, newSession NewSession) (_ *entity.Session, err error) {
	ctx, span := that.startSpan(ctx, "CreateSession", attribute.String("code", newSession.Code))
	defer func() { endSpan(span, err) }()

	session := entity.NewSession(pkg.GenerateID(), newSession.Name, newSession.Code, newSession.Board, that.now())

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("could not marshal session: %w", err)
	}

	reserved, err := that.client.SetNX(ctx, codeKey(session.Code), session.ID, that.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve code: %w", err)
	}

	if !reserved {
		return nil, fmt.Errorf("%w: code %s is in use", apperror.ErrConflict, session.Code)
	}

	if err = that.client.Set(ctx, sessionKey(session.ID), sessionJSON, that.ttl).Err(); err != nil {
		that.client.Del(ctx, codeKey(session.Code))
		return nil, fmt.Errorf("failed to set session: %w", err)
	}

	that.publish(ctx, session.ID, ChangeEvent{Entity: EntitySession, Kind: KindInsert, Session: session})

	return session.Clone(), nil
}

func (that *RedisStore) GetSessionByCode(ctx context.Context, code string) (*entity.Session, error) {
	sessionID, err := that.client.Get(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: session with code %s", apperror.ErrNotFound, code)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session by code: %w", err)
	}

	return that.GetSessionByID(ctx, sessionID)
}

func (that *RedisStore) GetSessionByID(ctx context.Context, id string) (*entity.Session, error) {
	session, err := readJSON[entity.Session](ctx, that.client, sessionKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	return session, nil
}

func (that *RedisStore) UpdateSession(ctx context.Context, id string, patch SessionPatch) (_ *entity.Session, err error) {
	ctx, span := that.startSpan(ctx, "UpdateSession", attribute.String("session.id", id))
	defer func() { endSpan(span, err) }()

	var updated *entity.Session

	key := sessionKey(id)
	err = that.watch(ctx, func(tx *redis.Tx) error {
		session, txErr := readJSON[entity.Session](ctx, tx, key)
		if txErr != nil {
			return txErr
		}

		if txErr = patch.Apply(session); txErr != nil {
			return txErr
		}

		playerIDs, txErr := tx.ZRange(ctx, playersKey(id), 0, -1).Result()
		if txErr != nil {
			return fmt.Errorf("failed to list players: %w", txErr)
		}

		sessionJSON, txErr := json.Marshal(session)
		if txErr != nil {
			return fmt.Errorf("could not marshal session: %w", txErr)
		}

		_, txErr = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, sessionJSON, that.ttl)
			that.touch(ctx, pipe, session, playerIDs)
			return nil
		})
		if txErr != nil {
			return fmt.Errorf("failed to set session: %w", txErr)
		}

		updated = session

		return nil
	}, key)
	if err != nil {
		return nil, fmt.Errorf("failed to update session %s: %w", id, err)
	}

	that.publish(ctx, id, ChangeEvent{Entity: EntitySession, Kind: KindUpdate, Session: updated})

	return updated.Clone(), nil
}

// ResetSession clears the session and all of its players in one transaction.
func (that *RedisStore) ResetSession(ctx context.Context, id string, patch ResetPatch) (_ *entity.Session, _ []*entity.Player, err error) {
	ctx, span := that.startSpan(ctx, "ResetSession", attribute.String("session.id", id))
	defer func() { endSpan(span, err) }()

	var (
		updated *entity.Session
		players []*entity.Player
	)

	key := sessionKey(id)
	err = that.watch(ctx, func(tx *redis.Tx) error {
		playerIDs, txErr := tx.ZRange(ctx, playersKey(id), 0, -1).Result()
		if txErr != nil {
			return fmt.Errorf("failed to list players: %w", txErr)
		}

		playerKeys := make([]string, len(playerIDs))
		for i, playerID := range playerIDs {
			playerKeys[i] = playerKey(playerID)
		}

		if len(playerKeys) > 0 {
			if txErr = tx.Watch(ctx, playerKeys...).Err(); txErr != nil {
				return fmt.Errorf("failed to watch players: %w", txErr)
			}
		}

		session, txErr := readJSON[entity.Session](ctx, tx, key)
		if txErr != nil {
			return txErr
		}

		current, txErr := readPlayers(ctx, tx, playerKeys)
		if txErr != nil {
			return txErr
		}

		if txErr = patch.Apply(session, current); txErr != nil {
			return txErr
		}

		_, txErr = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			sessionJSON, marshalErr := json.Marshal(session)
			if marshalErr != nil {
				return fmt.Errorf("could not marshal session: %w", marshalErr)
			}
			pipe.Set(ctx, key, sessionJSON, that.ttl)

			for _, player := range current {
				playerJSON, marshalErr := json.Marshal(player)
				if marshalErr != nil {
					return fmt.Errorf("could not marshal player: %w", marshalErr)
				}
				pipe.Set(ctx, playerKey(player.ID), playerJSON, that.ttl)
			}

			that.touch(ctx, pipe, session, nil)

			return nil
		})
		if txErr != nil {
			return fmt.Errorf("failed to reset session: %w", txErr)
		}

		updated, players = session, current

		return nil
	}, key, playersKey(id))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reset session %s: %w", id, err)
	}

	events := make([]ChangeEvent, 0, len(players)+1)
	events = append(events, ChangeEvent{Entity: EntitySession, Kind: KindUpdate, Session: updated})
	for _, player := range players {
		events = append(events, ChangeEvent{Entity: EntityPlayer, Kind: KindUpdate, Player: player})
	}
	that.publish(ctx, id, events...)

	out := make([]*entity.Player, len(players))
	for i, player := range players {
		out[i] = player.Clone()
	}

	return updated.Clone(), out, nil
}
