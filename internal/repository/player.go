package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/internal/pkg"
)

func (that *RedisStore) CreatePlayer(ctx context.Context, newPlayer NewPlayer) (_ *entity.Player, err error) {
	ctx, span := that.startSpan(ctx, "CreatePlayer", attribute.String("session.id", newPlayer.SessionID))
	defer func() { endSpan(span, err) }()

	session, err := that.GetSessionByID(ctx, newPlayer.SessionID)
	if err != nil {
		return nil, err
	}

	player := entity.NewPlayer(pkg.GenerateID(), session.ID, newPlayer.Name, newPlayer.IsHost, session.Round, that.now())

	if player.Secret, err = pkg.GenerateSecret(); err != nil {
		return nil, fmt.Errorf("failed to generate player secret: %w", err)
	}

	playerJSON, err := json.Marshal(player)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal player: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, playerKey(player.ID), playerJSON, that.ttl)
		pipe.ZAdd(ctx, playersKey(session.ID), redis.Z{
			Score:  float64(player.CreatedAt.UnixMicro()),
			Member: player.ID,
		})
		that.touch(ctx, pipe, session, nil)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set player: %w", err)
	}

	that.publish(ctx, session.ID, ChangeEvent{Entity: EntityPlayer, Kind: KindInsert, Player: player})

	return player.Clone(), nil
}

// ListPlayers returns the session's players in display order. Players whose
// rows expired are skipped.
func (that *RedisStore) ListPlayers(ctx context.Context, sessionID string) ([]*entity.Player, error) {
	playerIDs, err := that.client.ZRange(ctx, playersKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	keys := make([]string, len(playerIDs))
	for i, id := range playerIDs {
		keys[i] = playerKey(id)
	}

	players, err := readPlayers(ctx, that.client, keys)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(players, func(a, b *entity.Player) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})

	return players, nil
}

func (that *RedisStore) UpdatePlayer(ctx context.Context, id string, patch PlayerPatch) (_ *entity.Player, err error) {
	ctx, span := that.startSpan(ctx, "UpdatePlayer", attribute.String("player.id", id))
	defer func() { endSpan(span, err) }()

	current, err := readJSON[entity.Player](ctx, that.client, playerKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read player: %w", err)
	}

	var updated *entity.Player

	pKey, sKey := playerKey(id), sessionKey(current.SessionID)
	err = that.watch(ctx, func(tx *redis.Tx) error {
		player, txErr := readJSON[entity.Player](ctx, tx, pKey)
		if txErr != nil {
			return txErr
		}

		session, txErr := readJSON[entity.Session](ctx, tx, sKey)
		if txErr != nil {
			return txErr
		}

		if txErr = patch.Apply(player, session.Round); txErr != nil {
			return txErr
		}

		playerIDs, txErr := tx.ZRange(ctx, playersKey(session.ID), 0, -1).Result()
		if txErr != nil {
			return fmt.Errorf("failed to list players: %w", txErr)
		}

		playerJSON, txErr := json.Marshal(player)
		if txErr != nil {
			return fmt.Errorf("failed to marshal player: %w", txErr)
		}

		_, txErr = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, pKey, playerJSON, that.ttl)
			that.touch(ctx, pipe, session, playerIDs)
			return nil
		})
		if txErr != nil {
			return fmt.Errorf("failed to set player: %w", txErr)
		}

		updated = player

		return nil
	}, pKey, sKey)
	if err != nil {
		return nil, fmt.Errorf("failed to update player %s: %w", id, err)
	}

	that.publish(ctx, updated.SessionID, ChangeEvent{Entity: EntityPlayer, Kind: KindUpdate, Player: updated})

	return updated.Clone(), nil
}

type multiGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func readPlayers(ctx context.Context, client multiGetter, keys []string) ([]*entity.Player, error) {
	if len(keys) == 0 {
		return []*entity.Player{}, nil
	}

	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}

	players := make([]*entity.Player, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var player entity.Player
		if err = json.Unmarshal([]byte(raw), &player); err != nil {
			return nil, fmt.Errorf("failed to unmarshal player %s: %w", keys[i], err)
		}

		players = append(players, &player)
	}

	return players, nil
}
