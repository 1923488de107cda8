package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
)

const (
	keyPrefix = "bingo:"

	maxWatchRetries = 5
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps every row as a JSON value under its own key and publishes
// changes on a per-session Pub/Sub channel.
type RedisStore struct {
	logger *slog.Logger
	client *redis.Client
	tracer trace.Tracer

	ttl time.Duration
	now func() time.Time
}

func NewRedisStore(logger *slog.Logger, client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		logger: logger.With("component", "redis-store"),
		client: client,
		tracer: otel.Tracer("github.com/rocketscienceinc/bingo-backend/internal/repository"),
		ttl:    ttl,
		now:    time.Now,
	}
}

func sessionKey(id string) string {
	return keyPrefix + "session:" + id
}

func codeKey(code string) string {
	return keyPrefix + "code:" + code
}

func playersKey(sessionID string) string {
	return keyPrefix + "session:" + sessionID + ":players"
}

func playerKey(id string) string {
	return keyPrefix + "player:" + id
}

// ChangesChannel is the Pub/Sub channel carrying a session's row changes.
func ChangesChannel(sessionID string) string {
	return keyPrefix + "session:" + sessionID + ":changes"
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readJSON[T any](ctx context.Context, client getter, key string) (*T, error) {
	response, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrNotFound, key)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	var value T
	if err = json.Unmarshal(response, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	return &value, nil
}

// watch runs fn as an optimistic transaction, retrying when a watched key changes underneath it.
func (that *RedisStore) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := that.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return fmt.Errorf("%w: watched keys kept changing", apperror.ErrConflict)
}

// touch refreshes the idle TTL of every key belonging to a session.
func (that *RedisStore) touch(ctx context.Context, pipe redis.Pipeliner, session *entity.Session, playerIDs []string) {
	if that.ttl <= 0 {
		return
	}

	pipe.Expire(ctx, sessionKey(session.ID), that.ttl)
	pipe.Expire(ctx, codeKey(session.Code), that.ttl)
	pipe.Expire(ctx, playersKey(session.ID), that.ttl)

	for _, id := range playerIDs {
		pipe.Expire(ctx, playerKey(id), that.ttl)
	}
}

func (that *RedisStore) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return that.tracer.Start(ctx, "repository."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}

	span.End()
}
