package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// keyPrefix namespaces session keys.
const keyPrefix = "import:session:"

// maxExtendRetries bounds optimistic retries when a watched key changes.
const maxExtendRetries = 3

// RedisStore keeps sessions in Redis with a server-side TTL, so sessions
// survive restarts and are shared across replicas.
type RedisStore struct {
	client *redis.Client
	opts   Options
}

// NewRedisClient parses url and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedisStore returns a store backed by client.
func NewRedisStore(client *redis.Client, opts Options) *RedisStore {
	return &RedisStore{client: client, opts: opts.withDefaults()}
}

// Close releases the client's connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(id string) string {
	return keyPrefix + id
}

// Put stores s under a new session id.
func (r *RedisStore) Put(ctx context.Context, s *core.ImportSession) (*core.ImportSession, error) {
	stamp(s, r.opts.Now(), r.opts.TTL)

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, r.opts.TTL).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return s, nil
}

// Get returns the session with id.
func (r *RedisStore) Get(ctx context.Context, id string) (*core.ImportSession, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		return nil, mapRedisError(err)
	}
	return r.decode(data)
}

// Consume removes and returns the session with GETDEL.
func (r *RedisStore) Consume(ctx context.Context, id string) (*core.ImportSession, error) {
	data, err := r.client.GetDel(ctx, r.key(id)).Bytes()
	if err != nil {
		return nil, mapRedisError(err)
	}
	return r.decode(data)
}

// Extend restarts the session window inside a WATCH transaction.
func (r *RedisStore) Extend(ctx context.Context, id string, d time.Duration) (*core.ImportSession, error) {
	key := r.key(id)
	var extended *core.ImportSession

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return mapRedisError(err)
		}
		s, err := r.decode(data)
		if err != nil {
			return err
		}

		s.ExpiresAt = r.opts.Now().Add(d)
		updated, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, d)
			return nil
		})
		if err == nil {
			extended = s
		}
		return err
	}

	for i := 0; i < maxExtendRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return extended, nil
	}
	return nil, fmt.Errorf("extend session %s: concurrent update", id)
}

// decode unmarshals a session and enforces its expiry against the local clock.
func (r *RedisStore) decode(data []byte) (*core.ImportSession, error) {
	var s core.ImportSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Expired(r.opts.Now()) {
		return nil, core.ErrSessionExpired
	}
	return &s, nil
}

func mapRedisError(err error) error {
	if errors.Is(err, redis.Nil) {
		return core.ErrSessionNotFound
	}
	return fmt.Errorf("redis: %w", err)
}
