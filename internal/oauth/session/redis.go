package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore implements Store on redis so that every instance behind a load
// balancer sees every in-flight session. Expiry rides on the key TTL.
type redisStore struct {
	rdb    *redis.Client
	prefix string
}

// RedisConfig configures the redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis creates the shared fallback store and verifies connectivity.
func NewRedis(ctx context.Context, cfg RedisConfig) (Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "oauthsess"
	}
	return &redisStore{rdb: rdb, prefix: prefix}, nil
}

func (r *redisStore) key(state string) string {
	return r.prefix + ":" + state
}

func (r *redisStore) Save(ctx context.Context, state string, s Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key(state), b, TTL).Err()
}

func (r *redisStore) Get(ctx context.Context, state string) (*Session, bool) {
	b, err := r.rdb.Get(ctx, r.key(state)).Bytes()
	if err != nil {
		return nil, false
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, false
	}
	if s.Expired(time.Now()) {
		return nil, false
	}
	return &s, true
}

func (r *redisStore) Delete(ctx context.Context, state string) error {
	return r.rdb.Del(ctx, r.key(state)).Err()
}
