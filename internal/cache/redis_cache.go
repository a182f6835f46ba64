package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Cache on a Redis instance. Entries carry a TTL so an
// abandoned ride does not linger forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr, password string, ttl time.Duration) *Redis {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{client: c, ttl: ttl}
}

func (r *Redis) Save(ctx context.Context, rideID string, st CachedState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, stateKey(rideID), b, r.ttl).Err()
}

func (r *Redis) Load(ctx context.Context, rideID string) (CachedState, bool, error) {
	b, err := r.client.Get(ctx, stateKey(rideID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedState{}, false, nil
	}
	if err != nil {
		return CachedState{}, false, err
	}
	var st CachedState
	if err := json.Unmarshal(b, &st); err != nil {
		return CachedState{}, false, err
	}
	return st, true, nil
}

func (r *Redis) Clear(ctx context.Context, rideID string) error {
	return r.client.Del(ctx, stateKey(rideID)).Err()
}

func (r *Redis) Close() error { return r.client.Close() }

func stateKey(rideID string) string { return "ride:sync:" + rideID }
