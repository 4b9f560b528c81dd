package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// record is what the store keeps per key: a pending marker while the handler
// runs, then the final response.
type record struct {
	Pending   bool      `json:"pending"`
	Status    int       `json:"status,omitempty"`
	Body      []byte    `json:"body,omitempty"`
	BodyHash  string    `json:"body_hash"`
	RequestAt int64     `json:"request_at_ms"`
	SavedAt   time.Time `json:"saved_at"`
}

type store struct{ rdb *redis.Client }

// reserve claims key for pendingTTL. It reports false if the key is taken.
func (s *store) reserve(ctx context.Context, key string, r record) (bool, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, payload, pendingTTL).Result()
}

func (s *store) load(ctx context.Context, key string) (record, error) {
	var r record
	v, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return r, err
	}
	err = json.Unmarshal(v, &r)
	return r, err
}

// complete replaces the pending marker with the final response for ttl.
func (s *store) complete(ctx context.Context, key string, r record, ttl time.Duration) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, ttl).Err()
}
