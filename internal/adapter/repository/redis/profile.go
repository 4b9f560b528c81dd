package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	domain "bitguardian/internal/domain/profile"

	"github.com/redis/go-redis/v9"
)

type ProfileRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewProfileRepository stores profiles with the given TTL; 0 keeps them forever.
func NewProfileRepository(rdb *redis.Client, ttl time.Duration) *ProfileRepository {
	return &ProfileRepository{rdb: rdb, ttl: ttl}
}

func profileKey(wallet string) string { return "user:" + strings.ToLower(strings.TrimSpace(wallet)) }

func (r *ProfileRepository) Save(ctx context.Context, p *domain.Profile) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, profileKey(p.WalletAddress), payload, r.ttl).Err()
}

func (r *ProfileRepository) GetByWallet(ctx context.Context, wallet string) (*domain.Profile, error) {
	v, err := r.rdb.Get(ctx, profileKey(wallet)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p domain.Profile
	if err := json.Unmarshal(v, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
