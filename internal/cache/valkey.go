package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marquee/internal/config"
	"marquee/internal/models"
)

const settingsKey = "settings:admin"

// unlockScript deletes the lease only while it is still held by owner.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type ValkeyClient struct {
	client      *redis.Client
	settingsTTL time.Duration
}

func NewValkeyClient(cfg config.RedisConfig) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return NewValkeyClientFrom(rdb, cfg.SettingsTTL), nil
}

// NewValkeyClientFrom wraps an already configured client.
func NewValkeyClientFrom(rdb *redis.Client, settingsTTL time.Duration) *ValkeyClient {
	return &ValkeyClient{
		client:      rdb,
		settingsTTL: settingsTTL,
	}
}

// GetSettings returns the cached settings; ok is false on a cache miss.
func (v *ValkeyClient) GetSettings(ctx context.Context) (*models.AdminSettings, bool, error) {
	raw, err := v.client.Get(ctx, settingsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache lookup error: %w", err)
	}

	var s models.AdminSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("invalid settings in cache: %w", err)
	}
	return &s, true, nil
}

func (v *ValkeyClient) SetSettings(ctx context.Context, s *models.AdminSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := v.client.Set(ctx, settingsKey, raw, v.settingsTTL).Err(); err != nil {
		return fmt.Errorf("cache store error: %w", err)
	}
	return nil
}

func (v *ValkeyClient) InvalidateSettings(ctx context.Context) error {
	if err := v.client.Del(ctx, settingsKey).Err(); err != nil {
		return fmt.Errorf("cache invalidate error: %w", err)
	}
	return nil
}

// TryLock takes a lease on key for ttl. It reports false when another owner
// holds it.
func (v *ValkeyClient) TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := v.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lease acquire error: %w", err)
	}
	return ok, nil
}

// Unlock releases a lease taken by owner. A lease that expired and was taken
// by someone else is left alone.
func (v *ValkeyClient) Unlock(ctx context.Context, key, owner string) error {
	if err := v.client.Eval(ctx, unlockScript, []string{key}, owner).Err(); err != nil {
		return fmt.Errorf("lease release error: %w", err)
	}
	return nil
}

func (v *ValkeyClient) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
