package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/client"
	"github.com/gomcpgo/scene_edit_ai/pkg/config"
)

// Cache stores edit results by request key
type Cache interface {
	Get(ctx context.Context, key string) (*client.EditResult, error)
	Set(ctx context.Context, key string, result *client.EditResult) error
	Close() error
}

// Nop never hits
type Nop struct{}

func (Nop) Get(context.Context, string) (*client.EditResult, error) { return nil, nil }
func (Nop) Set(context.Context, string, *client.EditResult) error   { return nil }
func (Nop) Close() error                                            { return nil }

// RedisCache keeps edit results in redis under "edit:<md5>"
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache for cfg. It does not connect
func NewRedisCache(cfg *config.RedisConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisCache{client: rdb, ttl: cfg.TTL}
}

func (s *RedisCache) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns nil, nil on a miss
func (s *RedisCache) Get(ctx context.Context, key string) (*client.EditResult, error) {
	data, err := s.client.Get(ctx, "edit:"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var result client.EditResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *RedisCache) Set(ctx context.Context, key string, result *client.EditResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "edit:"+key, data, s.ttl).Err()
}

func (s *RedisCache) Close() error {
	return s.client.Close()
}

// Open returns a redis cache when enabled and reachable, otherwise Nop
func Open(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return Nop{}
	}
	rc := NewRedisCache(cfg)
	if err := rc.Ping(ctx); err != nil {
		logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		_ = rc.Close()
		return Nop{}
	}
	logger.Info("redis connected successfully", zap.String("addr", cfg.Addr))
	return rc
}

// Key hashes everything that determines an edit's output
func Key(family string, req client.EditRequest) string {
	h := md5.New()
	h.Write([]byte(family))
	h.Write([]byte{0})
	h.Write(req.Image)
	for _, ref := range req.References {
		h.Write([]byte{0})
		h.Write(ref)
	}
	h.Write([]byte{0})
	h.Write([]byte(req.Instruction))
	opts, _ := json.Marshal(req.Options)
	h.Write(opts)
	return hex.EncodeToString(h.Sum(nil))
}

// cachingClient answers repeated edits from the cache
type cachingClient struct {
	client.EditClient
	cache Cache
	log   *zap.Logger
}

// WithCache wraps c so identical requests reuse a stored result. Cache
// failures are logged and never fail the edit
func WithCache(c client.EditClient, cache Cache, logger *zap.Logger) client.EditClient {
	if cache == nil {
		return c
	}
	if _, ok := cache.(Nop); ok {
		return c
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachingClient{EditClient: c, cache: cache, log: logger}
}

func (c *cachingClient) Edit(ctx context.Context, req client.EditRequest) (*client.EditResult, error) {
	key := Key(c.Family(), req)

	cached, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("failed to get cache", zap.Error(err))
	}
	if cached != nil {
		c.log.Info("cache hit", zap.String("cache_key", key))
		return cached, nil
	}

	res, err := c.EditClient.Edit(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, res); err != nil {
		c.log.Warn("failed to set cache", zap.Error(err))
	}
	return res, nil
}
