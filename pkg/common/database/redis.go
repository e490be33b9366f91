package database

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/hospital-insights/pkg/common/config"
	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
)

const redisPingTimeout = 5 * time.Second

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns the process-wide client of the online feature cache. The
// first call dials with cfg; later calls return the same client and ignore
// their argument. An unreachable server is logged and the client is still
// returned, so feature lookups fail per request and fall back to the offline
// table.
func GetRedis(cfg *config.Config) *redis.Client {
	redisOnce.Do(func() {
		redisClient = redis.NewClient(redisOptions(cfg))

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()

		entry := logger.Log.WithField("addr", redisClient.Options().Addr)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			entry.WithError(err).Warn("Feature cache unreachable")
		} else {
			entry.Info("Connected to feature cache")
		}
	})

	return redisClient
}

func redisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:        net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: redisPingTimeout,
	}
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
