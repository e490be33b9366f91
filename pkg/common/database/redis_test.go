package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synaptica-ai/hospital-insights/pkg/common/config"
)

func TestRedisOptions(t *testing.T) {
	opts := redisOptions(&config.Config{RedisHost: "cache", RedisPort: "6380", RedisPassword: "pw", RedisDB: 2})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, redisPingTimeout, opts.DialTimeout)

	opts = redisOptions(&config.Config{RedisHost: "::1", RedisPort: "6379"})
	assert.Equal(t, "[::1]:6379", opts.Addr)
}

func TestCloseRedisWithoutClient(t *testing.T) {
	assert.NoError(t, CloseRedis())
}
