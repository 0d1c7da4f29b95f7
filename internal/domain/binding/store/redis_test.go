package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) *redisStore {
	t.Helper()
	mr := miniredis.RunT(t)

	repo, err := NewRedis(Config{
		Driver: DriverRedis,
		Redis:  &RedisConfig{Addr: mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(context.Background()) })

	return repo.(*redisStore)
}

func TestRedisStore(t *testing.T) {
	repo := newRedisTestStore(t)
	runStoreSuite(t, repo)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	repo := newRedisTestStore(t)
	assert.Equal(t, defaultRedisPrefix+"alice:phone-1", repo.key("alice", "phone-1"))
}

func TestRedisStoreRequiresAddr(t *testing.T) {
	_, err := NewRedis(Config{Driver: DriverRedis})
	assert.Error(t, err)

	_, err = NewRedis(Config{Driver: DriverRedis, Redis: &RedisConfig{}})
	assert.Error(t, err)
}
