//go:build integration

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"linkage/internal/platform/config"
	"linkage/internal/platform/redis"
	"linkage/pkg/platform/sentinel"
	"linkage/pkg/testutil/containers"
)

type LockerSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(LockerSuite))
}

func (s *LockerSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *LockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *LockerSuite) TestClientFromConfig() {
	ctx := context.Background()
	client, err := redis.New(ctx, config.RedisConfig{URL: s.redis.URL, PoolSize: 4})
	s.Require().NoError(err)
	defer client.Close()
	s.NoError(client.Health(ctx))

	none, err := redis.New(ctx, config.RedisConfig{})
	s.NoError(err)
	s.Nil(none)
}

func (s *LockerSuite) TestMutualExclusion() {
	ctx := context.Background()
	locker := redis.NewLocker(s.redis.Client, redis.WithRetryInterval(5*time.Millisecond))

	const workers = 20
	var (
		wg      sync.WaitGroup
		holders atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "identify", 5*time.Second)
			if !s.NoError(err) {
				return
			}
			n := holders.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			holders.Add(-1)
			s.NoError(release(ctx))
		}()
	}
	wg.Wait()
	s.Equal(int32(1), maxSeen.Load())
}

func (s *LockerSuite) TestHeldLockTimesOut() {
	ctx := context.Background()
	locker := redis.NewLocker(s.redis.Client,
		redis.WithRetryInterval(5*time.Millisecond),
		redis.WithMaxWait(50*time.Millisecond),
	)

	release, err := locker.Acquire(ctx, "identify", 5*time.Second)
	s.Require().NoError(err)
	defer func() { _ = release(ctx) }()

	_, err = locker.Acquire(ctx, "identify", 5*time.Second)
	s.ErrorIs(err, sentinel.ErrLockHeld)
}

func (s *LockerSuite) TestReleaseKeepsForeignLock() {
	ctx := context.Background()
	locker := redis.NewLocker(s.redis.Client, redis.WithKeyPrefix("test:"))

	release, err := locker.Acquire(ctx, "identify", 5*time.Second)
	s.Require().NoError(err)

	// Simulate expiry followed by another owner taking the key.
	s.Require().NoError(s.redis.Client.Set(ctx, "test:identify", "someone-else", 0).Err())

	s.ErrorIs(release(ctx), sentinel.ErrLockHeld)
	owner, err := s.redis.Client.Get(ctx, "test:identify").Result()
	s.Require().NoError(err)
	s.Equal("someone-else", owner)
}

func (s *LockerSuite) TestLockExpires() {
	ctx := context.Background()
	locker := redis.NewLocker(s.redis.Client)

	_, err := locker.Acquire(ctx, "identify", 50*time.Millisecond)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		_, err := s.redis.Client.Get(ctx, "linkage:lock:identify").Result()
		return err == goredis.Nil
	}, 2*time.Second, 20*time.Millisecond)

	release, err := locker.Acquire(ctx, "identify", time.Second)
	s.Require().NoError(err)
	s.NoError(release(ctx))
}
