package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tunedesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNilLimiterAllowsEverything(t *testing.T) {
	var limiter *UploadLimiter
	assert.False(t, limiter.Enabled())
	assert.NoError(t, limiter.AllowUploader(context.Background(), "user-1"))

	release, err := limiter.LockUpload(context.Background(), "p1", "royalty", "a.csv")
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}

func TestNewUploadLimiterDisabled(t *testing.T) {
	limiter, err := NewUploadLimiter(nil, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, limiter)
}

func TestNewUploadLimiterRejectsBadConfig(t *testing.T) {
	cases := []config.RateLimitConfig{
		{Enabled: true, RedisAddr: " ", UploadsPerMinute: 1, UploadBurst: 1, UploadLockTTLSeconds: 1},
		{Enabled: true, RedisAddr: "localhost:6379", UploadsPerMinute: 0, UploadBurst: 1, UploadLockTTLSeconds: 1},
		{Enabled: true, RedisAddr: "localhost:6379", UploadsPerMinute: 1, UploadBurst: 1, UploadLockTTLSeconds: 0},
	}
	for _, rl := range cases {
		_, err := NewUploadLimiter(nil, config.Config{RateLimit: rl}, zap.NewNop())
		assert.Error(t, err)
	}
}

func TestUnreachableRedisFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	limiter := newUploadLimiter(client, config.RateLimitConfig{
		UploadsPerMinute:     60,
		UploadBurst:          1,
		UploadLockTTLSeconds: 30,
	}, zap.NewNop())
	require.True(t, limiter.Enabled())

	assert.NoError(t, limiter.AllowUploader(context.Background(), "user-1"))
	release, err := limiter.LockUpload(context.Background(), "p1", "royalty", "a.csv")
	require.NoError(t, err)
	release()
}

func TestTokenBucketValidatesArguments(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)

	bucket = NewTokenBucket(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	_, err = bucket.Allow(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, errEmptyKey)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.Error(t, err)
}

func TestLockerValidatesArguments(t *testing.T) {
	assert.Nil(t, NewLocker(nil))

	var locker *Locker
	_, _, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, errLockNotConfigured)
	assert.NoError(t, locker.Release(context.Background(), "k", "token"))

	locker = NewLocker(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	_, _, err = locker.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, errEmptyKey)
	_, _, err = locker.TryLock(context.Background(), "k", 0)
	assert.Error(t, err)
}

func TestDecide(t *testing.T) {
	allowed := decide(true, 3.7, 1, 5)
	assert.True(t, allowed.Allowed)
	assert.Equal(t, 3, allowed.Remaining)
	assert.Equal(t, 5, allowed.Limit)
	assert.Zero(t, allowed.RetryAfter)

	denied := decide(false, 0.5, 0.5, 5)
	assert.False(t, denied.Allowed)
	assert.Equal(t, time.Second, denied.RetryAfter)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(0.5, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}

func TestScriptValueConversion(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(7), toInt("7"))
	assert.Equal(t, int64(0), toInt(nil))
	assert.InDelta(t, 2.25, toFloat("2.25"), 1e-9)
	assert.InDelta(t, 4, toFloat(int64(4)), 1e-9)
}

func TestRateLimitedError(t *testing.T) {
	err := error(&RateLimitedError{RetryAfter: time.Second})
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, "rate_limited", err.Error())
}

func TestUploadLockKeyNormalizes(t *testing.T) {
	assert.Equal(t,
		uploadLockKey(" p1 ", "Royalty", "March.CSV"),
		uploadLockKey("p1", "royalty", "march.csv"),
	)
}
