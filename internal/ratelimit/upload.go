package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tunedesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyUploadUser = "tunedesk:upload:user:%s"
	keyUploadLock = "tunedesk:upload:lock:%s:%s:%s"
)

var (
	ErrRateLimited      = errors.New("rate_limited")
	ErrUploadInProgress = errors.New("upload_in_progress")
)

// RateLimitedError carries how long the caller should wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// UploadLimiter throttles report uploads per uploader and rejects a second
// upload of the same file into the same period and category while the first
// one is still being ingested. A nil limiter allows everything.
type UploadLimiter struct {
	bucket  *TokenBucket
	locker  *Locker
	rate    float64
	burst   int
	lockTTL time.Duration
	log     *zap.Logger
}

func NewUploadLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*UploadLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.UploadsPerMinute <= 0 || limitCfg.UploadBurst <= 0 {
		return nil, errors.New("upload rate limit must be positive")
	}
	if limitCfg.UploadLockTTLSeconds <= 0 {
		return nil, errors.New("upload lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return newUploadLimiter(client, limitCfg, log), nil
}

func newUploadLimiter(client redis.UniversalClient, cfg config.RateLimitConfig, log *zap.Logger) *UploadLimiter {
	return &UploadLimiter{
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    cfg.UploadsPerMinute / 60,
		burst:   cfg.UploadBurst,
		lockTTL: time.Duration(cfg.UploadLockTTLSeconds) * time.Second,
		log:     log.Named("ratelimit"),
	}
}

func (l *UploadLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowUploader takes one upload token for userID. Redis failures let the upload through.
func (l *UploadLimiter) AllowUploader(ctx context.Context, userID string) error {
	if !l.Enabled() {
		return nil
	}
	decision, err := l.bucket.Allow(ctx, fmt.Sprintf(keyUploadUser, strings.TrimSpace(userID)), l.rate, l.burst)
	if err != nil {
		l.log.Warn("upload rate limit check failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if !decision.Allowed {
		return &RateLimitedError{RetryAfter: decision.RetryAfter}
	}
	return nil
}

// LockUpload reserves (periodID, category, fileName) and returns the release func.
// Redis failures skip the reservation.
func (l *UploadLimiter) LockUpload(ctx context.Context, periodID, category, fileName string) (func(), error) {
	noop := func() {}
	if !l.Enabled() {
		return noop, nil
	}
	key := uploadLockKey(periodID, category, fileName)
	token, ok, err := l.locker.TryLock(ctx, key, l.lockTTL)
	if err != nil {
		l.log.Warn("upload lock failed", zap.String("key", key), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, ErrUploadInProgress
	}
	return func() {
		if err := l.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			l.log.Warn("upload lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func uploadLockKey(periodID, category, fileName string) string {
	return fmt.Sprintf(keyUploadLock,
		strings.TrimSpace(periodID),
		strings.ToLower(strings.TrimSpace(category)),
		strings.ToLower(strings.TrimSpace(fileName)),
	)
}
