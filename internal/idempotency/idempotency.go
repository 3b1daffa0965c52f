// Package idempotency guards at-least-once deliveries with a Redis lock and a processed marker.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrStoreUnavailable   = errors.New("idempotency store unavailable")
)

// Store is the slice of the redis adapter the guard needs.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exist(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type Config struct {
	LockTTL      time.Duration
	ProcessedTTL time.Duration

	// MaxRetries <= 0 turns retry accounting off.
	MaxRetries int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

// PaymentConfig guards webhook redeliveries. The database is authoritative so retries are not counted.
func PaymentConfig(lockTTL, processedTTL time.Duration) Config {
	return Config{
		LockTTL:            lockTTL,
		ProcessedTTL:       processedTTL,
		LockKeyPrefix:      "payment:lock:",
		ProcessedKeyPrefix: "payment:processed:",
	}
}

func NotificationConfig(lockTTL, processedTTL time.Duration, maxRetries int) Config {
	return Config{
		LockTTL:            lockTTL,
		ProcessedTTL:       processedTTL,
		MaxRetries:         maxRetries,
		RetryKeyPrefix:     "notify:retry:",
		LockKeyPrefix:      "notify:lock:",
		ProcessedKeyPrefix: "notify:processed:",
	}
}

type Service struct {
	store  Store
	config Config
}

func NewService(store Store, config Config) *Service {
	return &Service{
		store:  store,
		config: config,
	}
}

type ProcessingContext struct {
	Key          string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
}

func (s *Service) AcquireProcessingLock(ctx context.Context, key string) (*ProcessingContext, error) {
	exists, err := s.store.Exist(ctx, s.config.ProcessedKeyPrefix+key)
	if err != nil {
		// a missed marker costs at most a duplicate attempt
		logger.Warn("failed to check processed marker", "key", key, "error", err)
	} else if exists > 0 {
		logger.Debug("already processed, skipping", "key", key)
		return nil, ErrAlreadyProcessed
	}

	retryCount := 0
	if s.config.MaxRetries > 0 {
		retryCount, err = s.GetRetryCount(ctx, key)
		if err != nil {
			logger.Warn("failed to read retry counter", "key", key, "error", err)
		}
		if retryCount >= s.config.MaxRetries {
			logger.Error("max retries exceeded", "key", key, "retry_count", retryCount)
			return nil, fmt.Errorf("%w: key=%s, retries=%d", ErrMaxRetriesExceeded, key, retryCount)
		}
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.store.SetNX(ctx, s.config.LockKeyPrefix+key, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("failed to acquire lock", "key", key, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !acquired {
		logger.Info("lock already held by another consumer", "key", key)
		return nil, ErrLockAcquireFailed
	}

	return &ProcessingContext{
		Key:          key,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
	}, nil
}

// MarkSuccess sets the long-lived processed marker and drops the lock and retry counter.
func (s *Service) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.store.Set(ctx, s.config.ProcessedKeyPrefix+pc.Key, []byte("1"), s.config.ProcessedTTL); err != nil {
		logger.Error("failed to set processed marker", "key", pc.Key, "error", err)
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	if err := s.store.Del(ctx, s.config.LockKeyPrefix+pc.Key); err != nil {
		logger.Warn("failed to cleanup lock", "key", pc.Key, "error", err)
	}
	if s.config.MaxRetries > 0 {
		if err := s.store.Del(ctx, s.config.RetryKeyPrefix+pc.Key); err != nil {
			logger.Warn("failed to cleanup retry counter", "key", pc.Key, "error", err)
		}
	}
	pc.lockAcquired = false
	return nil
}

// MarkFailure bumps the retry counter and frees the lock so the next delivery can try.
func (s *Service) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	if s.config.MaxRetries > 0 {
		n, err := s.store.Incr(ctx, s.config.RetryKeyPrefix+pc.Key, s.config.ProcessedTTL)
		if err != nil {
			logger.Error("failed to increment retry counter", "key", pc.Key, "error", err)
		} else {
			pc.RetryCount = int(n)
		}
	}

	logger.Warn("processing failed, will retry",
		"key", pc.Key,
		"retry_count", pc.RetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return s.ReleaseLock(ctx, pc)
}

func (s *Service) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}

	if err := s.store.Del(ctx, s.config.LockKeyPrefix+pc.Key); err != nil {
		logger.Warn("failed to release lock", "key", pc.Key, "error", err)
		return err
	}

	pc.lockAcquired = false
	return nil
}

func (s *Service) GetRetryCount(ctx context.Context, key string) (int, error) {
	raw, err := s.store.Get(ctx, s.config.RetryKeyPrefix+key)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *Service) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.store.Exist(ctx, s.config.ProcessedKeyPrefix+key)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
