package idempotency

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/testutil"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failAll error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.data[key] = value
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return false, m.failAll
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	v, ok := m.data[key]
	if !ok {
		return nil, redis.NilError
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryStore) Exist(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return 0, m.failAll
	}
	if _, ok := m.data[key]; ok {
		return 1, nil
	}
	return 0, nil
}

func (m *memoryStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(string(m.data[key]), 10, 64)
	n++
	m.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func testConfig() Config {
	return Config{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "retry:",
		LockKeyPrefix:      "lock:",
		ProcessedKeyPrefix: "processed:",
	}
}

func TestService_AcquireProcessingLock_FirstAttempt(t *testing.T) {
	service := NewService(newMemoryStore(), testConfig())

	pc, err := service.AcquireProcessingLock(context.Background(), "msg-1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if pc.Key != "msg-1" {
		t.Errorf("expected key msg-1, got %s", pc.Key)
	}
	if pc.IsRetry || pc.RetryCount != 0 {
		t.Errorf("expected a first attempt, got retry count %d", pc.RetryCount)
	}
	if !pc.lockAcquired {
		t.Error("expected lock to be acquired")
	}
}

func TestService_AcquireProcessingLock_Concurrent(t *testing.T) {
	service := NewService(newMemoryStore(), testConfig())
	ctx := context.Background()

	first, err := service.AcquireProcessingLock(ctx, "msg-2")
	if err != nil {
		t.Fatalf("first lock acquisition failed: %v", err)
	}

	second, err := service.AcquireProcessingLock(ctx, "msg-2")
	if !errors.Is(err, ErrLockAcquireFailed) {
		t.Errorf("expected ErrLockAcquireFailed, got: %v", err)
	}
	if second != nil {
		t.Error("expected nil context for second consumer")
	}
	if !first.lockAcquired {
		t.Error("first consumer should still hold the lock")
	}
}

func TestService_MarkSuccess(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, testConfig())
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "msg-3")
	require.NoError(t, err)
	require.NoError(t, service.MarkSuccess(ctx, pc))

	processed, err := service.IsProcessed(ctx, "msg-3")
	require.NoError(t, err)
	assert.True(t, processed)

	_, err = service.AcquireProcessingLock(ctx, "msg-3")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	_, locked := store.data["lock:msg-3"]
	assert.False(t, locked)
}

func TestService_MarkFailure_CountsRetries(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	service := NewService(newMemoryStore(), cfg)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		pc, err := service.AcquireProcessingLock(ctx, "msg-4")
		require.NoError(t, err)
		assert.Equal(t, i-1, pc.RetryCount)
		require.NoError(t, service.MarkFailure(ctx, pc, errors.New("provider down")))
	}

	count, err := service.GetRetryCount(ctx, "msg-4")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = service.AcquireProcessingLock(ctx, "msg-4")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestService_RetriesDisabled(t *testing.T) {
	service := NewService(newMemoryStore(), PaymentConfig(time.Second, time.Hour))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		pc, err := service.AcquireProcessingLock(ctx, "ref")
		require.NoError(t, err)
		require.NoError(t, service.MarkFailure(ctx, pc, errors.New("tx aborted")))
	}
}

func TestService_StoreUnavailable(t *testing.T) {
	store := newMemoryStore()
	store.failAll = errors.New("connection refused")
	service := NewService(store, testConfig())

	_, err := service.AcquireProcessingLock(context.Background(), "msg-5")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestService_ReleaseLock(t *testing.T) {
	service := NewService(newMemoryStore(), testConfig())
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "msg-6")
	require.NoError(t, err)
	require.NoError(t, service.ReleaseLock(ctx, pc))
	require.NoError(t, service.ReleaseLock(ctx, pc))
	require.NoError(t, service.ReleaseLock(ctx, nil))

	again, err := service.AcquireProcessingLock(ctx, "msg-6")
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestService_WithRedis(t *testing.T) {
	mr, adapter := testutil.SetupTestRedis(t)
	service := NewService(adapter, NotificationConfig(time.Minute, time.Hour, 3))
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "n-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("notify:lock:n-1"))

	require.NoError(t, service.MarkFailure(ctx, pc, errors.New("timeout")))
	assert.False(t, mr.Exists("notify:lock:n-1"))
	v, err := mr.Get("notify:retry:n-1")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	pc, err = service.AcquireProcessingLock(ctx, "n-1")
	require.NoError(t, err)
	assert.True(t, pc.IsRetry)
	require.NoError(t, service.MarkSuccess(ctx, pc))
	assert.True(t, mr.Exists("notify:processed:n-1"))
	assert.False(t, mr.Exists("notify:retry:n-1"))
	assert.Greater(t, mr.TTL("notify:processed:n-1"), time.Duration(0))
}
