package queue

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/cashback-ledger/internal/testutil"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	return testutil.SetupTestRedis(t)
}

func TestQueue_PublishAndConsume(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := QueueConfig{
		Name:              "test:queue",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}

	queue, err := NewQueue(adapter, config)
	require.NoError(t, err)

	t.Run("publish and consume message", func(t *testing.T) {
		ctx := context.Background()
		testData := map[string]string{"key": "value"}

		_, err := queue.PublishJSON(ctx, testData, map[string]string{"type": "test"})
		require.NoError(t, err)

		received := make(chan bool, 1)
		handler := func(ctx context.Context, msg *Message) error {
			var data map[string]string
			err := json.Unmarshal(msg.Data, &data)
			assert.NoError(t, err)
			assert.Equal(t, "value", data["key"])
			assert.Equal(t, "test", msg.Metadata["type"])
			received <- true
			return nil
		}

		err = queue.Consume(handler)
		require.NoError(t, err)

		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("message not received")
		}

		queue.Stop(time.Second)
	})
}

func TestQueue_PublishJSON(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := QueueConfig{
		Name:              "test:json:queue",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
	}

	queue, err := NewQueue(adapter, config)
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	testObj := struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}{
		ID:   123,
		Name: "test",
	}

	_, err = queue.PublishJSON(ctx, testObj, map[string]string{"source": "test"})
	assert.NoError(t, err)
}

func TestQueue_RetryMechanism(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := QueueConfig{
		Name:              "test:retry:queue",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        5,
		VisibilityTimeout: 200 * time.Millisecond,
		PollInterval:      50 * time.Millisecond,
		BatchSize:         10,
		EnableDLQ:         true,
	}

	queue, err := NewQueue(adapter, config)
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	_, err = queue.PublishJSON(ctx, map[string]string{"test": "retry"}, nil)
	require.NoError(t, err)

	var attempts atomic.Int32
	done := make(chan int, 1)
	handler := func(ctx context.Context, msg *Message) error {
		n := attempts.Add(1)
		if n <= 2 {
			return assert.AnError
		}
		done <- msg.Attempts
		return nil
	}

	require.NoError(t, queue.Consume(handler))

	select {
	case previous := <-done:
		assert.GreaterOrEqual(t, previous, 1, "redelivery must report earlier attempts")
	case <-time.After(5 * time.Second):
		t.Fatal("message was not redelivered")
	}
}

func TestQueue_DeadLetter(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := QueueConfig{
		Name:              "test:dlq:queue",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        2,
		VisibilityTimeout: 100 * time.Millisecond,
		PollInterval:      50 * time.Millisecond,
		BatchSize:         10,
		EnableDLQ:         true,
	}

	queue, err := NewQueue(adapter, config)
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	_, err = queue.Publish(context.Background(), []byte(`{"poison":true}`), map[string]string{"kind": "RECEIPT"})
	require.NoError(t, err)

	require.NoError(t, queue.Consume(func(ctx context.Context, msg *Message) error {
		return assert.AnError
	}))

	require.Eventually(t, func() bool {
		stats, err := queue.GetStats()
		return err == nil && stats.DeadLetters == 1 && stats.PendingMessages == 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestQueue_GetStats(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := QueueConfig{
		Name:              "test:stats:queue",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
	}

	queue, err := NewQueue(adapter, config)
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := queue.PublishJSON(ctx, map[string]int{"count": i}, nil)
		require.NoError(t, err)
	}

	stats, err := queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(5))
}

func TestQueue_HandlerResultDecidesAck(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := QueueConfig{
		Name:              "test:ack:queue",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: time.Minute,
		PollInterval:      50 * time.Millisecond,
		BatchSize:         10,
	}

	queue, err := NewQueue(adapter, config)
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	_, err = queue.Publish(ctx, []byte(`{"ok":true}`), map[string]string{"outcome": "ok"})
	require.NoError(t, err)
	_, err = queue.Publish(ctx, []byte(`{"ok":false}`), map[string]string{"outcome": "fail"})
	require.NoError(t, err)

	var handled atomic.Int32
	require.NoError(t, queue.Consume(func(ctx context.Context, msg *Message) error {
		handled.Add(1)
		if msg.Metadata["outcome"] == "fail" {
			return assert.AnError
		}
		return nil
	}))

	require.Eventually(t, func() bool {
		stats, err := queue.GetStats()
		return err == nil && handled.Load() == 2 && stats.PendingMessages == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestQueueConfig_Validation(t *testing.T) {
	_, adapter := setupTestRedis(t)

	t.Run("valid config creates queue", func(t *testing.T) {
		config := QueueConfig{
			Name:              "valid:queue",
			ConsumerGroup:     "valid-group",
			ConsumerName:      "valid-consumer",
			MaxRetries:        3,
			VisibilityTimeout: 5 * time.Second,
			PollInterval:      100 * time.Millisecond,
			BatchSize:         10,
		}

		queue, err := NewQueue(adapter, config)
		assert.NoError(t, err)
		assert.NotNil(t, queue)
		queue.Stop(time.Second)
	})
}

func TestQueue_ConcurrentPublish(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := QueueConfig{
		Name:              "test:concurrent:queue",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
	}

	queue, err := NewQueue(adapter, config)
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	numGoroutines := 10
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			_, err := queue.PublishJSON(ctx, map[string]int{"id": id}, nil)
			assert.NoError(t, err)
			done <- true
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	stats, err := queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(numGoroutines))
}

func TestQueue_Stop(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := QueueConfig{
		Name:              "test:stop:queue",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
	}

	queue, err := NewQueue(adapter, config)
	require.NoError(t, err)

	handler := func(ctx context.Context, msg *Message) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	}

	err = queue.Consume(handler)
	require.NoError(t, err)

	err = queue.Stop(2 * time.Second)
	assert.NoError(t, err)
}
