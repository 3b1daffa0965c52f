// Package queue is a small at-least-once work queue on top of Redis streams and consumer groups.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
)

type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	// Attempts counts earlier deliveries of this message, 0 on the first one.
	Attempts int
}

// MessageHandler returns nil to ack. Any error leaves the message pending for a retry.
type MessageHandler func(ctx context.Context, msg *Message) error

type QueueConfig struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

type Queue struct {
	adapter    redis.RedisAdapter
	config     QueueConfig
	handler    MessageHandler
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	processing map[string]*Message
}

type QueueStats struct {
	TotalMessages   int64
	PendingMessages int64
	DeadLetters     int64
	ConsumerCount   int64
}

func NewQueue(adapter redis.RedisAdapter, config QueueConfig) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		adapter:    adapter,
		config:     config,
		ctx:        ctx,
		cancel:     cancel,
		processing: make(map[string]*Message),
	}

	if err := q.initConsumerGroup(); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		cancel()
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

func (q *Queue) initConsumerGroup() error {
	return q.adapter.XGroupCreateMkStream(q.ctx, q.config.Name, q.config.ConsumerGroup, "0")
}

func (q *Queue) Name() string {
	return q.config.Name
}

func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Unix(),
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(ctx, q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	if q.config.MaxLen > 0 {
		if err := q.adapter.XTrimApprox(ctx, q.config.Name, q.config.MaxLen); err != nil {
			logger.Warn("[queue] trim failed", "queue", q.config.Name, "error", err)
		}
	}

	return id, nil
}

func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.Publish(ctx, jsonData, metadata)
}

// Consume starts one polling loop. Call it once per queue instance.
func (q *Queue) Consume(handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	q.handler = handler
	q.wg.Add(1)

	go q.consumeLoop()

	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processMessages()
			q.claimStuckMessages()
		}
	}
}

func (q *Queue) processMessages() {
	messages, err := q.adapter.XReadGroup(
		q.ctx,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		if !errors.Is(err, redis.NilError) && q.ctx.Err() == nil {
			logger.Warn("[queue] read failed", "queue", q.config.Name, "error", err)
		}
		return
	}

	for _, streamMsg := range messages {
		if q.ctx.Err() != nil {
			return
		}
		msg := q.streamMessageToMessage(streamMsg)
		q.handleMessage(msg)
	}
}

func (q *Queue) claimStuckMessages() {
	pending, err := q.adapter.XPending(q.ctx, q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(q.ctx, q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	deliveries := make(map[string]int64, len(pendingExt))
	var idsToReclaim []string
	for _, msg := range pendingExt {
		if msg.Idle >= q.config.VisibilityTimeout {
			idsToReclaim = append(idsToReclaim, msg.ID)
			deliveries[msg.ID] = msg.RetryCount
		}
	}
	if len(idsToReclaim) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(
		q.ctx,
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		idsToReclaim...,
	)
	if err != nil {
		logger.Warn("[queue] claim failed", "queue", q.config.Name, "error", err)
		return
	}

	for _, streamMsg := range messages {
		if q.ctx.Err() != nil {
			return
		}
		msg := q.streamMessageToMessage(streamMsg)
		msg.Attempts = int(deliveries[msg.ID])
		q.handleMessage(msg)
	}
}

func (q *Queue) handleMessage(msg *Message) {
	q.mu.Lock()
	q.processing[msg.ID] = msg
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.processing, msg.ID)
		q.mu.Unlock()
	}()

	if msg.Attempts >= q.config.MaxRetries {
		logger.Error("[queue] max retries exceeded", "queue", q.config.Name, "id", msg.ID, "attempts", msg.Attempts)
		q.moveToDeadLetterQueue(msg)
		_ = q.ackMessage(msg.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		logger.Warn("[queue] handler failed, message left pending", "queue", q.config.Name, "id", msg.ID, "attempts", msg.Attempts, "error", err)
		return
	}

	if err := q.ackMessage(msg.ID); err != nil {
		logger.Warn("[queue] ack failed", "queue", q.config.Name, "id", msg.ID, "error", err)
	}
}

func (q *Queue) ackMessage(messageID string) error {
	return q.adapter.XAck(context.Background(), q.config.Name, q.config.ConsumerGroup, messageID)
}

func (q *Queue) deadLetterName() string {
	return q.config.Name + ":dlq"
}

func (q *Queue) moveToDeadLetterQueue(msg *Message) {
	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		"data":           string(msg.Data),
		"original_id":    msg.ID,
		"attempts":       msg.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range msg.Metadata {
		values["meta_"+k] = v
	}

	if _, err := q.adapter.XAdd(context.Background(), q.deadLetterName(), values); err != nil {
		logger.Error("[queue] dead letter publish failed", "queue", q.config.Name, "id", msg.ID, "error", err)
	}
}

func (q *Queue) streamMessageToMessage(streamMsg redis.StreamMessage) *Message {
	msg := &Message{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
	}

	for k, v := range streamMsg.Values {
		val, ok := v.(string)
		if !ok {
			continue
		}
		switch {
		case k == "data":
			msg.Data = []byte(val)
		case k == "timestamp":
			if unix, err := strconv.ParseInt(val, 10, 64); err == nil {
				msg.Timestamp = time.Unix(unix, 0)
			}
		case strings.HasPrefix(k, "meta_"):
			msg.Metadata[strings.TrimPrefix(k, "meta_")] = val
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	return msg
}

func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*QueueStats, error) {
	ctx := context.Background()
	totalMessages, err := q.adapter.XLen(ctx, q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &QueueStats{
		TotalMessages: totalMessages,
	}

	if pending, err := q.adapter.XPending(ctx, q.config.Name, q.config.ConsumerGroup); err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}
	if q.config.EnableDLQ {
		if dead, err := q.adapter.XLen(ctx, q.deadLetterName()); err == nil {
			stats.DeadLetters = dead
		}
	}

	return stats, nil
}
