package redis

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var NilError = goredis.Nil

type Options = goredis.UniversalOptions

// StreamMessage represents a message in Redis Stream
type StreamMessage struct {
	ID     string
	Values map[string]interface{}
}

type RedisAdapter interface {
	// Key/value
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exist(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
	Client() goredis.UniversalClient

	// Stream operations
	XAdd(ctx context.Context, key string, values map[string]interface{}) (string, error)
	XReadGroup(ctx context.Context, group, consumer, key, id string, count int64) ([]StreamMessage, error)
	XAck(ctx context.Context, key, group string, ids ...string) error
	XGroupCreateMkStream(ctx context.Context, key, group, start string) error
	XLen(ctx context.Context, key string) (int64, error)
	XTrimApprox(ctx context.Context, key string, maxLen int64) error
	XPending(ctx context.Context, key, group string) (*goredis.XPending, error)
	XPendingExt(ctx context.Context, key, group string, start, end string, count int64) ([]goredis.XPendingExt, error)
	XClaim(ctx context.Context, key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error)
}

type redisAdapter struct {
	prefix   string
	Conn     goredis.UniversalClient
	ConnName string
}

var redisLock = &sync.RWMutex{}
var redisInstance map[string]RedisAdapter

func NewRedisAdapter(connName string, keysPrefix string, opts *goredis.UniversalOptions) (RedisAdapter, error) {
	redisLock.RLock()
	if redisInstance != nil {
		if adapter, ok := redisInstance[connName]; ok {
			redisLock.RUnlock()
			return adapter, nil
		}
	}
	redisLock.RUnlock()

	c := goredis.NewUniversalClient(opts)
	if cmd := c.Ping(context.Background()); cmd.Err() != nil {
		_ = c.Close()
		return nil, cmd.Err()
	}

	adapter := &redisAdapter{
		Conn:     c,
		prefix:   keysPrefix,
		ConnName: connName,
	}

	redisLock.Lock()
	defer redisLock.Unlock()
	if redisInstance == nil {
		redisInstance = make(map[string]RedisAdapter)
	}
	if existing, ok := redisInstance[connName]; ok {
		_ = c.Close()
		return existing, nil
	}
	redisInstance[connName] = adapter

	return adapter, nil
}

func (r *redisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.Conn.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *redisAdapter) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	cmd := r.Conn.SetNX(ctx, r.prefix+key, value, ttl)
	if err := cmd.Err(); err != nil {
		return false, err
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	st := r.Conn.Get(ctx, r.prefix+key)
	if err := st.Err(); err != nil {
		return nil, err
	}
	return st.Bytes()
}

func (r *redisAdapter) Del(ctx context.Context, key string) error {
	return r.Conn.Del(ctx, r.prefix+key).Err()
}

func (r *redisAdapter) Exist(ctx context.Context, key string) (int64, error) {
	return r.Conn.Exists(ctx, r.prefix+key).Result()
}

// Incr increments key and refreshes its ttl in one round trip.
func (r *redisAdapter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := r.Conn.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, r.prefix+key)
		if ttl > 0 {
			pipe.Expire(ctx, r.prefix+key, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *redisAdapter) Ping(ctx context.Context) error {
	return r.Conn.Ping(ctx).Err()
}

func (r *redisAdapter) Client() goredis.UniversalClient {
	return r.Conn
}

// Stream operations implementation

func (r *redisAdapter) XAdd(ctx context.Context, key string, values map[string]interface{}) (string, error) {
	cmd := r.Conn.XAdd(ctx, &goredis.XAddArgs{
		Stream: r.prefix + key,
		ID:     "*",
		Values: values,
	})
	if cmd.Err() != nil {
		return "", cmd.Err()
	}
	return cmd.Val(), nil
}

// XReadGroup never blocks, an empty stream returns NilError.
func (r *redisAdapter) XReadGroup(ctx context.Context, group, consumer, key, id string, count int64) ([]StreamMessage, error) {
	streams := r.Conn.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.prefix + key, id},
		Count:    count,
		Block:    -1,
	})

	if streams.Err() != nil {
		return nil, streams.Err()
	}

	var messages []StreamMessage
	for _, stream := range streams.Val() {
		for _, msg := range stream.Messages {
			messages = append(messages, StreamMessage{
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}
	return messages, nil
}

func (r *redisAdapter) XAck(ctx context.Context, key, group string, ids ...string) error {
	return r.Conn.XAck(ctx, r.prefix+key, group, ids...).Err()
}

func (r *redisAdapter) XGroupCreateMkStream(ctx context.Context, key, group, start string) error {
	return r.Conn.XGroupCreateMkStream(ctx, r.prefix+key, group, start).Err()
}

func (r *redisAdapter) XLen(ctx context.Context, key string) (int64, error) {
	cmd := r.Conn.XLen(ctx, r.prefix+key)
	if cmd.Err() != nil {
		return 0, cmd.Err()
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) XTrimApprox(ctx context.Context, key string, maxLen int64) error {
	return r.Conn.XTrimMaxLenApprox(ctx, r.prefix+key, maxLen, 0).Err()
}

func (r *redisAdapter) XPending(ctx context.Context, key, group string) (*goredis.XPending, error) {
	cmd := r.Conn.XPending(ctx, r.prefix+key, group)
	if cmd.Err() != nil {
		return nil, cmd.Err()
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) XPendingExt(ctx context.Context, key, group string, start, end string, count int64) ([]goredis.XPendingExt, error) {
	cmd := r.Conn.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: r.prefix + key,
		Group:  group,
		Start:  start,
		End:    end,
		Count:  count,
	})
	if cmd.Err() != nil {
		return nil, cmd.Err()
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) XClaim(ctx context.Context, key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error) {
	cmd := r.Conn.XClaim(ctx, &goredis.XClaimArgs{
		Stream:   r.prefix + key,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	})

	if cmd.Err() != nil {
		return nil, cmd.Err()
	}

	var messages []StreamMessage
	for _, msg := range cmd.Val() {
		messages = append(messages, StreamMessage{
			ID:     msg.ID,
			Values: msg.Values,
		})
	}
	return messages, nil
}
