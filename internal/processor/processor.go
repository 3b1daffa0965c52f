package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/queue"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/prom"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
	"github.com/nimasrn/cashback-ledger/pkg/worker"
)

const (
	defaultProcessingTimeout = 5 * time.Second
	defaultReportInterval    = 30 * time.Second
	shutdownTimeout          = time.Minute
	highLagThreshold         = 10_000
)

// Processor handles one message. A nil error acks it.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type ServiceConfig struct {
	Queue             queue.QueueConfig
	Consumers         int
	Workers           int
	ProcessingTimeout time.Duration
	ReportInterval    time.Duration
}

// NotifierService runs N stream consumers that hand messages to a shared worker pool.
type NotifierService struct {
	adapter   redis.RedisAdapter
	config    ServiceConfig
	processor Processor
	queues    []*queue.Queue
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewNotifierService(adapter redis.RedisAdapter, processor Processor, config ServiceConfig) *NotifierService {
	if config.Consumers < 1 {
		config.Consumers = 1
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.ProcessingTimeout <= 0 {
		config.ProcessingTimeout = defaultProcessingTimeout
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = defaultReportInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &NotifierService{
		adapter:   adapter,
		config:    config,
		processor: processor,
		metrics:   NewServiceMetrics(),
		worker:    worker.NewWorkerManager(config.Workers*2, config.Workers),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *NotifierService) Start() error {
	s.worker.SetWorker(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.worker.Start()
	}()

	for i := 0; i < s.config.Consumers; i++ {
		qc := s.config.Queue
		qc.ConsumerName = fmt.Sprintf("%s-%d", qc.ConsumerName, i)

		q, err := queue.NewQueue(s.adapter, qc)
		if err != nil {
			return fmt.Errorf("create consumer %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(1)
	go s.reporter()

	logger.Info("notifier started",
		"processor", s.processor.GetType(),
		"queue", s.config.Queue.Name,
		"consumers", len(s.queues),
		"workers", s.worker.Size(),
	)
	return nil
}

func (s *NotifierService) reporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.report()
		case <-s.ctx.Done():
			return
		}
	}
}

// report logs throughput and publishes the pending count. Every consumer shares one group so the first queue's stats suffice.
func (s *NotifierService) report() {
	snap := s.metrics.Snapshot()
	fields := []any{
		"processed", snap.Processed,
		"failed", snap.Failed,
		"rate_per_second", snap.RatePerSecond,
		"avg_duration_ms", snap.AvgDuration.Milliseconds(),
		"buffered_jobs", s.worker.GetUnreadCount(),
	}

	if len(s.queues) > 0 {
		stats, err := s.queues[0].GetStats()
		if err != nil {
			logger.Warn("queue stats unavailable", "queue", s.config.Queue.Name, "error", err)
		} else {
			prom.SetNotificationQueuePending(s.config.Queue.Name, stats.PendingMessages)
			fields = append(fields, "stream_length", stats.TotalMessages, "pending", stats.PendingMessages, "dead_letters", stats.DeadLetters)
			if stats.PendingMessages > highLagThreshold {
				logger.Warn("notification queue lagging", "pending", stats.PendingMessages)
			}
		}
	}

	if err := s.adapter.Ping(context.Background()); err != nil {
		logger.Error("redis health check failed", "error", err)
	}
	logger.Info("notifier stats", fields...)
}

// Stop drains consumers first so no new jobs arrive, then stops the workers.
func (s *NotifierService) Stop() {
	logger.Info("notifier shutting down")
	s.cancel()

	var wg sync.WaitGroup
	for i, q := range s.queues {
		wg.Add(1)
		go func(index int, q *queue.Queue) {
			defer wg.Done()
			if err := q.Stop(shutdownTimeout); err != nil {
				logger.Error("consumer stop failed", "consumer", index, "error", err)
			}
		}(i, q)
	}
	wg.Wait()

	s.worker.Exit()
	s.wg.Wait()
	s.report()
	logger.Info("notifier stopped")
}

type job struct {
	ctx    context.Context
	msg    *queue.Message
	result chan error
}

// messageHandler runs on the consumer goroutine and waits for a worker to finish the message.
func (s *NotifierService) messageHandler(ctx context.Context, msg *queue.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ProcessingTimeout)
	defer cancel()

	j := &job{ctx: ctx, msg: msg, result: make(chan error, 1)}
	if err := s.worker.Enqueue(ctx, j); err != nil {
		return fmt.Errorf("enqueue to worker pool: %w", err)
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("worker did not finish in time: %w", ctx.Err())
	}
}

func (s *NotifierService) workerHandler(workerIndex int, payload any) {
	j, ok := payload.(*job)
	if !ok {
		logger.Error("unexpected job type", "worker", workerIndex)
		return
	}
	if j.ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := s.processor.Process(j.ctx, j.msg)
	if err != nil {
		s.metrics.RecordFailure()
		logger.Warn("notification will be retried", "worker", workerIndex, "stream_id", j.msg.ID, "attempts", j.msg.Attempts, "error", err)
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}

	// buffered, never blocks
	j.result <- err
}
