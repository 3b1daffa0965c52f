package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/nimasrn/cashback-ledger/pkg/logger"
)

var ErrStopped = errors.New("worker manager stopped")

type WorkerHandler = func(workerIndex int, job any)

// WorkerManager fans jobs from one buffered channel out to a fixed set of goroutines.
// Workers run until Exit is called. Jobs still buffered at exit are dropped, so callers
// must only ack work whose handler has returned.
type WorkerManager struct {
	jobChannel     chan any
	numberOfWorker int
	do             WorkerHandler
	quit           chan struct{}
	quitOnce       sync.Once
	waiter         sync.WaitGroup
}

func NewWorkerManager(bufferSize, numberOfWorkers int) *WorkerManager {
	if numberOfWorkers < 1 {
		numberOfWorkers = 1
	}
	return &WorkerManager{
		jobChannel:     make(chan any, bufferSize),
		numberOfWorker: numberOfWorkers,
		quit:           make(chan struct{}),
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) Size() int {
	return w.numberOfWorker
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue blocks until a slot frees up, ctx ends or the manager exits.
func (w *WorkerManager) Enqueue(ctx context.Context, job any) error {
	select {
	case <-w.quit:
		return ErrStopped
	default:
	}
	select {
	case w.jobChannel <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.quit:
		return ErrStopped
	}
}

// Start runs the workers and blocks until Exit.
func (w *WorkerManager) Start() error {
	if w.do == nil {
		return errors.New("worker handler is not set")
	}
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobChannel:
					w.do(index, job)
				case <-w.quit:
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()

	return ErrStopped
}

// Exit stops every worker once its current job returns. It is safe to call more than once.
func (w *WorkerManager) Exit() {
	w.quitOnce.Do(func() {
		logger.Info("worker manager shutting down", "workers", w.numberOfWorker, "unread", w.GetUnreadCount())
		close(w.quit)
	})
}
