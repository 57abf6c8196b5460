package task

import (
	"context"
	"sync"

	xerrors "ZKAttest-Chain/internal/errors"
)

// MemoryQueue 使用 channel 模拟消息队列，适合单进程部署。
type MemoryQueue struct {
	ch     chan string
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue 创建一个内存队列。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size), done: make(chan struct{})}
}

// Publish 将任务投递到队列。
func (q *MemoryQueue) Publish(ctx context.Context, jobID string) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return errQueueClosed()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return errQueueClosed()
	case q.ch <- jobID:
		return nil
	}
}

// Consume 启动指定数量的工作协程消费队列中的任务。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case jobID := <-q.ch:
					_ = handler(ctx, jobID)
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close 关闭内存队列。
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		close(q.done)
		q.closed = true
	}
	return nil
}

func errQueueClosed() error {
	return xerrors.New(xerrors.CodeQueueFailure, "队列已关闭", xerrors.WithRetryable(false))
}
