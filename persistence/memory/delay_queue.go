package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mohitkumar/waterflow/persistence"
)

type delayed struct {
	due     time.Time
	message string
}

type delayQueue struct {
	mu     sync.Mutex
	queues map[string][]delayed
	now    func() time.Time
}

var _ persistence.DelayQueue = new(delayQueue)

func NewDelayQueue() *delayQueue {
	return &delayQueue{
		queues: make(map[string][]delayed),
		now:    time.Now,
	}
}

func (q *delayQueue) Push(ctx context.Context, queueName string, message []byte) error {
	return q.PushWithDelay(ctx, queueName, 0, message)
}

// PushWithDelay keeps members unique like a sorted set: pushing the same
// message again moves its due time.
func (q *delayQueue) PushWithDelay(ctx context.Context, queueName string, delay time.Duration, message []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	msg := string(message)
	items := q.queues[queueName]
	for i := range items {
		if items[i].message == msg {
			items = append(items[:i], items[i+1:]...)
			break
		}
	}
	items = append(items, delayed{due: q.now().Add(delay), message: msg})
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].due.Before(items[j].due)
	})
	q.queues[queueName] = items
	return nil
}

func (q *delayQueue) Pop(ctx context.Context, queueName string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.queues[queueName]
	now := q.now()
	n := 0
	for n < len(items) && !items[n].due.After(now) {
		n++
	}
	if n == 0 {
		return nil, persistence.EmptyQueueError{QueueName: queueName}
	}
	out := make([]string, 0, n)
	for _, item := range items[:n] {
		out = append(out, item.message)
	}
	q.queues[queueName] = append([]delayed(nil), items[n:]...)
	return out, nil
}
