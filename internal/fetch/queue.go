package fetch

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/desertthunder/muse/internal/shared"
)

const defaultConcurrency = 5

// queuedTask pairs a unit of work with an id for logging and tracing.
type queuedTask struct {
	id  string
	run func()
}

// Queue is a bounded-concurrency FIFO executor. Tasks are admitted in
// submission order and at most `concurrency` run at any instant; a failing
// task releases its slot immediately so the next queued task starts without
// delay.
//
// Uncoordinated callers each issuing several requests can otherwise open
// dozens of simultaneous connections to the same throttled host.
type Queue struct {
	tasks chan queuedTask
	wg    sync.WaitGroup
}

// NewQueue creates a [Queue] with the given concurrency (default 5) and
// backlog capacity (default 64) and starts its workers.
func NewQueue(concurrency, backlog int) *Queue {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if backlog <= 0 {
		backlog = 64
	}

	q := &Queue{tasks: make(chan queuedTask, backlog)}
	for i := 0; i < concurrency; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		t.run()
	}
}

// Close stops accepting tasks and waits for running tasks to finish.
func (q *Queue) Close() {
	close(q.tasks)
	q.wg.Wait()
}

// Submit enqueues fn and blocks until it completes or ctx is done. A task
// whose context is canceled while still queued is skipped when dequeued.
func (q *Queue) Submit(ctx context.Context, fn func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	type outcome struct {
		value json.RawMessage
		err   error
	}

	done := make(chan outcome, 1)
	task := queuedTask{
		id: shared.GenerateID(),
		run: func() {
			if err := ctx.Err(); err != nil {
				done <- outcome{nil, err}
				return
			}
			value, err := fn(ctx)
			done <- outcome{value, err}
		},
	}

	select {
	case q.tasks <- task:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
