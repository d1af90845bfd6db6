package ratelimit

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Do after Close.
var ErrQueueClosed = errors.New("request queue closed")

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Queue serializes calls against a single provider. Jobs run one at a time
// in submission order and every job, successful or not, is followed by a
// fixed delay before the next one starts.
type Queue struct {
	name  string
	delay time.Duration
	jobs  chan job
	quit  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewQueue starts the worker goroutine for a provider queue.
func NewQueue(name string, delay time.Duration) *Queue {
	q := &Queue{
		name:  name,
		delay: delay,
		jobs:  make(chan job, 64),
		quit:  make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Name returns the provider the queue paces.
func (q *Queue) Name() string {
	return q.name
}

// Do enqueues fn and blocks until it has run. A job whose context is
// cancelled before its turn is skipped and returns the context error.
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case <-q.quit:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- j:
	}

	select {
	case err := <-j.done:
		return err
	case <-q.quit:
		return ErrQueueClosed
	}
}

// Close stops the worker after the running job finishes.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.quit)
	})
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		case j := <-q.jobs:
			if err := j.ctx.Err(); err != nil {
				j.done <- err
				continue
			}
			j.done <- q.safeCall(j)
			if !q.pause() {
				return
			}
		}
	}
}

func (q *Queue) safeCall(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Request queue %s: job panicked: %v", q.name, r)
			err = errors.New("request queue job panicked")
		}
	}()
	return j.fn(j.ctx)
}

// pause waits out the post-call delay; it reports false if the queue closed.
func (q *Queue) pause() bool {
	if q.delay <= 0 {
		return true
	}
	t := time.NewTimer(q.delay)
	defer t.Stop()
	select {
	case <-q.quit:
		return false
	case <-t.C:
		return true
	}
}
