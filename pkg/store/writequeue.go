package store

import (
	"context"
	"errors"
)

// errQueueClosed is returned for writes submitted after Close
var errQueueClosed = errors.New("store: write queue closed")

// pendingWrite is one serialized write and the channel its caller waits on
type pendingWrite struct {
	name string
	fn   func() error
	done chan error
}

// writeQueue funnels every SQLite write through one goroutine so concurrent
// report requests never race for the database lock.
type writeQueue struct {
	pending chan pendingWrite
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	store   *Store
}

func newWriteQueue(st *Store) *writeQueue {
	ctx, cancel := context.WithCancel(context.Background())
	wq := &writeQueue{
		pending: make(chan pendingWrite, 100),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
		store:   st,
	}
	go wq.run()
	return wq
}

func (wq *writeQueue) run() {
	defer close(wq.stopped)
	for {
		select {
		case w := <-wq.pending:
			wq.apply(w)
		case <-wq.ctx.Done():
			// flush what was accepted before shutdown
			for {
				select {
				case w := <-wq.pending:
					wq.apply(w)
				default:
					wq.store.logger.Debug("[STORE] Write queue stopped")
					return
				}
			}
		}
	}
}

func (wq *writeQueue) apply(w pendingWrite) {
	err := w.fn()
	if err != nil {
		wq.store.logger.Error("[STORE] Write failed", "op", w.name, "error", err)
	}
	w.done <- err
}

// enqueue runs fn on the writer goroutine and blocks until it has run
func (wq *writeQueue) enqueue(name string, fn func() error) error {
	w := pendingWrite{name: name, fn: fn, done: make(chan error, 1)}

	select {
	case wq.pending <- w:
	case <-wq.ctx.Done():
		return errQueueClosed
	}

	select {
	case err := <-w.done:
		return err
	case <-wq.stopped:
		// the writer may have applied it while draining
		select {
		case err := <-w.done:
			return err
		default:
			return errQueueClosed
		}
	}
}

func (wq *writeQueue) shutdown() {
	wq.cancel()
	<-wq.stopped
}
