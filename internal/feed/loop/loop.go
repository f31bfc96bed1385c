// Package loop runs closures one at a time on a dedicated goroutine.
//
// Every feed component is driven from a single Loop, so component state needs
// no locking. The queue is unbounded: Post never blocks, which lets a closure
// running on the loop post more work (a snapshot callback attaching a child
// listener whose first snapshot arrives synchronously) without deadlock.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("loop closed")

type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	done    chan struct{}
	onPanic func(recovered interface{})
}

// New starts the loop goroutine. onPanic, if set, receives values recovered
// from closures so one bad callback cannot kill the loop.
func New(onPanic func(recovered interface{})) *Loop {
	l := &Loop{done: make(chan struct{}), onPanic: onPanic}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.invoke(fn)
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.onPanic != nil {
			l.onPanic(r)
		}
	}()
	fn()
}

// Post enqueues fn. It reports false when the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Call runs fn on the loop and waits for it. Calling it from the loop
// goroutine deadlocks; closures already on the loop call functions directly.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("loop call: %w", ctx.Err())
	}
}

// Drain waits until the queue is empty, including work posted by the work it
// waited for.
func (l *Loop) Drain(ctx context.Context) error {
	for {
		pending := 0
		if err := l.Call(ctx, func() {
			l.mu.Lock()
			pending = len(l.queue)
			l.mu.Unlock()
		}); err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
	}
}

// Close stops accepting work, runs what is already queued and waits for the
// goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cond.Broadcast()
	}
	l.mu.Unlock()
	<-l.done
}
