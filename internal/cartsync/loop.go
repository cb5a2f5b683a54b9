package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrLoopStopped = errors.New("ui loop stopped")

// Loop is the single UI thread. Cart state, page and controls are mutated only
// by messages it runs, one at a time, in arrival order.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake    chan struct{}
	stopped chan struct{}
	once    sync.Once
	logger  logrus.FieldLogger
}

func NewLoop(logger logrus.FieldLogger) *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Run executes messages until ctx is done. Messages already queued at that
// point still run; anything posted afterwards is rejected.
func (l *Loop) Run(ctx context.Context) {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
		for fn := l.next(); fn != nil; fn = l.next() {
			l.exec(fn)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) stop() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		pending := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range pending {
			l.exec(fn)
		}
		close(l.stopped)
	})
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.WithField("panic", rec).Error("ui message panicked")
		}
	}()
	fn()
}

// Post queues fn. It reports false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// AfterFunc posts fn after d. If the loop has stopped by then, dropped runs
// instead, on the timer goroutine; it may be nil.
func (l *Loop) AfterFunc(d time.Duration, fn func(), dropped func()) *time.Timer {
	return time.AfterFunc(d, func() {
		if !l.Post(fn) && dropped != nil {
			dropped()
		}
	})
}

// Call runs fn on the loop and waits for it.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
