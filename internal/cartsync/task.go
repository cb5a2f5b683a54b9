package cartsync

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/notify"
)

// Result is what the shopper ended up seeing after one mutation.
type Result struct {
	Op            string
	CorrelationID string
	Err           error
	ItemCount     int
	Total         decimal.Decimal
	Notification  *notify.Notification
}

// Task completes once the mutation's single view-update message has been applied.
type Task struct {
	done chan struct{}
	once sync.Once
	res  Result
}

func newTask() *Task { return &Task{done: make(chan struct{})} }

func (t *Task) finish(res Result) {
	t.once.Do(func() {
		t.res = res
		close(t.done)
	})
}

func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx is done. The returned error is
// Result.Err, or ctx.Err() when waiting was abandoned; the request itself keeps
// running either way.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.res, t.res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
