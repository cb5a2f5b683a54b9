// Package cartsync drives cart mutations against the storefront and reconciles
// the client-side view from each response.
//
// Every mutation is a single at-most-once attempt: no retry, no backoff, no
// queueing, no cancellation. The triggering control is disabled for the
// duration of an add; that is the only protection against double submission.
// Responses for overlapping mutations are applied in arrival order, so the
// last one to arrive wins.
package cartsync

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/view"
)

var (
	// ErrTransportOrServer is returned for network failures, non-success
	// statuses, malformed responses and success=false answers.
	ErrTransportOrServer = clients.ErrTransportOrServer
	// ErrUserDeclined means the removal was not confirmed; nothing was sent.
	ErrUserDeclined = errors.New("user declined")
)

const (
	OpLoad           = "load"
	OpAddItem        = "add_item"
	OpUpdateQuantity = "update_quantity"
	OpRemoveItem     = "remove_item"
)

type CartAPI interface {
	AddItem(ctx context.Context, productID int64) (clients.AddItemResult, error)
	UpdateQuantity(ctx context.Context, itemID int64, quantity int) (clients.UpdateQuantityResult, error)
	RemoveItem(ctx context.Context, itemID int64) (clients.RemoveItemResult, error)
}

type Notifier interface {
	Notify(message string, severity notify.Severity) notify.Notification
}

type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

type Options struct {
	// How long a removed line stays visible (fading) before it is dropped.
	FadeDelay time.Duration
	// How long the add button keeps its busy state after a success.
	RestoreDelay time.Duration

	BusyLabel          string
	ConfirmPrompt      string
	RemovedMessage     string
	AddErrorMessage    string
	UpdateErrorMessage string
	RemoveErrorMessage string
}

func DefaultOptions() Options {
	return Options{
		FadeDelay:          300 * time.Millisecond,
		RestoreDelay:       time.Second,
		BusyLabel:          "Adding...",
		ConfirmPrompt:      "Do you really want to remove this item from your cart?",
		RemovedMessage:     "Item removed from cart",
		AddErrorMessage:    "Could not add the item to your cart",
		UpdateErrorMessage: "Could not update the quantity",
		RemoveErrorMessage: "Could not remove the item from your cart",
	}
}

type Deps struct {
	Loop      *Loop
	Cart      CartAPI
	State     *cart.State
	Notifier  Notifier
	Confirmer Confirmer
	Publisher events.Publisher
	Logger    logrus.FieldLogger
	Options   Options
}

type Syncer struct {
	loop      *Loop
	cart      CartAPI
	state     *cart.State
	view      *view.Updater
	notifier  Notifier
	confirmer Confirmer
	publisher events.Publisher
	logger    logrus.FieldLogger
	opts      Options
}

func New(d Deps) *Syncer {
	if d.Publisher == nil {
		d.Publisher = events.NopPublisher{}
	}
	if d.Confirmer == nil {
		d.Confirmer = ConfirmFunc(func(string) bool { return true })
	}
	return &Syncer{
		loop:      d.Loop,
		cart:      d.Cart,
		state:     d.State,
		view:      view.NewUpdater(d.State),
		notifier:  d.Notifier,
		confirmer: d.Confirmer,
		publisher: d.Publisher,
		logger:    d.Logger,
		opts:      d.Options,
	}
}

// Load seeds the cart state, usually from the rendered cart page.
func (s *Syncer) Load(lines []cart.Line, total decimal.Decimal) *Task {
	task := newTask()
	s.dispatch(task, OpLoad, "", func() {
		s.state.Load(lines, total)
		task.finish(s.result(OpLoad, "", nil, nil))
	})
	return task
}

// AddItem adds one unit of productID. control may be nil.
func (s *Syncer) AddItem(productID int64, control *Control) *Task {
	task := newTask()
	cid := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{"op": OpAddItem, "product_id": productID, "correlation_id": cid})

	s.dispatch(task, OpAddItem, cid, func() {
		var prev controlState
		if control != nil {
			prev = control.snapshot()
			control.setBusy(s.opts.BusyLabel)
		}

		go func() {
			res, err := s.cart.AddItem(s.requestContext(cid), productID)

			s.dispatch(task, OpAddItem, cid, func() {
				if err != nil {
					log.WithError(err).Warn("add to cart failed")
					n := s.notifier.Notify(s.opts.AddErrorMessage, notify.Error)
					if control != nil {
						control.restore(prev)
					}
					s.finish(task, events.CartSynced{Operation: OpAddItem, ProductID: productID}, cid, err, &n)
					return
				}

				s.view.RefreshCount(res.ItemCount())
				n := s.notifier.Notify(res.Message, notify.Success)
				if control != nil {
					s.loop.AfterFunc(s.opts.RestoreDelay, func() { control.restore(prev) }, nil)
				}
				log.WithField("item_count", res.ItemCount()).Info("item added")
				s.finish(task, events.CartSynced{Operation: OpAddItem, ProductID: productID}, cid, nil, &n)
			})
		}()
	})
	return task
}

// UpdateQuantity sends quantity as entered; zero or less deletes the line on
// the server. control is the quantity input and may be nil.
func (s *Syncer) UpdateQuantity(itemID int64, quantity int, control *Control) *Task {
	task := newTask()
	cid := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{"op": OpUpdateQuantity, "item_id": itemID, "quantity": quantity, "correlation_id": cid})
	ev := events.CartSynced{Operation: OpUpdateQuantity, ItemID: itemID, Quantity: &quantity}

	s.dispatch(task, OpUpdateQuantity, cid, func() {
		var prev controlState
		if control != nil {
			prev = control.snapshot()
			if l, ok := s.state.Line(itemID); ok {
				prev.value = strconv.Itoa(l.Quantity)
			}
			control.SetValue(strconv.Itoa(quantity))
		}

		go func() {
			res, err := s.cart.UpdateQuantity(s.requestContext(cid), itemID, quantity)

			s.dispatch(task, OpUpdateQuantity, cid, func() {
				if err != nil {
					log.WithError(err).Warn("update quantity failed")
					n := s.notifier.Notify(s.opts.UpdateErrorMessage, notify.Error)
					if control != nil {
						control.restore(prev)
					}
					s.finish(task, ev, cid, err, &n)
					return
				}

				if res.Deleted {
					log.Info("line deleted")
					s.fadeOut(task, ev.Operation, cid, itemID, func() {
						s.view.RefreshTotal(res.CartTotal)
						s.view.RecomputeCountFromVisibleLines()
						s.finish(task, ev, cid, nil, nil)
					})
					return
				}

				if !s.state.UpdateLine(itemID, quantity, res.TotalPrice) {
					log.Debug("updated line is not displayed")
				}
				s.view.RefreshTotal(res.CartTotal)
				s.view.RecomputeCountFromVisibleLines()
				log.Info("quantity updated")
				s.finish(task, ev, cid, nil, nil)
			})
		}()
	})
	return task
}

// RemoveItem asks for confirmation first; a declined confirmation sends nothing
// and returns ErrUserDeclined. control may be nil.
func (s *Syncer) RemoveItem(itemID int64, control *Control) *Task {
	task := newTask()
	cid := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{"op": OpRemoveItem, "item_id": itemID, "correlation_id": cid})
	ev := events.CartSynced{Operation: OpRemoveItem, ItemID: itemID}

	if !s.confirmer.Confirm(s.opts.ConfirmPrompt) {
		log.Debug("removal declined")
		ev.Outcome = events.OutcomeDeclined
		ev.CorrelationID = cid
		ev.OccurredAt = time.Now().UTC()
		s.publish(ev)
		task.finish(Result{Op: OpRemoveItem, CorrelationID: cid, Err: ErrUserDeclined})
		return task
	}

	s.dispatch(task, OpRemoveItem, cid, func() {
		var prev controlState
		if control != nil {
			prev = control.snapshot()
			control.setBusy("")
		}

		go func() {
			res, err := s.cart.RemoveItem(s.requestContext(cid), itemID)

			s.dispatch(task, OpRemoveItem, cid, func() {
				if err != nil {
					log.WithError(err).Warn("remove item failed")
					n := s.notifier.Notify(s.opts.RemoveErrorMessage, notify.Error)
					if control != nil {
						control.restore(prev)
					}
					s.finish(task, ev, cid, err, &n)
					return
				}

				s.fadeOut(task, ev.Operation, cid, itemID, func() {
					s.view.RefreshTotal(res.CartTotal)
					s.view.RecomputeCountFromVisibleLines()
					n := s.notifier.Notify(s.opts.RemovedMessage, notify.Info)
					log.Info("item removed")
					s.finish(task, ev, cid, nil, &n)
				})
			})
		}()
	})
	return task
}

// fadeOut marks the line as fading and drops it after the fade delay; then
// runs on the loop. A loop stopped mid-fade finishes task with ErrLoopStopped.
func (s *Syncer) fadeOut(task *Task, op, cid string, itemID int64, then func()) {
	s.state.MarkFading(itemID)
	s.loop.AfterFunc(s.opts.FadeDelay, func() {
		s.state.RemoveLine(itemID)
		then()
	}, func() {
		task.finish(Result{Op: op, CorrelationID: cid, Err: ErrLoopStopped})
	})
}

func (s *Syncer) dispatch(task *Task, op, cid string, fn func()) {
	if !s.loop.Post(fn) {
		task.finish(Result{Op: op, CorrelationID: cid, Err: ErrLoopStopped})
	}
}

func (s *Syncer) finish(task *Task, ev events.CartSynced, cid string, err error, n *notify.Notification) {
	res := s.result(ev.Operation, cid, err, n)

	ev.CorrelationID = cid
	ev.Outcome = events.OutcomeSuccess
	if err != nil {
		ev.Outcome = events.OutcomeFailed
		ev.Error = err.Error()
	}
	ev.ItemCount = res.ItemCount
	ev.CartTotal = res.Total.StringFixed(2)
	ev.OccurredAt = time.Now().UTC()
	s.publish(ev)

	task.finish(res)
}

func (s *Syncer) result(op, cid string, err error, n *notify.Notification) Result {
	sum := s.state.Snapshot().Summary
	return Result{Op: op, CorrelationID: cid, Err: err, ItemCount: sum.ItemCount, Total: sum.Total, Notification: n}
}

func (s *Syncer) publish(ev events.CartSynced) {
	if _, nop := s.publisher.(events.NopPublisher); nop {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishCartSynced(ctx, ev); err != nil {
			s.logger.WithError(err).WithField("correlation_id", ev.CorrelationID).Warn("publish cart synced event")
		}
	}()
}

// requestContext carries the correlation id but no deadline: once issued, a
// request runs to completion or failure.
func (s *Syncer) requestContext(cid string) context.Context {
	return middleware.WithCorrelationID(context.Background(), cid)
}
