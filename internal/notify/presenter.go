// Package notify shows transient, auto-dismissing messages. Every call is
// rendered immediately; notifications stack and are never de-duplicated.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Info    Severity = "info"
)

const DefaultDuration = 3 * time.Second

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sink renders notifications somewhere (terminal, log, event bus).
type Sink interface {
	Show(n Notification)
	Dismiss(n Notification)
}

// Stopper is the part of *time.Timer the presenter needs.
type Stopper interface{ Stop() bool }

type Option func(*Presenter)

// WithAfterFunc replaces time.AfterFunc, mostly for tests.
func WithAfterFunc(fn func(d time.Duration, f func()) Stopper) Option {
	return func(p *Presenter) { p.afterFunc = fn }
}

func WithClock(now func() time.Time) Option {
	return func(p *Presenter) { p.now = now }
}

type Presenter struct {
	duration  time.Duration
	sinks     []Sink
	afterFunc func(d time.Duration, f func()) Stopper
	now       func() time.Time

	mu     sync.Mutex
	active []Notification
	timers map[string]Stopper
}

func NewPresenter(duration time.Duration, sinks []Sink, opts ...Option) *Presenter {
	if duration <= 0 {
		duration = DefaultDuration
	}
	p := &Presenter{
		duration: duration,
		sinks:    sinks,
		afterFunc: func(d time.Duration, f func()) Stopper {
			return time.AfterFunc(d, f)
		},
		now:    time.Now,
		timers: map[string]Stopper{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Notify renders the message right away and schedules its dismissal.
func (p *Presenter) Notify(message string, severity Severity) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: p.now(),
	}

	p.mu.Lock()
	p.active = append(p.active, n)
	p.timers[n.ID] = p.afterFunc(p.duration, func() { p.Dismiss(n.ID) })
	p.mu.Unlock()

	for _, s := range p.sinks {
		s.Show(n)
	}
	return n
}

// Dismiss closes a notification early. It reports false when it is already gone.
func (p *Presenter) Dismiss(id string) bool {
	p.mu.Lock()
	idx := -1
	for i, n := range p.active {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return false
	}
	n := p.active[idx]
	p.active = append(p.active[:idx], p.active[idx+1:]...)
	if t, ok := p.timers[id]; ok {
		t.Stop()
		delete(p.timers, id)
	}
	p.mu.Unlock()

	for _, s := range p.sinks {
		s.Dismiss(n)
	}
	return true
}

func (p *Presenter) Active() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notification(nil), p.active...)
}

// Close stops pending dismiss timers without dismissing.
func (p *Presenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
}
