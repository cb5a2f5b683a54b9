package cart

import (
	"sync"

	"github.com/shopspring/decimal"
)

// State is the client-side view model of the cart. Every change is pushed to
// subscribers as a full Snapshot, so views never scan rendered output to
// re-derive totals.
type State struct {
	mu      sync.Mutex
	lines   []Line
	summary Summary

	nextSub int
	subs    map[int]func(Snapshot)
}

func NewState() *State {
	return &State{summary: Summary{Total: decimal.Zero}, subs: map[int]func(Snapshot){}}
}

// Subscribe registers fn and immediately calls it with the current snapshot.
func (s *State) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	snap := s.snapshotLocked()
	s.mu.Unlock()

	fn(snap)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Load replaces the whole cart, typically with what the cart page showed.
func (s *State) Load(lines []Line, total decimal.Decimal) {
	s.mutate(func() bool {
		s.lines = append([]Line(nil), lines...)
		s.summary.Total = total
		s.summary.ItemCount = 0
		for _, l := range s.lines {
			s.summary.ItemCount += l.Quantity
		}
		return true
	})
}

func (s *State) Line(itemID int64) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(itemID); i >= 0 {
		return s.lines[i], true
	}
	return Line{}, false
}

func (s *State) SetTotal(total decimal.Decimal) {
	s.mutate(func() bool {
		s.summary.Total = total
		return true
	})
}

// SetCount stores the badge count. Negative counts are clamped to zero.
func (s *State) SetCount(count int) {
	if count < 0 {
		count = 0
	}
	s.mutate(func() bool {
		s.summary.ItemCount = count
		return true
	})
}

// UpdateLine changes quantity and line total in place. It reports false when
// the line is not in the cart.
func (s *State) UpdateLine(itemID int64, quantity int, lineTotal decimal.Decimal) bool {
	var ok bool
	s.mutate(func() bool {
		i := s.indexLocked(itemID)
		if i < 0 {
			return false
		}
		s.lines[i].Quantity = quantity
		s.lines[i].LineTotal = lineTotal
		ok = true
		return true
	})
	return ok
}

func (s *State) MarkFading(itemID int64) bool {
	var ok bool
	s.mutate(func() bool {
		i := s.indexLocked(itemID)
		if i < 0 || s.lines[i].Fading {
			return false
		}
		s.lines[i].Fading = true
		ok = true
		return true
	})
	return ok
}

// RemoveLine drops the line. Removing an absent line is a no-op that reports false.
func (s *State) RemoveLine(itemID int64) bool {
	var ok bool
	s.mutate(func() bool {
		i := s.indexLocked(itemID)
		if i < 0 {
			return false
		}
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
		ok = true
		return true
	})
	return ok
}

func (s *State) mutate(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

func (s *State) indexLocked(itemID int64) int {
	for i := range s.lines {
		if s.lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{Lines: append([]Line(nil), s.lines...), Summary: s.summary}
}
