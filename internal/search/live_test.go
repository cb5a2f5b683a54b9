package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/logging"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, q string) (clients.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return clients.SearchResult{}, f.err
	}
	return clients.SearchResult{Query: q, ProductIDs: []int64{1}}, nil
}

func (f *fakeSearcher) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func TestTypingBurstSearchesOnceWithLastQuery(t *testing.T) {
	s := &fakeSearcher{}
	results := make(chan clients.SearchResult, 4)
	live := NewLive(s, 30*time.Millisecond, func(r clients.SearchResult) { results <- r }, logging.Discard())
	defer live.Close()

	for _, q := range []string{"l", "la", "lam", "lamp"} {
		live.Input(q)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case r := <-results:
		assert.Equal(t, "lamp", r.Query)
	case <-time.After(time.Second):
		t.Fatal("search never ran")
	}
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"lamp"}, s.Queries())
}

func TestShortQueryCancelsPendingSearch(t *testing.T) {
	s := &fakeSearcher{}
	live := NewLive(s, 30*time.Millisecond, nil, logging.Discard())
	defer live.Close()

	live.Input("lamp")
	live.Input("la")

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, s.Queries())
}

func TestSearchErrorIsLoggedNotDelivered(t *testing.T) {
	s := &fakeSearcher{err: errors.New("down")}
	var delivered atomic.Bool
	live := NewLive(s, 10*time.Millisecond, func(clients.SearchResult) { delivered.Store(true) }, logging.Discard())
	defer live.Close()

	live.Input("chair")
	require.Eventually(t, func() bool { return len(s.Queries()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, delivered.Load())
}
