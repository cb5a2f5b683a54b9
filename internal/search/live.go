package search

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/debounce"
)

// MinQueryLength is the shortest query that triggers a live search.
const MinQueryLength = 3

type Searcher interface {
	Search(ctx context.Context, query string) (clients.SearchResult, error)
}

// Live runs search-as-you-type: every input cancels the pending search and
// long enough queries are rescheduled after the debounce delay.
type Live struct {
	searcher  Searcher
	debouncer *debounce.Debouncer
	onResult  func(clients.SearchResult)
	logger    logrus.FieldLogger
}

func NewLive(searcher Searcher, delay time.Duration, onResult func(clients.SearchResult), logger logrus.FieldLogger) *Live {
	return &Live{
		searcher:  searcher,
		debouncer: debounce.New(delay),
		onResult:  onResult,
		logger:    logger,
	}
}

func (l *Live) Input(query string) {
	l.debouncer.Cancel()
	if utf8.RuneCountInString(query) < MinQueryLength {
		return
	}
	l.debouncer.Trigger(func() { l.run(query) })
}

func (l *Live) run(query string) {
	res, err := l.searcher.Search(context.Background(), query)
	if err != nil {
		l.logger.WithError(err).WithField("query", query).Warn("live search failed")
		return
	}
	if l.onResult != nil {
		l.onResult(res)
	}
}

func (l *Live) Close() { l.debouncer.Stop() }
