package cartsync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/backendtest"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/view"
)

type fakeTimer struct{ d time.Duration }

func (*fakeTimer) Stop() bool { return true }

type recordingSink struct {
	mu     sync.Mutex
	shown  []notify.Notification
	timers []*fakeTimer
}

func (s *recordingSink) Show(n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, n)
}

func (*recordingSink) Dismiss(notify.Notification) {}

func (s *recordingSink) afterFunc(d time.Duration, _ func()) notify.Stopper {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d}
	s.timers = append(s.timers, t)
	return t
}

func (s *recordingSink) Shown() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Notification(nil), s.shown...)
}

type fixture struct {
	store   *backendtest.Storefront
	state   *cart.State
	page    *view.Page
	sink    *recordingSink
	syncer  *Syncer
	confirm bool
}

var widgetPrice = decimal.RequireFromString("15.25")

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: backendtest.New(
			backendtest.Product{ID: 42, Name: "Widget", Price: widgetPrice},
			backendtest.Product{ID: 1, Name: "Gadget", Price: decimal.RequireFromString("10")},
		),
		state:   cart.NewState(),
		sink:    &recordingSink{},
		confirm: true,
	}
	srv := f.store.Start(t)

	httpClient, err := clients.NewHTTPClient(clients.HTTPOptions{
		BaseURL:        srv.URL,
		SessionCookies: "sessionid=s1; csrftoken=" + backendtest.CSRFToken,
		Logger:         logging.Discard(),
	})
	require.NoError(t, err)
	base, err := clients.NewClient("storefront", srv.URL, httpClient)
	require.NoError(t, err)

	loop := NewLoop(logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(cancel)

	f.page = view.NewPage(f.state, "€")
	t.Cleanup(f.page.Close)

	presenter := notify.NewPresenter(notify.DefaultDuration, []notify.Sink{f.sink}, notify.WithAfterFunc(f.sink.afterFunc))

	opts := DefaultOptions()
	opts.FadeDelay = 10 * time.Millisecond
	opts.RestoreDelay = 200 * time.Millisecond

	f.syncer = New(Deps{
		Loop:      loop,
		Cart:      clients.NewCartClient(base),
		State:     f.state,
		Notifier:  presenter,
		Confirmer: ConfirmFunc(func(string) bool { return f.confirm }),
		Logger:    logging.Discard(),
		Options:   opts,
	})
	return f
}

func (f *fixture) seed(t *testing.T, items ...backendtest.Item) {
	t.Helper()
	lines := make([]cart.Line, 0, len(items))
	total := decimal.Zero
	for _, it := range items {
		f.store.PutItem(it)
		lt := widgetPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		lines = append(lines, cart.Line{ItemID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: widgetPrice, LineTotal: lt})
		total = total.Add(lt)
	}
	_, err := f.syncer.Load(lines, total).Wait(context.Background())
	require.NoError(t, err)
}

func wait(t *testing.T, task *Task) (Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := task.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "task did not finish")
	return res, err
}

func (f *fixture) posts() []backendtest.Request {
	var out []backendtest.Request
	for _, r := range f.store.Requests() {
		if r.Method == http.MethodPost {
			out = append(out, r)
		}
	}
	return out
}

func TestAddItemUpdatesBadgeAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.seed(t, backendtest.Item{ID: 7, ProductID: 42, Quantity: 2})
	btn := NewButton("Add to cart")

	res, err := wait(t, f.syncer.AddItem(42, btn))
	require.NoError(t, err)

	assert.Equal(t, 3, res.ItemCount)
	assert.Equal(t, view.Badge{Visible: true, Text: "3"}, f.page.Badge())

	require.NotNil(t, res.Notification)
	assert.Equal(t, notify.Success, res.Notification.Severity)
	assert.Equal(t, "Widget added to cart", res.Notification.Message)

	shown := f.sink.Shown()
	require.Len(t, shown, 1)
	require.Len(t, f.sink.timers, 1)
	assert.Equal(t, 3000*time.Millisecond, f.sink.timers[0].d)

	assert.False(t, btn.Enabled())
	assert.Equal(t, "Adding...", btn.Label())
	assert.Eventually(t, btn.Enabled, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Add to cart", btn.Label())

	require.Len(t, f.posts(), 1)
	assert.Equal(t, "/cart/add/42/", f.posts()[0].Path)
}

func TestAddItemFailureRestoresControlImmediately(t *testing.T) {
	f := newFixture(t)
	f.store.FailNext("/cart/add/42/", http.StatusInternalServerError)
	btn := NewButton("Add to cart")

	res, err := wait(t, f.syncer.AddItem(42, btn))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportOrServer)

	assert.True(t, btn.Enabled())
	assert.Equal(t, "Add to cart", btn.Label())
	require.NotNil(t, res.Notification)
	assert.Equal(t, notify.Error, res.Notification.Severity)
	assert.False(t, f.page.Badge().Visible)
	assert.Equal(t, 0, f.state.Snapshot().Summary.ItemCount)
}

func TestAddItemRejectedWithoutCSRFToken(t *testing.T) {
	f := newFixture(t)
	srv := f.store.Start(t)

	httpClient, err := clients.NewHTTPClient(clients.HTTPOptions{BaseURL: srv.URL, Logger: logging.Discard()})
	require.NoError(t, err)
	base, err := clients.NewClient("storefront", srv.URL, httpClient)
	require.NoError(t, err)
	f.syncer.cart = clients.NewCartClient(base)

	_, err = wait(t, f.syncer.AddItem(42, nil))
	assert.ErrorIs(t, err, ErrTransportOrServer)
	assert.Empty(t, f.store.Items())
}

func TestUpdateQuantityToZeroRemovesLine(t *testing.T) {
	f := newFixture(t)
	f.seed(t, backendtest.Item{ID: 7, ProductID: 42, Quantity: 2})
	input := NewInput("2")

	res, err := wait(t, f.syncer.UpdateQuantity(7, 0, input))
	require.NoError(t, err)

	assert.False(t, f.page.HasRow(7))
	assert.False(t, f.page.Badge().Visible)
	assert.Equal(t, "€0.00", f.page.Total())
	assert.Equal(t, 0, res.ItemCount)
	assert.Nil(t, res.Notification)
	assert.Empty(t, f.store.Items())

	require.Len(t, f.posts(), 1)
	assert.JSONEq(t, `{"quantity":0}`, f.posts()[0].Body)
}

func TestUpdateQuantityRefreshesLineAndTotal(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		backendtest.Item{ID: 7, ProductID: 42, Quantity: 2},
		backendtest.Item{ID: 8, ProductID: 42, Quantity: 1},
	)

	res, err := wait(t, f.syncer.UpdateQuantity(7, 4, NewInput("2")))
	require.NoError(t, err)

	line, ok := f.state.Line(7)
	require.True(t, ok)
	assert.Equal(t, 4, line.Quantity)
	assert.True(t, line.LineTotal.Equal(decimal.RequireFromString("61")))
	assert.Equal(t, "€76.25", f.page.Total())
	assert.Equal(t, 5, res.ItemCount)
	assert.Equal(t, "5", f.page.Badge().Text)
}

func TestUpdateQuantityFailureRestoresPreviousValue(t *testing.T) {
	f := newFixture(t)
	f.seed(t, backendtest.Item{ID: 7, ProductID: 42, Quantity: 2})
	f.store.FailNext("/cart/update/7/", http.StatusBadGateway)
	input := NewInput("2")

	res, err := wait(t, f.syncer.UpdateQuantity(7, 9, input))
	assert.ErrorIs(t, err, ErrTransportOrServer)

	assert.Equal(t, "2", input.Value())
	assert.True(t, input.Enabled())
	require.NotNil(t, res.Notification)
	assert.Equal(t, notify.Error, res.Notification.Severity)

	line, ok := f.state.Line(7)
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "€30.50", f.page.Total())
}

func TestUpdateQuantityLastResponseWins(t *testing.T) {
	f := newFixture(t)
	f.seed(t, backendtest.Item{ID: 7, ProductID: 42, Quantity: 2})

	release := make(chan struct{})
	f.store.Hook = func(r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(b))
		if strings.Contains(string(b), `"quantity":3`) {
			<-release
		}
	}

	slow := f.syncer.UpdateQuantity(7, 3, nil)
	fast := f.syncer.UpdateQuantity(7, 5, nil)

	_, err := wait(t, fast)
	require.NoError(t, err)
	line, _ := f.state.Line(7)
	assert.Equal(t, 5, line.Quantity)

	close(release)
	_, err = wait(t, slow)
	require.NoError(t, err)

	line, _ = f.state.Line(7)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, "3", f.page.Badge().Text)
}

func TestRemoveItemFadesOutAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		backendtest.Item{ID: 7, ProductID: 42, Quantity: 2},
		backendtest.Item{ID: 8, ProductID: 42, Quantity: 1},
	)

	var sawFading bool
	unsubscribe := f.state.Subscribe(func(s cart.Snapshot) {
		for _, l := range s.Lines {
			if l.ItemID == 7 && l.Fading {
				sawFading = true
			}
		}
	})
	defer unsubscribe()

	btn := NewButton("Remove")
	res, err := wait(t, f.syncer.RemoveItem(7, btn))
	require.NoError(t, err)

	assert.True(t, sawFading)
	assert.False(t, f.page.HasRow(7))
	assert.True(t, f.page.HasRow(8))
	assert.Equal(t, 1, res.ItemCount)
	assert.Equal(t, "€15.25", f.page.Total())

	require.NotNil(t, res.Notification)
	assert.Equal(t, notify.Info, res.Notification.Severity)
	assert.Equal(t, "Item removed from cart", res.Notification.Message)
}

func TestRemoveItemDeclinedSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.seed(t, backendtest.Item{ID: 7, ProductID: 42, Quantity: 2})
	f.confirm = false

	res, err := wait(t, f.syncer.RemoveItem(7, nil))
	assert.ErrorIs(t, err, ErrUserDeclined)
	assert.NotErrorIs(t, err, ErrTransportOrServer)
	assert.Nil(t, res.Notification)

	assert.Empty(t, f.posts())
	assert.True(t, f.page.HasRow(7))
	assert.Empty(t, f.sink.Shown())
}

func TestRemoveItemTwiceDoesNotCorruptCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, backendtest.Item{ID: 7, ProductID: 42, Quantity: 2})

	_, err := wait(t, f.syncer.RemoveItem(7, nil))
	require.NoError(t, err)

	btn := NewButton("Remove")
	res, err := wait(t, f.syncer.RemoveItem(7, btn))
	assert.ErrorIs(t, err, ErrTransportOrServer)

	assert.True(t, btn.Enabled())
	assert.Equal(t, 0, res.ItemCount)
	assert.Equal(t, "€0.00", f.page.Total())
	assert.Empty(t, f.page.Rows())
	assert.Len(t, f.posts(), 2)
}

func TestRemoveItemFailureKeepsLine(t *testing.T) {
	f := newFixture(t)
	f.seed(t, backendtest.Item{ID: 7, ProductID: 42, Quantity: 2})
	f.store.FailNext("/cart/remove/7/", http.StatusInternalServerError)

	res, err := wait(t, f.syncer.RemoveItem(7, nil))
	assert.ErrorIs(t, err, ErrTransportOrServer)

	assert.True(t, f.page.HasRow(7))
	assert.Equal(t, 2, res.ItemCount)
	require.NotNil(t, res.Notification)
	assert.Equal(t, notify.Error, res.Notification.Severity)
}
