package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/cartsync"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/csrf"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/search"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/view"
)

var errUsage = errors.New("invalid usage")

type app struct {
	cfg       config.Config
	logger    *logrus.Logger
	in        *bufio.Reader
	lines     <-chan inputLine
	out       io.Writer
	assumeYes bool

	base      *clients.Client
	pages     *clients.PageClient
	searcher  *clients.SearchClient
	publisher events.Publisher
	closeBus  func()

	state     *cart.State
	page      *view.Page
	presenter *notify.Presenter
	loop      *cartsync.Loop
	syncer    *cartsync.Syncer
}

func newApp(cfg config.Config, logger *logrus.Logger, stdin io.Reader, stdout io.Writer, assumeYes bool) (*app, error) {
	formToken := &csrf.Remembered{}
	httpClient, err := clients.NewHTTPClient(clients.HTTPOptions{
		BaseURL:        cfg.StorefrontURL,
		Timeout:        cfg.RequestTimeout,
		SessionCookies: cfg.SessionCookies,
		CSRFCookie:     cfg.CSRFCookie,
		CSRFToken:      cfg.CSRFToken,
		FormToken:      formToken,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	base, err := clients.NewClient("storefront", cfg.StorefrontURL, httpClient)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		in:        bufio.NewReader(stdin),
		out:       stdout,
		assumeYes: assumeYes,
		base:      base,
		pages:     clients.NewPageClient(base, formToken),
		searcher:  clients.NewSearchClient(base),
		publisher: events.NopPublisher{},
		closeBus:  func() {},
		state:     cart.NewState(),
		loop:      cartsync.NewLoop(logger),
	}

	if cfg.EventsEnabled {
		a.connectEvents()
	}

	sinks := []notify.Sink{&notify.WriterSink{W: stdout}, notify.LogSink{Logger: logger}}
	if cfg.EventsEnabled {
		sinks = append(sinks, events.NotificationSink{Publisher: a.publisher, Logger: logger})
	}
	a.presenter = notify.NewPresenter(cfg.NotifyDuration, sinks)
	a.page = view.NewPage(a.state, cfg.CurrencySymbol)

	opts := cartsync.DefaultOptions()
	opts.FadeDelay = cfg.FadeDelay
	opts.RestoreDelay = cfg.RestoreDelay

	a.syncer = cartsync.New(cartsync.Deps{
		Loop:      a.loop,
		Cart:      clients.NewCartClient(base),
		State:     a.state,
		Notifier:  a.presenter,
		Confirmer: cartsync.ConfirmFunc(a.confirm),
		Publisher: a.publisher,
		Logger:    logger,
		Options:   opts,
	})
	return a, nil
}

// connectEvents falls back to no publishing when the broker is unreachable;
// sync events are informational only.
func (a *app) connectEvents() {
	conn, err := events.Dial(a.cfg.RabbitMQURL)
	if err != nil {
		a.logger.WithError(err).Warn("events disabled")
		return
	}
	pub, err := events.NewRabbitPublisher(conn)
	if err != nil {
		_ = conn.Close()
		a.logger.WithError(err).Warn("events disabled")
		return
	}
	a.publisher = pub
	a.closeBus = func() {
		if err := pub.Close(); err != nil {
			a.logger.WithError(err).Warn("publisher close error")
		}
		_ = conn.Close()
	}
}

func (a *app) Close() {
	a.presenter.Close()
	a.page.Close()
	a.closeBus()
}

func (a *app) Run(ctx context.Context, args []string) error {
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go a.loop.Run(loopCtx)

	if args[0] == "shell" {
		return a.shell(ctx)
	}
	task, err := a.dispatch(ctx, args)
	if err != nil || task == nil {
		return err
	}
	if _, err := task.Wait(ctx); err != nil {
		if errors.Is(err, cartsync.ErrUserDeclined) {
			fmt.Fprintln(a.out, "nothing removed")
			return nil
		}
		return err
	}
	return a.page.Render(a.out)
}

// dispatch runs one command. Cart mutations return their task without waiting.
func (a *app) dispatch(ctx context.Context, args []string) (*cartsync.Task, error) {
	switch args[0] {
	case "cart", "show":
		if args[0] == "cart" {
			if err := a.hydrate(ctx); err != nil {
				return nil, err
			}
		}
		return nil, a.page.Render(a.out)

	case "add":
		pid, err := intArg(args, 1, "productId")
		if err != nil {
			return nil, err
		}
		return a.syncer.AddItem(pid, nil), nil

	case "update":
		itemID, err := intArg(args, 1, "itemId")
		if err != nil {
			return nil, err
		}
		qty, err := intArg(args, 2, "qty")
		if err != nil {
			return nil, err
		}
		if err := a.hydrateOnce(ctx); err != nil {
			return nil, err
		}
		return a.syncer.UpdateQuantity(itemID, int(qty), nil), nil

	case "remove":
		itemID, err := intArg(args, 1, "itemId")
		if err != nil {
			return nil, err
		}
		if err := a.hydrateOnce(ctx); err != nil {
			return nil, err
		}
		return a.syncer.RemoveItem(itemID, nil), nil

	case "search":
		if len(args) < 2 {
			return nil, errors.Wrap(errUsage, "search needs a query")
		}
		res, err := a.searcher.Search(ctx, strings.Join(args[1:], " "))
		if err != nil {
			return nil, err
		}
		a.printSearch(res)
		return nil, nil

	case "health":
		res := clients.CheckHealth(ctx, clients.HealthProbe{Name: "storefront", Client: a.base})
		if !res.OK {
			return nil, errors.Errorf("storefront unhealthy: status=%d %s", res.StatusCode, res.Error)
		}
		fmt.Fprintf(a.out, "storefront ok (%d)\n", res.StatusCode)
		return nil, nil

	default:
		return nil, errors.Wrapf(errUsage, "unknown command %q", args[0])
	}
}

// hydrate replaces the cart state with what /cart/ currently shows.
func (a *app) hydrate(ctx context.Context) error {
	cp, err := a.pages.FetchCart(ctx)
	if err != nil {
		return err
	}
	_, err = a.syncer.Load(cp.Lines, cp.Total).Wait(ctx)
	return err
}

func (a *app) hydrateOnce(ctx context.Context) error {
	if len(a.state.Snapshot().Lines) > 0 {
		return nil
	}
	return a.hydrate(ctx)
}

func (a *app) confirm(prompt string) bool {
	if a.assumeYes {
		return true
	}
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	line, err := a.readLine()
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (a *app) printSearch(res clients.SearchResult) {
	if len(res.ProductIDs) == 0 {
		fmt.Fprintf(a.out, "search %q: no products\n", res.Query)
		return
	}
	ids := make([]string, 0, len(res.ProductIDs))
	for _, id := range res.ProductIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	fmt.Fprintf(a.out, "search %q: products %s\n", res.Query, strings.Join(ids, ", "))
}

type inputLine struct {
	text string
	err  error
}

// readLines feeds stdin to the shell line by line until EOF or done, so the
// shell can wait on input and on cancellation together.
func (a *app) readLines(done <-chan struct{}) <-chan inputLine {
	ch := make(chan inputLine)
	go func() {
		defer close(ch)
		for {
			text, err := a.in.ReadString('\n')
			select {
			case ch <- inputLine{text: text, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// readLine takes the next line from the shell's reader when one is running.
func (a *app) readLine() (string, error) {
	if a.lines == nil {
		return a.in.ReadString('\n')
	}
	in, ok := <-a.lines
	if !ok {
		return "", io.EOF
	}
	return in.text, in.err
}

const shellHelp = `commands: cart | show | add <productId> | update <itemId> <qty> | remove <itemId>
          search <query> | type <text> | health | help | quit`

// shell reads commands until EOF, quit or cancellation. Mutations run in the
// background and report through notifications; leaving waits for the ones
// still in flight.
func (a *app) shell(ctx context.Context) error {
	live := search.NewLive(a.searcher, a.cfg.SearchDebounce, func(res clients.SearchResult) {
		a.loop.Post(func() { a.printSearch(res) })
	}, a.logger)
	defer live.Close()

	if err := a.hydrate(ctx); err != nil {
		a.logger.WithError(err).Warn("could not load cart")
	}

	done := make(chan struct{})
	defer close(done)
	a.lines = a.readLines(done)
	defer func() { a.lines = nil }()

	var pending []*cartsync.Task
	defer func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, t := range pending {
			_, _ = t.Wait(waitCtx)
		}
	}()

	for {
		var (
			in inputLine
			ok bool
		)
		select {
		case <-ctx.Done():
			return nil
		case in, ok = <-a.lines:
		}
		if !ok {
			return nil
		}

		fields := strings.Fields(in.text)
		if len(fields) > 0 {
			switch fields[0] {
			case "quit", "exit":
				return nil
			case "help":
				fmt.Fprintln(a.out, shellHelp)
			case "type":
				live.Input(strings.Join(fields[1:], " "))
			default:
				task, err := a.dispatch(ctx, fields)
				if err != nil {
					fmt.Fprintln(a.out, "error:", err)
				}
				if task != nil {
					pending = append(pending, task)
				}
			}
		}
		if in.err != nil {
			if errors.Is(in.err, io.EOF) {
				return nil
			}
			return errors.Wrap(in.err, "read command")
		}
	}
}

func intArg(args []string, i int, name string) (int64, error) {
	if len(args) <= i {
		return 0, errors.Wrapf(errUsage, "missing %s", name)
	}
	v, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errUsage, "invalid %s %q", name, args[i])
	}
	return v, nil
}
