package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/logging"
)

const usage = `usage: storefront-client [flags] <command>

commands:
  cart                   show the cart
  add <productId>        add one unit of a product
  update <itemId> <qty>  set a line quantity (0 removes the line)
  remove <itemId>        remove a line
  search <query>         search products
  health                 check the storefront is up
  shell                  interactive session ("help" lists commands)

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "storefront-client:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.Load()

	fs := flag.NewFlagSet("storefront-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.StorefrontURL, "url", cfg.StorefrontURL, "storefront base URL (STOREFRONT_URL)")
	fs.StringVar(&cfg.SessionCookies, "cookies", cfg.SessionCookies, "session cookies as name=value; ... (SESSION_COOKIES)")
	fs.StringVar(&cfg.CSRFToken, "csrf-token", cfg.CSRFToken, "explicit CSRF token (CSRF_TOKEN)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json (LOG_FORMAT)")
	fs.BoolVar(&cfg.EventsEnabled, "events", cfg.EventsEnabled, "publish sync events to RabbitMQ (EVENTS_ENABLED)")
	assumeYes := fs.Bool("yes", false, "do not ask before removing items")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	logger := logging.NewWithOutput(stderr, cfg.LogLevel, cfg.LogFormat)

	a, err := newApp(cfg, logger, stdin, stdout, *assumeYes)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx, fs.Args())
}
