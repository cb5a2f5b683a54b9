package clients

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/csrf"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/middleware"
)

type HTTPOptions struct {
	BaseURL string
	// 0 disables the client timeout.
	Timeout time.Duration
	// Raw "name=value; other=value" cookies to start the session with.
	SessionCookies string
	CSRFCookie     string
	// Explicit token used before the cookie.
	CSRFToken string
	// Token learned from rendered pages, used when neither of the above is set.
	FormToken *csrf.Remembered
	Logger    logrus.FieldLogger
	// Base transport, defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// NewHTTPClient builds the shared client: a cookie jar holding the storefront
// session, CSRF + correlation id headers on every mutation, request logging,
// and OpenTelemetry instrumentation.
func NewHTTPClient(opts HTTPOptions) (*http.Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid storefront url %q", opts.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar")
	}
	if cookies := parseCookies(opts.SessionCookies); len(cookies) > 0 {
		jar.SetCookies(u, cookies)
	}

	cookieName := opts.CSRFCookie
	if cookieName == "" {
		cookieName = csrf.DefaultCookieName
	}
	tokens := csrf.First{
		csrf.Static(opts.CSRFToken),
		csrf.JarSource{Jar: jar, URL: u, Name: cookieName},
	}
	if opts.FormToken != nil {
		tokens = append(tokens, opts.FormToken)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	rt := middleware.Chain(opts.Transport,
		middleware.CorrelationID,
		middleware.CSRF(tokens),
		middleware.Logging(logger),
	)

	return &http.Client{
		Jar:       jar,
		Timeout:   opts.Timeout,
		Transport: otelhttp.NewTransport(rt),
	}, nil
}

func parseCookies(raw string) []*http.Cookie {
	var out []*http.Cookie
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: value})
	}
	return out
}
