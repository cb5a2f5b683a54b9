package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/csrf"
)

type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Chain wraps base so that the first middleware is the outermost.
func Chain(base http.RoundTripper, mws ...func(http.RoundTripper) http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}
	return rt
}

// CSRF attaches the X-CSRFToken header to state-changing requests.
// A missing token is not an error here: the backend rejects the request and
// the caller reports that failure like any other.
func CSRF(src csrf.Source) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if isSafeMethod(req.Method) || src == nil {
				return next.RoundTrip(req)
			}
			token, ok := src.Token()
			if !ok {
				return next.RoundTrip(req)
			}
			req = req.Clone(req.Context())
			req.Header.Set(csrf.HeaderName, token)
			return next.RoundTrip(req)
		})
	}
}

func Logging(logger logrus.FieldLogger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			entry := logger.WithFields(logrus.Fields{
				"method":         req.Method,
				"path":           req.URL.Path,
				"correlation_id": req.Header.Get(HeaderCorrelationID),
				"duration_ms":    time.Since(start).Milliseconds(),
			})
			if err != nil {
				entry.WithError(err).Warn("request failed")
				return nil, err
			}
			entry.WithField("status", resp.StatusCode).Debug("request done")
			return resp, nil
		})
	}
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
