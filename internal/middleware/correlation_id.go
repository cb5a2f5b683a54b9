package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const HeaderCorrelationID = "X-Correlation-Id"

type ctxKey string

const ctxCorrelationID ctxKey = "correlation_id"

func WithCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, ctxCorrelationID, cid)
}

func GetCorrelationID(ctx context.Context) string {
	if v := ctx.Value(ctxCorrelationID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CorrelationID stamps every outgoing request with the correlation id carried
// by its context, generating one when the caller did not.
func CorrelationID(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get(HeaderCorrelationID) != "" {
			return next.RoundTrip(req)
		}
		cid := GetCorrelationID(req.Context())
		if cid == "" {
			cid = uuid.NewString()
		}
		req = req.Clone(req.Context())
		req.Header.Set(HeaderCorrelationID, cid)
		return next.RoundTrip(req)
	})
}
