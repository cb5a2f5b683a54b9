package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// ErrTransportOrServer covers every failed exchange with the storefront:
// network errors, non-2xx statuses, malformed bodies and success=false answers.
var ErrTransportOrServer = errors.New("transport or server error")

type RequestError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool { return target == ErrTransportOrServer }

type Client struct {
	Name    string
	BaseURL *url.URL
	HTTP    *http.Client
}

func NewClient(name string, baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s base url %q", name, baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid %s base url %q: scheme and host required", name, baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{Name: name, BaseURL: u, HTTP: httpClient}, nil
}

func (c *Client) Do(ctx context.Context, method, path, rawQuery string, body io.Reader, headers http.Header) (*http.Response, error) {
	rel := &url.URL{Path: path, RawQuery: rawQuery}
	u := c.BaseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vv := range headers {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	// The storefront answers AJAX calls with JSON only when asked like a browser would.
	if req.Header.Get("X-Requested-With") == "" {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	return c.HTTP.Do(req)
}

// successBody is the envelope every cart endpoint answers with.
type successBody interface {
	ok() bool
	failure() string
}

// doJSON performs the exchange and decodes a JSON body, mapping every failure
// to a *RequestError.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body io.Reader, headers http.Header, out successBody) error {
	resp, err := c.Do(ctx, method, path, "", body, headers)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "decode response")}
	}
	if !out.ok() {
		msg := out.failure()
		if msg == "" {
			msg = "success=false"
		}
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	return nil
}
