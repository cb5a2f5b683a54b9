// Package csrf reads the per-session CSRF token the storefront requires on
// every state-changing request.
package csrf

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultCookieName = "csrftoken"
	HeaderName        = "X-CSRFToken"
	FormFieldName     = "csrfmiddlewaretoken"
)

// FromCookieString scans a "a=1; b=2" cookie string for an exact name match
// and returns the URL-decoded value.
func FromCookieString(cookies, name string) (string, bool) {
	if cookies == "" || name == "" {
		return "", false
	}
	prefix := name + "="
	for _, part := range strings.Split(cookies, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, prefix) {
			continue
		}
		raw := part[len(prefix):]
		v, err := url.PathUnescape(raw)
		if err != nil {
			return raw, true
		}
		return v, true
	}
	return "", false
}

// FromJar looks the token up among the cookies the jar would send to u.
func FromJar(jar http.CookieJar, u *url.URL, name string) (string, bool) {
	if jar == nil || u == nil {
		return "", false
	}
	for _, c := range jar.Cookies(u) {
		if c.Name == name {
			v, err := url.PathUnescape(c.Value)
			if err != nil {
				return c.Value, true
			}
			return v, true
		}
	}
	return "", false
}
