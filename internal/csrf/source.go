package csrf

import (
	"net/http"
	"net/url"
	"sync"
)

// Source yields the token to attach to the next mutating request.
type Source interface {
	Token() (string, bool)
}

// Static is a fixed token, e.g. configured through CSRF_TOKEN.
type Static string

func (s Static) Token() (string, bool) { return string(s), s != "" }

// JarSource reads the cookie from the jar on every call, so a token rotated by
// the server is picked up without restarting the client.
type JarSource struct {
	Jar  http.CookieJar
	URL  *url.URL
	Name string
}

func (s JarSource) Token() (string, bool) {
	name := s.Name
	if name == "" {
		name = DefaultCookieName
	}
	return FromJar(s.Jar, s.URL, name)
}

// First returns the first source that has a token.
type First []Source

func (f First) Token() (string, bool) {
	for _, s := range f {
		if s == nil {
			continue
		}
		if v, ok := s.Token(); ok {
			return v, true
		}
	}
	return "", false
}

// Remembered holds a token learned at runtime, e.g. the hidden
// csrfmiddlewaretoken field of the last rendered cart page.
type Remembered struct {
	mu    sync.RWMutex
	token string
}

// Set keeps v; an empty v leaves the current token in place.
func (r *Remembered) Set(v string) {
	if v == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = v
}

func (r *Remembered) Token() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.token, r.token != ""
}
