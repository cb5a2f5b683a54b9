// Package backendtest provides an in-memory storefront that honors the cart
// endpoint contract, for tests and local runs of the client.
package backendtest

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

const CSRFToken = "test-csrf-token"

type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

type Item struct {
	ID        int64
	ProductID int64
	Quantity  int
}

type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// Storefront is safe for concurrent use.
type Storefront struct {
	mu       sync.Mutex
	products map[int64]Product
	items    map[int64]*Item
	nextItem int64
	requests []Request
	failures map[string]int

	// Hook runs before a cart mutation is answered; tests use it to hold
	// responses and control arrival order.
	Hook func(r *http.Request)
}

func New(products ...Product) *Storefront {
	s := &Storefront{
		products: map[int64]Product{},
		items:    map[int64]*Item{},
		nextItem: 1,
		failures: map[string]int{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// Start serves the storefront on a local httptest server closed at test cleanup.
func (s *Storefront) Start(t interface {
	Helper()
	Cleanup(func())
}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

// PutItem seeds a cart line with a fixed id.
func (s *Storefront) PutItem(it Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := it
	s.items[it.ID] = &cp
	if it.ID >= s.nextItem {
		s.nextItem = it.ID + 1
	}
}

// FailNext makes the next request to path answer with status.
func (s *Storefront) FailNext(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

func (s *Storefront) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Storefront) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Storefront) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>shop</body></html>"))
	})
	r.Get("/cart/", s.cartPage)
	r.Get("/search/", s.search)

	r.Group(func(r chi.Router) {
		r.Use(s.injectFailures)
		r.Use(s.requireCSRF)
		r.Use(s.hook)
		r.Post("/cart/add/{productID}/", s.addToCart)
		r.Post("/cart/update/{itemID}/", s.updateCartItem)
		r.Post("/cart/remove/{itemID}/", s.removeFromCart)
	})
	return r
}

func (s *Storefront) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: string(body)})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Storefront) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status, ok := s.failures[r.URL.Path]
		delete(s.failures, r.URL.Path)
		s.mu.Unlock()
		if ok {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Storefront) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRFToken") != CSRFToken {
			http.Error(w, "CSRF verification failed", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Storefront) hook(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Hook != nil {
			s.Hook(r)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Storefront) addToCart(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[pid]
	if !ok {
		http.NotFound(w, r)
		return
	}
	var found *Item
	for _, it := range s.items {
		if it.ProductID == pid {
			found = it
			break
		}
	}
	if found == nil {
		found = &Item{ID: s.nextItem, ProductID: pid}
		s.items[found.ID] = found
		s.nextItem++
	}
	found.Quantity++

	writeJSON(w, map[string]any{
		"success":    true,
		"message":    p.Name + " added to cart",
		"cart_total": s.totalItemsLocked(),
	})
}

func (s *Storefront) updateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[itemID]
	if !ok {
		http.NotFound(w, r)
		return
	}

	var body struct {
		Quantity json.Number `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, map[string]any{"success": false, "error": "invalid data"})
		return
	}
	qty, err := strconv.Atoi(body.Quantity.String())
	if err != nil {
		writeJSON(w, map[string]any{"success": false, "error": "invalid data"})
		return
	}

	if qty > 0 {
		it.Quantity = qty
		writeJSON(w, map[string]any{
			"success":     true,
			"total_price": s.lineTotalLocked(it),
			"cart_total":  s.totalPriceLocked(),
		})
		return
	}

	delete(s.items, itemID)
	writeJSON(w, map[string]any{
		"success":    true,
		"deleted":    true,
		"cart_total": s.totalPriceLocked(),
	})
}

func (s *Storefront) removeFromCart(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[itemID]; !ok {
		http.NotFound(w, r)
		return
	}
	delete(s.items, itemID)
	writeJSON(w, map[string]any{"success": true, "cart_total": s.totalPriceLocked()})
}

var cartTmpl = template.Must(template.New("cart").Parse(`<html><body>
<form><input type="hidden" name="csrfmiddlewaretoken" value="{{.Token}}"></form>
<table>{{range .Rows}}
<tr class="cart-item" data-product-id="{{.ProductID}}">
  <td class="item-price">€{{.Price}}</td>
  <td><input type="number" class="form-control quantity update-quantity" data-item-id="{{.ID}}" value="{{.Quantity}}"></td>
  <td class="item-total">€{{.Total}}</td>
</tr>{{end}}
</table>
<span class="cart-total">€{{.CartTotal}}</span>
</body></html>`))

type cartRow struct {
	ID, ProductID int64
	Quantity      int
	Price, Total  string
}

func (s *Storefront) cartPage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	rows := make([]cartRow, 0, len(ids))
	for _, id := range ids {
		it := s.items[id]
		rows = append(rows, cartRow{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     s.products[it.ProductID].Price.StringFixed(2),
			Total:     s.lineTotalLocked(it).StringFixed(2),
		})
	}
	total := s.totalPriceLocked().StringFixed(2)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: CSRFToken, Path: "/"})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = cartTmpl.Execute(w, map[string]any{"Token": CSRFToken, "Rows": rows, "CartTotal": total})
}

var searchTmpl = template.Must(template.New("search").Parse(`<html><body>{{range .}}
<div class="product-card"><h5>{{.Name}}</h5>
<button class="btn add-to-cart" data-product-id="{{.ID}}">Add to cart</button></div>{{end}}
</body></html>`))

func (s *Storefront) search(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))

	s.mu.Lock()
	var hits []Product
	for _, p := range s.products {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) {
			hits = append(hits, p)
		}
	}
	s.mu.Unlock()
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = searchTmpl.Execute(w, hits)
}

func (s *Storefront) totalItemsLocked() int {
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

func (s *Storefront) lineTotalLocked(it *Item) decimal.Decimal {
	return s.products[it.ProductID].Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (s *Storefront) totalPriceLocked() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(s.lineTotalLocked(it))
	}
	return total
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
