package view

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/money"
)

type Badge struct {
	Visible bool
	Text    string
}

type Row struct {
	ItemID    int64
	ProductID int64
	Quantity  int
	ItemTotal string
	Fading    bool
}

// Page is the rendered cart: badge, total and rows, kept in sync with a cart.State.
type Page struct {
	symbol string

	mu    sync.RWMutex
	badge Badge
	total string
	rows  []Row

	unsubscribe func()
}

func NewPage(state *cart.State, symbol string) *Page {
	if symbol == "" {
		symbol = money.DefaultSymbol
	}
	p := &Page{symbol: symbol}
	p.unsubscribe = state.Subscribe(p.apply)
	return p
}

func (p *Page) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

func (p *Page) apply(snap cart.Snapshot) {
	rows := make([]Row, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		rows = append(rows, Row{
			ItemID:    l.ItemID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			ItemTotal: money.Format(p.symbol, l.LineTotal),
			Fading:    l.Fading,
		})
	}

	badge := Badge{}
	if snap.Summary.ItemCount > 0 {
		badge = Badge{Visible: true, Text: strconv.Itoa(snap.Summary.ItemCount)}
	}

	p.mu.Lock()
	p.badge = badge
	p.total = money.Format(p.symbol, snap.Summary.Total)
	p.rows = rows
	p.mu.Unlock()
}

func (p *Page) Badge() Badge {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.badge
}

func (p *Page) Total() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.total
}

func (p *Page) Rows() []Row {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Row(nil), p.rows...)
}

func (p *Page) HasRow(itemID int64) bool {
	for _, r := range p.Rows() {
		if r.ItemID == itemID {
			return true
		}
	}
	return false
}

// Render prints the page as plain text.
func (p *Page) Render(w io.Writer) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	badge := "-"
	if p.badge.Visible {
		badge = p.badge.Text
	}
	if _, err := fmt.Fprintf(w, "cart [%s]\n", badge); err != nil {
		return err
	}
	for _, r := range p.rows {
		state := ""
		if r.Fading {
			state = " (removing)"
		}
		if _, err := fmt.Fprintf(w, "  #%-6d product %-6d x%-3d %10s%s\n", r.ItemID, r.ProductID, r.Quantity, r.ItemTotal, state); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "total %s\n", p.total)
	return err
}
