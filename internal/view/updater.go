package view

import (
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/cart"
)

// Updater restores the summary after a mutation. It writes to the cart state;
// the Page picks the change up through its subscription.
type Updater struct {
	state *cart.State
}

func NewUpdater(state *cart.State) *Updater { return &Updater{state: state} }

func (u *Updater) RefreshTotal(total decimal.Decimal) {
	u.state.SetTotal(total)
}

// RefreshCount sets the badge count; count <= 0 removes the badge.
func (u *Updater) RefreshCount(count int) {
	u.state.SetCount(count)
}

// RecomputeCountFromVisibleLines keeps the badge consistent with the lines
// still shown, without another round trip to the server.
func (u *Updater) RecomputeCountFromVisibleLines() int {
	n := u.state.Snapshot().VisibleQuantity()
	u.RefreshCount(n)
	return n
}
