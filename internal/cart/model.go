package cart

import "github.com/shopspring/decimal"

// Line mirrors one row of the storefront cart. The server owns the data; the
// client only keeps what the page shows.
type Line struct {
	ItemID    int64           `json:"itemId"`
	ProductID int64           `json:"productId,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	// Fading lines are being removed and no longer count towards the badge.
	Fading bool `json:"fading,omitempty"`
}

type Summary struct {
	ItemCount int             `json:"itemCount"`
	Total     decimal.Decimal `json:"cartTotal"`
}

type Snapshot struct {
	Lines   []Line  `json:"lines"`
	Summary Summary `json:"summary"`
}

// VisibleQuantity sums the quantities of lines that are not fading out.
func (s Snapshot) VisibleQuantity() int {
	n := 0
	for _, l := range s.Lines {
		if !l.Fading {
			n += l.Quantity
		}
	}
	return n
}
