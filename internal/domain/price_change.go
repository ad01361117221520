package domain

import "time"

// Window is a named lookback horizon.
type Window string

const (
	Window7D  Window = "7d"
	Window30D Window = "30d"
	Window6M  Window = "6m"
	WindowYTD Window = "ytd"
	Window1Y  Window = "1y"
	WindowAll Window = "all"
)

// Windows lists all lookback windows in storage column order.
var Windows = []Window{Window7D, Window30D, Window6M, WindowYTD, Window1Y, WindowAll}

// String returns the string representation of Window.
func (w Window) String() string {
	return string(w)
}

// IsValid checks if the window is a known value.
func (w Window) IsValid() bool {
	for _, v := range Windows {
		if w == v {
			return true
		}
	}
	return false
}

// PricePoint is a nullable (price, date) pair.
type PricePoint struct {
	Price *float64
	Date  *time.Time
}

// WindowChange holds the comparison price for one window and the deltas
// against the current price. All fields are nullable.
type WindowChange struct {
	PricePoint
	ChangePct    *float64
	ChangeDollar *float64
}

// PriceChange is the computed trend record for a product.
// Corresponds to price_change table in PostgreSQL, unique on product_id.
type PriceChange struct {
	ProductID        int64 // UNIQUE
	SubTypeName      string
	CurrentPrice     float64
	CurrentPriceDate time.Time
	Windows          map[Window]WindowChange // all six windows present
	LastUpdated      time.Time
}

// Window returns the change for w, or a zero WindowChange when absent.
func (p *PriceChange) Window(w Window) WindowChange {
	if p.Windows == nil {
		return WindowChange{}
	}
	return p.Windows[w]
}
