package trend

import (
	"time"

	"tcg-price-trends/internal/domain"
)

// Lookback offsets in days for fixed windows.
const (
	days7D  = 7
	days30D = 30
	days6M  = 180
	days1Y  = 365
)

// windowedOrder lists the windows resolved by nearest-date match.
// WindowAll is resolved separately as the earliest observation.
var windowedOrder = []domain.Window{
	domain.Window7D,
	domain.Window30D,
	domain.Window6M,
	domain.WindowYTD,
	domain.Window1Y,
}

// TargetDates computes the comparison date of every windowed lookback for today.
// WindowAll has no target date and is not included.
func TargetDates(today time.Time) map[domain.Window]time.Time {
	d := domain.DateOf(today)
	return map[domain.Window]time.Time{
		domain.Window7D:  d.AddDate(0, 0, -days7D),
		domain.Window30D: d.AddDate(0, 0, -days30D),
		domain.Window6M:  d.AddDate(0, 0, -days6M),
		domain.WindowYTD: time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
		domain.Window1Y:  d.AddDate(0, 0, -days1Y),
	}
}
