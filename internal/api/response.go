package api

import (
	"time"

	"tcg-price-trends/internal/domain"
)

const dateLayout = "2006-01-02"

// WindowResponse is one lookback window of a price change record.
type WindowResponse struct {
	Price        *float64 `json:"price"`
	Date         *string  `json:"date"`
	ChangePct    *float64 `json:"change_pct"`
	ChangeDollar *float64 `json:"change_dollar"`
}

// PriceChangeResponse is the JSON form of domain.PriceChange.
type PriceChangeResponse struct {
	ProductID        int64                     `json:"product_id"`
	SubTypeName      string                    `json:"sub_type_name"`
	CurrentPrice     float64                   `json:"current_price"`
	CurrentPriceDate string                    `json:"current_price_date"`
	Windows          map[string]WindowResponse `json:"windows"`
	LastUpdated      time.Time                 `json:"last_updated"`
}

func toResponse(p *domain.PriceChange) PriceChangeResponse {
	resp := PriceChangeResponse{
		ProductID:        p.ProductID,
		SubTypeName:      p.SubTypeName,
		CurrentPrice:     p.CurrentPrice,
		CurrentPriceDate: p.CurrentPriceDate.Format(dateLayout),
		Windows:          make(map[string]WindowResponse, len(domain.Windows)),
		LastUpdated:      p.LastUpdated,
	}
	for _, w := range domain.Windows {
		wc := p.Window(w)
		wr := WindowResponse{
			Price:        wc.Price,
			ChangePct:    wc.ChangePct,
			ChangeDollar: wc.ChangeDollar,
		}
		if wc.Date != nil {
			d := wc.Date.Format(dateLayout)
			wr.Date = &d
		}
		resp.Windows[w.String()] = wr
	}
	return resp
}

func toResponses(records []*domain.PriceChange) []PriceChangeResponse {
	out := make([]PriceChangeResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toResponse(r))
	}
	return out
}
