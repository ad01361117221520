package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"tcg-price-trends/internal/domain"
)

// ErrMissingColumn is returned when the CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// ProductRow is one line of a ProductsAndPrices.csv file.
type ProductRow struct {
	Product        domain.Product
	LowPrice       *float64
	MidPrice       *float64
	HighPrice      *float64
	MarketPrice    *float64
	DirectLowPrice *float64
}

// Observation returns the row's price observation for date, or nil when the
// row carries no price at all.
func (r *ProductRow) Observation(date time.Time) *domain.PriceObservation {
	obs := &domain.PriceObservation{
		ProductID:      r.Product.ProductID,
		GroupID:        r.Product.GroupID,
		SubTypeName:    r.Product.SubTypeName,
		Date:           domain.DateOf(date),
		PeriodType:     domain.PeriodDaily,
		LowPrice:       r.LowPrice,
		MidPrice:       r.MidPrice,
		HighPrice:      r.HighPrice,
		MarketPrice:    r.MarketPrice,
		DirectLowPrice: r.DirectLowPrice,
	}
	if !obs.HasAnyPrice() {
		return nil
	}
	return obs
}

// ParseResult holds the rows of one CSV file.
type ParseResult struct {
	Rows    []ProductRow
	Skipped int     // malformed rows
	Errors  []error // one per skipped row
}

// modifiedOn layouts seen in the feed.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseProductsCSV reads a ProductsAndPrices.csv stream. Columns are looked
// up by header name; unknown columns are ignored and optional ones may be
// absent. groupID is used when the file has no groupId column.
func ParseProductsCSV(r io.Reader, categoryID int, groupID int64) (*ParseResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &ParseResult{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := cols["productId"]; !ok {
		return nil, fmt.Errorf("%w: productId", ErrMissingColumn)
	}

	result := &ParseResult{}
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.skip(fmt.Errorf("line %d: %w", line, err))
			continue
		}

		row, err := parseRow(record, cols, categoryID, groupID)
		if err != nil {
			result.skip(fmt.Errorf("line %d: %w", line, err))
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func (p *ParseResult) skip(err error) {
	p.Skipped++
	p.Errors = append(p.Errors, err)
}

func parseRow(record []string, cols map[string]int, categoryID int, groupID int64) (ProductRow, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var row ProductRow

	productID, err := strconv.ParseInt(get("productId"), 10, 64)
	if err != nil || productID <= 0 {
		return row, fmt.Errorf("invalid productId %q", get("productId"))
	}

	if v := get("groupId"); v != "" {
		gid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return row, fmt.Errorf("product %d: invalid groupId %q", productID, v)
		}
		groupID = gid
	}

	imageCount := 0
	if v := get("imageCount"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return row, fmt.Errorf("product %d: invalid imageCount %q", productID, v)
		}
		imageCount = int(n)
	}

	row.Product = domain.Product{
		ProductID:      productID,
		CategoryID:     categoryID,
		GroupID:        groupID,
		Name:           get("name"),
		CleanName:      get("cleanName"),
		URL:            get("url"),
		ImageURL:       get("imageUrl"),
		ImageCount:     imageCount,
		SubTypeName:    get("subTypeName"),
		ModifiedOn:     parseTime(get("modifiedOn")),
		ExtCardType:    get("extCardType"),
		ExtHP:          get("extHP"),
		ExtNumber:      get("extNumber"),
		ExtRarity:      get("extRarity"),
		ExtResistance:  get("extResistance"),
		ExtRetreatCost: get("extRetreatCost"),
		ExtStage:       get("extStage"),
		ExtUPC:         get("extUPC"),
		ExtWeakness:    get("extWeakness"),
		ExtCardText:    get("extCardText"),
		ExtAttack1:     get("extAttack1"),
		ExtAttack2:     get("extAttack2"),
		ExtAttack3:     get("extAttack3"),
		ExtAttack4:     get("extAttack4"),
	}

	prices := []struct {
		column string
		dst    **float64
	}{
		{"lowPrice", &row.LowPrice},
		{"midPrice", &row.MidPrice},
		{"highPrice", &row.HighPrice},
		{"marketPrice", &row.MarketPrice},
		{"directLowPrice", &row.DirectLowPrice},
	}
	for _, p := range prices {
		v, err := parsePrice(get(p.column))
		if err != nil {
			return row, fmt.Errorf("product %d: %s: %w", productID, p.column, err)
		}
		*p.dst = v
	}

	return row, nil
}

// parsePrice returns nil for an empty or NaN cell.
func parsePrice(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	if math.IsInf(v, 0) || v < 0 {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	return &v, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
