package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tcg-price-trends/internal/domain"
)

// DefaultBaseURL is the tcgcsv.com TCGplayer mirror.
const DefaultBaseURL = "https://tcgcsv.com/tcgplayer"

// TCGCSVClient fetches groups and products from tcgcsv.com.
type TCGCSVClient struct {
	client *resty.Client
}

// groupsResponse is the body of {base}/{category}/groups.
type groupsResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
	Results []struct {
		GroupID      int64  `json:"groupId"`
		Name         string `json:"name"`
		Abbreviation string `json:"abbreviation"`
		CategoryID   int    `json:"categoryId"`
		ModifiedOn   string `json:"modifiedOn"`
	} `json:"results"`
}

// NewTCGCSVClient creates a client for baseURL (DefaultBaseURL when empty).
func NewTCGCSVClient(baseURL string, timeout time.Duration) *TCGCSVClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("User-Agent", "tcg-price-trends/1.0")

	return &TCGCSVClient{client: client}
}

// FetchGroups returns every group of a category.
func (c *TCGCSVClient) FetchGroups(ctx context.Context, categoryID int) ([]*domain.Group, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/%d/groups", categoryID))
	if err != nil {
		return nil, fmt.Errorf("fetch groups: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch groups: unexpected status %d", resp.StatusCode())
	}

	var body groupsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	if !body.Success && len(body.Errors) > 0 {
		return nil, fmt.Errorf("fetch groups: %s", strings.Join(body.Errors, "; "))
	}

	groups := make([]*domain.Group, 0, len(body.Results))
	for _, g := range body.Results {
		if g.GroupID == 0 {
			continue
		}
		cat := g.CategoryID
		if cat == 0 {
			cat = categoryID
		}
		groups = append(groups, &domain.Group{
			GroupID:    g.GroupID,
			Name:       g.Name,
			CategoryID: cat,
			ModifiedOn: parseTime(g.ModifiedOn),
		})
	}
	return groups, nil
}

// FetchProducts downloads and parses a group's ProductsAndPrices.csv.
func (c *TCGCSVClient) FetchProducts(ctx context.Context, categoryID int, groupID int64) (*ParseResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/%d/%d/ProductsAndPrices.csv", categoryID, groupID))
	if err != nil {
		return nil, fmt.Errorf("fetch products for group %d: %w", groupID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch products for group %d: unexpected status %d", groupID, resp.StatusCode())
	}

	result, err := ParseProductsCSV(bytes.NewReader(resp.Body()), categoryID, groupID)
	if err != nil {
		return nil, fmt.Errorf("parse products for group %d: %w", groupID, err)
	}
	return result, nil
}

var _ CatalogSource = (*TCGCSVClient)(nil)
