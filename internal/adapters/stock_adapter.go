package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

// StockAdapter talks to the inventory service over HTTP.
type StockAdapter struct {
	baseURL string
	client  *http.Client
}

func NewStockAdapter(baseURL string, timeout time.Duration) *StockAdapter {
	return &StockAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *StockAdapter) Check(ctx context.Context, productID, branchID string) (*model.StockLevel, error) {
	q := url.Values{}
	q.Set("product_id", productID)
	q.Set("branch_id", branchID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/stock?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building stock request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stock check for %s: %w", productID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &model.StockLevel{ProductID: productID, BranchID: branchID}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("stock check for %s: status %d: %s", productID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var level model.StockLevel
	if err := json.NewDecoder(resp.Body).Decode(&level); err != nil {
		return nil, fmt.Errorf("decoding stock level for %s: %w", productID, err)
	}
	level.ProductID = productID
	level.BranchID = branchID
	return &level, nil
}

func (s *StockAdapter) Move(ctx context.Context, movement model.StockMovement) error {
	body, err := json.Marshal(movement)
	if err != nil {
		return fmt.Errorf("encoding stock movement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/stock/movements", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building movement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("stock movement for %s: %w", movement.ProductID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stock movement for %s: status %d: %s", movement.ProductID, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
