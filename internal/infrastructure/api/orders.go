package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/ports"
)

var _ ports.OrderSource = (*Client)(nil)

// ListOrders fetches orders visible to the current session. It accepts a bare
// array, {data: [...]} and {orders: [...]}; anything else is an error rather
// than an empty list.
func (c *Client) ListOrders(ctx context.Context, params map[string]string) ([]domain.Order, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	raw, err := c.do(ctx, call{
		endpoint: "orders",
		method:   http.MethodGet,
		path:     "/orders",
		query:    q,
	})
	if err != nil {
		return nil, err
	}

	var orders []domain.Order
	if json.Unmarshal(raw, &orders) == nil {
		return orders, nil
	}

	var wrapped struct {
		Data   *[]domain.Order `json:"data"`
		Orders *[]domain.Order `json:"orders"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, malformed("orders", err)
	}
	switch {
	case wrapped.Data != nil:
		return *wrapped.Data, nil
	case wrapped.Orders != nil:
		return *wrapped.Orders, nil
	}
	return nil, malformed("orders", fmt.Errorf("no order list in %d byte body", len(raw)))
}
