package domain

import (
	"encoding/json"
	"time"
)

// Order is the slice of a laundry order the dashboards aggregate. Everything
// else the backend sends is ignored.
type Order struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"totalAmount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts "_id" in place of "id".
func (o *Order) UnmarshalJSON(b []byte) error {
	type plain Order
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*o = Order(aux.plain)
	if o.ID == "" {
		o.ID = aux.MongoID
	}
	return nil
}

// DashboardStats is the aggregate shown on role dashboards.
type DashboardStats struct {
	TotalOrders int            `json:"totalOrders"`
	ByStatus    map[string]int `json:"byStatus"`
	Revenue     float64        `json:"revenue"`
	RefreshedAt time.Time      `json:"refreshedAt"`
}

// Aggregate builds DashboardStats from a batch of orders.
func Aggregate(orders []Order, now time.Time) DashboardStats {
	stats := DashboardStats{ByStatus: make(map[string]int), RefreshedAt: now}
	for _, o := range orders {
		stats.TotalOrders++
		status := o.Status
		if status == "" {
			status = "unknown"
		}
		stats.ByStatus[status]++
		stats.Revenue += o.TotalAmount
	}
	return stats
}
