package models

import "time"

type OrderItem struct {
	ID      string         `json:"id"`
	OrderID string         `json:"order_id"`
	Status  string         `json:"status,omitempty"`
	Jobs    []OrderItemJob `json:"jobs"`
}

type OrderItemJob struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
