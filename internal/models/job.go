package models

import "time"

const JobStatusDone = "done"

type Job struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"order_id,omitempty"`
	OrderItemID     string     `json:"order_item_id,omitempty"`
	JobType         string     `json:"job_type,omitempty"`
	Status          string     `json:"status"`
	SignatureImage  string     `json:"signature_image_url,omitempty"`
	Notes           string     `json:"job_notes,omitempty"`
	AssignedTeam    string     `json:"assigned_team,omitempty"`
	AppointmentDate *time.Time `json:"appointment_date,omitempty"`
	CompletionDate  *time.Time `json:"completion_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// JobView is a job joined with its order, customer and product snapshot.
type JobView struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"order_id"`
	CustomerName    string     `json:"customer_name"`
	CustomerPhone   string     `json:"customer_phone"`
	ProductName     string     `json:"product_name"`
	ProductImage    string     `json:"product_image,omitempty"`
	JobType         string     `json:"job_type"`
	Status          string     `json:"status"`
	AssignedTeam    string     `json:"assigned_team,omitempty"`
	AppointmentDate *time.Time `json:"appointment_date,omitempty"`
	CompletionDate  *time.Time `json:"completion_date,omitempty"`
	Address         string     `json:"address"`
	Notes           string     `json:"notes,omitempty"`
}

// ChangeEvent is one row-level change notification for a tracked table.
type ChangeEvent struct {
	Table    string `json:"table"`
	Type     string `json:"type"`
	RecordID string `json:"id,omitempty"`
}
