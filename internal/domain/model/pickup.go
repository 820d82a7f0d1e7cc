package model

import "time"

// PickupStatus tracks a pickup through its lifecycle.
type PickupStatus string

// Pickup statuses, in lifecycle order.
const (
	PickupPending    PickupStatus = "pending"
	PickupAccepted   PickupStatus = "accepted"
	PickupInProgress PickupStatus = "in_progress"
	PickupCompleted  PickupStatus = "completed"
	PickupCancelled  PickupStatus = "cancelled"
)

// Pickup is a collection job for a bin.
type Pickup struct {
	ID            string       `json:"id"`
	BinID         string       `json:"bin_id"`
	Bin           *Bin         `json:"bin,omitempty"`
	WorkerID      *int         `json:"worker_id,omitempty"`
	Status        PickupStatus `json:"status"`
	ScheduledTime time.Time    `json:"scheduled_time"`
	CompletedTime *time.Time   `json:"completed_time,omitempty"`
	Distance      float64      `json:"distance"`
	EstimatedTime int          `json:"estimated_time"`
	ActualTime    *int         `json:"actual_time,omitempty"`
	PaymentAmount float64      `json:"payment_amount"`
	Notes         string       `json:"notes,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// PickupRequest asks the platform to schedule a pickup for a bin.
type PickupRequest struct {
	BinID         string    `json:"bin_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Notes         string    `json:"notes,omitempty"`
}

// Completion closes a pickup. ActualTime is in minutes.
type Completion struct {
	Notes      string `json:"notes,omitempty"`
	ActualTime int    `json:"actual_time,omitempty"`
}

// PickupFilter narrows a pickup listing. Zero fields are not sent.
type PickupFilter struct {
	Page     int
	Limit    int
	Status   PickupStatus
	WorkerID int
	BinID    string
	DateFrom time.Time
	DateTo   time.Time
}
