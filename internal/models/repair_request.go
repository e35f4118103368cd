package models

import "time"

type RepairRequest struct {
	ID               string     `json:"id"`
	KeyID            string     `json:"key_id"`
	DealershipID     string     `json:"dealership_id"`
	StockNumber      string     `json:"stock_number"` // denormalized for list views
	ReportedByUserID string     `json:"reported_by_user_id"`
	Notes            string     `json:"notes"`
	Status           string     `json:"status"` // PENDING or FIXED
	ReportedAt       time.Time  `json:"reported_at"`
	FixedByUserID    *string    `json:"fixed_by_user_id,omitempty"`
	FixedAt          *time.Time `json:"fixed_at,omitempty"`
	FixNotes         string     `json:"fix_notes,omitempty"`
}

// Repair request status constants
const (
	RepairPending = "PENDING"
	RepairFixed   = "FIXED"
)

// CreateRepairRequest represents the request body for reporting a unit
type CreateRepairRequest struct {
	KeyID string `json:"key_id"`
	Notes string `json:"notes"`
}

// MarkFixedRequest represents the request body for resolving a repair request
type MarkFixedRequest struct {
	Notes string `json:"notes,omitempty"`
}
