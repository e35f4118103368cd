package models

import "time"

// PDIAuditLog records one pre-delivery-inspection status change on a key.
type PDIAuditLog struct {
	ID              string    `json:"id"`
	KeyID           string    `json:"key_id"`
	StockNumber     string    `json:"stock_number"`
	ChangedByUserID string    `json:"changed_by_user_id"`
	PreviousStatus  string    `json:"previous_status"`
	NewStatus       string    `json:"new_status"`
	Notes           string    `json:"notes,omitempty"`
	ChangedAt       time.Time `json:"changed_at"`
}

// UpdatePDIStatusRequest represents the request body for a PDI status change
type UpdatePDIStatusRequest struct {
	Status string `json:"status"` // NOT_PDI_YET, IN_PROGRESS, FINISHED
	Notes  string `json:"notes,omitempty"`
}
