package models

import "time"

type CheckoutSession struct {
	ID                 string     `json:"id"`
	KeyID              string     `json:"key_id"`
	CheckedOutByUserID string     `json:"checked_out_by_user_id"`
	CheckedOutAt       time.Time  `json:"checked_out_at"`
	CheckoutReason     string     `json:"checkout_reason"` // TEST_DRIVE, SERVICE, MOVE, MISCELLANEOUS
	CurrentLocation    *string    `json:"current_location,omitempty"`
	IsOpen             bool       `json:"is_open"`
	ReturnedAt         *time.Time `json:"returned_at,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Checkout reason constants
const (
	ReasonTestDrive     = "TEST_DRIVE"
	ReasonService       = "SERVICE"
	ReasonMove          = "MOVE"
	ReasonMiscellaneous = "MISCELLANEOUS"
)

// KeyBoxLocation is the reserved location sentinel meaning the key sits in
// the key box while its session stays open (service-loaner workflows where
// the vehicle, not the key record, changes hands). Distinct from any
// free-text bay identifier and from closing the session.
const KeyBoxLocation = "KEY_BOX"

// Alert state constants
const (
	AlertGreen  = "GREEN"
	AlertYellow = "YELLOW"
	AlertRed    = "RED"
)

// CheckoutRequest represents the request body for checking a key out
type CheckoutRequest struct {
	Reason         string  `json:"reason"`
	Location       *string `json:"location,omitempty"` // required when reason is SERVICE
	Notes          string  `json:"notes,omitempty"`
	NeedsAttention bool    `json:"needs_attention,omitempty"`
}

// ReturnRequest represents the request body for returning a key
type ReturnRequest struct {
	Notes string `json:"notes,omitempty"`
}

// UpdateLocationRequest represents the request body for relocating an open session
type UpdateLocationRequest struct {
	Location string `json:"location"`
}

// MoveBayRequest moves an open session to a numbered service bay
type MoveBayRequest struct {
	NewBay int `json:"new_bay"`
}
