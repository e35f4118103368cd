package models

import "time"

type Key struct {
	ID           string    `json:"id"`
	DealershipID string    `json:"dealership_id"`
	StockNumber  string    `json:"stock_number"` // unique per dealership among non-deleted keys, case-insensitive
	Category     string    `json:"category"`     // NEW or USED, immutable after creation
	Status       string    `json:"status"`       // ACTIVE, SOLD, EXTENDED_TEST_DRIVE, SERVICE_LOANER, DELETED
	VehicleYear  *int      `json:"vehicle_year,omitempty"`
	VehicleMake  string    `json:"vehicle_make,omitempty"`
	VehicleModel string    `json:"vehicle_model"`
	VehicleVIN   string    `json:"vehicle_vin,omitempty"` // optional, RV units often have none
	Color        string    `json:"color,omitempty"`
	PDIStatus    string    `json:"pdi_status"` // NOT_PDI_YET, IN_PROGRESS, FINISHED
	Photos       []string  `json:"photos,omitempty"` // up to 3 object URLs
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Key status constants
const (
	KeyStatusActive           = "ACTIVE"
	KeyStatusSold             = "SOLD"
	KeyStatusExtendedTestDrive = "EXTENDED_TEST_DRIVE"
	KeyStatusServiceLoaner    = "SERVICE_LOANER"
	KeyStatusDeleted          = "DELETED"
)

// Key category constants
const (
	CategoryNew  = "NEW"
	CategoryUsed = "USED"
)

// PDI status constants
const (
	PDINotYet     = "NOT_PDI_YET"
	PDIInProgress = "IN_PROGRESS"
	PDIFinished   = "FINISHED"
)

// KeyWithCheckout is the view returned by every mutating key operation:
// the key plus its open session (if any) with derived alert fields.
type KeyWithCheckout struct {
	Key
	CheckoutSession *CheckoutView `json:"checkout_session,omitempty"`
}

// CheckoutView is the derived read-model of an open session. ElapsedMinutes
// and AlertState are computed at read time from the clock, never stored.
type CheckoutView struct {
	CheckedOutByUserID string    `json:"checked_out_by_user_id"`
	CheckedOutAt       time.Time `json:"checked_out_at"`
	CheckoutReason     string    `json:"checkout_reason"`
	CurrentLocation    *string   `json:"current_location,omitempty"`
	ElapsedMinutes     int       `json:"elapsed_minutes"`
	AlertState         string    `json:"alert_state"`
	IsOpen             bool      `json:"is_open"`
}

// CreateKeyRequest represents the request body for creating a key
type CreateKeyRequest struct {
	StockNumber  string `json:"stock_number"`
	Category     string `json:"category"`
	VehicleYear  *int   `json:"vehicle_year,omitempty"`
	VehicleMake  string `json:"vehicle_make,omitempty"`
	VehicleModel string `json:"vehicle_model"`
	VehicleVIN   string `json:"vehicle_vin,omitempty"`
	Color        string `json:"color,omitempty"`
}

// UpdateKeyRequest represents the request body for updating descriptive
// fields. Category is immutable and deliberately absent.
type UpdateKeyRequest struct {
	StockNumber  *string `json:"stock_number,omitempty"`
	VehicleYear  *int    `json:"vehicle_year,omitempty"`
	VehicleMake  *string `json:"vehicle_make,omitempty"`
	VehicleModel *string `json:"vehicle_model,omitempty"`
	VehicleVIN   *string `json:"vehicle_vin,omitempty"`
	Color        *string `json:"color,omitempty"`
}

// BulkImportRequest carries pre-parsed key rows; CSV parsing happens client side.
type BulkImportRequest struct {
	Keys []CreateKeyRequest `json:"keys"`
}

// BulkImportItemResult reports one row's outcome. The batch never aborts as
// a whole: failed rows carry their error, successful rows their new id.
type BulkImportItemResult struct {
	Index       int    `json:"index"`
	StockNumber string `json:"stock_number"`
	Success     bool   `json:"success"`
	KeyID       string `json:"key_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

type BulkImportResult struct {
	Created int                    `json:"created"`
	Failed  int                    `json:"failed"`
	Items   []BulkImportItemResult `json:"items"`
}

// ChangeStatusRequest represents the request body for a status transition
type ChangeStatusRequest struct {
	NewStatus string `json:"new_status"`
}
