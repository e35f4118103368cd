package models

import "time"

type Dealership struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DealerType    string    `json:"dealer_type"` // AUTO or RV, fixed at creation
	LogoURL       string    `json:"logo_url,omitempty"`
	YellowMinutes int       `json:"yellow_minutes"`
	RedMinutes    int       `json:"red_minutes"`
	ServiceBays   int       `json:"service_bays"` // 0 = no bay board
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Dealer type constants
const (
	DealerTypeAuto = "AUTO"
	DealerTypeRV   = "RV"
)

// Default alert thresholds for new dealerships
const (
	DefaultYellowMinutes = 30
	DefaultRedMinutes    = 60
)

// AlertPolicy is the slice of dealership state the checkout core consumes.
// Read fresh per operation; yellow < red is enforced on the write side.
type AlertPolicy struct {
	YellowMinutes int    `json:"yellow_minutes"`
	RedMinutes    int    `json:"red_minutes"`
	DealerType    string `json:"dealer_type"`
}

// CreateDealershipRequest represents the request body for creating a dealership
type CreateDealershipRequest struct {
	Name        string `json:"name"`
	DealerType  string `json:"dealer_type"`
	LogoURL     string `json:"logo_url,omitempty"`
	ServiceBays int    `json:"service_bays,omitempty"`
}

// UpdateDealershipRequest represents the request body for updating a dealership
type UpdateDealershipRequest struct {
	Name        *string `json:"name,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
	ServiceBays *int    `json:"service_bays,omitempty"`
}

// UpdateAlertSettingsRequest updates the yellow/red thresholds
type UpdateAlertSettingsRequest struct {
	YellowMinutes int `json:"yellow_minutes"`
	RedMinutes    int `json:"red_minutes"`
}

// ServiceBay is one row of the bay occupancy board, derived from open
// sessions whose location matches the bay naming scheme.
type ServiceBay struct {
	BayNumber  int              `json:"bay_number"`
	IsOccupied bool             `json:"is_occupied"`
	Key        *KeyWithCheckout `json:"key,omitempty"`
}
