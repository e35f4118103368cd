package models

import "time"

type User struct {
	ID           string    `json:"id"`
	DealershipID *string   `json:"dealership_id,omitempty"` // nil for the owner account
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PINHash      string    `json:"-"` // never expose in JSON
	TOTPEnabled  bool      `json:"totp_enabled"`
	TOTPSecret   string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role constants
const (
	RoleOwner           = "owner"
	RoleDealershipAdmin = "dealership_admin"
	RoleSales           = "sales"
	RoleService         = "service"
	RoleDelivery        = "delivery"
	RolePorter          = "porter"
	RoleLotTech         = "lot_tech"
	RoleUser            = "user"
)

// StandardUserRoles are the non-admin roles a dealership user can hold.
var StandardUserRoles = []string{RoleSales, RoleService, RoleDelivery, RolePorter, RoleLotTech, RoleUser}

// IsAdminRole reports whether role carries elevated privileges.
func IsAdminRole(role string) bool {
	return role == RoleOwner || role == RoleDealershipAdmin
}

// IsStandardRole reports whether role is a valid non-admin dealership role.
func IsStandardRole(role string) bool {
	for _, r := range StandardUserRoles {
		if r == role {
			return true
		}
	}
	return false
}

// LoginRequest represents the request body for PIN login. The owner account
// logs in without a dealership id.
type LoginRequest struct {
	DealershipID string `json:"dealership_id,omitempty"`
	Name         string `json:"name"`
	PIN          string `json:"pin"`
}

// AuthResponse represents the response after successful authentication
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	Name         string `json:"name"`
	PIN          string `json:"pin"` // 4-6 digit PIN
	Role         string `json:"role"`
	DealershipID string `json:"dealership_id"`
}

// UpdateUserRequest represents the request body for updating a user
type UpdateUserRequest struct {
	Name *string `json:"name,omitempty"`
	PIN  *string `json:"pin,omitempty"` // optional, re-hashed when present
	Role *string `json:"role,omitempty"`
}

// ChangePINRequest represents the request body for a self-service PIN change
type ChangePINRequest struct {
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}
