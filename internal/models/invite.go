package models

import "time"

type Invite struct {
	ID             string     `json:"id"`
	Token          string     `json:"token"`
	DealershipID   string     `json:"dealership_id"`
	Role           string     `json:"role"` // role the invited user will get
	CreatedByUserID string    `json:"created_by_user_id"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	IsUsed         bool       `json:"is_used"`
	UsedByUserID   *string    `json:"used_by_user_id,omitempty"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
}

// CreateInviteRequest represents the request body for creating an invite
type CreateInviteRequest struct {
	DealershipID  string `json:"dealership_id"`
	Role          string `json:"role"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"` // default 7
}

// ClaimInviteRequest accepts an invite and creates the account
type ClaimInviteRequest struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	PIN   string `json:"pin"`
}
