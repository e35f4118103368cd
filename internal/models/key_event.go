package models

import "time"

// KeyEvent is one append-only audit record. Every state-changing action
// writes exactly one event in the same transaction as the change itself.
type KeyEvent struct {
	ID           string                 `json:"id"`
	DealershipID string                 `json:"dealership_id"`
	KeyID        *string                `json:"key_id,omitempty"`        // nil for user-only events
	ActorUserID  *string                `json:"actor_user_id,omitempty"` // nil = system
	Action       string                 `json:"action"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Event action constants
const (
	ActionCheckout        = "CHECKOUT"
	ActionReturn          = "RETURN"
	ActionLocationUpdate  = "LOCATION_UPDATE"
	ActionStatusChange    = "STATUS_CHANGE"
	ActionCreateKey       = "CREATE_KEY"
	ActionUpdateKey       = "UPDATE_KEY"
	ActionDeleteKey       = "DELETE_KEY"
	ActionBulkImport      = "BULK_IMPORT"
	ActionPDIUpdate       = "PDI_UPDATE"
	ActionUserCreated     = "USER_CREATED"
	ActionUserUpdated     = "USER_UPDATED"
	ActionUserDeactivated = "USER_DEACTIVATED"
	ActionUserLogin       = "USER_LOGIN"
)
