package models

import "time"

// KeyNote is one note left on a key during checkout or return.
type KeyNote struct {
	ID             string    `json:"id"`
	KeyID          string    `json:"key_id"`
	AuthorUserID   string    `json:"author_user_id"`
	AuthorName     string    `json:"author_name,omitempty"` // joined for display
	Text           string    `json:"text"`
	Context        string    `json:"context"` // CHECKOUT, RETURN or MANUAL
	CreatedAt      time.Time `json:"created_at"`
}

// Note context constants
const (
	NoteContextCheckout = "CHECKOUT"
	NoteContextReturn   = "RETURN"
	NoteContextManual   = "MANUAL"
)

// AddNoteRequest represents the request body for adding a manual note
type AddNoteRequest struct {
	Text string `json:"text"`
}
