package models

import "time"

// Notification is a message queued for delivery to a user.
type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Message    string    `json:"message"`
	ContextRef string    `json:"context_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
