package models

import "time"

// User is the authenticated caller on whose behalf cards are issued.
// ExternalID is how the bank provider knows the user; it is distinct from
// the internal ID and is treated as read-only input by the issuance flow.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	ExternalID string    `json:"external_id"`
	APIKey     string    `json:"api_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RegisterUser is the payload for the bootstrap registration endpoint.
type RegisterUser struct {
	Username   string `json:"username"`
	ExternalID string `json:"external_id"`
}
