package models

import "time"

// Color is the closed set of card colors offered to users. The provider
// speaks its own color codes; translation happens in the provider client.
type Color string

const (
	ColorBlack Color = "black"
	ColorPink  Color = "pink"
)

// Valid reports whether c is one of the offered colors.
func (c Color) Valid() bool {
	return c == ColorBlack || c == ColorPink
}

// Card is one issued payment instrument. Status carries the provider's
// vocabulary verbatim (ordered, sent, activated, expired, opposed, failed,
// deactivated, canceled, ...) and is intentionally not an enum here.
type Card struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Color          Color      `json:"color"`
	ProviderCardID string     `json:"provider_card_id"`
	Status         string     `json:"status"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
