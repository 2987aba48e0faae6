package model

import "time"

// TokenRecord is a stored refresh token together with its row timestamps.
// RefreshToken is an opaque secret; it is never parsed or validated.
type TokenRecord struct {
	Kind         EntityKind
	IdentityKey  string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
