package model

import "fmt"

// EntityKind selects which identity namespace a refresh token belongs to.
// Each kind is backed by its own table and is never cross-referenced with the other.
type EntityKind string

const (
	EntityKindSeller     EntityKind = "seller"
	EntityKindAdvertiser EntityKind = "advertiser"
)

// EntityKinds lists every supported kind in bootstrap order.
var EntityKinds = []EntityKind{EntityKindSeller, EntityKindAdvertiser}

// Valid reports whether k is one of the known entity kinds.
func (k EntityKind) Valid() bool {
	return k == EntityKindSeller || k == EntityKindAdvertiser
}

// Table returns the backing table name for the kind.
func (k EntityKind) Table() string {
	switch k {
	case EntityKindSeller:
		return "sellers"
	case EntityKindAdvertiser:
		return "advertisers"
	default:
		return ""
	}
}

// IdentityColumn returns the name of the unique identity key column for the kind.
func (k EntityKind) IdentityColumn() string {
	switch k {
	case EntityKindSeller:
		return "selling_partner_id"
	case EntityKindAdvertiser:
		return "advertiser_id"
	default:
		return ""
	}
}

// ParseEntityKind converts user input ("seller", "advertiser") into an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.Valid() {
		return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown entity kind %q", s)}
	}
	return k, nil
}

// UnknownIdentityKey is stored when an authorization callback carries no identity.
const UnknownIdentityKey = "UNKNOWN_PARTNER"

// MaxIdentityKeyLength is the column width of the identity key in both tables.
const MaxIdentityKeyLength = 50
