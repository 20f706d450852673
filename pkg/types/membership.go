package types

import "time"

// Membership roles.
const (
	RoleMain = "main"
	RoleSub  = "sub"
)

// ValidRole reports whether role is a known membership role.
func ValidRole(role string) bool {
	return role == RoleMain || role == RoleSub
}

// MembershipRecord links a principal to a polymorphic entity with a role. At
// most one record per (OwnerID, Role) has IsMain set.
type MembershipRecord struct {
	MembershipID string    `json:"membership_id"`
	OwnerID      string    `json:"owner_id"`
	EntityID     string    `json:"entity_id"`
	Role         string    `json:"role"`
	IsMain       bool      `json:"is_main"`
	Sequence     int       `json:"sequence"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Entity is hydrated by views; it is nil on unit-of-work reads.
	Entity *TypedEntity `json:"entity,omitempty"`

	projection bool
}

// MarkProjection flags the record as read through a derived view.
func (m *MembershipRecord) MarkProjection() { m.projection = true }

// IsProjection reports whether the record came from a derived view.
func (m *MembershipRecord) IsProjection() bool { return m.projection }
