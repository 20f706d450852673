package types

import "time"

// Owner kinds for dependent records.
const (
	OwnerPrincipal = "principal"
	OwnerEntity    = "entity"
)

// PrimarySequence marks the designated primary dependent of an owner.
const PrimarySequence = 1

// OwnerRef identifies the owner of a dependent record.
type OwnerRef struct {
	Kind string
	ID   string
}

// PrincipalOwner returns an OwnerRef for a principal.
func PrincipalOwner(id string) OwnerRef { return OwnerRef{Kind: OwnerPrincipal, ID: id} }

// EntityOwner returns an OwnerRef for a polymorphic entity.
func EntityOwner(id string) OwnerRef { return OwnerRef{Kind: OwnerEntity, ID: id} }

func (o OwnerRef) String() string { return o.Kind + "/" + o.ID }

// Valid reports whether the ref names a known owner kind and a non-empty id.
func (o OwnerRef) Valid() bool {
	return (o.Kind == OwnerPrincipal || o.Kind == OwnerEntity) && o.ID != ""
}

// DependentRecord is owned by exactly one principal or entity and ordered
// within its owner by Sequence. The record with Sequence 1 is the primary.
type DependentRecord struct {
	DependentID string         `json:"dependent_id"`
	OwnerKind   string         `json:"owner_kind"`
	OwnerID     string         `json:"owner_id"`
	Sequence    int            `json:"sequence"`
	Kind        string         `json:"kind"`
	Attributes  map[string]any `json:"attributes"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	projection bool
}

// Owner returns the record's owner reference.
func (d *DependentRecord) Owner() OwnerRef {
	return OwnerRef{Kind: d.OwnerKind, ID: d.OwnerID}
}

// IsPrimary reports whether the record holds the primary sequence.
func (d *DependentRecord) IsPrimary() bool {
	return d.Sequence == PrimarySequence
}

// MarkProjection flags the record as read through a derived view.
func (d *DependentRecord) MarkProjection() { d.projection = true }

// IsProjection reports whether the record came from a derived view.
func (d *DependentRecord) IsProjection() bool { return d.projection }

// DependentInput describes a dependent to create. A zero Sequence asks the
// association manager to append after the current last record.
type DependentInput struct {
	Kind       string
	Sequence   int
	Attributes map[string]any
}
