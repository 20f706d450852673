package types

import "context"

// Store is the entry point the persistence collaborator holds. Callers
// attach to a backend, run units of work, read views, and detach when done.
type Store interface {
	// Attach connects to the backend described by config.
	// Returns ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	// Do runs fn inside one unit of work. The unit commits when fn returns
	// nil and rolls back otherwise; fn's error is returned unchanged.
	Do(ctx context.Context, fn func(UnitOfWork) error) error

	// Views returns the read-only resolver over committed state.
	Views() Views
}

// UnitOfWork is one atomic sequence of validated mutations. It is not safe
// for concurrent use; it ends with Commit or Rollback.
type UnitOfWork interface {
	CreatePrincipal(ctx context.Context, in PrincipalInput) (string, error)
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
	UpdatePrincipal(ctx context.Context, p *Principal) error
	DeletePrincipal(ctx context.Context, id string) (*CascadeReport, error)

	CreateDependent(ctx context.Context, owner OwnerRef, in DependentInput) (string, error)
	GetDependent(ctx context.Context, id string) (*DependentRecord, error)
	UpdateDependent(ctx context.Context, d *DependentRecord) error
	DeleteDependent(ctx context.Context, id string) error
	Reorder(ctx context.Context, owner OwnerRef, dependentID string, newSequence int) error
	Compact(ctx context.Context, owner OwnerRef) error

	CreatePolymorphicEntity(ctx context.Context, discriminator string, fields map[string]any) (string, error)
	GetEntity(ctx context.Context, id string) (*TypedEntity, error)
	UpdateEntity(ctx context.Context, e *PolymorphicEntity) error
	DeleteEntity(ctx context.Context, id string) (*CascadeReport, error)

	LinkMembership(ctx context.Context, ownerID, entityID, role string, isMain bool) (string, error)
	SetMembershipRole(ctx context.Context, ownerID, entityID, role string, isMain bool) (*MembershipRecord, error)
	UpdateMembership(ctx context.Context, m *MembershipRecord) error
	DeleteMembership(ctx context.Context, id string) (*CascadeReport, error)

	Link(ctx context.Context, linkType, leftID, rightID string) (*AssociationLink, bool, error)
	Unlink(ctx context.Context, linkType, leftID, rightID string) error
	LinksOf(ctx context.Context, principalID string) ([]*AssociationLink, error)

	Commit() error
	Rollback() error
}

// Views resolves derived, read-only relations over committed state. Records
// returned by a view are projections: passing one to a mutation fails with
// ErrReadOnlyViolation.
type Views interface {
	// PrimaryOf returns the owner's dependent with sequence 1.
	PrimaryOf(ctx context.Context, owner OwnerRef) (*DependentRecord, error)

	// MainProfileOf returns the customer's single main membership with its
	// entity hydrated.
	MainProfileOf(ctx context.Context, customerID string) (*MembershipRecord, error)

	// DisplayNameOf derives the customer's name and kana name from the main
	// profile.
	DisplayNameOf(ctx context.Context, customerID string) (name, kana string, err error)

	// DependentsOf lists the owner's dependents ordered by sequence.
	DependentsOf(ctx context.Context, owner OwnerRef) ([]*DependentRecord, error)
}
