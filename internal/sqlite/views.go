package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// viewResolver answers derived read-only queries from the reader handle.
// Every record it returns is marked as a projection.
type viewResolver struct {
	b *Backend
}

// PrimaryOf returns the dependent at the primary sequence of owner.
func (v *viewResolver) PrimaryOf(ctx context.Context, owner types.OwnerRef) (*types.DependentRecord, error) {
	r, err := v.b.readerDB()
	if err != nil {
		return nil, err
	}
	rows, err := r.QueryContext(ctx, v.b.dialect.rebind(
		`SELECT `+dependentColumns+` FROM dependents
		 WHERE owner_kind = ? AND owner_id = ? AND sequence = ?
		 LIMIT 2`),
		owner.Kind, owner.ID, types.PrimarySequence,
	)
	if err != nil {
		return nil, fmt.Errorf("reading primary of %s: %w", owner, err)
	}
	defer rows.Close()

	var found []*types.DependentRecord
	for rows.Next() {
		d, err := scanDependent(rows, v.b.dependents)
		if err != nil {
			return nil, err
		}
		d.MarkProjection()
		found = append(found, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: no primary for %s", types.ErrNotFound, owner)
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("%w: primary of %s", types.ErrIntegrityAmbiguous, owner)
}

// MainProfileOf returns the main profile membership of a customer with the
// profile entity hydrated.
func (v *viewResolver) MainProfileOf(ctx context.Context, customerID string) (*types.MembershipRecord, error) {
	r, err := v.b.readerDB()
	if err != nil {
		return nil, err
	}
	rows, err := r.QueryContext(ctx, v.b.dialect.rebind(
		`SELECT m.membership_id, m.owner_id, m.entity_id, m.role, m.is_main, m.sequence, m.created_at, m.updated_at,
		        e.entity_id, e.discriminator, e.codec, e.payload, e.created_at, e.updated_at
		 FROM memberships m
		 JOIN entities e ON e.entity_id = m.entity_id
		 WHERE m.owner_id = ? AND m.role = ? AND m.is_main = 1
		 LIMIT 2`),
		customerID, types.RoleMain,
	)
	if err != nil {
		return nil, fmt.Errorf("reading main profile of %s: %w", customerID, err)
	}
	defer rows.Close()

	var found []*types.MembershipRecord
	for rows.Next() {
		m, err := v.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: no main profile for %s", types.ErrNotFound, customerID)
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("%w: main profile of %s", types.ErrIntegrityAmbiguous, customerID)
}

// DisplayNameOf returns a customer's display name and its kana reading,
// taken from the main profile.
func (v *viewResolver) DisplayNameOf(ctx context.Context, customerID string) (string, string, error) {
	m, err := v.MainProfileOf(ctx, customerID)
	if err != nil {
		return "", "", err
	}
	return v.b.variants.DisplayName(m.Entity), v.b.variants.DisplayNameKana(m.Entity), nil
}

// DependentsOf returns owner's dependents in sequence order.
func (v *viewResolver) DependentsOf(ctx context.Context, owner types.OwnerRef) ([]*types.DependentRecord, error) {
	r, err := v.b.readerDB()
	if err != nil {
		return nil, err
	}
	rows, err := r.QueryContext(ctx, v.b.dialect.rebind(
		`SELECT `+dependentColumns+` FROM dependents
		 WHERE owner_kind = ? AND owner_id = ?
		 ORDER BY sequence`),
		owner.Kind, owner.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing dependents of %s: %w", owner, err)
	}
	defer rows.Close()

	var out []*types.DependentRecord
	for rows.Next() {
		d, err := scanDependent(rows, v.b.dependents)
		if err != nil {
			return nil, err
		}
		d.MarkProjection()
		out = append(out, d)
	}
	return out, rows.Err()
}

func (v *viewResolver) scanProfile(rows rowScanner) (*types.MembershipRecord, error) {
	var (
		m                  types.MembershipRecord
		isMain             int
		mCreated, mUpdated string
		eID, disc, codec   string
		payload            []byte
		eCreated, eUpdated string
	)
	if err := rows.Scan(&m.MembershipID, &m.OwnerID, &m.EntityID, &m.Role, &isMain, &m.Sequence, &mCreated, &mUpdated,
		&eID, &disc, &codec, &payload, &eCreated, &eUpdated); err != nil {
		return nil, err
	}
	m.IsMain = isMain == 1
	var err error
	if m.CreatedAt, err = parseTime(mCreated); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(mUpdated); err != nil {
		return nil, err
	}
	e, err := scanEntity(fixedRow{eID, disc, codec, payload, eCreated, eUpdated}, v.b.variants)
	if err != nil {
		return nil, err
	}
	e.MarkProjection()
	m.Entity = e
	m.MarkProjection()
	return &m, nil
}

// fixedRow replays already scanned values into a rowScanner consumer.
type fixedRow []any

func (r fixedRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("scan: %d values, %d destinations", len(r), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r[i].(string)
		case *[]byte:
			*p = r[i].([]byte)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

var _ types.Views = (*viewResolver)(nil)
