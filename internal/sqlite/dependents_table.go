package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/internal/integrity"
	"github.com/mesh-intelligence/keystone/internal/registry"
	"github.com/mesh-intelligence/keystone/pkg/types"
)

const dependentColumns = "dependent_id, owner_kind, owner_id, sequence, kind, attributes, created_at, updated_at"

// CreateDependent adds a dependent record to owner. A zero in.Sequence
// appends after the owner's last record; the first record of an owner gets
// the primary sequence. An explicit sequence must be free, and must be the
// primary sequence when the owner has no dependents yet.
func (u *UnitOfWork) CreateDependent(ctx context.Context, owner types.OwnerRef, in types.DependentInput) (string, error) {
	if err := u.active(); err != nil {
		return "", err
	}
	if !owner.Valid() {
		return "", fmt.Errorf("%w: owner %q", types.ErrInvalidInput, owner.String())
	}
	if err := u.claimShared(owner); err != nil {
		return "", err
	}
	ok, err := u.ownerExists(ctx, owner)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", types.ErrOwnerGone, owner)
	}

	attrs, err := u.decodeAttributes(in.Kind, in.Attributes)
	if err != nil {
		return "", err
	}

	seq, err := u.nextSequence(ctx, owner, in.Sequence)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	d := &types.DependentRecord{
		DependentID: generateUUID(),
		OwnerKind:   owner.Kind,
		OwnerID:     owner.ID,
		Sequence:    seq,
		Kind:        in.Kind,
		Attributes:  attrs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.insertDependent(ctx, d); err != nil {
		return "", err
	}
	u.log.Debug("dependent created",
		zap.String("dependent_id", d.DependentID),
		zap.String("owner", owner.String()),
		zap.Int("sequence", seq),
	)
	return d.DependentID, nil
}

// nextSequence resolves the sequence of a new dependent: max+1 when
// requested is zero, otherwise requested itself.
func (u *UnitOfWork) nextSequence(ctx context.Context, owner types.OwnerRef, requested int) (int, error) {
	var max, count int
	err := u.queryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0), COUNT(*) FROM dependents WHERE owner_kind = ? AND owner_id = ?`,
		owner.Kind, owner.ID,
	).Scan(&max, &count)
	if err != nil {
		return 0, fmt.Errorf("reading sequences: %w", integrity.Classify(err))
	}
	switch {
	case requested == 0:
		return max + 1, nil
	case requested < types.PrimarySequence:
		return 0, fmt.Errorf("%w: sequence %d", types.ErrSequenceConflict, requested)
	case count == 0 && requested != types.PrimarySequence:
		return 0, fmt.Errorf("%w: first dependent of %s must take sequence %d", types.ErrSequenceConflict, owner, types.PrimarySequence)
	}
	return requested, nil
}

func (u *UnitOfWork) insertDependent(ctx context.Context, d *types.DependentRecord) error {
	if err := u.check(ctx, dependentCandidate(d)); err != nil {
		return err
	}
	attrs, err := encodeAttributes(u.b.dependents, d)
	if err != nil {
		return err
	}
	_, err = u.exec(ctx,
		`INSERT INTO dependents (`+dependentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DependentID, d.OwnerKind, d.OwnerID, d.Sequence, d.Kind, attrs,
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting dependent: %w", err)
	}
	return nil
}

func dependentCandidate(d *types.DependentRecord) integrity.Candidate {
	return integrity.Candidate{
		Table:    "dependents",
		IDColumn: "dependent_id",
		ID:       d.DependentID,
		CompositeKeys: []integrity.Key{{
			Name:    "owner_sequence",
			Columns: []string{"owner_kind", "owner_id", "sequence"},
			Values:  []any{d.OwnerKind, d.OwnerID, d.Sequence},
		}},
		References: []integrity.Reference{ownerReference(d.Owner())},
	}
}

// GetDependent returns the dependent with id, or ErrNotFound.
func (u *UnitOfWork) GetDependent(ctx context.Context, id string) (*types.DependentRecord, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	row := u.queryRow(ctx, `SELECT `+dependentColumns+` FROM dependents WHERE dependent_id = ?`, id)
	d, err := scanDependent(row, u.b.dependents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: dependent %s", types.ErrNotFound, id)
	}
	return d, err
}

// UpdateDependent replaces a dependent's kind and attributes. Owner and
// sequence change only through Reorder and Compact.
func (u *UnitOfWork) UpdateDependent(ctx context.Context, d *types.DependentRecord) error {
	if d.IsProjection() {
		return fmt.Errorf("%w: dependent %s", types.ErrReadOnlyViolation, d.DependentID)
	}
	current, err := u.GetDependent(ctx, d.DependentID)
	if err != nil {
		return err
	}
	if d.Owner() != current.Owner() || d.Sequence != current.Sequence {
		return fmt.Errorf("%w: owner and sequence change through Reorder", types.ErrInvalidInput)
	}
	attrs, err := u.decodeAttributes(d.Kind, d.Attributes)
	if err != nil {
		return err
	}
	next := *current
	next.Kind = d.Kind
	next.Attributes = attrs
	next.UpdatedAt = time.Now().UTC()
	encoded, err := encodeAttributes(u.b.dependents, &next)
	if err != nil {
		return err
	}
	_, err = u.exec(ctx,
		`UPDATE dependents SET kind = ?, attributes = ?, updated_at = ? WHERE dependent_id = ?`,
		next.Kind, encoded, formatTime(next.UpdatedAt), next.DependentID,
	)
	if err != nil {
		return fmt.Errorf("updating dependent: %w", err)
	}
	*d = next
	return nil
}

// DeleteDependent removes one dependent. Deleting the primary leaves the
// owner without one; no other record is promoted.
func (u *UnitOfWork) DeleteDependent(ctx context.Context, id string) error {
	if err := u.active(); err != nil {
		return err
	}
	res, err := u.exec(ctx, `DELETE FROM dependents WHERE dependent_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting dependent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: dependent %s", types.ErrNotFound, id)
	}
	return nil
}

// Reorder moves a dependent to newSequence. Every other record of the owner
// at or above newSequence shifts up by one, then the record takes
// newSequence. Moving to sequence 1 makes the record the primary.
func (u *UnitOfWork) Reorder(ctx context.Context, owner types.OwnerRef, dependentID string, newSequence int) error {
	if err := u.active(); err != nil {
		return err
	}
	if newSequence < types.PrimarySequence {
		return fmt.Errorf("%w: sequence %d", types.ErrSequenceConflict, newSequence)
	}
	d, err := u.GetDependent(ctx, dependentID)
	if err != nil {
		return err
	}
	if d.Owner() != owner {
		return fmt.Errorf("%w: dependent %s of %s", types.ErrNotFound, dependentID, owner)
	}
	if err := u.claimShared(owner); err != nil {
		return err
	}
	if d.Sequence == newSequence {
		return nil
	}

	var max int
	err = u.queryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM dependents WHERE owner_kind = ? AND owner_id = ?`,
		owner.Kind, owner.ID,
	).Scan(&max)
	if err != nil {
		return fmt.Errorf("reading sequences: %w", integrity.Classify(err))
	}

	// Park the record above every slot the shift can reach, shift the rest
	// one row at a time from the top, then drop it into place.
	now := formatTime(time.Now().UTC())
	if err := u.setSequence(ctx, dependentID, max+2, now); err != nil {
		return err
	}
	ids, err := u.dependentIDs(ctx,
		`SELECT dependent_id, sequence FROM dependents
		 WHERE owner_kind = ? AND owner_id = ? AND sequence >= ? AND dependent_id <> ?
		 ORDER BY sequence DESC`,
		owner.Kind, owner.ID, newSequence, dependentID,
	)
	if err != nil {
		return err
	}
	for _, s := range ids {
		if err := u.setSequence(ctx, s.id, s.sequence+1, now); err != nil {
			return err
		}
	}
	if err := u.setSequence(ctx, dependentID, newSequence, now); err != nil {
		return err
	}
	u.log.Debug("dependent reordered",
		zap.String("dependent_id", dependentID),
		zap.Int("from", d.Sequence),
		zap.Int("to", newSequence),
		zap.Int("shifted", len(ids)),
	)
	return nil
}

// Compact renumbers an owner's dependents 1..N keeping their order.
func (u *UnitOfWork) Compact(ctx context.Context, owner types.OwnerRef) error {
	if err := u.active(); err != nil {
		return err
	}
	if err := u.claimShared(owner); err != nil {
		return err
	}
	ids, err := u.dependentIDs(ctx,
		`SELECT dependent_id, sequence FROM dependents
		 WHERE owner_kind = ? AND owner_id = ?
		 ORDER BY sequence ASC`,
		owner.Kind, owner.ID,
	)
	if err != nil {
		return err
	}
	// Sorted distinct positive sequences never sit below their rank, so
	// ascending renumbering never collides.
	now := formatTime(time.Now().UTC())
	for i, s := range ids {
		if s.sequence == i+1 {
			continue
		}
		if err := u.setSequence(ctx, s.id, i+1, now); err != nil {
			return err
		}
	}
	return nil
}

type sequenced struct {
	id       string
	sequence int
}

func (u *UnitOfWork) dependentIDs(ctx context.Context, query string, args ...any) ([]sequenced, error) {
	rows, err := u.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing dependents: %w", err)
	}
	defer rows.Close()

	var out []sequenced
	for rows.Next() {
		var s sequenced
		if err := rows.Scan(&s.id, &s.sequence); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (u *UnitOfWork) setSequence(ctx context.Context, id string, seq int, now string) error {
	_, err := u.exec(ctx, `UPDATE dependents SET sequence = ?, updated_at = ? WHERE dependent_id = ?`, seq, now, id)
	if err != nil {
		return fmt.Errorf("moving dependent %s to %d: %w", id, seq, err)
	}
	return nil
}

func (u *UnitOfWork) decodeAttributes(kind string, attrs map[string]any) (map[string]any, error) {
	typed, err := u.b.dependents.Decode(types.PolymorphicEntity{Discriminator: kind}, attrs)
	if err != nil {
		return nil, err
	}
	return typed.Fields, nil
}

func encodeAttributes(r *registry.Registry, d *types.DependentRecord) (string, error) {
	wire := r.Encode(&types.TypedEntity{PolymorphicEntity: types.PolymorphicEntity{Fields: d.Attributes}})
	data, err := encodePayload(types.CodecJSON, wire)
	if err != nil {
		return "", fmt.Errorf("encoding attributes: %w", err)
	}
	return string(data), nil
}

// scanDependent reads one dependents row and decodes its attributes
// against the kind's schema.
func scanDependent(row rowScanner, kinds *registry.Registry) (*types.DependentRecord, error) {
	var (
		d                    types.DependentRecord
		attrs                string
		createdAt, updatedAt string
	)
	if err := row.Scan(&d.DependentID, &d.OwnerKind, &d.OwnerID, &d.Sequence, &d.Kind, &attrs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	raw, err := decodePayload(types.CodecJSON, []byte(attrs))
	if err != nil {
		return nil, err
	}
	typed, err := kinds.Decode(types.PolymorphicEntity{Discriminator: d.Kind}, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding dependent %s: %w", d.DependentID, err)
	}
	d.Attributes = typed.Fields
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
