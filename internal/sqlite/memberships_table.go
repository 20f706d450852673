package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/internal/integrity"
	"github.com/mesh-intelligence/keystone/pkg/types"
)

const membershipColumns = "membership_id, owner_id, entity_id, role, is_main, sequence, created_at, updated_at"

// LinkMembership attaches an entity to a principal with a role and returns
// the membership id.
func (u *UnitOfWork) LinkMembership(ctx context.Context, ownerID, entityID, role string, isMain bool) (string, error) {
	m, err := u.SetMembershipRole(ctx, ownerID, entityID, role, isMain)
	if err != nil {
		return "", err
	}
	return m.MembershipID, nil
}

// SetMembershipRole creates or updates the membership of entityID under
// ownerID. When isMain is set, any other main membership of the owner for
// the same role is demoted first, in this unit of work.
func (u *UnitOfWork) SetMembershipRole(ctx context.Context, ownerID, entityID, role string, isMain bool) (*types.MembershipRecord, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	if !types.ValidRole(role) {
		return nil, fmt.Errorf("%w: role %q", types.ErrInvalidInput, role)
	}
	owner := types.PrincipalOwner(ownerID)
	if err := u.claimShared(owner); err != nil {
		return nil, err
	}
	ok, err := u.ownerExists(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrOwnerGone, owner)
	}

	existing, err := u.membershipByPair(ctx, ownerID, entityID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	m := existing
	if m != nil {
		next := *existing
		next.Role, next.IsMain, next.UpdatedAt = role, isMain, now
		m = &next
	} else {
		var max int
		err = u.queryRow(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM memberships WHERE owner_id = ?`, ownerID).Scan(&max)
		if err != nil {
			return nil, fmt.Errorf("reading membership sequence: %w", integrity.Classify(err))
		}
		m = &types.MembershipRecord{
			MembershipID: generateUUID(),
			OwnerID:      ownerID,
			EntityID:     entityID,
			Role:         role,
			IsMain:       isMain,
			Sequence:     max + 1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	// Everything but the main key is validated before the demotion, which
	// frees that key, so a rejected write leaves the current main in place.
	if err := u.b.checker.Validate(ctx, withoutMainKey(membershipCandidate(m)), u); err != nil {
		return nil, err
	}
	if isMain {
		res, err := u.exec(ctx,
			`UPDATE memberships SET is_main = 0, updated_at = ?
			 WHERE owner_id = ? AND role = ? AND is_main = 1 AND entity_id <> ?`,
			formatTime(now), ownerID, role, entityID,
		)
		if err != nil {
			return nil, fmt.Errorf("demoting main membership: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			u.log.Info("main membership demoted", zap.String("owner_id", ownerID), zap.String("role", role))
		}
	}

	if existing != nil {
		if err := u.check(ctx, membershipCandidate(m)); err != nil {
			return nil, err
		}
		_, err := u.exec(ctx,
			`UPDATE memberships SET role = ?, is_main = ?, updated_at = ? WHERE membership_id = ?`,
			role, boolToInt(isMain), formatTime(now), m.MembershipID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating membership: %w", err)
		}
		return m, nil
	}

	if err := u.insertMembership(ctx, m); err != nil {
		return nil, err
	}
	u.log.Debug("membership linked",
		zap.String("membership_id", m.MembershipID),
		zap.String("owner_id", ownerID),
		zap.String("entity_id", entityID),
		zap.String("role", role),
		zap.Bool("is_main", isMain),
	)
	return m, nil
}

func (u *UnitOfWork) insertMembership(ctx context.Context, m *types.MembershipRecord) error {
	if err := u.check(ctx, membershipCandidate(m)); err != nil {
		return err
	}
	_, err := u.exec(ctx,
		`INSERT INTO memberships (`+membershipColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MembershipID, m.OwnerID, m.EntityID, m.Role, boolToInt(m.IsMain), m.Sequence,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting membership: %w", err)
	}
	return nil
}

func membershipCandidate(m *types.MembershipRecord) integrity.Candidate {
	c := integrity.Candidate{
		Table:    "memberships",
		IDColumn: "membership_id",
		ID:       m.MembershipID,
		CompositeKeys: []integrity.Key{{
			Name:    "owner_entity",
			Columns: []string{"owner_id", "entity_id"},
			Values:  []any{m.OwnerID, m.EntityID},
		}},
		References: []integrity.Reference{
			{Table: "principals", Column: "principal_id", Value: m.OwnerID},
			{Table: "entities", Column: "entity_id", Value: m.EntityID},
		},
	}
	if m.IsMain {
		c.CompositeKeys = append(c.CompositeKeys, integrity.Key{
			Name:    mainKeyName,
			Columns: []string{"owner_id", "role", "is_main"},
			Values:  []any{m.OwnerID, m.Role, 1},
		})
	}
	return c
}

const mainKeyName = "owner_role_main"

// withoutMainKey drops the one-main-per-role key from c.
func withoutMainKey(c integrity.Candidate) integrity.Candidate {
	keys := make([]integrity.Key, 0, len(c.CompositeKeys))
	for _, k := range c.CompositeKeys {
		if k.Name != mainKeyName {
			keys = append(keys, k)
		}
	}
	c.CompositeKeys = keys
	return c
}

// UpdateMembership applies m's role and main flag. Owner and entity are
// fixed.
func (u *UnitOfWork) UpdateMembership(ctx context.Context, m *types.MembershipRecord) error {
	if m.IsProjection() {
		return fmt.Errorf("%w: membership %s", types.ErrReadOnlyViolation, m.MembershipID)
	}
	if err := u.active(); err != nil {
		return err
	}
	current, err := u.membershipByID(ctx, m.MembershipID)
	if err != nil {
		return err
	}
	if current.OwnerID != m.OwnerID || current.EntityID != m.EntityID {
		return fmt.Errorf("%w: membership owner and entity are fixed", types.ErrInvalidInput)
	}
	updated, err := u.SetMembershipRole(ctx, m.OwnerID, m.EntityID, m.Role, m.IsMain)
	if err != nil {
		return err
	}
	*m = *updated
	return nil
}

// DeleteMembership removes a membership. An entity left without any
// membership is deleted with its dependents.
func (u *UnitOfWork) DeleteMembership(ctx context.Context, id string) (*types.CascadeReport, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	m, err := u.membershipByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := u.exec(ctx, `DELETE FROM memberships WHERE membership_id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting membership: %w", err)
	}
	report := &types.CascadeReport{Memberships: 1, Entities: []string{}}

	var others int
	err = u.queryRow(ctx, `SELECT COUNT(*) FROM memberships WHERE entity_id = ?`, m.EntityID).Scan(&others)
	if err != nil {
		return nil, fmt.Errorf("counting memberships: %w", integrity.Classify(err))
	}
	if others == 0 {
		if err := u.claimExclusive(types.EntityOwner(m.EntityID)); err != nil {
			return nil, err
		}
		if err := u.deleteEntityRows(ctx, m.EntityID, report); err != nil {
			return nil, err
		}
		u.log.Info("orphaned entity removed", zap.String("entity_id", m.EntityID), zap.String("membership_id", id))
	}
	return report, nil
}

func (u *UnitOfWork) membershipByID(ctx context.Context, id string) (*types.MembershipRecord, error) {
	row := u.queryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE membership_id = ?`, id)
	m, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: membership %s", types.ErrNotFound, id)
	}
	return m, err
}

func (u *UnitOfWork) membershipByPair(ctx context.Context, ownerID, entityID string) (*types.MembershipRecord, error) {
	row := u.queryRow(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE owner_id = ? AND entity_id = ?`,
		ownerID, entityID,
	)
	m, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: membership %s/%s", types.ErrNotFound, ownerID, entityID)
	}
	return m, err
}

func scanMembership(row rowScanner) (*types.MembershipRecord, error) {
	var (
		m                    types.MembershipRecord
		isMain               int
		createdAt, updatedAt string
	)
	if err := row.Scan(&m.MembershipID, &m.OwnerID, &m.EntityID, &m.Role, &isMain, &m.Sequence, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.IsMain = isMain == 1
	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
