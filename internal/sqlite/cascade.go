package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// cascadeEdge is one owned-row set removed when its owner is deleted. The
// query takes the owner id once per bind.
type cascadeEdge struct {
	name  string
	query string
	binds int
	tally func(r *types.CascadeReport, n int)
}

// principalEdges are walked in order when a principal is deleted.
var principalEdges = []cascadeEdge{
	{
		name:  "dependents",
		query: `DELETE FROM dependents WHERE owner_kind = 'principal' AND owner_id = ?`,
		binds: 1,
		tally: func(r *types.CascadeReport, n int) { r.Dependents += n },
	},
	{
		name:  "links",
		query: `DELETE FROM links WHERE left_id = ? OR right_id = ?`,
		binds: 2,
		tally: func(r *types.CascadeReport, n int) { r.Links += n },
	},
	{
		name:  "memberships",
		query: `DELETE FROM memberships WHERE owner_id = ?`,
		binds: 1,
		tally: func(r *types.CascadeReport, n int) { r.Memberships += n },
	},
}

// entityEdges are walked in order when an entity is deleted.
var entityEdges = []cascadeEdge{
	{
		name:  "entity dependents",
		query: `DELETE FROM dependents WHERE owner_kind = 'entity' AND owner_id = ?`,
		binds: 1,
		tally: func(r *types.CascadeReport, n int) { r.EntityDependents += n },
	},
	{
		name:  "entity memberships",
		query: `DELETE FROM memberships WHERE entity_id = ?`,
		binds: 1,
		tally: func(r *types.CascadeReport, n int) { r.Memberships += n },
	},
}

// DeletePrincipal removes a principal with its dependents, links and
// memberships, and every entity that no other principal references. The
// exclusively referenced entities are computed before any row is deleted.
// The unit holds exclusive intents on the principal and on each of those
// entities until it finishes, so concurrent appends to any of them see
// ErrOwnerGone.
func (u *UnitOfWork) DeletePrincipal(ctx context.Context, id string) (*types.CascadeReport, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	if err := u.claimExclusive(types.PrincipalOwner(id)); err != nil {
		return nil, err
	}
	if _, err := u.GetPrincipal(ctx, id); err != nil {
		return nil, err
	}

	exclusive, err := u.exclusiveEntities(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, entityID := range exclusive {
		if err := u.claimExclusive(types.EntityOwner(entityID)); err != nil {
			return nil, err
		}
	}

	report := &types.CascadeReport{PrincipalID: id, Entities: []string{}}
	if err := u.walk(ctx, principalEdges, id, report); err != nil {
		return nil, err
	}
	for _, entityID := range exclusive {
		if err := u.deleteEntityRows(ctx, entityID, report); err != nil {
			return nil, err
		}
	}
	if _, err := u.exec(ctx, `DELETE FROM principals WHERE principal_id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting principal: %w", err)
	}

	u.log.Info("principal deleted",
		zap.String("principal_id", id),
		zap.Int("dependents", report.Dependents),
		zap.Int("links", report.Links),
		zap.Int("memberships", report.Memberships),
		zap.Int("entities", len(report.Entities)),
	)
	return report, nil
}

// DeleteEntity removes an entity with its memberships and dependents. It
// holds an exclusive intent on the entity like DeletePrincipal does.
func (u *UnitOfWork) DeleteEntity(ctx context.Context, id string) (*types.CascadeReport, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	if err := u.claimExclusive(types.EntityOwner(id)); err != nil {
		return nil, err
	}
	ok, err := u.exists(ctx, "entities", "entity_id", id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: entity %s", types.ErrNotFound, id)
	}
	report := &types.CascadeReport{Entities: []string{}}
	if err := u.deleteEntityRows(ctx, id, report); err != nil {
		return nil, err
	}
	u.log.Info("entity deleted", zap.String("entity_id", id), zap.Int("removed", report.Total()))
	return report, nil
}

// exclusiveEntities returns the entities whose only memberships belong to
// principalID.
func (u *UnitOfWork) exclusiveEntities(ctx context.Context, principalID string) ([]string, error) {
	rows, err := u.query(ctx,
		`SELECT DISTINCT m.entity_id FROM memberships m
		 WHERE m.owner_id = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM memberships o WHERE o.entity_id = m.entity_id AND o.owner_id <> ?
		   )
		 ORDER BY m.entity_id`,
		principalID, principalID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting entity references: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (u *UnitOfWork) deleteEntityRows(ctx context.Context, id string, report *types.CascadeReport) error {
	if err := u.walk(ctx, entityEdges, id, report); err != nil {
		return err
	}
	if _, err := u.exec(ctx, `DELETE FROM entities WHERE entity_id = ?`, id); err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	report.Entities = append(report.Entities, id)
	return nil
}

func (u *UnitOfWork) walk(ctx context.Context, edges []cascadeEdge, id string, report *types.CascadeReport) error {
	for _, e := range edges {
		args := make([]any, e.binds)
		for i := range args {
			args[i] = id
		}
		res, err := u.exec(ctx, e.query, args...)
		if err != nil {
			return fmt.Errorf("deleting %s: %w", e.name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting %s: %w", e.name, err)
		}
		e.tally(report, int(n))
	}
	return nil
}
