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

const linkColumns = "link_id, link_type, left_id, right_id, created_at"

// Link associates two principals. Linking an existing pair returns the
// existing link with created false. Symmetric link types are stored with
// the lower id on the left, so (a, b) and (b, a) are the same link.
func (u *UnitOfWork) Link(ctx context.Context, linkType, leftID, rightID string) (*types.AssociationLink, bool, error) {
	if err := u.active(); err != nil {
		return nil, false, err
	}
	if !types.ValidLinkType(linkType) {
		return nil, false, fmt.Errorf("%w: link type %q", types.ErrInvalidInput, linkType)
	}
	if leftID == "" || rightID == "" || leftID == rightID {
		return nil, false, fmt.Errorf("%w: link endpoints %q, %q", types.ErrInvalidInput, leftID, rightID)
	}
	left, right := types.NormalizePair(leftID, rightID, u.b.isSymmetric(linkType))
	for _, id := range []string{left, right} {
		if err := u.claimShared(types.PrincipalOwner(id)); err != nil {
			return nil, false, err
		}
	}

	existing, err := u.findLink(ctx, linkType, left, right)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, false, err
	}

	l := &types.AssociationLink{
		LinkID:    generateUUID(),
		LinkType:  linkType,
		LeftID:    left,
		RightID:   right,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.insertLink(ctx, l); err != nil {
		return nil, false, err
	}
	u.log.Debug("linked", zap.String("link_type", linkType), zap.String("left_id", left), zap.String("right_id", right))
	return l, true, nil
}

func (u *UnitOfWork) insertLink(ctx context.Context, l *types.AssociationLink) error {
	if err := u.check(ctx, linkCandidate(l)); err != nil {
		return err
	}
	_, err := u.exec(ctx,
		`INSERT INTO links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?)`,
		l.LinkID, l.LinkType, l.LeftID, l.RightID, formatTime(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting link: %w", err)
	}
	return nil
}

func linkCandidate(l *types.AssociationLink) integrity.Candidate {
	return integrity.Candidate{
		Table:    "links",
		IDColumn: "link_id",
		ID:       l.LinkID,
		CompositeKeys: []integrity.Key{{
			Name:    "link_pair",
			Columns: []string{"link_type", "left_id", "right_id"},
			Values:  []any{l.LinkType, l.LeftID, l.RightID},
		}},
		References: []integrity.Reference{
			{Table: "principals", Column: "principal_id", Value: l.LeftID},
			{Table: "principals", Column: "principal_id", Value: l.RightID},
		},
	}
}

// Unlink removes a link. It returns ErrNotFound when the pair is not linked.
func (u *UnitOfWork) Unlink(ctx context.Context, linkType, leftID, rightID string) error {
	if err := u.active(); err != nil {
		return err
	}
	left, right := types.NormalizePair(leftID, rightID, u.b.isSymmetric(linkType))
	res, err := u.exec(ctx,
		`DELETE FROM links WHERE link_type = ? AND left_id = ? AND right_id = ?`,
		linkType, left, right,
	)
	if err != nil {
		return fmt.Errorf("deleting link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s link %s -> %s", types.ErrNotFound, linkType, left, right)
	}
	return nil
}

// LinksOf returns every link with principalID on either side, oldest first.
func (u *UnitOfWork) LinksOf(ctx context.Context, principalID string) ([]*types.AssociationLink, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	rows, err := u.query(ctx,
		`SELECT `+linkColumns+` FROM links WHERE left_id = ? OR right_id = ? ORDER BY created_at, link_id`,
		principalID, principalID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	defer rows.Close()

	var out []*types.AssociationLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (u *UnitOfWork) findLink(ctx context.Context, linkType, left, right string) (*types.AssociationLink, error) {
	row := u.queryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE link_type = ? AND left_id = ? AND right_id = ?`,
		linkType, left, right,
	)
	l, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s link", types.ErrNotFound, linkType)
	}
	return l, err
}

func scanLink(row rowScanner) (*types.AssociationLink, error) {
	var (
		l         types.AssociationLink
		createdAt string
	)
	if err := row.Scan(&l.LinkID, &l.LinkType, &l.LeftID, &l.RightID, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &l, nil
}
