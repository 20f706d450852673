package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/internal/integrity"
	"github.com/mesh-intelligence/keystone/pkg/types"
)

const principalColumns = "principal_id, public_id, kind, customer_type, email, username, created_at, updated_at"

// CreatePrincipal creates a user or customer. Email and username are
// normalized and must be unique; a public id is assigned.
func (u *UnitOfWork) CreatePrincipal(ctx context.Context, in types.PrincipalInput) (string, error) {
	if err := u.active(); err != nil {
		return "", err
	}
	if err := in.Validate(); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	p := &types.Principal{
		PrincipalID:  generateUUID(),
		PublicID:     uuid.NewString(),
		Kind:         in.Kind,
		CustomerType: in.CustomerType,
		Email:        in.Email,
		Username:     in.Username,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.insertPrincipal(ctx, p); err != nil {
		return "", err
	}
	u.log.Debug("principal created", zap.String("principal_id", p.PrincipalID), zap.String("kind", p.Kind))
	return p.PrincipalID, nil
}

func (u *UnitOfWork) insertPrincipal(ctx context.Context, p *types.Principal) error {
	if err := u.normalizePrincipal(p); err != nil {
		return err
	}
	if err := u.check(ctx, principalCandidate(p)); err != nil {
		return err
	}
	_, err := u.exec(ctx,
		`INSERT INTO principals (`+principalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PrincipalID, p.PublicID, p.Kind, nullString(p.CustomerType), p.Email, p.Username,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting principal: %w", err)
	}
	return nil
}

func (u *UnitOfWork) normalizePrincipal(p *types.Principal) error {
	email, err := integrity.NormalizeEmail(p.Email)
	if err != nil {
		return err
	}
	username, err := integrity.NormalizeUsername(p.Username)
	if err != nil {
		return err
	}
	p.Email, p.Username = email, username
	return nil
}

func principalCandidate(p *types.Principal) integrity.Candidate {
	return integrity.Candidate{
		Table:    "principals",
		IDColumn: "principal_id",
		ID:       p.PrincipalID,
		NaturalKeys: []integrity.Key{
			{Name: "email", Columns: []string{"email"}, Values: []any{p.Email}},
			{Name: "username", Columns: []string{"username"}, Values: []any{p.Username}},
			{Name: "public_id", Columns: []string{"public_id"}, Values: []any{p.PublicID}},
		},
	}
}

// GetPrincipal returns the principal with id, or ErrNotFound.
func (u *UnitOfWork) GetPrincipal(ctx context.Context, id string) (*types.Principal, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	row := u.queryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE principal_id = ?`, id)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: principal %s", types.ErrNotFound, id)
	}
	return p, err
}

// UpdatePrincipal changes a principal's email and username. Kind and
// customer type are fixed at creation.
func (u *UnitOfWork) UpdatePrincipal(ctx context.Context, p *types.Principal) error {
	current, err := u.GetPrincipal(ctx, p.PrincipalID)
	if err != nil {
		return err
	}
	if p.Kind != current.Kind || p.CustomerType != current.CustomerType {
		return fmt.Errorf("%w: principal kind is immutable", types.ErrInvalidInput)
	}
	next := *p
	next.PublicID = current.PublicID
	if err := u.normalizePrincipal(&next); err != nil {
		return err
	}
	if err := u.check(ctx, principalCandidate(&next)); err != nil {
		return err
	}
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	_, err = u.exec(ctx,
		`UPDATE principals SET email = ?, username = ?, updated_at = ? WHERE principal_id = ?`,
		next.Email, next.Username, formatTime(next.UpdatedAt), next.PrincipalID,
	)
	if err != nil {
		return fmt.Errorf("updating principal: %w", err)
	}
	*p = next
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*types.Principal, error) {
	var (
		p                    types.Principal
		customerType         sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.PrincipalID, &p.PublicID, &p.Kind, &customerType, &p.Email, &p.Username, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CustomerType = customerType.String
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
