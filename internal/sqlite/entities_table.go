package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/internal/registry"
	"github.com/mesh-intelligence/keystone/pkg/types"
)

const entityColumns = "entity_id, discriminator, codec, payload, created_at, updated_at"

// CreatePolymorphicEntity resolves the variant, checks fields against its
// schema and stores base and variant data as one row.
func (u *UnitOfWork) CreatePolymorphicEntity(ctx context.Context, discriminator string, fields map[string]any) (string, error) {
	if err := u.active(); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	base := types.PolymorphicEntity{
		EntityID:      generateUUID(),
		Discriminator: discriminator,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	typed, err := u.b.variants.Decode(base, fields)
	if err != nil {
		return "", err
	}
	if err := u.insertEntity(ctx, typed); err != nil {
		return "", err
	}
	u.log.Debug("entity created", zap.String("entity_id", base.EntityID), zap.String("discriminator", discriminator))
	return base.EntityID, nil
}

func (u *UnitOfWork) insertEntity(ctx context.Context, e *types.TypedEntity) error {
	codec := u.b.config.Codec()
	payload, err := encodePayload(codec, u.b.variants.Encode(e))
	if err != nil {
		return err
	}
	_, err = u.exec(ctx,
		`INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		e.EntityID, e.Discriminator, codec, payload, formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

// GetEntity returns the entity with id decoded against its variant.
func (u *UnitOfWork) GetEntity(ctx context.Context, id string) (*types.TypedEntity, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	row := u.queryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE entity_id = ?`, id)
	e, err := scanEntity(row, u.b.variants)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entity %s", types.ErrNotFound, id)
	}
	return e, err
}

// UpdateEntity replaces an entity's variant fields. The discriminator
// cannot change.
func (u *UnitOfWork) UpdateEntity(ctx context.Context, e *types.PolymorphicEntity) error {
	if e.IsProjection() {
		return fmt.Errorf("%w: entity %s", types.ErrReadOnlyViolation, e.EntityID)
	}
	current, err := u.GetEntity(ctx, e.EntityID)
	if err != nil {
		return err
	}
	if e.Discriminator != current.Discriminator {
		return fmt.Errorf("%w: %s is %q", types.ErrDiscriminatorImmutable, e.EntityID, current.Discriminator)
	}
	base := current.PolymorphicEntity
	base.UpdatedAt = time.Now().UTC()
	typed, err := u.b.variants.Decode(base, e.Fields)
	if err != nil {
		return err
	}
	codec := u.b.config.Codec()
	payload, err := encodePayload(codec, u.b.variants.Encode(typed))
	if err != nil {
		return err
	}
	_, err = u.exec(ctx,
		`UPDATE entities SET codec = ?, payload = ?, updated_at = ? WHERE entity_id = ?`,
		codec, payload, formatTime(base.UpdatedAt), e.EntityID,
	)
	if err != nil {
		return fmt.Errorf("updating entity: %w", err)
	}
	*e = typed.PolymorphicEntity
	return nil
}

// scanEntity reads one entities row. The payload is decoded with the codec
// recorded on the row, so rows written under another codec stay readable.
func scanEntity(row rowScanner, variants *registry.Registry) (*types.TypedEntity, error) {
	var (
		base                 types.PolymorphicEntity
		codec                string
		payload              []byte
		createdAt, updatedAt string
	)
	if err := row.Scan(&base.EntityID, &base.Discriminator, &codec, &payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if base.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if base.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	fields, err := decodePayload(codec, payload)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", base.EntityID, err)
	}
	return variants.Decode(base, fields)
}
