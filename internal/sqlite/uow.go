package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/internal/integrity"
	"github.com/mesh-intelligence/keystone/internal/logger"
	"github.com/mesh-intelligence/keystone/pkg/types"
)

// UnitOfWork groups mutations into one atomic commit. It wraps a single
// store transaction, records every checked candidate so Commit can verify
// them again, and holds owner intents until it finishes.
//
// A UnitOfWork is not safe for concurrent use.
type UnitOfWork struct {
	b          *Backend
	tx         *sql.Tx
	ctx        context.Context // from Begin; used by Commit
	id         string
	log        *zap.Logger
	candidates []integrity.Candidate
	claims     []string
	done       bool
}

func newUnitOfWork(ctx context.Context, b *Backend, tx *sql.Tx) *UnitOfWork {
	id := generateUUID()
	return &UnitOfWork{
		b:   b,
		tx:  tx,
		ctx: ctx,
		id:  id,
		log: logger.FromContext(ctx, b.log).With(zap.String("uow", id)),
	}
}

// ID returns the unit's identifier, used in logs and intents.
func (u *UnitOfWork) ID() string { return u.id }

// Commit re-verifies every candidate whose row still exists, then commits.
// It runs under the context the unit was begun with.
// On any failure the unit is rolled back and the error returned; store
// errors are classified into ConstraintViolation or ErrTransient.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return types.ErrUnitOfWorkDone
	}
	if err := u.recheck(u.ctx); err != nil {
		u.finish(false)
		return err
	}

	err := u.tx.Commit()
	u.done = true
	intents.release(u.id, u.claims)
	if err != nil {
		err = integrity.Classify(fmt.Errorf("committing unit of work: %w", err))
		u.log.Warn("commit failed", zap.Error(err))
		return err
	}
	u.log.Debug("committed", zap.Int("candidates", len(u.candidates)))
	return nil
}

// Rollback discards the unit's writes. It is a no-op once the unit has
// finished.
func (u *UnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	return u.finish(true)
}

func (u *UnitOfWork) finish(logIt bool) error {
	err := u.tx.Rollback()
	u.done = true
	intents.release(u.id, u.claims)
	if logIt {
		u.log.Debug("rolled back")
	}
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back unit of work: %w", err)
	}
	return nil
}

// recheck validates recorded candidates against the rows as they now
// stand. Keys a row no longer carries (it was reordered, demoted or
// deleted later in the unit) are skipped.
func (u *UnitOfWork) recheck(ctx context.Context) error {
	for _, c := range u.candidates {
		exists, err := u.Exists(ctx, integrity.Reference{Table: c.Table, Column: c.IDColumn, Value: c.ID})
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		current := c
		current.NaturalKeys, err = u.heldKeys(ctx, c, c.NaturalKeys)
		if err != nil {
			return err
		}
		current.CompositeKeys, err = u.heldKeys(ctx, c, c.CompositeKeys)
		if err != nil {
			return err
		}
		if err := u.b.checker.Validate(ctx, current, u); err != nil {
			u.log.Info("commit re-verification failed", zap.String("table", c.Table), zap.Error(err))
			return err
		}
	}
	return nil
}

func (u *UnitOfWork) heldKeys(ctx context.Context, c integrity.Candidate, keys []integrity.Key) ([]integrity.Key, error) {
	var held []integrity.Key
	for _, k := range keys {
		holders, err := u.Holders(ctx, c.Table, c.IDColumn, k.Columns, k.Values)
		if err != nil {
			return nil, err
		}
		for _, h := range holders {
			if h == c.ID {
				held = append(held, k)
				break
			}
		}
	}
	return held, nil
}

// check validates c inside the unit and records it for Commit.
func (u *UnitOfWork) check(ctx context.Context, c integrity.Candidate) error {
	if err := u.b.checker.Validate(ctx, c, u); err != nil {
		return err
	}
	u.candidates = append(u.candidates, c)
	return nil
}

// Holders implements integrity.Index over the unit's transaction.
func (u *UnitOfWork) Holders(ctx context.Context, table, idCol string, cols []string, vals []any) ([]string, error) {
	conds := make([]string, len(cols))
	for i, c := range cols {
		conds[i] = c + " = ?"
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s", idCol, table, strings.Join(conds, " AND "))
	rows, err := u.query(ctx, q, vals...)
	if err != nil {
		return nil, err
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

// Exists implements integrity.Index over the unit's transaction.
func (u *UnitOfWork) Exists(ctx context.Context, ref integrity.Reference) (bool, error) {
	q := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? LIMIT 1", ref.Table, ref.Column)
	var one int
	err := u.queryRow(ctx, q, ref.Value).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// claimShared takes a shared intent on an owner for the unit's lifetime.
func (u *UnitOfWork) claimShared(owner types.OwnerRef) error {
	key := u.b.storeKey + "|" + owner.String()
	if err := intents.claimShared(u.id, key); err != nil {
		return err
	}
	u.claims = append(u.claims, key)
	return nil
}

// claimExclusive takes an exclusive intent on an owner for the unit's
// lifetime.
func (u *UnitOfWork) claimExclusive(owner types.OwnerRef) error {
	key := u.b.storeKey + "|" + owner.String()
	if err := intents.claimExclusive(u.id, key); err != nil {
		return err
	}
	u.claims = append(u.claims, key)
	return nil
}

func (u *UnitOfWork) active() error {
	if u.done {
		return types.ErrUnitOfWorkDone
	}
	return nil
}

func (u *UnitOfWork) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := u.tx.ExecContext(ctx, u.b.dialect.rebind(query), args...)
	if err != nil {
		return nil, integrity.Classify(err)
	}
	return res, nil
}

func (u *UnitOfWork) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := u.tx.QueryContext(ctx, u.b.dialect.rebind(query), args...)
	if err != nil {
		return nil, integrity.Classify(err)
	}
	return rows, nil
}

func (u *UnitOfWork) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return u.tx.QueryRowContext(ctx, u.b.dialect.rebind(query), args...)
}

// exists reports whether a row with the given id is present in table.
func (u *UnitOfWork) exists(ctx context.Context, table, idCol, id string) (bool, error) {
	return u.Exists(ctx, integrity.Reference{Table: table, Column: idCol, Value: id})
}

func (u *UnitOfWork) ownerExists(ctx context.Context, owner types.OwnerRef) (bool, error) {
	ref := ownerReference(owner)
	return u.Exists(ctx, ref)
}

func ownerReference(owner types.OwnerRef) integrity.Reference {
	if owner.Kind == types.OwnerEntity {
		return integrity.Reference{Table: "entities", Column: "entity_id", Value: owner.ID}
	}
	return integrity.Reference{Table: "principals", Column: "principal_id", Value: owner.ID}
}

var _ types.UnitOfWork = (*UnitOfWork)(nil)
