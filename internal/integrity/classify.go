package integrity

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// SQLite extended result codes.
const (
	sqliteBusy             = 5
	sqliteLocked           = 6
	sqliteConstraintCheck  = 275
	sqliteConstraintFK     = 787
	sqliteConstraintPK     = 1555
	sqliteConstraintUnique = 2067
)

// coder is implemented by modernc.org/sqlite errors.
type coder interface {
	Code() int
}

// Classify maps a driver error to a typed error. Unique, foreign-key and
// check failures become *types.ConstraintViolation wrapping err; busy,
// locked and serialization failures are wrapped with ErrTransient. Errors
// already typed, and unrecognized errors, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrConstraintViolation) || errors.Is(err, types.ErrTransient) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return &types.ConstraintViolation{Kind: types.ViolationComposite, Key: pqErr.Constraint, Err: err}
		case "23503":
			return &types.ConstraintViolation{Kind: types.ViolationForeignKey, Key: pqErr.Constraint, Err: err}
		case "23514":
			return &types.ConstraintViolation{Kind: types.ViolationComposite, Key: pqErr.Constraint, Err: err}
		case "40001", "40P01", "55P03":
			return errors.Join(types.ErrTransient, err)
		}
		return err
	}

	var c coder
	if errors.As(err, &c) {
		switch c.Code() {
		case sqliteConstraintUnique, sqliteConstraintPK, sqliteConstraintCheck:
			return &types.ConstraintViolation{Kind: types.ViolationComposite, Err: err}
		case sqliteConstraintFK:
			return &types.ConstraintViolation{Kind: types.ViolationForeignKey, Err: err}
		}
		// Extended busy codes (BUSY_SNAPSHOT, BUSY_RECOVERY) share the low byte.
		switch c.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return errors.Join(types.ErrTransient, err)
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "duplicate key value violates unique constraint"),
		strings.Contains(msg, "CHECK constraint failed"):
		return &types.ConstraintViolation{Kind: types.ViolationComposite, Err: err}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"),
		strings.Contains(msg, "violates foreign key constraint"):
		return &types.ConstraintViolation{Kind: types.ViolationForeignKey, Err: err}
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "SQLITE_BUSY"):
		return errors.Join(types.ErrTransient, err)
	}
	return err
}
