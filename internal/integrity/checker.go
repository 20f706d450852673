// Package integrity validates candidate writes against natural-key,
// composite-key and reference constraints before they reach the store, and
// maps store errors back to the same typed errors.
package integrity

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// Key is an equality conjunction over columns of one table.
type Key struct {
	Name    string
	Columns []string
	Values  []any
}

func (k Key) String(table string) string {
	parts := make([]string, len(k.Columns))
	for i, c := range k.Columns {
		parts[i] = fmt.Sprintf("%s=%v", c, k.Values[i])
	}
	return fmt.Sprintf("%s(%s)", table, strings.Join(parts, ","))
}

// Reference names a row that must exist for the candidate to be valid.
type Reference struct {
	Table  string
	Column string
	Value  any
}

func (r Reference) String() string {
	return fmt.Sprintf("%s(%s=%v)", r.Table, r.Column, r.Value)
}

// Candidate is a row about to be written. ID identifies the row itself so an
// update does not collide with its own keys.
type Candidate struct {
	Table         string
	IDColumn      string
	ID            string
	NaturalKeys   []Key
	CompositeKeys []Key
	References    []Reference
}

// Index answers the lookups the checker needs. The unit of work implements
// it over its own transaction so rows written earlier in the same unit are
// visible.
type Index interface {
	// Holders returns the ids (idCol values) of rows in table whose cols
	// equal vals.
	Holders(ctx context.Context, table, idCol string, cols []string, vals []any) ([]string, error)
	// Exists reports whether the referenced row exists.
	Exists(ctx context.Context, ref Reference) (bool, error)
}

// Checker runs constraint checks. The zero value is ready to use.
type Checker struct{}

// New returns a Checker.
func New() *Checker { return &Checker{} }

// Validate checks c against idx. Natural keys run first, then composite
// keys, then references; the first failure is returned as a
// *types.ConstraintViolation.
func (ch *Checker) Validate(ctx context.Context, c Candidate, idx Index) error {
	for _, k := range c.NaturalKeys {
		if err := ch.unique(ctx, c, k, types.ViolationNaturalKey, idx); err != nil {
			return err
		}
	}
	for _, k := range c.CompositeKeys {
		if err := ch.unique(ctx, c, k, types.ViolationComposite, idx); err != nil {
			return err
		}
	}
	for _, ref := range c.References {
		ok, err := idx.Exists(ctx, ref)
		if err != nil {
			return fmt.Errorf("checking reference %s: %w", ref, err)
		}
		if !ok {
			return &types.ConstraintViolation{Kind: types.ViolationForeignKey, Key: ref.String()}
		}
	}
	return nil
}

func (ch *Checker) unique(ctx context.Context, c Candidate, k Key, kind types.ViolationKind, idx Index) error {
	if len(k.Columns) != len(k.Values) {
		return fmt.Errorf("key %s: %d columns, %d values", k.Name, len(k.Columns), len(k.Values))
	}
	holders, err := idx.Holders(ctx, c.Table, c.IDColumn, k.Columns, k.Values)
	if err != nil {
		return fmt.Errorf("checking key %s: %w", k.Name, err)
	}
	for _, h := range holders {
		if h != c.ID {
			return &types.ConstraintViolation{Kind: kind, Key: k.String(c.Table)}
		}
	}
	return nil
}
