package integrity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// memIndex is an in-memory Index over rows keyed by table.
type memIndex struct {
	rows  map[string][]map[string]any
	calls []string
}

func (m *memIndex) Holders(_ context.Context, table, idCol string, cols []string, vals []any) ([]string, error) {
	m.calls = append(m.calls, "holders:"+strings.Join(cols, ","))
	var out []string
	for _, row := range m.rows[table] {
		match := true
		for i, c := range cols {
			if row[c] != vals[i] {
				match = false
				break
			}
		}
		if match {
			out = append(out, fmt.Sprint(row[idCol]))
		}
	}
	return out, nil
}

func (m *memIndex) Exists(_ context.Context, ref Reference) (bool, error) {
	m.calls = append(m.calls, "exists:"+ref.Table)
	for _, row := range m.rows[ref.Table] {
		if row[ref.Column] == ref.Value {
			return true, nil
		}
	}
	return false, nil
}

func newIndex() *memIndex {
	return &memIndex{rows: map[string][]map[string]any{
		"principals": {
			{"principal_id": "p1", "email": "a@example.com", "username": "alice"},
		},
		"dependents": {
			{"dependent_id": "d1", "owner_id": "p1", "sequence": 1},
		},
	}}
}

func TestValidateNaturalKey(t *testing.T) {
	idx := newIndex()
	c := Candidate{
		Table:       "principals",
		IDColumn:    "principal_id",
		ID:          "p2",
		NaturalKeys: []Key{{Name: "email", Columns: []string{"email"}, Values: []any{"a@example.com"}}},
	}

	err := New().Validate(context.Background(), c, idx)
	require.ErrorIs(t, err, types.ErrConstraintViolation)

	var cv *types.ConstraintViolation
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, types.ViolationNaturalKey, cv.Kind)
	assert.Equal(t, "principals(email=a@example.com)", cv.Key)
}

func TestValidateIgnoresOwnRow(t *testing.T) {
	c := Candidate{
		Table:       "principals",
		IDColumn:    "principal_id",
		ID:          "p1",
		NaturalKeys: []Key{{Name: "email", Columns: []string{"email"}, Values: []any{"a@example.com"}}},
	}
	assert.NoError(t, New().Validate(context.Background(), c, newIndex()))
}

func TestValidateComposite(t *testing.T) {
	c := Candidate{
		Table:    "dependents",
		IDColumn: "dependent_id",
		ID:       "d2",
		CompositeKeys: []Key{{
			Name:    "owner_sequence",
			Columns: []string{"owner_id", "sequence"},
			Values:  []any{"p1", 1},
		}},
	}
	err := New().Validate(context.Background(), c, newIndex())

	var cv *types.ConstraintViolation
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, types.ViolationComposite, cv.Kind)
}

func TestValidateReference(t *testing.T) {
	c := Candidate{
		Table:      "dependents",
		IDColumn:   "dependent_id",
		ID:         "d2",
		References: []Reference{{Table: "principals", Column: "principal_id", Value: "gone"}},
	}
	err := New().Validate(context.Background(), c, newIndex())

	var cv *types.ConstraintViolation
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, types.ViolationForeignKey, cv.Kind)
	assert.Equal(t, "principals(principal_id=gone)", cv.Key)
}

func TestValidateOrder(t *testing.T) {
	idx := newIndex()
	c := Candidate{
		Table:         "dependents",
		IDColumn:      "dependent_id",
		ID:            "d9",
		NaturalKeys:   []Key{{Name: "n", Columns: []string{"dependent_id"}, Values: []any{"none"}}},
		CompositeKeys: []Key{{Name: "c", Columns: []string{"owner_id"}, Values: []any{"none"}}},
		References:    []Reference{{Table: "principals", Column: "principal_id", Value: "p1"}},
	}
	require.NoError(t, New().Validate(context.Background(), c, idx))
	assert.Equal(t, []string{"holders:dependent_id", "holders:owner_id", "exists:principals"}, idx.calls)
}

func TestValidateMalformedKey(t *testing.T) {
	c := Candidate{
		Table:       "principals",
		IDColumn:    "principal_id",
		NaturalKeys: []Key{{Name: "bad", Columns: []string{"email"}}},
	}
	err := New().Validate(context.Background(), c, newIndex())
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrConstraintViolation)
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got)

	got, err = NormalizeEmail("ａｌｉｃｅ@example.com") // full-width
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got)

	for _, bad := range []string{"", "alice", "alice@", "@example.com"} {
		_, err := NormalizeEmail(bad)
		assert.ErrorIs(t, err, types.ErrInvalidInput, bad)
	}
}

func TestNormalizeUsername(t *testing.T) {
	got, err := NormalizeUsername("Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	for _, bad := range []string{"", "   ", "al ice", strings.Repeat("a", 151)} {
		_, err := NormalizeUsername(bad)
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	}
}
