package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

func TestAppendOrderedSequences(t *testing.T) {
	b := setupBackend(t)
	owner := types.PrincipalOwner(createUser(t, b, "alice"))

	const n = 5
	var ids []string
	for i := 0; i < n; i++ {
		ids = append(ids, addDependent(t, b, owner, 0, "street"))
	}

	seqs := sequences(t, b, owner)
	require.Len(t, seqs, n)
	for i, id := range ids {
		assert.Equal(t, i+1, seqs[id])
	}

	primary, err := b.ReadPrimary(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, ids[0], primary.DependentID)
	assert.True(t, primary.IsPrimary())
}

func TestCreateDependentExplicitSequence(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	owner := types.PrincipalOwner(createUser(t, b, "alice"))

	do(t, b, func(u *UnitOfWork) {
		_, err := u.CreateDependent(ctx, owner, types.DependentInput{Kind: "address", Sequence: 2, Attributes: address("a")})
		assert.ErrorIs(t, err, types.ErrSequenceConflict, "first dependent must be primary")

		_, err = u.CreateDependent(ctx, owner, types.DependentInput{Kind: "address", Sequence: -1, Attributes: address("a")})
		assert.ErrorIs(t, err, types.ErrSequenceConflict)
	})

	addDependent(t, b, owner, 1, "a")
	addDependent(t, b, owner, 5, "b")

	do(t, b, func(u *UnitOfWork) {
		_, err := u.CreateDependent(ctx, owner, types.DependentInput{Kind: "address", Sequence: 1, Attributes: address("c")})
		assert.ErrorIs(t, err, types.ErrConstraintViolation)

		id, err := u.CreateDependent(ctx, owner, types.DependentInput{Kind: "address", Attributes: address("d")})
		require.NoError(t, err)
		d, err := u.GetDependent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 6, d.Sequence)
	})
}

func TestCreateDependentValidation(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	owner := types.PrincipalOwner(createUser(t, b, "alice"))

	do(t, b, func(u *UnitOfWork) {
		_, err := u.CreateDependent(ctx, types.OwnerRef{Kind: "robot", ID: "x"}, types.DependentInput{Kind: "address"})
		assert.ErrorIs(t, err, types.ErrInvalidInput)

		_, err = u.CreateDependent(ctx, types.PrincipalOwner("missing"), types.DependentInput{Kind: "address", Attributes: address("a")})
		assert.ErrorIs(t, err, types.ErrOwnerGone)

		_, err = u.CreateDependent(ctx, owner, types.DependentInput{Kind: "phone", Attributes: map[string]any{}})
		assert.ErrorIs(t, err, types.ErrUnknownVariant)

		attrs := address("a")
		delete(attrs, "city")
		_, err = u.CreateDependent(ctx, owner, types.DependentInput{Kind: "address", Attributes: attrs})
		assert.ErrorIs(t, err, types.ErrSchemaMismatch)
	})
}

func TestEntityOwnedDependents(t *testing.T) {
	b := setupBackend(t)
	owner := types.EntityOwner(createProfile(t, b, "太郎", "山田"))

	id := addDependent(t, b, owner, 0, "a")
	primary, err := b.Views().PrimaryOf(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, id, primary.DependentID)
	assert.Equal(t, types.OwnerEntity, primary.OwnerKind)
}

func TestDeletePrimaryDoesNotPromote(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	owner := types.PrincipalOwner(createUser(t, b, "alice"))
	first := addDependent(t, b, owner, 0, "a")
	second := addDependent(t, b, owner, 0, "b")

	do(t, b, func(u *UnitOfWork) {
		require.NoError(t, u.DeleteDependent(ctx, first))
		assert.ErrorIs(t, u.DeleteDependent(ctx, first), types.ErrNotFound)
	})

	_, err := b.ReadPrimary(ctx, owner.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, map[string]int{second: 2}, sequences(t, b, owner))

	do(t, b, func(u *UnitOfWork) {
		require.NoError(t, u.Reorder(ctx, owner, second, 1))
	})
	primary, err := b.ReadPrimary(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, second, primary.DependentID)
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name  string
		move  int // index of the record moved
		to    int
		after []int // resulting sequence of each record, by index
	}{
		{name: "last to primary", move: 2, to: 1, after: []int{2, 3, 1}},
		{name: "primary to end", move: 0, to: 3, after: []int{3, 2, 4}},
		{name: "middle to primary", move: 1, to: 1, after: []int{2, 1, 4}},
		{name: "same slot", move: 1, to: 2, after: []int{1, 2, 3}},
		{name: "past the end", move: 0, to: 10, after: []int{10, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setupBackend(t)
			owner := types.PrincipalOwner(createUser(t, b, "alice"))
			ids := []string{
				addDependent(t, b, owner, 0, "a"),
				addDependent(t, b, owner, 0, "b"),
				addDependent(t, b, owner, 0, "c"),
			}

			do(t, b, func(u *UnitOfWork) {
				require.NoError(t, u.Reorder(context.Background(), owner, ids[tt.move], tt.to))
			})

			seqs := sequences(t, b, owner)
			for i, id := range ids {
				assert.Equal(t, tt.after[i], seqs[id], "record %d", i)
			}
		})
	}
}

func TestReorderErrors(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	alice := types.PrincipalOwner(createUser(t, b, "alice"))
	bob := types.PrincipalOwner(createUser(t, b, "bob"))
	id := addDependent(t, b, alice, 0, "a")

	do(t, b, func(u *UnitOfWork) {
		assert.ErrorIs(t, u.Reorder(ctx, alice, id, 0), types.ErrSequenceConflict)
		assert.ErrorIs(t, u.Reorder(ctx, bob, id, 1), types.ErrNotFound)
		assert.ErrorIs(t, u.Reorder(ctx, alice, "missing", 1), types.ErrNotFound)
	})
}

func TestCompact(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	owner := types.PrincipalOwner(createUser(t, b, "alice"))
	a := addDependent(t, b, owner, 1, "a")
	c := addDependent(t, b, owner, 4, "c")
	d := addDependent(t, b, owner, 9, "d")

	do(t, b, func(u *UnitOfWork) {
		require.NoError(t, u.DeleteDependent(ctx, a))
		require.NoError(t, u.Compact(ctx, owner))
	})
	assert.Equal(t, map[string]int{c: 1, d: 2}, sequences(t, b, owner))
}

func TestUpdateDependent(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	owner := types.PrincipalOwner(createUser(t, b, "alice"))
	id := addDependent(t, b, owner, 0, "old street")

	do(t, b, func(u *UnitOfWork) {
		d, err := u.GetDependent(ctx, id)
		require.NoError(t, err)

		d.Attributes["street"] = "new street"
		d.Attributes["building"] = "Tower 3F"
		require.NoError(t, u.UpdateDependent(ctx, d))

		moved := *d
		moved.Sequence = 4
		assert.ErrorIs(t, u.UpdateDependent(ctx, &moved), types.ErrInvalidInput)
	})

	primary, err := b.ReadPrimary(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "new street", primary.Attributes["street"])
	assert.Equal(t, "Tower 3F", primary.Attributes["building"])
}
