package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// setupBackend attaches a fresh SQLite store in a temp dir. Config fields
// set in overrides (other than Backend and DataDir) are kept.
func setupBackend(t *testing.T, overrides ...func(*types.Config)) *Backend {
	t.Helper()
	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	for _, o := range overrides {
		o(&config)
	}
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })
	return b
}

// do runs fn in a committed unit of work, failing the test on error.
func do(t *testing.T, b *Backend, fn func(u *UnitOfWork)) {
	t.Helper()
	u, err := b.Begin(context.Background())
	require.NoError(t, err)
	defer u.Rollback()
	fn(u)
	require.NoError(t, u.Commit())
}

func createUser(t *testing.T, b *Backend, name string) string {
	t.Helper()
	var id string
	do(t, b, func(u *UnitOfWork) {
		var err error
		id, err = u.CreatePrincipal(context.Background(), types.PrincipalInput{
			Email:    name + "@example.com",
			Username: name,
		})
		require.NoError(t, err)
	})
	return id
}

func createCustomer(t *testing.T, b *Backend, name string) string {
	t.Helper()
	var id string
	do(t, b, func(u *UnitOfWork) {
		var err error
		id, err = u.CreatePrincipal(context.Background(), types.PrincipalInput{
			Kind:         types.PrincipalKindCustomer,
			CustomerType: types.CustomerTypeIndividual,
			Email:        name + "@example.com",
			Username:     name,
		})
		require.NoError(t, err)
	})
	return id
}

func address(street string) map[string]any {
	return map[string]any{
		"postal_code": "100-0001",
		"prefecture":  "東京都",
		"city":        "千代田区",
		"street":      street,
	}
}

func personal(first, last string) map[string]any {
	return map[string]any{
		"first_name":      first,
		"last_name":       last,
		"first_name_kana": "タロウ",
		"last_name_kana":  "ヤマダ",
		"gender_type":     "male",
	}
}

func createProfile(t *testing.T, b *Backend, first, last string) string {
	t.Helper()
	var id string
	do(t, b, func(u *UnitOfWork) {
		var err error
		id, err = u.CreatePolymorphicEntity(context.Background(), "personal", personal(first, last))
		require.NoError(t, err)
	})
	return id
}

func addDependent(t *testing.T, b *Backend, owner types.OwnerRef, seq int, street string) string {
	t.Helper()
	var id string
	do(t, b, func(u *UnitOfWork) {
		var err error
		id, err = u.CreateDependent(context.Background(), owner, types.DependentInput{
			Kind:       "address",
			Sequence:   seq,
			Attributes: address(street),
		})
		require.NoError(t, err)
	})
	return id
}

func sequences(t *testing.T, b *Backend, owner types.OwnerRef) map[string]int {
	t.Helper()
	deps, err := b.Views().DependentsOf(context.Background(), owner)
	require.NoError(t, err)
	out := make(map[string]int, len(deps))
	for _, d := range deps {
		out[d.DependentID] = d.Sequence
	}
	return out
}

func countRows(t *testing.T, b *Backend, table string) int {
	t.Helper()
	var n int
	require.NoError(t, b.reader.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
