package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

func TestAuditCleanStore(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	customer := createCustomer(t, b, "alice")
	profile := createProfile(t, b, "太郎", "山田")
	addDependent(t, b, types.PrincipalOwner(customer), 0, "a")
	do(t, b, func(u *UnitOfWork) {
		_, err := u.LinkMembership(ctx, customer, profile, types.RoleMain, true)
		require.NoError(t, err)
	})

	report, err := b.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
}

func TestAuditFindsBrokenRows(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	createProfile(t, b, "太郎", "山田")

	// Rows written around the unit of work, as another tool might.
	_, err := b.db.Exec(
		`INSERT INTO dependents (`+dependentColumns+`) VALUES (?, 'principal', 'ghost', 2, 'address', '{}', ?, ?)`,
		generateUUID(), "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z",
	)
	require.NoError(t, err)

	report, err := b.Audit(ctx)
	require.NoError(t, err)

	codes := make(map[string]string)
	for _, f := range report.Findings {
		codes[f.Code] = f.Severity
	}
	assert.Equal(t, map[string]string{
		types.FindingMissingPrimary:     types.SeverityWarning,
		types.FindingOrphanDependent:    types.SeverityError,
		types.FindingUnreferencedEntity: types.SeverityWarning,
	}, codes)
	assert.Equal(t, 1, report.Errors())
}

func TestAuditDetached(t *testing.T) {
	b := NewBackend()
	_, err := b.Audit(context.Background())
	assert.ErrorIs(t, err, types.ErrBackendDetached)
}
