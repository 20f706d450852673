package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintViolationMatchesSentinel(t *testing.T) {
	var err error = &ConstraintViolation{Kind: ViolationNaturalKey, Key: "principals(email)=a@example.com"}
	wrapped := fmt.Errorf("creating principal: %w", err)

	assert.ErrorIs(t, wrapped, ErrConstraintViolation)
	assert.NotErrorIs(t, wrapped, ErrNotFound)

	var cv *ConstraintViolation
	require.ErrorAs(t, wrapped, &cv)
	assert.Equal(t, ViolationNaturalKey, cv.Kind)
	assert.Contains(t, cv.Error(), "principals(email)")
}

func TestConstraintViolationUnwrapsDriverError(t *testing.T) {
	driverErr := errors.New("UNIQUE constraint failed: dependents.owner_id")
	err := &ConstraintViolation{Kind: ViolationComposite, Err: driverErr}
	assert.ErrorIs(t, err, driverErr)
	assert.Equal(t, "constraint violation (composite)", err.Error())
}

func TestSchemaMismatchError(t *testing.T) {
	err := &SchemaMismatchError{Discriminator: "personal", Field: "last_name", Reason: "missing required field"}
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Equal(t, `schema mismatch for "personal" field "last_name": missing required field`, err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("commit: %w", ErrTransient)))
	assert.False(t, IsRetryable(&ConstraintViolation{Kind: ViolationComposite}))
}

func TestPrincipalInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      PrincipalInput
		wantErr bool
	}{
		{name: "user defaults kind", in: PrincipalInput{Email: "a@example.com", Username: "a"}},
		{name: "customer with type", in: PrincipalInput{Kind: PrincipalKindCustomer, CustomerType: CustomerTypeIndividual, Email: "c@example.com", Username: "c"}},
		{name: "customer without type", in: PrincipalInput{Kind: PrincipalKindCustomer, Email: "c@example.com", Username: "c"}, wantErr: true},
		{name: "user with customer type", in: PrincipalInput{CustomerType: CustomerTypeCorporation, Email: "a@example.com", Username: "a"}, wantErr: true},
		{name: "unknown kind", in: PrincipalInput{Kind: "robot", Email: "a@example.com", Username: "a"}, wantErr: true},
		{name: "missing email", in: PrincipalInput{Username: "a"}, wantErr: true},
		{name: "missing username", in: PrincipalInput{Email: "a@example.com"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			err := in.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, in.Kind)
		})
	}
}

func TestOwnerRef(t *testing.T) {
	assert.True(t, PrincipalOwner("p1").Valid())
	assert.True(t, EntityOwner("e1").Valid())
	assert.False(t, OwnerRef{Kind: "post", ID: "x"}.Valid())
	assert.False(t, PrincipalOwner("").Valid())
	assert.Equal(t, "principal/p1", PrincipalOwner("p1").String())
}

func TestDependentProjection(t *testing.T) {
	d := &DependentRecord{Sequence: PrimarySequence}
	assert.True(t, d.IsPrimary())
	assert.False(t, d.IsProjection())
	d.MarkProjection()
	assert.True(t, d.IsProjection())

	copied := *d
	assert.True(t, copied.IsProjection(), "projection flag survives a value copy")
}

func TestNormalizePair(t *testing.T) {
	l, r := NormalizePair("b", "a", true)
	assert.Equal(t, []string{"a", "b"}, []string{l, r})

	l, r = NormalizePair("b", "a", false)
	assert.Equal(t, []string{"b", "a"}, []string{l, r})
}

func TestValidLinkType(t *testing.T) {
	assert.True(t, ValidLinkType(LinkTypeLike))
	assert.True(t, ValidLinkType("post_like"))
	assert.False(t, ValidLinkType(""))
	assert.False(t, ValidLinkType("Like"))
	assert.False(t, ValidLinkType("like-post"))
}

func TestCascadeReportTotal(t *testing.T) {
	r := &CascadeReport{PrincipalID: "p", Dependents: 3, Memberships: 1, Entities: []string{"e"}, EntityDependents: 1}
	assert.Equal(t, 7, r.Total())
}

func TestAuditReportErrors(t *testing.T) {
	r := &AuditReport{Findings: []Finding{
		{Code: FindingMissingPrimary, Severity: SeverityWarning},
		{Code: FindingOrphanDependent, Severity: SeverityError},
	}}
	assert.Equal(t, 1, r.Errors())
}

func TestVariantSchemaField(t *testing.T) {
	s := &VariantSchema{Discriminator: "corporate", Fields: []FieldSpec{{Name: "name", Kind: FieldText, Required: true}}}
	f, ok := s.Field("name")
	require.True(t, ok)
	assert.True(t, f.Required)
	_, ok = s.Field("missing")
	assert.False(t, ok)
}
