package integrity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

type codeErr struct{ code int }

func (e codeErr) Error() string { return fmt.Sprintf("sqlite error %d", e.code) }
func (e codeErr) Code() int     { return e.code }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		violation types.ViolationKind
		transient bool
	}{
		{name: "sqlite unique", err: codeErr{2067}, violation: types.ViolationComposite},
		{name: "sqlite primary key", err: codeErr{1555}, violation: types.ViolationComposite},
		{name: "sqlite check", err: codeErr{275}, violation: types.ViolationComposite},
		{name: "sqlite foreign key", err: codeErr{787}, violation: types.ViolationForeignKey},
		{name: "sqlite busy", err: codeErr{5}, transient: true},
		{name: "sqlite busy snapshot", err: codeErr{517}, transient: true},
		{name: "sqlite locked", err: codeErr{6}, transient: true},
		{name: "pq unique", err: &pq.Error{Code: "23505", Constraint: "principals_email_key"}, violation: types.ViolationComposite},
		{name: "pq foreign key", err: &pq.Error{Code: "23503"}, violation: types.ViolationForeignKey},
		{name: "pq serialization", err: &pq.Error{Code: "40001"}, transient: true},
		{name: "pq deadlock", err: &pq.Error{Code: "40P01"}, transient: true},
		{name: "wrapped", err: fmt.Errorf("inserting: %w", codeErr{2067}), violation: types.ViolationComposite},
		{name: "message unique", err: errors.New("UNIQUE constraint failed: links.link_type"), violation: types.ViolationComposite},
		{name: "message fk", err: errors.New("FOREIGN KEY constraint failed"), violation: types.ViolationForeignKey},
		{name: "message locked", err: errors.New("database is locked"), transient: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if tt.transient {
				assert.ErrorIs(t, got, types.ErrTransient)
				assert.True(t, types.IsRetryable(got))
				return
			}
			var cv *types.ConstraintViolation
			require.True(t, errors.As(got, &cv), "got %v", got)
			assert.Equal(t, tt.violation, cv.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyPassthrough(t *testing.T) {
	assert.NoError(t, Classify(nil))

	plain := errors.New("disk on fire")
	assert.Same(t, plain, Classify(plain))

	typed := &types.ConstraintViolation{Kind: types.ViolationNaturalKey}
	assert.Same(t, typed, Classify(typed))

	assert.Equal(t, codeErr{1}, Classify(codeErr{1}))
}
