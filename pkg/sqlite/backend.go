// Package sqlite provides the public API for the Keystone store.
// This package exposes the factory function for creating backends
// while keeping implementation details internal.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/internal/sqlite"
	"github.com/mesh-intelligence/keystone/pkg/types"
)

// Backend is the concrete store returned by NewBackend. Besides types.Store
// it offers Begin, Audit, Export and Import.
type Backend = sqlite.Backend

// Option configures a Backend.
type Option = sqlite.Option

// WithLogger sets the backend logger.
func WithLogger(l *zap.Logger) Option { return sqlite.WithLogger(l) }

// NewBackend creates a new backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".keystone",
//	})
//	defer backend.Detach()
//
//	err = backend.Do(ctx, func(uow types.UnitOfWork) error {
//	    _, err := uow.CreatePrincipal(ctx, types.PrincipalInput{Email: "a@example.com", Username: "alice"})
//	    return err
//	})
func NewBackend(opts ...Option) *Backend {
	return sqlite.NewBackend(opts...)
}

var _ types.Store = (*Backend)(nil)
