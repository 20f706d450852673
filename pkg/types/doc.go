// Package types defines the entity types, unit-of-work and view interfaces,
// configuration, and standard errors for the Keystone entity-integrity layer.
//
// Keystone keeps principals, their ordered dependents, polymorphic entities,
// memberships and association links consistent with each other. Backends
// (see package internal/sqlite) implement the interfaces declared here.
package types
