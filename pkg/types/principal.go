package types

import (
	"fmt"
	"time"
)

// Principal kinds.
const (
	PrincipalKindUser     = "user"
	PrincipalKindCustomer = "customer"
)

// Customer types, meaningful only for PrincipalKindCustomer.
const (
	CustomerTypeIndividual  = "individual"
	CustomerTypeCorporation = "corporation"
)

// Principal is a root entity that owns dependents, memberships and links.
// Email and Username are natural keys: both are required and unique after
// normalization.
type Principal struct {
	PrincipalID  string    `json:"principal_id"`
	PublicID     string    `json:"public_id"`
	Kind         string    `json:"kind"`
	CustomerType string    `json:"customer_type,omitempty"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PrincipalInput carries the fields required to create a Principal.
type PrincipalInput struct {
	Kind         string
	CustomerType string
	Email        string
	Username     string
}

// Validate checks the input shape. Uniqueness is the checker's job.
// An empty Kind defaults to PrincipalKindUser.
func (in *PrincipalInput) Validate() error {
	if in.Kind == "" {
		in.Kind = PrincipalKindUser
	}
	switch in.Kind {
	case PrincipalKindUser:
		if in.CustomerType != "" {
			return fmt.Errorf("%w: customer type set on a user", ErrInvalidInput)
		}
	case PrincipalKindCustomer:
		if in.CustomerType != CustomerTypeIndividual && in.CustomerType != CustomerTypeCorporation {
			return fmt.Errorf("%w: customer type %q", ErrInvalidInput, in.CustomerType)
		}
	default:
		return fmt.Errorf("%w: principal kind %q", ErrInvalidInput, in.Kind)
	}
	if in.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if in.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	return nil
}
