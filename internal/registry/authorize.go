package registry

import "github.com/totegamma/concrnt-community/internal/domain"

// Authorizer decides whether caller may replace the council of record.
type Authorizer interface {
	IsAuthorized(record domain.Community, caller domain.Identity) bool
}

// AuthorizerFunc adapts a plain predicate to Authorizer.
type AuthorizerFunc func(record domain.Community, caller domain.Identity) bool

func (f AuthorizerFunc) IsAuthorized(record domain.Community, caller domain.Identity) bool {
	return f(record, caller)
}

// OwnerOnly grants council changes to the recorded owner alone.
type OwnerOnly struct{}

func (OwnerOnly) IsAuthorized(record domain.Community, caller domain.Identity) bool {
	return record.Owner == caller
}
