// Package registry holds the community registry state machine.
//
// Every mutating operation is a Call evaluated by Transition against the
// committed State. The Registry serializes calls and commits a call's
// mutations only after the optional CommitFunc (typically durable
// storage) succeeds, so each call is applied entirely or not at all.
package registry

import (
	"sync"

	"github.com/totegamma/concrnt-community/internal/domain"
)

// CommitFunc persists a receipt before it becomes visible. Returning an
// error aborts the call and leaves the registry unchanged.
type CommitFunc func(Receipt) error

type Registry struct {
	mu         sync.RWMutex
	state      *State
	authorizer Authorizer
}

type Option func(*Registry)

// WithAuthorizer replaces the default OwnerOnly authorization rule.
func WithAuthorizer(a Authorizer) Option {
	return func(r *Registry) {
		r.authorizer = a
	}
}

// WithState starts the registry from previously committed records.
func WithState(state *State) Option {
	return func(r *Registry) {
		r.state = state
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		state:      NewState(),
		authorizer: OwnerOnly{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore swaps in a freshly loaded state, e.g. after reading storage at startup.
func (r *Registry) Restore(records []domain.Community) {
	state := NewState(records...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

// Execute runs call to completion. commit may be nil.
func (r *Registry) Execute(call Call, commit CommitFunc) (Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	receipt, err := Transition(r.state, call, r.authorizer)
	if err != nil {
		return Receipt{}, err
	}

	if commit != nil {
		if err := commit(receipt); err != nil {
			return Receipt{}, err
		}
	}

	r.state.Apply(receipt.Mutations)
	return receipt, nil
}

func (r *Registry) CreateCommunity(caller domain.Identity, communityID uint64, name, address string) (Receipt, error) {
	return r.Execute(CreateCommunity{
		Caller:      caller,
		CommunityID: communityID,
		Name:        name,
		Address:     address,
	}, nil)
}

func (r *Registry) CreateCouncilForCommunity(caller domain.Identity, communityID uint64, members []domain.Identity) (Receipt, error) {
	return r.Execute(CreateCouncilForCommunity{
		Caller:         caller,
		CommunityID:    communityID,
		CouncilMembers: members,
	}, nil)
}

// GetCommunity returns a copy of the record, or false when absent.
func (r *Registry) GetCommunity(communityID uint64) (domain.Community, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Get(communityID)
}

func (r *Registry) LatestCommunityID() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.LatestID()
}

func (r *Registry) ListCommunities() []domain.Community {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.List()
}
