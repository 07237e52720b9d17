package registry

import (
	"github.com/totegamma/concrnt-community/internal/domain"
)

// Receipt is the outcome of a successful transition: the net writes to
// commit and the notifications to deliver once they are committed.
type Receipt struct {
	Mutations []Mutation
	Events    []domain.Event
}

// Call is a state-mutating registry operation.
type Call interface {
	apply(tx *txn, authorizer Authorizer) error
}

// CreateCommunity registers a new community owned by Caller.
type CreateCommunity struct {
	Caller      domain.Identity
	CommunityID uint64
	Name        string
	Address     string
}

func (call CreateCommunity) apply(tx *txn, _ Authorizer) error {
	if _, ok := tx.get(call.CommunityID); ok {
		return domain.AlreadyExistsError{CommunityID: call.CommunityID}
	}

	community := domain.Community{
		ID:       call.CommunityID,
		Name:     call.Name,
		Address:  call.Address,
		Owner:    call.Caller,
		Councils: []domain.Identity{call.Caller},
	}
	tx.updateCommunity(community)
	tx.emit(domain.CommunityCreated(community))

	return nil
}

// CreateCouncilForCommunity replaces a community's council with
// CouncilMembers followed by Caller. Caller is appended even when it is
// already one of the members.
type CreateCouncilForCommunity struct {
	Caller         domain.Identity
	CommunityID    uint64
	CouncilMembers []domain.Identity
}

func (call CreateCouncilForCommunity) apply(tx *txn, authorizer Authorizer) error {
	current, ok := tx.get(call.CommunityID)
	if !ok {
		return domain.NotExistsError{CommunityID: call.CommunityID}
	}

	if !authorizer.IsAuthorized(current, call.Caller) {
		return domain.NotOwnerError{CommunityID: call.CommunityID, Caller: call.Caller}
	}

	councils := make([]domain.Identity, 0, len(call.CouncilMembers)+1)
	councils = append(councils, call.CouncilMembers...)
	councils = append(councils, call.Caller)

	replacement := domain.Community{
		ID:       current.ID,
		Name:     current.Name,
		Address:  current.Address,
		Owner:    current.Owner,
		Councils: councils,
	}

	if err := tx.deleteCommunity(call.CommunityID); err != nil {
		return err
	}
	tx.updateCommunity(replacement)
	tx.emit(domain.CouncilChanged(replacement))

	return nil
}

// Transition evaluates call against state without modifying it. On error
// the receipt is empty and nothing may be committed.
func Transition(state *State, call Call, authorizer Authorizer) (Receipt, error) {
	if authorizer == nil {
		authorizer = OwnerOnly{}
	}

	tx := newTxn(state)
	if err := call.apply(tx, authorizer); err != nil {
		return Receipt{}, err
	}

	return tx.receipt(), nil
}
