package registry

import (
	"github.com/totegamma/concrnt-community/internal/domain"
)

type MutationKind int

const (
	MutationPut MutationKind = iota + 1
	MutationDelete
)

func (k MutationKind) String() string {
	switch k {
	case MutationPut:
		return "put"
	case MutationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutation is one net write of a transition. A Put replaces the whole
// record keyed by Community.ID.
type Mutation struct {
	Kind        MutationKind
	CommunityID uint64
	Community   domain.Community
}

type staged struct {
	community domain.Community
	deleted   bool
}

// txn is a write overlay over a committed State. Nothing it stages is
// visible outside until the resulting mutations are applied.
type txn struct {
	base   *State
	writes map[uint64]staged
	order  []uint64
	events []domain.Event
}

func newTxn(base *State) *txn {
	return &txn{
		base:   base,
		writes: make(map[uint64]staged),
	}
}

func (tx *txn) get(id uint64) (domain.Community, bool) {
	if w, ok := tx.writes[id]; ok {
		if w.deleted {
			return domain.Community{}, false
		}
		return w.community, true
	}
	return tx.base.get(id)
}

func (tx *txn) stage(id uint64, w staged) {
	if _, ok := tx.writes[id]; !ok {
		tx.order = append(tx.order, id)
	}
	tx.writes[id] = w
}

// deleteCommunity removes the record keyed by id.
func (tx *txn) deleteCommunity(id uint64) error {
	if _, ok := tx.get(id); !ok {
		return domain.NotExistsError{CommunityID: id}
	}
	tx.stage(id, staged{deleted: true})
	return nil
}

// updateCommunity unconditionally writes c under c.ID.
func (tx *txn) updateCommunity(c domain.Community) {
	tx.stage(c.ID, staged{community: c.Clone()})
}

func (tx *txn) emit(e domain.Event) {
	tx.events = append(tx.events, e)
}

// receipt compacts staged writes into one net mutation per touched id,
// so a delete followed by an update becomes a single replace.
func (tx *txn) receipt() Receipt {
	mutations := make([]Mutation, 0, len(tx.order))
	for _, id := range tx.order {
		w := tx.writes[id]
		if w.deleted {
			mutations = append(mutations, Mutation{Kind: MutationDelete, CommunityID: id})
			continue
		}
		mutations = append(mutations, Mutation{Kind: MutationPut, CommunityID: id, Community: w.community})
	}
	return Receipt{
		Mutations: mutations,
		Events:    tx.events,
	}
}
