package registry

import (
	"slices"

	"github.com/totegamma/concrnt-community/internal/domain"
)

// State is the committed registry contents keyed by community id.
type State struct {
	communities map[uint64]domain.Community
	latestID    uint64
}

// NewState builds a committed state from previously persisted records.
func NewState(records ...domain.Community) *State {
	s := &State{
		communities: make(map[uint64]domain.Community, len(records)),
	}
	for _, c := range records {
		s.put(c.Clone())
	}
	return s
}

func (s *State) get(id uint64) (domain.Community, bool) {
	c, ok := s.communities[id]
	return c, ok
}

func (s *State) put(c domain.Community) {
	s.communities[c.ID] = c
	if c.ID > s.latestID {
		s.latestID = c.ID
	}
}

// Get returns a copy of the record stored under id.
func (s *State) Get(id uint64) (domain.Community, bool) {
	c, ok := s.get(id)
	if !ok {
		return domain.Community{}, false
	}
	return c.Clone(), true
}

// LatestID is the highest community id ever created, 0 when nothing was.
func (s *State) LatestID() uint64 {
	return s.latestID
}

// List returns copies of every record ordered by id.
func (s *State) List() []domain.Community {
	ids := make([]uint64, 0, len(s.communities))
	for id := range s.communities {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	result := make([]domain.Community, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.communities[id].Clone())
	}
	return result
}

// Apply commits mutations produced by Transition.
func (s *State) Apply(mutations []Mutation) {
	for _, m := range mutations {
		switch m.Kind {
		case MutationPut:
			s.put(m.Community.Clone())
		case MutationDelete:
			delete(s.communities, m.CommunityID)
		}
	}
}
