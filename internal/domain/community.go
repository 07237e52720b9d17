package domain

import (
	"math"
	"slices"
)

// MaxCommunityID is the largest id the database can store as a signed bigint.
const MaxCommunityID uint64 = math.MaxInt64

// Identity is an opaque caller identity. Only equality is meaningful.
type Identity string

// Community is a registry record. Owner is fixed at creation; only the
// council set changes afterwards.
type Community struct {
	ID       uint64     `json:"id"`
	Name     string     `json:"name"`
	Address  string     `json:"address"`
	Owner    Identity   `json:"owner"`
	Councils []Identity `json:"councils"`
}

// Clone returns a deep copy so callers never alias registry-owned slices.
func (c Community) Clone() Community {
	c.Councils = slices.Clone(c.Councils)
	return c
}
