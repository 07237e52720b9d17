package domain

import (
	"errors"
	"fmt"
)

// NotExistsError is returned when a community id has no current record.
type NotExistsError struct {
	CommunityID uint64
}

func (e NotExistsError) Error() string {
	return fmt.Sprintf("community %d does not exist", e.CommunityID)
}

// Is enables errors.Is matching on NotExistsError.
func (e NotExistsError) Is(target error) bool {
	_, ok := target.(NotExistsError)
	if ok {
		return true
	}
	_, ok = target.(*NotExistsError)
	return ok
}

// NotOwnerError is returned when a caller may not change a community's council.
type NotOwnerError struct {
	CommunityID uint64
	Caller      Identity
}

func (e NotOwnerError) Error() string {
	if e.Caller == "" {
		return fmt.Sprintf("caller is not the owner of community %d", e.CommunityID)
	}
	return fmt.Sprintf("%s is not the owner of community %d", e.Caller, e.CommunityID)
}

// Is enables errors.Is matching on NotOwnerError.
func (e NotOwnerError) Is(target error) bool {
	_, ok := target.(NotOwnerError)
	if ok {
		return true
	}
	_, ok = target.(*NotOwnerError)
	return ok
}

// AlreadyExistsError is returned when creating under an occupied id.
type AlreadyExistsError struct {
	CommunityID uint64
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("community %d already exists", e.CommunityID)
}

// Is enables errors.Is matching on AlreadyExistsError.
func (e AlreadyExistsError) Is(target error) bool {
	_, ok := target.(AlreadyExistsError)
	if ok {
		return true
	}
	_, ok = target.(*AlreadyExistsError)
	return ok
}

var (
	ErrNotExists     = NotExistsError{}
	ErrNotOwner      = NotOwnerError{}
	ErrAlreadyExists = AlreadyExistsError{}
)

// ErrInvalidCommunityID is returned for ids storage cannot hold (above MaxCommunityID).
var ErrInvalidCommunityID = errors.New("community id out of range")

// ErrUnauthenticated is returned by mutating operations invoked without a requester identity.
var ErrUnauthenticated = errors.New("requester identity is required")
