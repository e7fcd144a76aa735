package errors

import "errors"

var (
	ErrNotFound = errors.New("group not found")

	ErrInvalidID = errors.New("invalid group ID format")

	ErrNameTaken = errors.New("group name already in use")

	// ErrNoAdmins rejects an update that would leave a populated group with
	// zero admin members.
	ErrNoAdmins = errors.New("group must retain at least one admin")

	ErrNotAMember = errors.New("user is not a member of the group")

	// ErrLastAdmin rejects a leave by the only remaining admin.
	ErrLastAdmin = errors.New("the last admin cannot leave the group")
)
