package models

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNotLeader       = errors.New("only leaders can perform this action")
	ErrUnauthorized    = errors.New("not authorized")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrLastLeader      = errors.New("cannot remove last leader")
	ErrDuplicateCode   = errors.New("room code already exists")
	ErrNameTaken       = errors.New("name already in use in this room")
	ErrUserExists      = errors.New("user already in room")
)

// Error kinds reported to clients alongside the message.
const (
	KindNotFound        = "NOT_FOUND"
	KindUnauthorized    = "UNAUTHORIZED"
	KindInvalidArgument = "INVALID_ARGUMENT"
	KindConflict        = "CONFLICT"
	KindInternal        = "INTERNAL"
)

// Kind classifies err into one of the client-facing error kinds.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotLeader), errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrLastLeader), errors.Is(err, ErrDuplicateCode),
		errors.Is(err, ErrNameTaken), errors.Is(err, ErrUserExists):
		return KindConflict
	default:
		return KindInternal
	}
}
