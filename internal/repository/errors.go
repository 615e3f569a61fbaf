// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow handlers to distinguish between
// different failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own, such as deleting another user's lot.
var ErrForbidden = errors.New("forbidden")

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrLotNotFound    = errors.New("lot not found")
	ErrEmailExists    = errors.New("email already exists")
	ErrSessionInvalid = errors.New("session invalid")
)
