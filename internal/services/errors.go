// Package services defines the business logic for messages, notifications,
// and the social actions that produce them. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Lookup errors.
var (
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrMessageNotFound indicates the message does not exist or was deleted.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotificationNotFound indicates the notification does not exist or
	// belongs to someone else.
	ErrNotificationNotFound = errors.New("notification not found")

	ErrPostNotFound       = errors.New("post not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrConnectionNotFound = errors.New("connection request not found")
)

// Authorization errors.
var (
	// ErrForbidden is returned when the caller is authenticated but not
	// allowed to act on the resource (e.g., marking someone else's message read).
	ErrForbidden = errors.New("forbidden")
)

// Validation errors.
var (
	// ErrEmptyContent is returned when required text is blank after normalization.
	ErrEmptyContent = errors.New("content is empty")

	// ErrTooLong is returned when text exceeds the configured rune limit.
	ErrTooLong = errors.New("content too long")

	// ErrSelfTarget is returned when a user addresses an action to themselves
	// where that makes no sense (messaging, connecting, mentoring).
	ErrSelfTarget = errors.New("cannot target yourself")

	ErrInvalidStatus  = errors.New("invalid status")
	ErrInvalidParent  = errors.New("parent comment belongs to another post")
	ErrInvalidEmail   = errors.New("invalid email")
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrInvalidNotificationType guards the closed set of notification kinds.
	ErrInvalidNotificationType = errors.New("invalid notification type")
)

// Conflict errors.
var (
	ErrAlreadyLiked     = errors.New("post already liked")
	ErrDuplicateRequest = errors.New("a pending request already exists")
	ErrAlreadyResponded = errors.New("request already answered")
	ErrEmailTaken       = errors.New("email already registered")
)
