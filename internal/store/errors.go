package store

import "errors"

var (
	ErrNotFound             = errors.New("conversation not found")
	ErrNotAMember           = errors.New("user is not a participant of the conversation")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrDuplicatePrivateChat = errors.New("private conversation already exists for this pair")
	ErrInvalidConversation  = errors.New("invalid conversation")
)
