package chat

import "github.com/Tyrowin/chatrouter/internal/store"

type RegisterRequest struct {
	UserID store.UserID `json:"userId" validate:"required,gt=0"`
}

type SendRequest struct {
	ConvID  store.ConversationID `json:"convId" validate:"required,gt=0"`
	Content string               `json:"content"`
}

type StartPrivateChatRequest struct {
	OtherUserID store.UserID `json:"otherUserId" validate:"required,gt=0"`
}

type CreateGroupChatRequest struct {
	Name           string         `json:"name" validate:"required"`
	ParticipantIDs []store.UserID `json:"participantIds" validate:"dive,gt=0"`
}

type TypingRequest struct {
	ConvID   store.ConversationID `json:"convId" validate:"required,gt=0"`
	UserName string               `json:"userName"`
}

// Short machine-readable failure codes carried by acks.
const (
	CodeNotRegistered  = "not-registered"
	CodeNotMember      = "not-member"
	CodePersistFailed  = "persist-failed"
	CodeInvalidPayload = "invalid-payload"
)

// Human-readable ack errors, as clients display them.
const (
	ErrTextNotRegistered     = "User not registered"
	ErrTextNotMember         = "Not a member of this conversation"
	ErrTextSendFailed        = "Failed to send message"
	ErrTextStartChatFailed   = "Failed to start chat"
	ErrTextCreateGroupFailed = "Failed to create group chat"
	ErrTextInvalidPayload    = "Invalid payload"
)

// Ack is the direct answer to a request/response event.
type Ack struct {
	Success        bool                  `json:"success"`
	Error          string                `json:"error,omitempty"`
	Code           string                `json:"code,omitempty"`
	ConversationID *store.ConversationID `json:"conversationId,omitempty"`
	Conversation   *store.Conversation   `json:"conversation,omitempty"`
}

func failure(code, text string) Ack {
	return Ack{Success: false, Error: text, Code: code}
}

// TypingNotice is the payload of userTyping and userStoppedTyping.
type TypingNotice struct {
	UserID   store.UserID         `json:"userId"`
	UserName string               `json:"userName,omitempty"`
	ConvID   store.ConversationID `json:"convId"`
}

// ErrorNotice is pushed for frames the engine cannot route.
type ErrorNotice struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
