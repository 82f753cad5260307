//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_gateway.go -package=mocks

// Package store declares the conversation data model and the Gateway the
// routing engine uses to reach persistent storage. Implementations live in
// the postgres and badgerstore subpackages.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// UserID identifies a user account owned outside this service.
type UserID int64

// ConversationID is assigned by the store on creation.
type ConversationID int64

// MessageID is assigned by the store on creation and increases in
// persistence order within a conversation.
type MessageID int64

// UnmarshalJSON accepts the id as a JSON number or as a numeric string, the
// form clients use for room keys.
func (id *ConversationID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("conversation id %s: %w", data, err)
	}
	v, err := n.Int64()
	if err != nil {
		return fmt.Errorf("conversation id %s: %w", data, err)
	}
	*id = ConversationID(v)
	return nil
}

// RoomKey is the multicast group name for a conversation.
func (id ConversationID) RoomKey() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseRoomKey is the inverse of RoomKey.
func ParseRoomKey(key string) (ConversationID, bool) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return ConversationID(id), true
}

// User is the display metadata of an account.
type User struct {
	ID     UserID  `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

// Message is immutable once created.
type Message struct {
	ID             MessageID      `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	SenderID       UserID         `json:"senderId"`
	SenderName     string         `json:"senderName,omitempty"`
	SenderAvatar   *string        `json:"senderAvatar,omitempty"`
	Content        string         `json:"content"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// NewMessage is a message that has not been persisted yet.
type NewMessage struct {
	ConversationID ConversationID
	SenderID       UserID
	Content        string
}

// Conversation is the full payload pushed when a conversation is created.
type Conversation struct {
	ID           ConversationID `json:"id"`
	IsGroupChat  bool           `json:"isGroupChat"`
	Name         *string        `json:"name"`
	Participants []UserID       `json:"participants"`
	Messages     []Message      `json:"messages"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// LatestMessage previews the newest message of a conversation.
type LatestMessage struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationSummary is one entry of the list pushed on registration.
// For private conversations Name is the other participant's display name.
type ConversationSummary struct {
	ID            ConversationID `json:"id"`
	IsGroupChat   bool           `json:"isGroupChat"`
	Name          *string        `json:"name"`
	CreatedAt     time.Time      `json:"createdAt"`
	Participants  []UserID       `json:"participants"`
	LatestMessage *LatestMessage `json:"latestMessage"`
}

// Gateway is the storage surface consumed by the routing engine.
//
// CreatePrivateConversation must enforce at most one private conversation
// per unordered user pair and return ErrDuplicatePrivateChat when it loses
// that race; the caller's FindExistingPrivateChat check is only a shortcut.
type Gateway interface {
	GetUserConversations(ctx context.Context, userID UserID) ([]ConversationSummary, error)
	GetConversationByID(ctx context.Context, id ConversationID) (Conversation, error)
	GetConversationMessages(ctx context.Context, id ConversationID, limit int) ([]Message, error)
	CreateMessage(ctx context.Context, msg NewMessage) (Message, error)
	IsUserInConversation(ctx context.Context, userID UserID, id ConversationID) (bool, error)
	FindExistingPrivateChat(ctx context.Context, a, b UserID) (ConversationID, bool, error)
	CreatePrivateConversation(ctx context.Context, a, b UserID) (Conversation, error)
	CreateGroupConversation(ctx context.Context, name string, creatorID UserID, participantIDs []UserID) (Conversation, error)
}

// CanonicalPair orders a user pair so that both directions map to one key.
func CanonicalPair(a, b UserID) (UserID, UserID) {
	if b < a {
		return b, a
	}
	return a, b
}
