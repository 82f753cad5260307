package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/chatrouter/internal/store"
	"github.com/samber/lo"
)

// RegisterAndSync loads every conversation userID participates in, joins
// connID to each conversation room and pushes the list. On a store failure
// no room is joined; the client may retry by registering again.
func (e *Engine) RegisterAndSync(ctx context.Context, connID string, userID store.UserID) ([]store.ConversationSummary, error) {
	conversations, err := e.gateway.GetUserConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading conversations of user %d: %w", userID, err)
	}
	if conversations == nil {
		conversations = []store.ConversationSummary{}
	}

	for _, conv := range conversations {
		e.fabric.Join(connID, conv.ID.RoomKey())
	}
	e.fabric.EmitToConnection(connID, EventConversations, conversations)
	return conversations, nil
}

// JoinOutcome distinguishes why a join did or did not happen.
type JoinOutcome int

const (
	JoinFound JoinOutcome = iota
	JoinNotFound
	JoinNotRegistered
	JoinNotMember
)

func (o JoinOutcome) String() string {
	switch o {
	case JoinFound:
		return "found"
	case JoinNotFound:
		return "not-found"
	case JoinNotRegistered:
		return "not-registered"
	case JoinNotMember:
		return "not-member"
	default:
		return "unknown"
	}
}

// JoinResult is the outcome of JoinConversation.
type JoinResult struct {
	Outcome JoinOutcome
	History []store.Message
}

// JoinConversation joins connID to the room of conversationID and pushes the
// most recent messages, oldest first. An unknown conversation is a silent
// no-op reported as JoinNotFound.
func (e *Engine) JoinConversation(ctx context.Context, connID string, conversationID store.ConversationID) (JoinResult, error) {
	userID, ok := e.registry.UserOf(connID)
	if !ok {
		return JoinResult{Outcome: JoinNotRegistered}, nil
	}

	if _, err := e.gateway.GetConversationByID(ctx, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return JoinResult{Outcome: JoinNotFound}, nil
		}
		return JoinResult{}, fmt.Errorf("loading conversation %d: %w", conversationID, err)
	}

	member, err := e.gateway.IsUserInConversation(ctx, userID, conversationID)
	if err != nil {
		return JoinResult{}, fmt.Errorf("checking membership of user %d in %d: %w", userID, conversationID, err)
	}
	if !member {
		return JoinResult{Outcome: JoinNotMember}, nil
	}

	e.fabric.Join(connID, conversationID.RoomKey())

	history, err := e.gateway.GetConversationMessages(ctx, conversationID, e.historyLimit)
	if err != nil {
		return JoinResult{Outcome: JoinFound}, fmt.Errorf("loading history of %d: %w", conversationID, err)
	}
	if history == nil {
		history = []store.Message{}
	}
	e.fabric.EmitToConnection(connID, EventMessageHistory, history)
	return JoinResult{Outcome: JoinFound, History: history}, nil
}

// LeaveConversation removes connID from the room of conversationID.
func (e *Engine) LeaveConversation(connID string, conversationID store.ConversationID) {
	e.fabric.Leave(connID, conversationID.RoomKey())
}

// PrivateChat is the result of FindOrCreatePrivate. Conversation is set only
// when this call created it.
type PrivateChat struct {
	ID           store.ConversationID
	Created      bool
	Conversation *store.Conversation
}

// FindOrCreatePrivate returns the private conversation between a and b,
// creating it if none exists. A lost creation race is resolved by returning
// the conversation that won it.
func (e *Engine) FindOrCreatePrivate(ctx context.Context, a, b store.UserID) (PrivateChat, error) {
	if a == b {
		return PrivateChat{}, fmt.Errorf("private chat with oneself: %w", store.ErrInvalidConversation)
	}
	low, high := store.CanonicalPair(a, b)

	id, found, err := e.gateway.FindExistingPrivateChat(ctx, low, high)
	if err != nil {
		return PrivateChat{}, fmt.Errorf("looking up private chat %d/%d: %w", low, high, err)
	}
	if found {
		return PrivateChat{ID: id}, nil
	}

	conv, err := e.gateway.CreatePrivateConversation(ctx, low, high)
	if errors.Is(err, store.ErrDuplicatePrivateChat) {
		e.log.Info("Private chat created concurrently, reusing it", "user_a", low, "user_b", high)
		id, found, err = e.gateway.FindExistingPrivateChat(ctx, low, high)
		if err != nil {
			return PrivateChat{}, fmt.Errorf("looking up private chat %d/%d after conflict: %w", low, high, err)
		}
		if !found {
			return PrivateChat{}, fmt.Errorf("private chat %d/%d vanished after conflict: %w", low, high, store.ErrNotFound)
		}
		return PrivateChat{ID: id}, nil
	}
	if err != nil {
		return PrivateChat{}, fmt.Errorf("creating private chat %d/%d: %w", low, high, err)
	}

	e.notifyCreated(conv)
	return PrivateChat{ID: conv.ID, Created: true, Conversation: &conv}, nil
}

// CreateGroup always creates a new group conversation; membership never
// identifies an existing group. The creator is always a participant.
func (e *Engine) CreateGroup(ctx context.Context, creatorID store.UserID, name string, participantIDs []store.UserID) (store.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Conversation{}, fmt.Errorf("group name is empty: %w", store.ErrInvalidConversation)
	}

	members := lo.Uniq(append([]store.UserID{creatorID}, participantIDs...))

	conv, err := e.gateway.CreateGroupConversation(ctx, name, creatorID, members)
	if err != nil {
		return store.Conversation{}, fmt.Errorf("creating group %q: %w", name, err)
	}

	e.notifyCreated(conv)
	return conv, nil
}

// notifyCreated pushes conversationCreated to every participant that is
// currently connected. Offline participants are skipped.
func (e *Engine) notifyCreated(conv store.Conversation) {
	for _, userID := range conv.Participants {
		connID, ok := e.registry.ConnectionOf(userID)
		if !ok {
			continue
		}
		e.fabric.EmitToConnection(connID, EventConversationCreated, conv)
	}
}
