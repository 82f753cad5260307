package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tyrowin/chatrouter/internal/store"
)

// Fanout is what the router delivers to a conversation room: either a
// message that must be persisted first, or an ephemeral typing signal that
// never touches the store.
type Fanout interface {
	conversation() store.ConversationID
}

// Persisted is a message draft; routing it persists it before broadcast.
type Persisted struct {
	Draft store.NewMessage
}

// Ephemeral is a typing signal, never echoed to its origin connection.
type Ephemeral struct {
	Origin string
	Signal TypingSignal
}

// TypingSignal reports that a user started or stopped typing.
type TypingSignal struct {
	ConversationID store.ConversationID
	UserID         store.UserID
	UserName       string
	Typing         bool
}

func (p Persisted) conversation() store.ConversationID { return p.Draft.ConversationID }
func (e Ephemeral) conversation() store.ConversationID { return e.Signal.ConversationID }

// route delivers f to its conversation room. It returns the stored message
// for Persisted fanouts.
func (e *Engine) route(ctx context.Context, f Fanout) (*store.Message, error) {
	room := f.conversation().RoomKey()

	switch f := f.(type) {
	case Persisted:
		msg, err := e.gateway.CreateMessage(ctx, f.Draft)
		if err != nil {
			return nil, fmt.Errorf("persisting message in %d: %w", f.Draft.ConversationID, err)
		}
		e.fabric.EmitToRoom(room, EventMessage, msg)
		return &msg, nil

	case Ephemeral:
		notice := TypingNotice{UserID: f.Signal.UserID, ConvID: f.Signal.ConversationID}
		event := EventUserStoppedTyping
		if f.Signal.Typing {
			notice.UserName = f.Signal.UserName
			event = EventUserTyping
		}
		e.fabric.EmitToRoomExcept(f.Origin, room, event, notice)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown fanout %T", f)
	}
}

// Send authorizes, persists and broadcasts a message from connID. The
// message reaches the sender through the room broadcast, not the ack.
//
// Broadcast order across concurrent senders may differ from persistence
// order; only store-assigned message ids reflect the latter.
func (e *Engine) Send(ctx context.Context, connID string, req SendRequest) Ack {
	userID, ok := e.registry.UserOf(connID)
	if !ok {
		return failure(CodeNotRegistered, ErrTextNotRegistered)
	}
	log := e.log.With("connection_id", connID, "user_id", userID, "conversation_id", req.ConvID)

	member, err := e.gateway.IsUserInConversation(ctx, userID, req.ConvID)
	if err != nil {
		log.Error("Membership check failed", "error", err)
		return failure(CodePersistFailed, ErrTextSendFailed)
	}
	if !member {
		log.Info("Rejected message from non-participant")
		return failure(CodeNotMember, ErrTextNotMember)
	}

	msg, err := e.route(ctx, Persisted{Draft: store.NewMessage{
		ConversationID: req.ConvID,
		SenderID:       userID,
		Content:        req.Content,
	}})
	if errors.Is(err, store.ErrNotAMember) {
		log.Info("Sender left the conversation before persisting")
		return failure(CodeNotMember, ErrTextNotMember)
	}
	if err != nil {
		log.Error("Sending message failed", "error", err)
		return failure(CodePersistFailed, ErrTextSendFailed)
	}

	log.Debug("Message routed", "message_id", msg.ID)
	return Ack{Success: true}
}
