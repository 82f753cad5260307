package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tyrowin/chatrouter/internal/store"
	"github.com/Tyrowin/chatrouter/internal/wire"
)

// Handle routes one inbound frame from connID. Failures are logged, acked or
// dropped; they never propagate to the transport. A panic in a handler is
// recovered so other connections are unaffected.
func (e *Engine) Handle(ctx context.Context, connID string, env wire.Envelope) {
	log := e.log.With("connection_id", connID, "event", env.Event)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic in event handler", "panic", r)
			if env.NeedsAck() {
				e.fabric.Acknowledge(connID, *env.ID, failure(CodePersistFailed, "Internal error"))
			}
		}
	}()

	switch env.Event {
	case EventRegister:
		var req RegisterRequest
		if !e.decode(connID, env, &req) {
			return
		}
		if _, err := e.Register(ctx, connID, req.UserID); err != nil {
			log.Error("Error fetching conversations", "user_id", req.UserID, "error", err)
		}

	case EventJoin:
		var id int64
		if !e.decodeConversationID(connID, env, &id) {
			return
		}
		result, err := e.JoinConversation(ctx, connID, store.ConversationID(id))
		if err != nil {
			log.Error("Error joining conversation", "conversation_id", id, "error", err)
			return
		}
		if result.Outcome != JoinFound {
			log.Debug("Join ignored", "conversation_id", id, "outcome", result.Outcome.String())
		}

	case EventLeave:
		var id int64
		if !e.decodeConversationID(connID, env, &id) {
			return
		}
		e.LeaveConversation(connID, store.ConversationID(id))

	case EventSend:
		var req SendRequest
		if !e.decode(connID, env, &req) {
			return
		}
		e.reply(connID, env, e.Send(ctx, connID, req))

	case EventStartPrivateChat:
		var req StartPrivateChatRequest
		if !e.decode(connID, env, &req) {
			return
		}
		e.reply(connID, env, e.startPrivateChat(ctx, connID, req))

	case EventCreateGroupChat:
		var req CreateGroupChatRequest
		if !e.decode(connID, env, &req) {
			return
		}
		e.reply(connID, env, e.createGroupChat(ctx, connID, req))

	case EventStartTyping, EventStopTyping:
		var req TypingRequest
		if !e.decode(connID, env, &req) {
			return
		}
		if env.Event == EventStartTyping {
			e.StartTyping(connID, req)
		} else {
			e.StopTyping(connID, req)
		}

	default:
		log.Warn("Unknown event")
		e.fabric.EmitToConnection(connID, EventError, ErrorNotice{
			Event:   env.Event,
			Message: fmt.Sprintf("Unknown event: %s", env.Event),
		})
	}
}

func (e *Engine) startPrivateChat(ctx context.Context, connID string, req StartPrivateChatRequest) Ack {
	userID, ok := e.registry.UserOf(connID)
	if !ok {
		return failure(CodeNotRegistered, ErrTextNotRegistered)
	}
	chat, err := e.FindOrCreatePrivate(ctx, userID, req.OtherUserID)
	if err != nil {
		e.log.Error("Error starting private chat", "connection_id", connID, "user_id", userID, "other_user_id", req.OtherUserID, "error", err)
		return failure(CodePersistFailed, ErrTextStartChatFailed)
	}
	id := chat.ID
	return Ack{Success: true, ConversationID: &id}
}

func (e *Engine) createGroupChat(ctx context.Context, connID string, req CreateGroupChatRequest) Ack {
	creatorID, ok := e.registry.UserOf(connID)
	if !ok {
		return failure(CodeNotRegistered, ErrTextNotRegistered)
	}
	conv, err := e.CreateGroup(ctx, creatorID, req.Name, req.ParticipantIDs)
	if err != nil {
		e.log.Error("Error creating group chat", "connection_id", connID, "user_id", creatorID, "error", err)
		return failure(CodePersistFailed, ErrTextCreateGroupFailed)
	}
	return Ack{Success: true, Conversation: &conv}
}

// decode unmarshals and validates the payload of env into dst. Invalid
// payloads are acked as failures when an ack is expected, otherwise dropped.
func (e *Engine) decode(connID string, env wire.Envelope, dst any) bool {
	err := json.Unmarshal(env.Data, dst)
	if err == nil {
		err = e.validate.Struct(dst)
	}
	if err != nil {
		e.log.Warn("Invalid payload", "connection_id", connID, "event", env.Event, "error", err)
		e.reply(connID, env, failure(CodeInvalidPayload, ErrTextInvalidPayload))
		return false
	}
	return true
}

// decodeConversationID accepts the bare conversation id used by join and
// leave, either as a number or as a numeric string.
func (e *Engine) decodeConversationID(connID string, env wire.Envelope, dst *int64) bool {
	var id store.ConversationID
	if err := json.Unmarshal(env.Data, &id); err == nil && id > 0 {
		*dst = int64(id)
		return true
	}
	e.log.Warn("Invalid conversation id", "connection_id", connID, "event", env.Event, "data", string(env.Data))
	return false
}

func (e *Engine) reply(connID string, env wire.Envelope, ack Ack) {
	if !env.NeedsAck() {
		return
	}
	e.fabric.Acknowledge(connID, *env.ID, ack)
}
