package chat

import (
	"context"

	"github.com/Tyrowin/chatrouter/internal/presence"
	"github.com/Tyrowin/chatrouter/internal/store"
)

// RegisterResult reports the binding and the conversations synced on
// registration.
type RegisterResult struct {
	Bind          presence.BindResult
	Conversations []store.ConversationSummary
}

// Register binds connID to userID and syncs the user's conversations. A
// connection previously bound to another user leaves that user's rooms first.
// The binding survives a sync failure.
func (e *Engine) Register(ctx context.Context, connID string, userID store.UserID) (RegisterResult, error) {
	bind := e.registry.Bind(connID, userID)
	log := e.log.With("connection_id", connID, "user_id", userID)
	if bind.Outcome == presence.Replaced {
		log.Warn("User re-registered, previous connection no longer bound", "previous_connection_id", bind.PreviousConnection)
	} else {
		log.Info("User registered")
	}
	if bind.PreviousUser != 0 {
		log.Info("Connection switched user, leaving previous rooms", "previous_user_id", bind.PreviousUser)
		for _, room := range e.fabric.RoomsOf(connID) {
			e.fabric.Leave(connID, room)
		}
	}

	conversations, err := e.RegisterAndSync(ctx, connID, userID)
	if err != nil {
		return RegisterResult{Bind: bind}, err
	}
	log.Debug("Conversations synced", "count", len(conversations))
	return RegisterResult{Bind: bind, Conversations: conversations}, nil
}

// Disconnect tells every room connID was in that its user stopped typing,
// then unbinds it. It returns false when no user was bound.
func (e *Engine) Disconnect(connID string) (store.UserID, bool) {
	userID, ok := e.registry.UserOf(connID)
	if !ok {
		return 0, false
	}

	for _, room := range e.fabric.RoomsOf(connID) {
		conversationID, ok := store.ParseRoomKey(room)
		if !ok {
			continue
		}
		_, _ = e.route(context.Background(), Ephemeral{
			Origin: connID,
			Signal: TypingSignal{ConversationID: conversationID, UserID: userID},
		})
	}

	e.registry.Unbind(connID)
	e.log.Info("User unregistered", "connection_id", connID, "user_id", userID)
	return userID, true
}

// StartTyping relays a typing signal to the room, excluding connID.
// Unregistered connections are ignored.
func (e *Engine) StartTyping(connID string, req TypingRequest) {
	e.typing(connID, req, true)
}

// StopTyping is the counterpart of StartTyping.
func (e *Engine) StopTyping(connID string, req TypingRequest) {
	e.typing(connID, req, false)
}

func (e *Engine) typing(connID string, req TypingRequest, typing bool) {
	userID, ok := e.registry.UserOf(connID)
	if !ok {
		return
	}
	_, _ = e.route(context.Background(), Ephemeral{
		Origin: connID,
		Signal: TypingSignal{
			ConversationID: req.ConvID,
			UserID:         userID,
			UserName:       req.UserName,
			Typing:         typing,
		},
	})
}
