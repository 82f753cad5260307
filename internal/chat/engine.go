// Package chat is the conversation routing engine. It binds connections to
// users, keeps each connection in the rooms of its conversations, provisions
// private and group conversations, and routes messages and typing signals.
//
// Handlers for different connections may run concurrently; the registry and
// the fabric are safe for that. Find-or-create of private conversations is
// not made atomic here: the Gateway is required to reject a second private
// conversation for the same pair.
package chat

import (
	"log/slog"

	"github.com/Tyrowin/chatrouter/internal/presence"
	"github.com/Tyrowin/chatrouter/internal/store"
	"github.com/go-playground/validator/v10"
)

// Inbound event names.
const (
	EventRegister         = "register"
	EventJoin             = "join"
	EventLeave            = "leave"
	EventSend             = "send"
	EventStartPrivateChat = "startPrivateChat"
	EventCreateGroupChat  = "createGroupChat"
	EventStartTyping      = "startTyping"
	EventStopTyping       = "stopTyping"
)

// Outbound event names.
const (
	EventConversations       = "conversations"
	EventMessageHistory      = "messageHistory"
	EventMessage             = "message"
	EventConversationCreated = "conversationCreated"
	EventUserTyping          = "userTyping"
	EventUserStoppedTyping   = "userStoppedTyping"
	EventError               = "error"
)

// DefaultHistoryLimit is how many recent messages a join returns.
const DefaultHistoryLimit = 50

// Fabric is the multicast transport the engine fans out through.
type Fabric interface {
	Join(connID, room string)
	Leave(connID, room string)
	RoomsOf(connID string) []string
	EmitToRoom(room, event string, payload any) int
	EmitToRoomExcept(connID, room, event string, payload any) int
	EmitToConnection(connID, event string, payload any) bool
	Acknowledge(connID string, id int64, payload any) bool
}

// Engine owns the presence registry and routes every inbound event.
type Engine struct {
	registry     *presence.Registry
	fabric       Fabric
	gateway      store.Gateway
	log          *slog.Logger
	validate     *validator.Validate
	historyLimit int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithHistoryLimit overrides DefaultHistoryLimit. Non-positive values are
// ignored.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

func NewEngine(registry *presence.Registry, fabric Fabric, gateway store.Gateway, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry:     registry,
		fabric:       fabric,
		gateway:      gateway,
		log:          log,
		validate:     validator.New(),
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
