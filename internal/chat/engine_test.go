package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/chatrouter/internal/presence"
	"github.com/Tyrowin/chatrouter/internal/rooms"
	"github.com/Tyrowin/chatrouter/internal/store"
	"github.com/Tyrowin/chatrouter/internal/store/mocks"
	"github.com/Tyrowin/chatrouter/internal/wire"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// endpoint records every frame enqueued for one connection.
type endpoint struct {
	mu     sync.Mutex
	frames []wire.Envelope
}

func (e *endpoint) Enqueue(frame []byte) bool {
	env, err := wire.Decode(frame)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, env)
	return true
}

func (e *endpoint) byEvent(name string) []wire.Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo.Filter(e.frames, func(env wire.Envelope, _ int) bool { return env.Event == name })
}

type harness struct {
	engine    *Engine
	fabric    *rooms.Fabric
	registry  *presence.Registry
	gateway   *mocks.MockGateway
	endpoints map[string]*endpoint
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fabric := rooms.NewFabric(log)
	registry := presence.NewRegistry()
	gateway := mocks.NewMockGateway(ctrl)
	return &harness{
		engine:    NewEngine(registry, fabric, gateway, log),
		fabric:    fabric,
		registry:  registry,
		gateway:   gateway,
		endpoints: make(map[string]*endpoint),
	}
}

func (h *harness) connect(connID string) *endpoint {
	ep := &endpoint{}
	h.endpoints[connID] = ep
	h.fabric.Attach(connID, ep)
	return ep
}

// register binds connID to userID with the given conversations.
func (h *harness) register(t *testing.T, connID string, userID store.UserID, conversations ...store.ConversationID) *endpoint {
	t.Helper()
	ep := h.connect(connID)
	summaries := lo.Map(conversations, func(id store.ConversationID, _ int) store.ConversationSummary {
		return store.ConversationSummary{ID: id, Participants: []store.UserID{userID}}
	})
	h.gateway.EXPECT().GetUserConversations(gomock.Any(), userID).Return(summaries, nil)
	_, err := h.engine.Register(context.Background(), connID, userID)
	require.NoError(t, err)
	return ep
}

func decodeData[T any](t *testing.T, env wire.Envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestRegister_JoinsExactlyTheUserConversations(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ep := h.connect("c1")
	conversations := []store.ConversationSummary{
		{ID: 12, Participants: []store.UserID{7, 8}},
		{ID: 45, IsGroupChat: true, Name: lo.ToPtr("Team"), Participants: []store.UserID{7, 8, 9}},
	}
	h.gateway.EXPECT().GetUserConversations(gomock.Any(), store.UserID(7)).Return(conversations, nil)

	result, err := h.engine.Register(context.Background(), "c1", 7)

	req.NoError(err)
	req.Equal(presence.Bound, result.Bind.Outcome)
	req.Equal(conversations, result.Conversations)
	req.Equal([]string{"12", "45"}, h.fabric.RoomsOf("c1"))

	pushed := ep.byEvent(EventConversations)
	req.Len(pushed, 1)
	req.Len(decodeData[[]store.ConversationSummary](t, pushed[0]), 2)
}

func TestRegister_StoreFailureKeepsBindingWithoutRooms(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ep := h.connect("c1")
	h.gateway.EXPECT().GetUserConversations(gomock.Any(), store.UserID(7)).Return(nil, store.ErrStoreUnavailable)

	_, err := h.engine.Register(context.Background(), "c1", 7)

	req.ErrorIs(err, store.ErrStoreUnavailable)
	userID, ok := h.registry.UserOf("c1")
	req.True(ok)
	req.Equal(store.UserID(7), userID)
	req.Empty(h.fabric.RoomsOf("c1"))
	req.Empty(ep.byEvent(EventConversations))
}

func TestRegister_SwitchingUserLeavesPreviousRooms(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.register(t, "c1", 1, 10)
	h.gateway.EXPECT().GetUserConversations(gomock.Any(), store.UserID(2)).
		Return([]store.ConversationSummary{{ID: 20, Participants: []store.UserID{2}}}, nil)

	result, err := h.engine.Register(context.Background(), "c1", 2)

	req.NoError(err)
	req.Equal(store.UserID(1), result.Bind.PreviousUser)
	req.Equal([]string{"20"}, h.fabric.RoomsOf("c1"))
	req.Zero(h.fabric.EmitToRoom("10", EventMessage, store.Message{ConversationID: 10}))
}

func TestRegister_SwitchingUserWithFailedSyncJoinsNoRoom(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.register(t, "c1", 1, 10)
	h.gateway.EXPECT().GetUserConversations(gomock.Any(), store.UserID(2)).Return(nil, store.ErrStoreUnavailable)

	_, err := h.engine.Register(context.Background(), "c1", 2)

	req.ErrorIs(err, store.ErrStoreUnavailable)
	req.Empty(h.fabric.RoomsOf("c1"))
}

func TestRegister_SameUserFromSecondConnectionReportsReplaced(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.register(t, "c1", 7)
	h.connect("c2")
	h.gateway.EXPECT().GetUserConversations(gomock.Any(), store.UserID(7)).Return(nil, nil)

	result, err := h.engine.Register(context.Background(), "c2", 7)

	req.NoError(err)
	req.Equal(presence.Replaced, result.Bind.Outcome)
	req.Equal("c1", result.Bind.PreviousConnection)
	req.NotNil(result.Conversations)
}

func TestJoinConversation_PushesHistory(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ep := h.register(t, "c1", 7)
	history := []store.Message{
		{ID: 1, ConversationID: 12, SenderID: 8, Content: "first"},
		{ID: 2, ConversationID: 12, SenderID: 7, Content: "second"},
	}
	h.gateway.EXPECT().GetConversationByID(gomock.Any(), store.ConversationID(12)).Return(store.Conversation{ID: 12}, nil)
	h.gateway.EXPECT().IsUserInConversation(gomock.Any(), store.UserID(7), store.ConversationID(12)).Return(true, nil)
	h.gateway.EXPECT().GetConversationMessages(gomock.Any(), store.ConversationID(12), DefaultHistoryLimit).Return(history, nil)

	result, err := h.engine.JoinConversation(context.Background(), "c1", 12)

	req.NoError(err)
	req.Equal(JoinFound, result.Outcome)
	req.Equal(history, result.History)
	req.Contains(h.fabric.RoomsOf("c1"), "12")

	pushed := ep.byEvent(EventMessageHistory)
	req.Len(pushed, 1)
	got := decodeData[[]store.Message](t, pushed[0])
	req.Equal([]string{"first", "second"}, lo.Map(got, func(m store.Message, _ int) string { return m.Content }))
}

func TestJoinConversation_UnknownConversationIsSilent(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ep := h.register(t, "c1", 7)
	h.gateway.EXPECT().GetConversationByID(gomock.Any(), store.ConversationID(999)).Return(store.Conversation{}, store.ErrNotFound)

	result, err := h.engine.JoinConversation(context.Background(), "c1", 999)

	req.NoError(err)
	req.Equal(JoinNotFound, result.Outcome)
	req.Empty(ep.byEvent(EventMessageHistory))
	req.Empty(h.fabric.RoomsOf("c1"))
}

func TestJoinConversation_NonParticipantIsNotJoined(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ep := h.register(t, "c1", 7)
	h.gateway.EXPECT().GetConversationByID(gomock.Any(), store.ConversationID(12)).Return(store.Conversation{ID: 12}, nil)
	h.gateway.EXPECT().IsUserInConversation(gomock.Any(), store.UserID(7), store.ConversationID(12)).Return(false, nil)

	result, err := h.engine.JoinConversation(context.Background(), "c1", 12)

	req.NoError(err)
	req.Equal(JoinNotMember, result.Outcome)
	req.Empty(ep.byEvent(EventMessageHistory))
	req.Empty(h.fabric.RoomsOf("c1"))
}

func TestJoinConversation_Unregistered(t *testing.T) {
	h := newHarness(t)
	h.connect("c1")

	result, err := h.engine.JoinConversation(context.Background(), "c1", 12)

	require.NoError(t, err)
	require.Equal(t, JoinNotRegistered, result.Outcome)
}

func TestLeaveConversation(t *testing.T) {
	h := newHarness(t)
	h.register(t, "c1", 7, 12, 45)

	h.engine.LeaveConversation("c1", 12)

	require.Equal(t, []string{"45"}, h.fabric.RoomsOf("c1"))
}

func TestSend_BroadcastsToRoomIncludingSender(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	sender := h.register(t, "c1", 7, 12)
	peer := h.register(t, "c2", 8, 12)
	outsider := h.register(t, "c3", 9)

	stored := store.Message{
		ID: 101, ConversationID: 12, SenderID: 7, SenderName: "Ada",
		Content: "hello", CreatedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	h.gateway.EXPECT().IsUserInConversation(gomock.Any(), store.UserID(7), store.ConversationID(12)).Return(true, nil)
	h.gateway.EXPECT().
		CreateMessage(gomock.Any(), store.NewMessage{ConversationID: 12, SenderID: 7, Content: "hello"}).
		Return(stored, nil)

	ack := h.engine.Send(context.Background(), "c1", SendRequest{ConvID: 12, Content: "hello"})

	req.Equal(Ack{Success: true}, ack)
	for _, ep := range []*endpoint{sender, peer} {
		got := ep.byEvent(EventMessage)
		req.Len(got, 1)
		msg := decodeData[store.Message](t, got[0])
		req.Equal(stored.ID, msg.ID)
		req.Equal(stored.Content, msg.Content)
		req.Equal(stored.SenderID, msg.SenderID)
		req.True(stored.CreatedAt.Equal(msg.CreatedAt))
	}
	req.Empty(outsider.byEvent(EventMessage))
}

func TestSend_NonParticipantNeverPersistsOrBroadcasts(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	sender := h.register(t, "c1", 7, 12)
	h.gateway.EXPECT().IsUserInConversation(gomock.Any(), store.UserID(7), store.ConversationID(12)).Return(false, nil)
	h.gateway.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).Times(0)

	ack := h.engine.Send(context.Background(), "c1", SendRequest{ConvID: 12, Content: "hello"})

	req.False(ack.Success)
	req.Equal("Not a member of this conversation", ack.Error)
	req.Equal(CodeNotMember, ack.Code)
	req.Empty(sender.byEvent(EventMessage))
}

func TestSend_Unregistered(t *testing.T) {
	h := newHarness(t)
	h.connect("c1")

	ack := h.engine.Send(context.Background(), "c1", SendRequest{ConvID: 12, Content: "hello"})

	require.Equal(t, failure(CodeNotRegistered, "User not registered"), ack)
}

func TestSend_PersistFailure(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	sender := h.register(t, "c1", 7, 12)
	h.gateway.EXPECT().IsUserInConversation(gomock.Any(), store.UserID(7), store.ConversationID(12)).Return(true, nil)
	h.gateway.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).Return(store.Message{}, store.ErrStoreUnavailable)

	ack := h.engine.Send(context.Background(), "c1", SendRequest{ConvID: 12, Content: "hello"})

	req.False(ack.Success)
	req.Equal(CodePersistFailed, ack.Code)
	req.Equal("Failed to send message", ack.Error)
	req.Empty(sender.byEvent(EventMessage))
}

func TestFindOrCreatePrivate_ReturnsSameConversationBothWays(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	created := store.Conversation{ID: 30, Participants: []store.UserID{3, 5}, Messages: []store.Message{}}

	gomock.InOrder(
		h.gateway.EXPECT().FindExistingPrivateChat(gomock.Any(), store.UserID(3), store.UserID(5)).Return(store.ConversationID(0), false, nil),
		h.gateway.EXPECT().CreatePrivateConversation(gomock.Any(), store.UserID(3), store.UserID(5)).Return(created, nil).Times(1),
		h.gateway.EXPECT().FindExistingPrivateChat(gomock.Any(), store.UserID(3), store.UserID(5)).Return(store.ConversationID(30), true, nil),
	)

	first, err := h.engine.FindOrCreatePrivate(context.Background(), 5, 3)
	req.NoError(err)
	req.True(first.Created)

	second, err := h.engine.FindOrCreatePrivate(context.Background(), 3, 5)
	req.NoError(err)
	req.False(second.Created)
	req.Nil(second.Conversation)
	req.Equal(first.ID, second.ID)
}

func TestFindOrCreatePrivate_LostRaceReusesWinner(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	peer := h.register(t, "c2", 5)

	gomock.InOrder(
		h.gateway.EXPECT().FindExistingPrivateChat(gomock.Any(), store.UserID(3), store.UserID(5)).Return(store.ConversationID(0), false, nil),
		h.gateway.EXPECT().CreatePrivateConversation(gomock.Any(), store.UserID(3), store.UserID(5)).Return(store.Conversation{}, store.ErrDuplicatePrivateChat),
		h.gateway.EXPECT().FindExistingPrivateChat(gomock.Any(), store.UserID(3), store.UserID(5)).Return(store.ConversationID(31), true, nil),
	)

	chat, err := h.engine.FindOrCreatePrivate(context.Background(), 3, 5)

	req.NoError(err)
	req.Equal(store.ConversationID(31), chat.ID)
	req.False(chat.Created)
	req.Empty(peer.byEvent(EventConversationCreated))
}

func TestFindOrCreatePrivate_RejectsSelf(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.FindOrCreatePrivate(context.Background(), 3, 3)

	require.ErrorIs(t, err, store.ErrInvalidConversation)
}

func TestStartPrivateChat_NotifiesBothConnectedParties(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	me := h.register(t, "c1", 3)
	other := h.register(t, "c2", 5)
	created := store.Conversation{ID: 30, Participants: []store.UserID{3, 5}, Messages: []store.Message{}}
	h.gateway.EXPECT().FindExistingPrivateChat(gomock.Any(), store.UserID(3), store.UserID(5)).Return(store.ConversationID(0), false, nil)
	h.gateway.EXPECT().CreatePrivateConversation(gomock.Any(), store.UserID(3), store.UserID(5)).Return(created, nil)

	h.engine.Handle(context.Background(), "c1", wire.Envelope{
		Event: EventStartPrivateChat, ID: lo.ToPtr(int64(4)), Data: json.RawMessage(`{"otherUserId":5}`),
	})

	acks := me.byEvent(wire.EventAck)
	req.Len(acks, 1)
	ack := decodeData[Ack](t, acks[0])
	req.True(ack.Success)
	req.Equal(store.ConversationID(30), *ack.ConversationID)

	for _, ep := range []*endpoint{me, other} {
		notices := ep.byEvent(EventConversationCreated)
		req.Len(notices, 1)
		req.Equal(created.ID, decodeData[store.Conversation](t, notices[0]).ID)
	}
}

func TestCreateGroup_DeduplicatesCreatorAndNotifiesAll(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	eps := []*endpoint{h.register(t, "c1", 1), h.register(t, "c2", 2), h.register(t, "c3", 3)}
	created := store.Conversation{
		ID: 50, IsGroupChat: true, Name: lo.ToPtr("Team"),
		Participants: []store.UserID{1, 2, 3}, Messages: []store.Message{},
	}
	h.gateway.EXPECT().
		CreateGroupConversation(gomock.Any(), "Team", store.UserID(1), []store.UserID{1, 2, 3}).
		Return(created, nil).Times(1)

	h.engine.Handle(context.Background(), "c1", wire.Envelope{
		Event: EventCreateGroupChat, ID: lo.ToPtr(int64(1)),
		Data: json.RawMessage(`{"name":"Team","participantIds":[2,3,1]}`),
	})

	ack := decodeData[Ack](t, eps[0].byEvent(wire.EventAck)[0])
	req.True(ack.Success)
	req.Equal("Team", *ack.Conversation.Name)
	req.Equal([]store.UserID{1, 2, 3}, ack.Conversation.Participants)

	for _, ep := range eps {
		notices := ep.byEvent(EventConversationCreated)
		req.Len(notices, 1)
		req.Equal(store.ConversationID(50), decodeData[store.Conversation](t, notices[0]).ID)
	}
}

func TestCreateGroup_RequiresName(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ep := h.register(t, "c1", 1)
	h.gateway.EXPECT().CreateGroupConversation(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	h.engine.Handle(context.Background(), "c1", wire.Envelope{
		Event: EventCreateGroupChat, ID: lo.ToPtr(int64(1)), Data: json.RawMessage(`{"name":"","participantIds":[2]}`),
	})
	_, err := h.engine.CreateGroup(context.Background(), 1, "   ", nil)

	req.ErrorIs(err, store.ErrInvalidConversation)
	ack := decodeData[Ack](t, ep.byEvent(wire.EventAck)[0])
	req.False(ack.Success)
	req.Equal(CodeInvalidPayload, ack.Code)
}

func TestCreateGroup_OfflineParticipantsAreSkipped(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	creator := h.register(t, "c1", 1)
	created := store.Conversation{ID: 51, IsGroupChat: true, Name: lo.ToPtr("Ops"), Participants: []store.UserID{1, 2}}
	h.gateway.EXPECT().CreateGroupConversation(gomock.Any(), "Ops", store.UserID(1), []store.UserID{1, 2}).Return(created, nil)

	conv, err := h.engine.CreateGroup(context.Background(), 1, "Ops", []store.UserID{2})

	req.NoError(err)
	req.Equal(created, conv)
	req.Len(creator.byEvent(EventConversationCreated), 1)
}

func TestTyping_NeverEchoesToOrigin(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	typist := h.register(t, "c1", 7, 12)
	peer := h.register(t, "c2", 8, 12)

	h.engine.StartTyping("c1", TypingRequest{ConvID: 12, UserName: "Ada"})
	h.engine.StopTyping("c1", TypingRequest{ConvID: 12})

	req.Empty(typist.byEvent(EventUserTyping))
	req.Empty(typist.byEvent(EventUserStoppedTyping))

	started := peer.byEvent(EventUserTyping)
	req.Len(started, 1)
	req.Equal(TypingNotice{UserID: 7, UserName: "Ada", ConvID: 12}, decodeData[TypingNotice](t, started[0]))
	stopped := peer.byEvent(EventUserStoppedTyping)
	req.Len(stopped, 1)
	req.Equal(TypingNotice{UserID: 7, ConvID: 12}, decodeData[TypingNotice](t, stopped[0]))
}

func TestHandle_TypingAcceptsStringConversationID(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.register(t, "c1", 7, 12)
	peer := h.register(t, "c2", 8, 12)

	h.engine.Handle(context.Background(), "c1", wire.Envelope{Event: EventStartTyping, Data: json.RawMessage(`{"convId":"12","userName":"Ada"}`)})
	h.engine.Handle(context.Background(), "c1", wire.Envelope{Event: EventStopTyping, Data: json.RawMessage(`{"convId":12}`)})

	req.Len(peer.byEvent(EventUserTyping), 1)
	stopped := peer.byEvent(EventUserStoppedTyping)
	req.Len(stopped, 1)
	req.Equal(TypingNotice{UserID: 7, ConvID: 12}, decodeData[TypingNotice](t, stopped[0]))
}

func TestTyping_UnregisteredIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.connect("c1")
	peer := h.register(t, "c2", 8, 12)
	h.fabric.Join("c1", "12")

	h.engine.StartTyping("c1", TypingRequest{ConvID: 12, UserName: "Ghost"})

	require.Empty(t, peer.byEvent(EventUserTyping))
}

func TestDisconnect_StopsTypingInEveryRoomAndUnbinds(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.register(t, "c1", 7, 12, 45)
	peer := h.register(t, "c2", 8, 12, 45)

	userID, ok := h.engine.Disconnect("c1")

	req.True(ok)
	req.Equal(store.UserID(7), userID)

	stopped := lo.Map(peer.byEvent(EventUserStoppedTyping), func(env wire.Envelope, _ int) TypingNotice {
		return decodeData[TypingNotice](t, env)
	})
	req.ElementsMatch([]TypingNotice{{UserID: 7, ConvID: 12}, {UserID: 7, ConvID: 45}}, stopped)
	req.JSONEq(`{"userId":7,"convId":12}`, string(peer.byEvent(EventUserStoppedTyping)[0].Data))

	_, ok = h.registry.UserOf("c1")
	req.False(ok)
	_, ok = h.registry.ConnectionOf(7)
	req.False(ok)
}

func TestDisconnect_UnboundIsNoop(t *testing.T) {
	h := newHarness(t)
	h.connect("c1")

	_, ok := h.engine.Disconnect("c1")

	require.False(t, ok)
}

func TestHandle_InvalidAndUnknownFrames(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ep := h.connect("c1")

	h.engine.Handle(context.Background(), "c1", wire.Envelope{Event: EventSend, ID: lo.ToPtr(int64(2)), Data: json.RawMessage(`{"convId":"x"}`)})
	h.engine.Handle(context.Background(), "c1", wire.Envelope{Event: "shout"})
	h.engine.Handle(context.Background(), "c1", wire.Envelope{Event: EventJoin, Data: json.RawMessage(`"abc"`)})

	ack := decodeData[Ack](t, ep.byEvent(wire.EventAck)[0])
	req.Equal(CodeInvalidPayload, ack.Code)
	req.Len(ep.byEvent(EventError), 1)
}

func TestHandle_RegisterThenSendOverFrames(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ep := h.connect("c1")
	h.gateway.EXPECT().GetUserConversations(gomock.Any(), store.UserID(7)).
		Return([]store.ConversationSummary{{ID: 12, Participants: []store.UserID{7, 8}}}, nil)
	h.gateway.EXPECT().IsUserInConversation(gomock.Any(), store.UserID(7), store.ConversationID(12)).Return(true, nil)
	h.gateway.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m store.NewMessage) (store.Message, error) {
			return store.Message{ID: 1, ConversationID: m.ConversationID, SenderID: m.SenderID, Content: m.Content}, nil
		})

	h.engine.Handle(context.Background(), "c1", wire.Envelope{Event: EventRegister, Data: json.RawMessage(`{"userId":7}`)})
	h.engine.Handle(context.Background(), "c1", wire.Envelope{Event: EventSend, ID: lo.ToPtr(int64(1)), Data: json.RawMessage(`{"convId":12,"content":"yo"}`)})

	req.Len(ep.byEvent(EventConversations), 1)
	req.Len(ep.byEvent(EventMessage), 1)
	req.True(decodeData[Ack](t, ep.byEvent(wire.EventAck)[0]).Success)
}

func TestHandle_RecoversFromHandlerPanic(t *testing.T) {
	h := newHarness(t)
	ep := h.register(t, "c1", 7, 12)
	h.gateway.EXPECT().IsUserInConversation(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, store.UserID, store.ConversationID) (bool, error) {
			panic(errors.New("driver exploded"))
		})

	require.NotPanics(t, func() {
		h.engine.Handle(context.Background(), "c1", wire.Envelope{
			Event: EventSend, ID: lo.ToPtr(int64(3)), Data: json.RawMessage(`{"convId":12,"content":"x"}`),
		})
	})
	require.False(t, decodeData[Ack](t, ep.byEvent(wire.EventAck)[0]).Success)
}

func TestWithHistoryLimit(t *testing.T) {
	h := newHarness(t)
	engine := NewEngine(h.registry, h.fabric, h.gateway, slog.New(slog.NewTextHandler(io.Discard, nil)), WithHistoryLimit(10), WithHistoryLimit(-1))
	require.Equal(t, 10, engine.historyLimit)
}
