package badgerstore

import (
	"context"
	"sync"
	"testing"

	"github.com/Tyrowin/chatrouter/internal/store"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := Open(Options(""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func contents(messages []store.Message) []string {
	return lo.Map(messages, func(m store.Message, _ int) string { return m.Content })
}

func TestPrivateChatIsFoundInEitherOrder(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	ctx := context.Background()

	// Given no conversation between 3 and 5
	_, found, err := g.FindExistingPrivateChat(ctx, 3, 5)
	req.NoError(err)
	req.False(found)

	// When 5 creates it
	conv, err := g.CreatePrivateConversation(ctx, 5, 3)
	req.NoError(err)

	// Then it is found from both sides, with canonical participants
	req.Equal([]store.UserID{3, 5}, conv.Participants)
	req.False(conv.IsGroupChat)
	req.NotNil(conv.Messages)
	for _, pair := range [][2]store.UserID{{3, 5}, {5, 3}} {
		id, found, err := g.FindExistingPrivateChat(ctx, pair[0], pair[1])
		req.NoError(err)
		req.True(found)
		req.Equal(conv.ID, id)
	}
}

func TestSecondPrivateChatForAPairIsRejected(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	ctx := context.Background()

	_, err := g.CreatePrivateConversation(ctx, 3, 5)
	req.NoError(err)

	_, err = g.CreatePrivateConversation(ctx, 5, 3)
	req.ErrorIs(err, store.ErrDuplicatePrivateChat)

	_, err = g.CreatePrivateConversation(ctx, 4, 4)
	req.ErrorIs(err, store.ErrInvalidConversation)
}

func TestConcurrentPrivateCreationYieldsOneConversation(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []store.ConversationID
		errs    []error
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, err := g.CreatePrivateConversation(ctx, 1, 2)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			created = append(created, conv.ID)
		}()
	}
	wg.Wait()

	req.Len(created, 1)
	for _, err := range errs {
		req.ErrorIs(err, store.ErrDuplicatePrivateChat)
	}
	id, found, err := g.FindExistingPrivateChat(ctx, 2, 1)
	req.NoError(err)
	req.True(found)
	req.Equal(created[0], id)
}

func TestGroupIncludesCreatorOnce(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	ctx := context.Background()

	group, err := g.CreateGroupConversation(ctx, "Team", 1, []store.UserID{2, 3, 1})
	req.NoError(err)
	req.True(group.IsGroupChat)
	req.Equal("Team", *group.Name)
	req.Equal([]store.UserID{1, 2, 3}, group.Participants)

	again, err := g.CreateGroupConversation(ctx, "Team", 1, []store.UserID{2, 3})
	req.NoError(err)
	req.NotEqual(group.ID, again.ID)

	loaded, err := g.GetConversationByID(ctx, group.ID)
	req.NoError(err)
	req.Equal(group.Participants, loaded.Participants)
	req.True(group.CreatedAt.Equal(loaded.CreatedAt))
}

func TestMessagesAreReturnedOldestFirstAndLimited(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	ctx := context.Background()
	req.NoError(g.SaveUser(ctx, store.User{ID: 1, Name: "Ada", Avatar: lo.ToPtr("ada.png")}))
	group, err := g.CreateGroupConversation(ctx, "Team", 1, []store.UserID{2})
	req.NoError(err)

	var ids []store.MessageID
	for _, content := range []string{"one", "two", "three"} {
		msg, err := g.CreateMessage(ctx, store.NewMessage{ConversationID: group.ID, SenderID: 1, Content: content})
		req.NoError(err)
		req.Equal("Ada", msg.SenderName)
		req.Equal("ada.png", *msg.SenderAvatar)
		ids = append(ids, msg.ID)
	}
	req.IsIncreasing(ids)

	history, err := g.GetConversationMessages(ctx, group.ID, 2)
	req.NoError(err)
	req.Equal([]string{"two", "three"}, contents(history))

	all, err := g.GetConversationMessages(ctx, group.ID, 50)
	req.NoError(err)
	req.Equal([]string{"one", "two", "three"}, contents(all))

	empty, err := g.GetConversationMessages(ctx, 999, 50)
	req.NoError(err)
	req.NotNil(empty)
	req.Empty(empty)
}

func TestNonParticipantCannotCreateMessage(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	ctx := context.Background()
	group, err := g.CreateGroupConversation(ctx, "Team", 1, nil)
	req.NoError(err)

	member, err := g.IsUserInConversation(ctx, 9, group.ID)
	req.NoError(err)
	req.False(member)

	_, err = g.CreateMessage(ctx, store.NewMessage{ConversationID: group.ID, SenderID: 9, Content: "hi"})
	req.ErrorIs(err, store.ErrNotAMember)

	history, err := g.GetConversationMessages(ctx, group.ID, 50)
	req.NoError(err)
	req.Empty(history)
}

func TestUserConversationsSummaries(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	ctx := context.Background()
	req.NoError(g.SaveUser(ctx, store.User{ID: 5, Name: "Linus"}))

	private, err := g.CreatePrivateConversation(ctx, 3, 5)
	req.NoError(err)
	group, err := g.CreateGroupConversation(ctx, "Team", 3, []store.UserID{5, 7})
	req.NoError(err)
	_, err = g.CreateMessage(ctx, store.NewMessage{ConversationID: private.ID, SenderID: 5, Content: "ping"})
	req.NoError(err)

	summaries, err := g.GetUserConversations(ctx, 3)
	req.NoError(err)
	req.Len(summaries, 2)

	byID := lo.KeyBy(summaries, func(s store.ConversationSummary) store.ConversationID { return s.ID })
	req.Equal("Linus", *byID[private.ID].Name)
	req.Equal("ping", byID[private.ID].LatestMessage.Content)
	req.Equal([]store.UserID{3, 5}, byID[private.ID].Participants)
	req.Equal("Team", *byID[group.ID].Name)
	req.Nil(byID[group.ID].LatestMessage)
	req.Equal([]store.UserID{3, 5, 7}, byID[group.ID].Participants)

	none, err := g.GetUserConversations(ctx, 42)
	req.NoError(err)
	req.NotNil(none)
	req.Empty(none)
}

func TestUnknownConversationIsNotFound(t *testing.T) {
	g := newGateway(t)

	_, err := g.GetConversationByID(context.Background(), 404)

	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelledContextIsUnavailable(t *testing.T) {
	g := newGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GetUserConversations(ctx, 1)

	require.ErrorIs(t, err, store.ErrStoreUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}
