// Package badgerstore implements store.Gateway on an embedded BadgerDB.
//
// Values are JSON documents under ordered keys:
//
//	conv:<conv>              conversation record
//	part:<conv>:<user>       participant marker
//	upart:<user>:<conv>      reverse participant marker
//	pair:<low>:<high>        private conversation id of a user pair
//	msg:<conv>:<message>     message record
//	user:<user>              display metadata
//
// Ids are zero-padded so byte order matches numeric order.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/chatrouter/internal/store"
	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

const seqBandwidth = 100

// Gateway is a store.Gateway backed by BadgerDB.
type Gateway struct {
	db      *badger.DB
	convSeq *badger.Sequence
	msgSeq  *badger.Sequence
}

var _ store.Gateway = (*Gateway)(nil)

type conversationRecord struct {
	ID          store.ConversationID `json:"id"`
	IsGroupChat bool                 `json:"isGroupChat"`
	Name        *string              `json:"name,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

type messageRecord struct {
	ID             store.MessageID      `json:"id"`
	ConversationID store.ConversationID `json:"conversationId"`
	SenderID       store.UserID         `json:"senderId"`
	Content        string               `json:"content"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// Options returns badger options for path; an empty path selects an
// in-memory database.
func Options(path string) badger.Options {
	if path == "" {
		return badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	return badger.DefaultOptions(path).WithLogger(nil)
}

// Open opens the database described by opts and wraps it in a Gateway that
// owns it.
func Open(opts badger.Options) (*Gateway, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	g, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return g, nil
}

// New wraps an open database.
func New(db *badger.DB) (*Gateway, error) {
	convSeq, err := db.GetSequence([]byte("seq:conv"), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("conversation sequence: %w", err)
	}
	msgSeq, err := db.GetSequence([]byte("seq:msg"), seqBandwidth)
	if err != nil {
		_ = convSeq.Release()
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &Gateway{db: db, convSeq: convSeq, msgSeq: msgSeq}, nil
}

// Close releases the id sequences and closes the database.
func (g *Gateway) Close() error {
	return errors.Join(g.convSeq.Release(), g.msgSeq.Release(), g.db.Close())
}

func pad(id int64) string { return fmt.Sprintf("%019d", id) }

func convKey(id store.ConversationID) []byte { return []byte("conv:" + pad(int64(id))) }
func userKey(id store.UserID) []byte         { return []byte("user:" + pad(int64(id))) }

func partPrefix(conv store.ConversationID) string { return "part:" + pad(int64(conv)) + ":" }
func partKey(conv store.ConversationID, user store.UserID) []byte {
	return []byte(partPrefix(conv) + pad(int64(user)))
}

func upartPrefix(user store.UserID) string { return "upart:" + pad(int64(user)) + ":" }
func upartKey(user store.UserID, conv store.ConversationID) []byte {
	return []byte(upartPrefix(user) + pad(int64(conv)))
}

func pairKey(low, high store.UserID) []byte {
	return []byte("pair:" + pad(int64(low)) + ":" + pad(int64(high)))
}

func msgPrefix(conv store.ConversationID) string { return "msg:" + pad(int64(conv)) + ":" }
func msgKey(conv store.ConversationID, id store.MessageID) []byte {
	return []byte(msgPrefix(conv) + pad(int64(id)))
}

func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return int64(n) + 1, nil
}

// SaveUser inserts or updates the display metadata of a user.
func (g *Gateway) SaveUser(ctx context.Context, u store.User) error {
	if err := live(ctx); err != nil {
		return err
	}
	err := g.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, userKey(u.ID), u)
	})
	return classify("saving user", err)
}

// GetUserConversations lists the conversations of userID, newest first.
func (g *Gateway) GetUserConversations(ctx context.Context, userID store.UserID) ([]store.ConversationSummary, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}

	summaries := []store.ConversationSummary{}
	err := g.db.View(func(txn *badger.Txn) error {
		ids, err := suffixIDs(txn, upartPrefix(userID))
		if err != nil {
			return err
		}
		for _, id := range ids {
			var rec conversationRecord
			if err := getJSON(txn, convKey(store.ConversationID(id)), &rec); err != nil {
				return err
			}
			participants, err := participantsOf(txn, rec.ID)
			if err != nil {
				return err
			}
			summary := store.ConversationSummary{
				ID:           rec.ID,
				IsGroupChat:  rec.IsGroupChat,
				Name:         rec.Name,
				CreatedAt:    rec.CreatedAt,
				Participants: participants,
			}
			if !rec.IsGroupChat {
				summary.Name = otherName(txn, participants, userID)
			}
			if latest, ok, err := latestMessage(txn, rec.ID); err != nil {
				return err
			} else if ok {
				summary.LatestMessage = &store.LatestMessage{Content: latest.Content, CreatedAt: latest.CreatedAt}
			}
			summaries = append(summaries, summary)
		}
		return nil
	})
	if err != nil {
		return nil, classify("listing conversations", err)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID > summaries[j].ID
	})
	return summaries, nil
}

// GetConversationByID returns the conversation with its participants.
// Messages is left empty; use GetConversationMessages for history.
func (g *Gateway) GetConversationByID(ctx context.Context, id store.ConversationID) (store.Conversation, error) {
	if err := live(ctx); err != nil {
		return store.Conversation{}, err
	}

	var conv store.Conversation
	err := g.db.View(func(txn *badger.Txn) error {
		var rec conversationRecord
		if err := getJSON(txn, convKey(id), &rec); err != nil {
			return err
		}
		participants, err := participantsOf(txn, id)
		if err != nil {
			return err
		}
		conv = store.Conversation{
			ID:           rec.ID,
			IsGroupChat:  rec.IsGroupChat,
			Name:         rec.Name,
			Participants: participants,
			Messages:     []store.Message{},
			CreatedAt:    rec.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return store.Conversation{}, classify(fmt.Sprintf("loading conversation %d", id), err)
	}
	return conv, nil
}

// GetConversationMessages returns up to limit of the most recent messages,
// oldest first.
func (g *Gateway) GetConversationMessages(ctx context.Context, id store.ConversationID, limit int) ([]store.Message, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}

	messages := []store.Message{}
	err := g.db.View(func(txn *badger.Txn) error {
		prefix := []byte(msgPrefix(id))
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		users := make(map[store.UserID]*store.User)
		for it.Seek(append(prefix, 0xFF)); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			var rec messageRecord
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return err
			}
			messages = append(messages, withSender(rec, lookupUser(txn, users, rec.SenderID)))
		}
		return nil
	})
	if err != nil {
		return nil, classify("loading messages", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// CreateMessage persists msg if its sender is a participant. It returns
// store.ErrNotAMember otherwise.
func (g *Gateway) CreateMessage(ctx context.Context, msg store.NewMessage) (store.Message, error) {
	if err := live(ctx); err != nil {
		return store.Message{}, err
	}

	id, err := nextID(g.msgSeq)
	if err != nil {
		return store.Message{}, classify("allocating message id", err)
	}
	rec := messageRecord{
		ID:             store.MessageID(id),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		CreatedAt:      time.Now().UTC(),
	}

	var created store.Message
	err = g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(partKey(msg.ConversationID, msg.SenderID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("user %d in conversation %d: %w", msg.SenderID, msg.ConversationID, store.ErrNotAMember)
			}
			return err
		}
		if err := setJSON(txn, msgKey(rec.ConversationID, rec.ID), rec); err != nil {
			return err
		}
		created = withSender(rec, lookupUser(txn, nil, rec.SenderID))
		return nil
	})
	if err != nil {
		return store.Message{}, classify("creating message", err)
	}
	return created, nil
}

// IsUserInConversation reports whether userID is a participant.
func (g *Gateway) IsUserInConversation(ctx context.Context, userID store.UserID, id store.ConversationID) (bool, error) {
	if err := live(ctx); err != nil {
		return false, err
	}

	member := false
	err := g.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(partKey(id, userID))
		switch {
		case err == nil:
			member = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, classify("checking membership", err)
	}
	return member, nil
}

// FindExistingPrivateChat looks up the private conversation of a pair in
// either order.
func (g *Gateway) FindExistingPrivateChat(ctx context.Context, a, b store.UserID) (store.ConversationID, bool, error) {
	if err := live(ctx); err != nil {
		return 0, false, err
	}

	low, high := store.CanonicalPair(a, b)
	var (
		id    store.ConversationID
		found bool
	)
	err := g.db.View(func(txn *badger.Txn) error {
		err := getJSON(txn, pairKey(low, high), &id)
		switch {
		case err == nil:
			found = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return 0, false, classify("finding private chat", err)
	}
	return id, found, nil
}

// CreatePrivateConversation creates the private conversation of a pair.
// The pair key is read and written in one transaction, so a concurrent
// creation fails to commit and is reported as store.ErrDuplicatePrivateChat.
func (g *Gateway) CreatePrivateConversation(ctx context.Context, a, b store.UserID) (store.Conversation, error) {
	if a == b {
		return store.Conversation{}, fmt.Errorf("private chat with oneself: %w", store.ErrInvalidConversation)
	}
	if err := live(ctx); err != nil {
		return store.Conversation{}, err
	}
	low, high := store.CanonicalPair(a, b)

	rec, err := g.newConversation(false, nil)
	if err != nil {
		return store.Conversation{}, err
	}
	err = g.db.Update(func(txn *badger.Txn) error {
		key := pairKey(low, high)
		if _, err := txn.Get(key); err == nil {
			return store.ErrDuplicatePrivateChat
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setJSON(txn, key, rec.ID); err != nil {
			return err
		}
		return writeConversation(txn, rec, []store.UserID{low, high})
	})
	if errors.Is(err, badger.ErrConflict) {
		err = store.ErrDuplicatePrivateChat
	}
	if err != nil {
		return store.Conversation{}, classify("creating private chat", err)
	}
	return toConversation(rec, []store.UserID{low, high}), nil
}

// CreateGroupConversation always creates a new group; creatorID is added to
// the participants if missing.
func (g *Gateway) CreateGroupConversation(ctx context.Context, name string, creatorID store.UserID, participantIDs []store.UserID) (store.Conversation, error) {
	if err := live(ctx); err != nil {
		return store.Conversation{}, err
	}
	members := lo.Uniq(append([]store.UserID{creatorID}, participantIDs...))

	rec, err := g.newConversation(true, &name)
	if err != nil {
		return store.Conversation{}, err
	}
	err = g.db.Update(func(txn *badger.Txn) error {
		return writeConversation(txn, rec, members)
	})
	if err != nil {
		return store.Conversation{}, classify("creating group chat", err)
	}
	return toConversation(rec, members), nil
}

func (g *Gateway) newConversation(group bool, name *string) (conversationRecord, error) {
	id, err := nextID(g.convSeq)
	if err != nil {
		return conversationRecord{}, classify("allocating conversation id", err)
	}
	return conversationRecord{
		ID:          store.ConversationID(id),
		IsGroupChat: group,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func writeConversation(txn *badger.Txn, rec conversationRecord, members []store.UserID) error {
	if err := setJSON(txn, convKey(rec.ID), rec); err != nil {
		return err
	}
	for _, user := range members {
		if err := txn.Set(partKey(rec.ID, user), nil); err != nil {
			return err
		}
		if err := txn.Set(upartKey(user, rec.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func toConversation(rec conversationRecord, members []store.UserID) store.Conversation {
	return store.Conversation{
		ID:           rec.ID,
		IsGroupChat:  rec.IsGroupChat,
		Name:         rec.Name,
		Participants: members,
		Messages:     []store.Message{},
		CreatedAt:    rec.CreatedAt,
	}
}

func participantsOf(txn *badger.Txn, conv store.ConversationID) ([]store.UserID, error) {
	ids, err := suffixIDs(txn, partPrefix(conv))
	if err != nil {
		return nil, err
	}
	return lo.Map(ids, func(id int64, _ int) store.UserID { return store.UserID(id) }), nil
}

// suffixIDs returns the numeric key suffixes under prefix in ascending order.
func suffixIDs(txn *badger.Txn, prefix string) ([]int64, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []int64
	for it.Rewind(); it.Valid(); it.Next() {
		suffix := strings.TrimPrefix(string(it.Item().Key()), prefix)
		id, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed key %q: %w", it.Item().Key(), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func latestMessage(txn *badger.Txn, conv store.ConversationID) (messageRecord, bool, error) {
	prefix := []byte(msgPrefix(conv))
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(append(prefix, 0xFF))
	if !it.ValidForPrefix(prefix) {
		return messageRecord{}, false, nil
	}
	var rec messageRecord
	err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) })
	return rec, err == nil, err
}

func otherName(txn *badger.Txn, participants []store.UserID, self store.UserID) *string {
	other, ok := lo.Find(participants, func(id store.UserID) bool { return id != self })
	if !ok {
		return nil
	}
	if u := lookupUser(txn, nil, other); u != nil {
		return &u.Name
	}
	return nil
}

// lookupUser returns nil for unknown users. cache may be nil.
func lookupUser(txn *badger.Txn, cache map[store.UserID]*store.User, id store.UserID) *store.User {
	if u, ok := cache[id]; ok {
		return u
	}
	var u store.User
	found := getJSON(txn, userKey(id), &u) == nil
	var result *store.User
	if found {
		result = &u
	}
	if cache != nil {
		cache[id] = result
	}
	return result
}

func withSender(rec messageRecord, sender *store.User) store.Message {
	msg := store.Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		SenderID:       rec.SenderID,
		Content:        rec.Content,
		CreatedAt:      rec.CreatedAt,
	}
	if sender != nil {
		msg.SenderName = sender.Name
		msg.SenderAvatar = sender.Avatar
	}
	return msg
}

func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

func live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreUnavailable, err)
	}
	return nil
}

// classify maps badger errors to store sentinels.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	case errors.Is(err, badger.ErrDBClosed), errors.Is(err, badger.ErrBlockedWrites):
		return fmt.Errorf("%s: %w: %w", op, store.ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
