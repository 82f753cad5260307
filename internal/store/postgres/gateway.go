// Package postgres implements store.Gateway on PostgreSQL through
// database/sql and lib/pq. The schema is embedded and applied with
// golang-migrate.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Tyrowin/chatrouter/internal/store"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

// DefaultTimeout bounds each gateway call when the caller's context has no
// earlier deadline.
const DefaultTimeout = 5 * time.Second

// Gateway is a store.Gateway backed by PostgreSQL.
type Gateway struct {
	DB      *sql.DB
	timeout time.Duration
}

var _ store.Gateway = (*Gateway)(nil)

// NewGateway creates a Gateway. A non-positive timeout selects DefaultTimeout.
func NewGateway(db *sql.DB, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{DB: db, timeout: timeout}
}

func (g *Gateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

// SaveUser inserts or updates the display metadata of a user.
func (g *Gateway) SaveUser(ctx context.Context, u store.User) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	query := `
		INSERT INTO users (id, name, avatar) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, avatar = EXCLUDED.avatar`
	if _, err := g.DB.ExecContext(ctx, query, u.ID, u.Name, u.Avatar); err != nil {
		return classify("saving user", err)
	}
	return nil
}

// GetUserConversations lists the conversations of userID, newest first.
func (g *Gateway) GetUserConversations(ctx context.Context, userID store.UserID) ([]store.ConversationSummary, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	query := `
		SELECT c.id, c.is_group_chat, COALESCE(c.name, other.name), c.created_at,
		       ARRAY(SELECT p.user_id FROM conversation_participants p
		             WHERE p.conversation_id = c.id AND p.left_at IS NULL
		             ORDER BY p.user_id) AS participants,
		       lm.content, lm.created_at
		FROM conversation_participants cp
		JOIN conversations c ON c.id = cp.conversation_id
		LEFT JOIN LATERAL (
		    SELECT m.content, m.created_at FROM messages m
		    WHERE m.conversation_id = c.id
		    ORDER BY m.id DESC LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
		    SELECT u.name FROM conversation_participants op
		    JOIN users u ON u.id = op.user_id
		    WHERE op.conversation_id = c.id AND op.user_id <> cp.user_id AND NOT c.is_group_chat
		    LIMIT 1
		) other ON TRUE
		WHERE cp.user_id = $1 AND cp.left_at IS NULL
		ORDER BY c.created_at DESC, c.id DESC`
	rows, err := g.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, classify("listing conversations", err)
	}
	defer rows.Close()

	summaries := []store.ConversationSummary{}
	for rows.Next() {
		var (
			s             store.ConversationSummary
			name          sql.NullString
			participants  pq.Int64Array
			latestContent sql.NullString
			latestAt      sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.IsGroupChat, &name, &s.CreatedAt, &participants, &latestContent, &latestAt); err != nil {
			return nil, classify("scanning conversation", err)
		}
		s.Name = nullString(name)
		s.Participants = toUserIDs(participants)
		if latestContent.Valid {
			s.LatestMessage = &store.LatestMessage{Content: latestContent.String, CreatedAt: latestAt.Time}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("listing conversations", err)
	}
	return summaries, nil
}

// GetConversationByID returns the conversation with its participants.
// Messages is left empty; use GetConversationMessages for history.
func (g *Gateway) GetConversationByID(ctx context.Context, id store.ConversationID) (store.Conversation, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	query := `
		SELECT c.id, c.is_group_chat, c.name, c.created_at,
		       ARRAY(SELECT p.user_id FROM conversation_participants p
		             WHERE p.conversation_id = c.id AND p.left_at IS NULL
		             ORDER BY p.user_id)
		FROM conversations c WHERE c.id = $1`
	var (
		conv         store.Conversation
		name         sql.NullString
		participants pq.Int64Array
	)
	err := g.DB.QueryRowContext(ctx, query, id).Scan(&conv.ID, &conv.IsGroupChat, &name, &conv.CreatedAt, &participants)
	if err != nil {
		return store.Conversation{}, classify(fmt.Sprintf("loading conversation %d", id), err)
	}
	conv.Name = nullString(name)
	conv.Participants = toUserIDs(participants)
	conv.Messages = []store.Message{}
	return conv, nil
}

// GetConversationMessages returns up to limit of the most recent messages,
// oldest first.
func (g *Gateway) GetConversationMessages(ctx context.Context, id store.ConversationID, limit int) ([]store.Message, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	query := `
		SELECT id, conversation_id, sender_id, name, avatar, content, created_at FROM (
		    SELECT m.id, m.conversation_id, m.sender_id, u.name, u.avatar, m.content, m.created_at
		    FROM messages m
		    LEFT JOIN users u ON u.id = m.sender_id
		    WHERE m.conversation_id = $1
		    ORDER BY m.id DESC
		    LIMIT $2
		) recent
		ORDER BY id ASC`
	rows, err := g.DB.QueryContext(ctx, query, id, limit)
	if err != nil {
		return nil, classify("loading messages", err)
	}
	defer rows.Close()

	messages := []store.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, classify("scanning message", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("loading messages", err)
	}
	return messages, nil
}

// CreateMessage persists msg if its sender is still a participant. It
// returns store.ErrNotAMember otherwise.
func (g *Gateway) CreateMessage(ctx context.Context, msg store.NewMessage) (store.Message, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	query := `
		WITH ins AS (
		    INSERT INTO messages (conversation_id, sender_id, content)
		    SELECT $1, $2, $3
		    WHERE EXISTS (
		        SELECT 1 FROM conversation_participants
		        WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
		    )
		    RETURNING id, conversation_id, sender_id, content, created_at
		)
		SELECT ins.id, ins.conversation_id, ins.sender_id, u.name, u.avatar, ins.content, ins.created_at
		FROM ins LEFT JOIN users u ON u.id = ins.sender_id`
	created, err := scanMessage(g.DB.QueryRowContext(ctx, query, msg.ConversationID, msg.SenderID, msg.Content))
	if err == sql.ErrNoRows {
		return store.Message{}, fmt.Errorf("user %d in conversation %d: %w", msg.SenderID, msg.ConversationID, store.ErrNotAMember)
	}
	if err != nil {
		return store.Message{}, classify("creating message", err)
	}
	return created, nil
}

// IsUserInConversation reports whether userID is a current participant.
func (g *Gateway) IsUserInConversation(ctx context.Context, userID store.UserID, id store.ConversationID) (bool, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	var exists bool
	query := `
		SELECT EXISTS(
		    SELECT 1 FROM conversation_participants
		    WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
		)`
	if err := g.DB.QueryRowContext(ctx, query, id, userID).Scan(&exists); err != nil {
		return false, classify("checking membership", err)
	}
	return exists, nil
}

// FindExistingPrivateChat looks up the private conversation of a pair in
// either order.
func (g *Gateway) FindExistingPrivateChat(ctx context.Context, a, b store.UserID) (store.ConversationID, bool, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	low, high := store.CanonicalPair(a, b)
	var id store.ConversationID
	query := `SELECT conversation_id FROM private_pairs WHERE user_low = $1 AND user_high = $2`
	err := g.DB.QueryRowContext(ctx, query, low, high).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify("finding private chat", err)
	}
	return id, true, nil
}

// CreatePrivateConversation creates the private conversation of a pair. The
// private_pairs primary key rejects a second one with
// store.ErrDuplicatePrivateChat.
func (g *Gateway) CreatePrivateConversation(ctx context.Context, a, b store.UserID) (store.Conversation, error) {
	if a == b {
		return store.Conversation{}, fmt.Errorf("private chat with oneself: %w", store.ErrInvalidConversation)
	}
	low, high := store.CanonicalPair(a, b)

	conv := store.Conversation{Participants: []store.UserID{low, high}, Messages: []store.Message{}}
	err := g.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		conv.ID, conv.CreatedAt, err = insertConversation(ctx, tx, false, nil)
		if err != nil {
			return err
		}
		query := `INSERT INTO private_pairs (user_low, user_high, conversation_id) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, query, low, high, conv.ID); err != nil {
			return err
		}
		return insertParticipants(ctx, tx, conv.ID, conv.Participants)
	})
	if err != nil {
		return store.Conversation{}, classify("creating private chat", err)
	}
	return conv, nil
}

// CreateGroupConversation always creates a new group; creatorID is added to
// the participants if missing.
func (g *Gateway) CreateGroupConversation(ctx context.Context, name string, creatorID store.UserID, participantIDs []store.UserID) (store.Conversation, error) {
	members := lo.Uniq(append([]store.UserID{creatorID}, participantIDs...))
	conv := store.Conversation{IsGroupChat: true, Name: &name, Participants: members, Messages: []store.Message{}}

	err := g.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		conv.ID, conv.CreatedAt, err = insertConversation(ctx, tx, true, &name)
		if err != nil {
			return err
		}
		return insertParticipants(ctx, tx, conv.ID, members)
	})
	if err != nil {
		return store.Conversation{}, classify("creating group chat", err)
	}
	return conv, nil
}

func (g *Gateway) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	tx, err := g.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertConversation(ctx context.Context, tx *sql.Tx, group bool, name *string) (store.ConversationID, time.Time, error) {
	var (
		id        store.ConversationID
		createdAt time.Time
	)
	query := `INSERT INTO conversations (is_group_chat, name) VALUES ($1, $2) RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query, group, name).Scan(&id, &createdAt)
	return id, createdAt, err
}

func insertParticipants(ctx context.Context, tx *sql.Tx, id store.ConversationID, userIDs []store.UserID) error {
	query := `
		INSERT INTO conversation_participants (conversation_id, user_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT (conversation_id, user_id) DO NOTHING`
	ids := lo.Map(userIDs, func(u store.UserID, _ int) int64 { return int64(u) })
	_, err := tx.ExecContext(ctx, query, id, pq.Array(ids))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (store.Message, error) {
	var (
		msg    store.Message
		name   sql.NullString
		avatar sql.NullString
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &name, &avatar, &msg.Content, &msg.CreatedAt); err != nil {
		return store.Message{}, err
	}
	msg.SenderName = name.String
	msg.SenderAvatar = nullString(avatar)
	return msg, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func toUserIDs(ids pq.Int64Array) []store.UserID {
	return lo.Map(ids, func(id int64, _ int) store.UserID { return store.UserID(id) })
}
