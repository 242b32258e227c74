package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"sudooom.im.sync/internal/model"
)

// MessageRepository 消息仓库
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository 创建消息仓库
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `
	id, conversation_id, client_msg_id, sender_id, msg_type,
	text, gif_url, image_url, snap_storage_path, tagged_photo_id,
	reply_to, reactions, viewed_at, expires_at, unsent_at, created_at
`

// EnsureSchema 建表（幂等）
func (r *MessageRepository) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS messages (
			id BIGINT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			client_msg_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			msg_type INT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			gif_url TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			snap_storage_path TEXT NOT NULL DEFAULT '',
			tagged_photo_id TEXT NOT NULL DEFAULT '',
			reply_to JSONB,
			reactions JSONB NOT NULL DEFAULT '{}'::jsonb,
			viewed_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			unsent_at TIMESTAMPTZ,
			hidden_for TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conv_window
			ON messages (conversation_id, id DESC);
	`
	_, err := r.db.Exec(ctx, ddl)
	return err
}

// Insert 写入消息
func (r *MessageRepository) Insert(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, client_msg_id, sender_id, msg_type,
			text, gif_url, image_url, snap_storage_path, tagged_photo_id,
			reply_to, reactions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	var replyTo []byte
	if msg.ReplyTo != nil {
		var err error
		replyTo, err = json.Marshal(msg.ReplyTo)
		if err != nil {
			return err
		}
	}

	reactions := []byte("{}")
	if len(msg.Reactions) > 0 {
		var err error
		reactions, err = json.Marshal(msg.Reactions)
		if err != nil {
			return err
		}
	}

	_, err := r.db.Exec(ctx, query,
		msg.Id,
		msg.ConversationId,
		msg.ClientMsgId,
		msg.SenderId,
		msg.MsgType,
		msg.Text,
		msg.GifURL,
		msg.ImageURL,
		msg.SnapStoragePath,
		msg.TaggedPhotoId,
		replyTo,
		reactions,
		msg.CreatedAt,
	)
	return err
}

// FindByID 根据 ID 查找消息
func (r *MessageRepository) FindByID(ctx context.Context, id int64) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

// NewestWindow 拉取最新一页消息（创建时间倒序）
// viewerCutoff 为软删除截断时间：创建于该时间或之前的消息对该用户不可见；
// 查看后已过期的阅后即焚消息对所有人不可见
func (r *MessageRepository) NewestWindow(ctx context.Context, conversationId, viewerId string, viewerCutoff *time.Time, limit int) (*model.MessageWindow, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
			AND unsent_at IS NULL
			AND NOT ($2 = ANY(hidden_for))
			AND ($3::timestamptz IS NULL OR created_at > $3)
			AND (expires_at IS NULL OR expires_at > now())
		ORDER BY id DESC
		LIMIT $4
	`
	return r.queryWindow(ctx, query, conversationId, viewerId, viewerCutoff, limit)
}

// PageBefore 拉取游标之前的一页更旧消息
func (r *MessageRepository) PageBefore(ctx context.Context, conversationId, viewerId string, cursor int64, viewerCutoff *time.Time, limit int) (*model.MessageWindow, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
			AND unsent_at IS NULL
			AND NOT ($2 = ANY(hidden_for))
			AND ($3::timestamptz IS NULL OR created_at > $3)
			AND (expires_at IS NULL OR expires_at > now())
			AND id < $5
		ORDER BY id DESC
		LIMIT $4
	`
	return r.queryWindow(ctx, query, conversationId, viewerId, viewerCutoff, limit, cursor)
}

// queryWindow 执行分页查询，多取一行判断 HasMore
func (r *MessageRepository) queryWindow(ctx context.Context, query, conversationId, viewerId string, viewerCutoff *time.Time, limit int, extra ...any) (*model.MessageWindow, error) {
	args := []any{conversationId, viewerId, viewerCutoff, limit + 1}
	args = append(args, extra...)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*model.Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	window := &model.MessageWindow{}
	if len(messages) > limit {
		window.HasMore = true
		messages = messages[:limit]
	}
	window.Messages = messages
	if len(messages) > 0 {
		window.NextCursor = messages[len(messages)-1].Id
	}
	return window, nil
}

// MarkUnsent 撤回消息（对所有人不可见）
func (r *MessageRepository) MarkUnsent(ctx context.Context, id int64, now time.Time) error {
	query := `UPDATE messages SET unsent_at = $2 WHERE id = $1 AND unsent_at IS NULL`
	_, err := r.db.Exec(ctx, query, id, now)
	return err
}

// HideForViewer 对单个用户隐藏消息
func (r *MessageRepository) HideForViewer(ctx context.Context, id int64, viewerId string) error {
	query := `
		UPDATE messages SET hidden_for = array_append(hidden_for, $2)
		WHERE id = $1 AND NOT ($2 = ANY(hidden_for))
	`
	_, err := r.db.Exec(ctx, query, id, viewerId)
	return err
}

// AddReaction 记录消息表态
func (r *MessageRepository) AddReaction(ctx context.Context, id int64, userId, emoji string) error {
	query := `
		UPDATE messages SET reactions = reactions || jsonb_build_object($2::text, $3::text)
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, userId, emoji)
	return err
}

// MarkViewed 标记阅后即焚消息已查看并写入过期时间
func (r *MessageRepository) MarkViewed(ctx context.Context, id int64, viewedAt, expiresAt time.Time) error {
	query := `
		UPDATE messages SET viewed_at = $2, expires_at = $3
		WHERE id = $1 AND viewed_at IS NULL
	`
	_, err := r.db.Exec(ctx, query, id, viewedAt, expiresAt)
	return err
}

// scanMessage 扫描单行消息
func scanMessage(row pgx.Row) (*model.Message, error) {
	var msg model.Message
	var replyTo, reactions []byte

	err := row.Scan(
		&msg.Id,
		&msg.ConversationId,
		&msg.ClientMsgId,
		&msg.SenderId,
		&msg.MsgType,
		&msg.Text,
		&msg.GifURL,
		&msg.ImageURL,
		&msg.SnapStoragePath,
		&msg.TaggedPhotoId,
		&replyTo,
		&reactions,
		&msg.ViewedAt,
		&msg.ExpiresAt,
		&msg.UnsentAt,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(replyTo) > 0 {
		var snapshot model.ReplySnapshot
		if err := json.Unmarshal(replyTo, &snapshot); err == nil {
			msg.ReplyTo = &snapshot
		}
	}
	if len(reactions) > 0 {
		var m map[string]string
		if err := json.Unmarshal(reactions, &m); err == nil && len(m) > 0 {
			msg.Reactions = m
		}
	}

	return &msg, nil
}
