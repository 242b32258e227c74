package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/pkg/errors"
	"sudooom.im.sync/pkg/pair"
)

// 会话文档哈希字段
const (
	fieldUserA       = "user_a"
	fieldUserB       = "user_b"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
	fieldLastMsgId   = "last_msg_id"
	fieldLastSender  = "last_sender_id"
	fieldLastMsgType = "last_msg_type"
	fieldLastMsgText = "last_msg_text"
	fieldLastMsgAt   = "last_msg_at"

	unreadPrefix    = "unread:"
	readAtPrefix    = "read_at:"
	deletedAtPrefix = "deleted_at:"
)

// ConversationService 会话文档服务（基于 Redis）
type ConversationService struct {
	redisClient *redis.Client
	publisher   Publisher
	logger      *slog.Logger
}

// NewConversationService 创建会话文档服务
func NewConversationService(redisClient *redis.Client, publisher Publisher) *ConversationService {
	return &ConversationService{
		redisClient: redisClient,
		publisher:   publisher,
		logger:      slog.Default(),
	}
}

// GetOrCreate 获取或创建两个用户之间的会话
// 幂等：同一配对永远对应同一文档；并发创建时由 HSetNX 决出唯一胜者
// 返回会话文档和是否为本次新建
func (s *ConversationService) GetOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, bool, error) {
	if err := pair.Validate(userA); err != nil {
		return nil, false, errors.ErrInvalidUserID.Wrap(err)
	}
	if err := pair.Validate(userB); err != nil {
		return nil, false, errors.ErrInvalidUserID.Wrap(err)
	}

	conversationId := pair.ConversationID(userA, userB)
	convKey := BuildConversationKey(conversationId)
	now := time.Now().UnixMilli()

	created, err := s.redisClient.HSetNX(ctx, convKey, fieldCreatedAt, now).Result()
	if err != nil {
		return nil, false, wrapBackend(err)
	}

	if created {
		a, b, _ := pair.Participants(conversationId)
		pipe := s.redisClient.Pipeline()
		pipe.HSet(ctx, convKey,
			fieldUserA, a,
			fieldUserB, b,
			fieldUpdatedAt, now,
			unreadPrefix+a, 0,
			unreadPrefix+b, 0,
		)
		pipe.ZAdd(ctx, BuildConversationIndexKey(a), redis.Z{Score: float64(now), Member: conversationId})
		pipe.ZAdd(ctx, BuildConversationIndexKey(b), redis.Z{Score: float64(now), Member: conversationId})
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, false, wrapBackend(err)
		}
		s.logger.Info("Conversation created", "conversationId", conversationId)
	}

	conv, err := s.Get(ctx, conversationId)
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// Get 拉取会话文档
func (s *ConversationService) Get(ctx context.Context, conversationId string) (*model.Conversation, error) {
	data, err := s.redisClient.HGetAll(ctx, BuildConversationKey(conversationId)).Result()
	if err != nil {
		return nil, wrapBackend(err)
	}
	if len(data) == 0 {
		return nil, errors.ErrConversationNotFound
	}
	return parseConversation(conversationId, data), nil
}

// MarkRead 标记会话已读
// 单次原子更新：未读数清零 + 写入已读回执时间
func (s *ConversationService) MarkRead(ctx context.Context, conversationId, userId string) error {
	if conversationId == "" || userId == "" {
		return errors.ErrMissingID
	}

	now := time.Now().UnixMilli()
	err := s.redisClient.HSet(ctx, BuildConversationKey(conversationId),
		unreadPrefix+userId, 0,
		readAtPrefix+userId, now,
	).Err()
	if err != nil {
		return wrapBackend(err)
	}

	if err := s.publisher.PublishMetaChanged(conversationId); err != nil {
		s.logger.Warn("Failed to publish meta change after mark read",
			"conversationId", conversationId, "error", err)
	}
	return nil
}

// SoftDelete 软删除会话（仅对操作者生效）
func (s *ConversationService) SoftDelete(ctx context.Context, conversationId, userId string) error {
	if conversationId == "" || userId == "" {
		return errors.ErrMissingID
	}

	now := time.Now().UnixMilli()
	err := s.redisClient.HSet(ctx, BuildConversationKey(conversationId),
		deletedAtPrefix+userId, now,
		unreadPrefix+userId, 0,
	).Err()
	if err != nil {
		return wrapBackend(err)
	}

	if err := s.publisher.PublishInboxChanged(userId, conversationId); err != nil {
		s.logger.Warn("Failed to publish inbox change after soft delete",
			"conversationId", conversationId, "error", err)
	}
	return nil
}

// ApplySend 发送触发的元数据更新（由触发处理器调用，客户端不直接调用）
// 更新最后消息摘要、接收方未读数和双方索引位置
func (s *ConversationService) ApplySend(ctx context.Context, conversationId, senderId string, last *model.LastMessage) error {
	if !pair.Contains(conversationId, senderId) {
		return errors.ErrNotParticipant
	}
	peerId := pair.Other(conversationId, senderId)
	now := last.Timestamp.UnixMilli()

	convKey := BuildConversationKey(conversationId)
	pipe := s.redisClient.Pipeline()
	pipe.HSet(ctx, convKey,
		fieldLastMsgId, last.MessageId,
		fieldLastSender, last.SenderId,
		fieldLastMsgType, int32(last.MsgType),
		fieldLastMsgText, last.Preview,
		fieldLastMsgAt, now,
		fieldUpdatedAt, now,
	)
	pipe.HIncrBy(ctx, convKey, unreadPrefix+peerId, 1)
	pipe.ZAdd(ctx, BuildConversationIndexKey(senderId), redis.Z{Score: float64(now), Member: conversationId})
	pipe.ZAdd(ctx, BuildConversationIndexKey(peerId), redis.Z{Score: float64(now), Member: conversationId})
	_, err := pipe.Exec(ctx)
	if err != nil {
		return wrapBackend(err)
	}
	return nil
}

// List 获取用户全部会话（按更新时间倒序）
func (s *ConversationService) List(ctx context.Context, userId string) ([]*model.Conversation, error) {
	idxKey := BuildConversationIndexKey(userId)

	members, err := s.redisClient.ZRevRange(ctx, idxKey, 0, -1).Result()
	if err != nil {
		return nil, wrapBackend(err)
	}
	if len(members) == 0 {
		return []*model.Conversation{}, nil
	}

	// Pipeline 批量获取会话文档
	pipe := s.redisClient.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGetAll(ctx, BuildConversationKey(m))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrapBackend(err)
	}

	conversations := make([]*model.Conversation, 0, len(members))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		conversations = append(conversations, parseConversation(members[i], data))
	}

	return conversations, nil
}

// TotalUnread 获取用户总未读数角标
// 角标定义为可见会话的未读数之和；这里直接对索引内全部会话求和，
// 依赖 SoftDelete 同时把 unread 清零，隐藏中的会话贡献恒为 0
func (s *ConversationService) TotalUnread(ctx context.Context, userId string) (int, error) {
	members, err := s.redisClient.ZRange(ctx, BuildConversationIndexKey(userId), 0, -1).Result()
	if err != nil {
		return 0, wrapBackend(err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := s.redisClient.Pipeline()
	cmds := make([]*redis.StringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGet(ctx, BuildConversationKey(m), unreadPrefix+userId)
	}
	_, _ = pipe.Exec(ctx)

	total := 0
	for _, cmd := range cmds {
		count, err := cmd.Int()
		if err == nil {
			total += count
		}
	}
	return total, nil
}

// parseConversation 从哈希字段解析会话文档
func parseConversation(conversationId string, data map[string]string) *model.Conversation {
	conv := &model.Conversation{
		Id:           conversationId,
		CreatedAt:    parseMillis(data[fieldCreatedAt]),
		UpdatedAt:    parseMillis(data[fieldUpdatedAt]),
		DeletedAt:    make(map[string]*time.Time),
		UnreadCount:  make(map[string]int),
		ReadReceipts: make(map[string]time.Time),
	}
	conv.Participants[0] = data[fieldUserA]
	conv.Participants[1] = data[fieldUserB]

	if conv.Participants[0] == "" {
		// 文档尚未初始化完整（并发创建的短暂窗口），从 ID 还原参与者
		a, b, ok := pair.Participants(conversationId)
		if ok {
			conv.Participants[0], conv.Participants[1] = a, b
		}
	}

	if msgId := parseInt64(data[fieldLastMsgId]); msgId > 0 {
		conv.LastMessage = &model.LastMessage{
			MessageId: msgId,
			SenderId:  data[fieldLastSender],
			MsgType:   model.MessageType(parseInt64(data[fieldLastMsgType])),
			Preview:   data[fieldLastMsgText],
			Timestamp: parseMillis(data[fieldLastMsgAt]),
		}
	}

	for field, value := range data {
		switch {
		case strings.HasPrefix(field, unreadPrefix):
			conv.UnreadCount[field[len(unreadPrefix):]] = int(parseInt64(value))
		case strings.HasPrefix(field, readAtPrefix):
			conv.ReadReceipts[field[len(readAtPrefix):]] = parseMillis(value)
		case strings.HasPrefix(field, deletedAtPrefix):
			if ms := parseInt64(value); ms > 0 {
				t := time.UnixMilli(ms)
				conv.DeletedAt[field[len(deletedAtPrefix):]] = &t
			}
		}
	}

	return conv
}

func parseInt64(str string) int64 {
	v, _ := strconv.ParseInt(str, 10, 64)
	return v
}

func parseMillis(str string) time.Time {
	return time.UnixMilli(parseInt64(str))
}

// wrapBackend 将后端错误统一包装，权限类错误单独归类
func wrapBackend(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "NOPERM") || strings.Contains(msg, "permission denied") {
		return errors.ErrPermissionDenied.Wrap(err)
	}
	return errors.ErrDBError.Wrap(err)
}
