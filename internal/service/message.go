package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/internal/repository"
	"sudooom.im.sync/internal/snowflake"
	"sudooom.im.sync/pkg/errors"
	"sudooom.im.sync/pkg/pair"
	"sudooom.im.sync/pkg/proto"
)

// SendPayload 发送消息的内容载荷
// 按消息类型恰好填充一个内容字段
type SendPayload struct {
	Type            model.MessageType
	ClientMsgId     string // 可选，缺省时自动生成
	Text            string
	GifURL          string
	ImageURL        string
	SnapStoragePath string
	TaggedPhotoId   string
	ReplyTo         *model.ReplySnapshot
}

// MessageService 消息服务
type MessageService struct {
	repo         *repository.MessageRepository
	sf           *snowflake.Node
	publisher    Publisher
	unsendWindow time.Duration
	logger       *slog.Logger
}

// NewMessageService 创建消息服务
func NewMessageService(repo *repository.MessageRepository, sf *snowflake.Node, publisher Publisher, unsendWindow time.Duration) *MessageService {
	return &MessageService{
		repo:         repo,
		sf:           sf,
		publisher:    publisher,
		unsendWindow: unsendWindow,
		logger:       slog.Default(),
	}
}

// Send 发送消息
// 只写消息记录并发布事件；会话元数据（lastMessage / 未读数 / updatedAt）
// 由消费上行事件的触发处理器负责，发送路径不直接修改
func (s *MessageService) Send(ctx context.Context, conversationId, senderId string, payload SendPayload) (int64, error) {
	if conversationId == "" || senderId == "" {
		return 0, errors.ErrMissingID
	}
	if !pair.Contains(conversationId, senderId) {
		return 0, errors.ErrNotParticipant
	}
	if err := validatePayload(payload); err != nil {
		return 0, err
	}

	clientMsgId := payload.ClientMsgId
	if clientMsgId == "" {
		clientMsgId = uuid.NewString()
	}

	msg := &model.Message{
		Id:              s.sf.Generate().Int64(),
		ConversationId:  conversationId,
		ClientMsgId:     clientMsgId,
		SenderId:        senderId,
		MsgType:         payload.Type,
		Text:            payload.Text,
		GifURL:          payload.GifURL,
		ImageURL:        payload.ImageURL,
		SnapStoragePath: payload.SnapStoragePath,
		TaggedPhotoId:   payload.TaggedPhotoId,
		ReplyTo:         payload.ReplyTo,
		CreatedAt:       time.Now(),
	}

	if err := s.repo.Insert(ctx, msg); err != nil {
		s.logger.Error("Failed to save message", "conversationId", conversationId, "error", err)
		return 0, errors.ErrDBError.Wrap(err)
	}

	created := &proto.MessageCreated{
		ConversationId: conversationId,
		MessageId:      msg.Id,
		ClientMsgId:    msg.ClientMsgId,
		SenderId:       senderId,
		MsgType:        int32(msg.MsgType),
		Preview:        msg.Preview(),
		CreatedAt:      msg.CreatedAt.UnixMilli(),
	}
	if err := s.publisher.PublishConversationEvent(conversationId, &proto.ConversationEvent{MessageCreated: created}); err != nil {
		s.logger.Warn("Failed to publish message event", "messageId", msg.Id, "error", err)
	}
	if err := s.publisher.PublishUpstream(&proto.UpstreamEvent{MessageCreated: created}); err != nil {
		s.logger.Warn("Failed to publish upstream event", "messageId", msg.Id, "error", err)
	}

	s.logger.Debug("Message sent",
		"messageId", msg.Id,
		"clientMsgId", msg.ClientMsgId,
		"conversationId", conversationId)

	return msg.Id, nil
}

// NewestWindow 拉取最新一页消息
func (s *MessageService) NewestWindow(ctx context.Context, conversationId, viewerId string, viewerCutoff *time.Time, pageSize int) (*model.MessageWindow, error) {
	window, err := s.repo.NewestWindow(ctx, conversationId, viewerId, viewerCutoff, pageSize)
	if err != nil {
		return nil, errors.ErrDBError.Wrap(err)
	}
	return window, nil
}

// LoadMore 拉取游标之前的一页更旧消息
// 返回页与新游标；调用方按消息 ID 去重合并，可安全重复调用
func (s *MessageService) LoadMore(ctx context.Context, conversationId, viewerId string, cursor int64, viewerCutoff *time.Time, pageSize int) (*model.MessageWindow, error) {
	if conversationId == "" {
		return nil, errors.ErrMissingID
	}
	window, err := s.repo.PageBefore(ctx, conversationId, viewerId, cursor, viewerCutoff, pageSize)
	if err != nil {
		return nil, errors.ErrDBError.Wrap(err)
	}
	return window, nil
}

// Unsend 撤回消息（时间窗口内，撤回后对所有人不可见）
func (s *MessageService) Unsend(ctx context.Context, messageId int64, senderId string) error {
	msg, err := s.repo.FindByID(ctx, messageId)
	if err != nil {
		return errors.ErrDBError.Wrap(err)
	}
	if msg == nil {
		return errors.ErrMessageNotFound
	}
	if msg.SenderId != senderId {
		return errors.ErrPermissionDenied
	}
	if time.Since(msg.CreatedAt) > s.unsendWindow {
		return errors.ErrUnsendWindowClosed
	}

	now := time.Now()
	if err := s.repo.MarkUnsent(ctx, messageId, now); err != nil {
		return errors.ErrDBError.Wrap(err)
	}

	unsent := &proto.MessageUnsent{
		ConversationId: msg.ConversationId,
		MessageId:      messageId,
		SenderId:       senderId,
		Timestamp:      now.UnixMilli(),
	}
	if err := s.publisher.PublishConversationEvent(msg.ConversationId, &proto.ConversationEvent{MessageUnsent: unsent}); err != nil {
		s.logger.Warn("Failed to publish unsend event", "messageId", messageId, "error", err)
	}
	return nil
}

// HideForViewer 对单个用户隐藏消息（按用户软删除）
func (s *MessageService) HideForViewer(ctx context.Context, messageId int64, viewerId string) error {
	if viewerId == "" {
		return errors.ErrMissingID
	}
	if err := s.repo.HideForViewer(ctx, messageId, viewerId); err != nil {
		return errors.ErrDBError.Wrap(err)
	}
	return nil
}

// React 对消息表态
func (s *MessageService) React(ctx context.Context, messageId int64, userId, emoji string) error {
	if userId == "" || emoji == "" {
		return errors.ErrMissingID
	}
	msg, err := s.repo.FindByID(ctx, messageId)
	if err != nil {
		return errors.ErrDBError.Wrap(err)
	}
	if msg == nil {
		return errors.ErrMessageNotFound
	}

	if err := s.repo.AddReaction(ctx, messageId, userId, emoji); err != nil {
		return errors.ErrDBError.Wrap(err)
	}

	event := &proto.ReactionAdded{
		ConversationId: msg.ConversationId,
		MessageId:      messageId,
		UserId:         userId,
		Emoji:          emoji,
		Timestamp:      time.Now().UnixMilli(),
	}
	if err := s.publisher.PublishConversationEvent(msg.ConversationId, &proto.ConversationEvent{ReactionAdded: event}); err != nil {
		s.logger.Warn("Failed to publish reaction event", "messageId", messageId, "error", err)
	}
	return nil
}

// MarkViewed 标记阅后即焚消息已查看
// 首次查看时写入过期时间并发布上行事件，由触发处理器调度过期清理；
// 返回过期时刻供客户端展示倒计时
func (s *MessageService) MarkViewed(ctx context.Context, messageId int64, viewerId string, ttl time.Duration) (time.Time, error) {
	msg, err := s.repo.FindByID(ctx, messageId)
	if err != nil {
		return time.Time{}, errors.ErrDBError.Wrap(err)
	}
	if msg == nil {
		return time.Time{}, errors.ErrMessageNotFound
	}
	if msg.MsgType != model.MessageTypeSnap {
		return time.Time{}, errors.ErrPayloadConflict
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	if err := s.repo.MarkViewed(ctx, messageId, now, expiresAt); err != nil {
		return time.Time{}, errors.ErrDBError.Wrap(err)
	}

	viewed := &proto.SnapViewed{
		ConversationId:  msg.ConversationId,
		MessageId:       messageId,
		ViewerId:        viewerId,
		SnapStoragePath: msg.SnapStoragePath,
		ExpiresAt:       expiresAt.UnixMilli(),
	}
	if err := s.publisher.PublishUpstream(&proto.UpstreamEvent{SnapViewed: viewed}); err != nil {
		s.logger.Warn("Failed to publish snap viewed event", "messageId", messageId, "error", err)
	}
	return expiresAt, nil
}

// validatePayload 校验消息载荷
// 每种类型恰好填充一个内容字段；空载荷或字段冲突都会被拒绝
func validatePayload(p SendPayload) error {
	contents := []struct {
		present bool
		allowed bool
	}{
		{p.Text != "", p.Type == model.MessageTypeText || p.Type == model.MessageTypeReply || p.Type == model.MessageTypeReaction},
		{p.GifURL != "", p.Type == model.MessageTypeGif},
		{p.ImageURL != "", p.Type == model.MessageTypeImage},
		{p.SnapStoragePath != "", p.Type == model.MessageTypeSnap},
		{p.TaggedPhotoId != "", p.Type == model.MessageTypeTaggedPhoto},
	}

	filled := 0
	for _, c := range contents {
		if c.present {
			filled++
			if !c.allowed {
				return errors.ErrPayloadConflict
			}
		}
	}
	if filled == 0 {
		return errors.ErrEmptyPayload
	}
	if filled > 1 {
		return errors.ErrPayloadConflict
	}

	// 回复与表态必须携带被引用消息的快照
	if (p.Type == model.MessageTypeReply || p.Type == model.MessageTypeReaction) && p.ReplyTo == nil {
		return errors.ErrPayloadConflict
	}
	return nil
}
