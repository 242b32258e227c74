package service

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/pkg/errors"
)

// 用户资料哈希字段
const (
	fieldUsername    = "username"
	fieldDisplayName = "display_name"
	fieldAvatarURL   = "avatar_url"
	fieldNameColor   = "name_color"
)

// ProfileService 用户资料投影服务（基于 Redis）
type ProfileService struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewProfileService 创建用户资料服务
func NewProfileService(redisClient *redis.Client) *ProfileService {
	return &ProfileService{
		redisClient: redisClient,
		logger:      slog.Default(),
	}
}

// GetProfiles 批量拉取用户资料
// 一次 Pipeline 覆盖全部 ID，未命中的 ID 不出现在结果中
func (s *ProfileService) GetProfiles(ctx context.Context, userIds []string) (map[string]model.Profile, error) {
	profiles := make(map[string]model.Profile, len(userIds))
	if len(userIds) == 0 {
		return profiles, nil
	}

	pipe := s.redisClient.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(userIds))
	for i, id := range userIds {
		cmds[i] = pipe.HGetAll(ctx, BuildProfileKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrapBackend(err)
	}

	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		profiles[userIds[i]] = model.Profile{
			UserId:      userIds[i],
			Username:    data[fieldUsername],
			DisplayName: data[fieldDisplayName],
			AvatarURL:   data[fieldAvatarURL],
			NameColor:   data[fieldNameColor],
		}
	}
	return profiles, nil
}

// Put 写入用户资料投影
func (s *ProfileService) Put(ctx context.Context, profile model.Profile) error {
	if profile.UserId == "" {
		return errors.ErrMissingID
	}
	err := s.redisClient.HSet(ctx, BuildProfileKey(profile.UserId),
		fieldUsername, profile.Username,
		fieldDisplayName, profile.DisplayName,
		fieldAvatarURL, profile.AvatarURL,
		fieldNameColor, profile.NameColor,
	).Err()
	if err != nil {
		return wrapBackend(err)
	}
	return nil
}
