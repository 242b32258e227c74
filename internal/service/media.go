package service

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"sudooom.im.sync/pkg/errors"
)

// uploadAttempts 上传重试次数（整个核心里唯一做重试的路径）
const uploadAttempts = 3

// ObjectStore 媒体对象存储端口
type ObjectStore interface {
	Put(ctx context.Context, objectName string, data []byte) error
}

// MediaClaims 媒体签名 URL 的 JWT 声明
type MediaClaims struct {
	StoragePath string `json:"storage_path"`
	ViewerId    string `json:"viewer_id"`
	jwt.RegisteredClaims
}

// MediaService 媒体服务：签名临时访问链接 + 上传
type MediaService struct {
	signingKey []byte
	urlTTL     time.Duration
	store      ObjectStore
	logger     *slog.Logger
}

// NewMediaService 创建媒体服务
func NewMediaService(signingKey string, urlTTL time.Duration, store ObjectStore) *MediaService {
	return &MediaService{
		signingKey: []byte(signingKey),
		urlTTL:     urlTTL,
		store:      store,
		logger:     slog.Default(),
	}
}

// SignURL 为指定查看者签发临时访问令牌
func (s *MediaService) SignURL(storagePath, viewerId string) (string, error) {
	if storagePath == "" || viewerId == "" {
		return "", errors.ErrMissingID
	}

	now := time.Now()
	claims := MediaClaims{
		StoragePath: storagePath,
		ViewerId:    viewerId,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.urlTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", errors.ErrServerError.Wrap(err)
	}
	return signed, nil
}

// VerifyURL 校验访问令牌并返回存储路径
func (s *MediaService) VerifyURL(tokenString, viewerId string) (string, error) {
	var claims MediaClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.ErrURLExpired.Wrap(err)
		}
		return "", errors.ErrPermissionDenied.Wrap(err)
	}

	if claims.ViewerId != viewerId {
		return "", errors.ErrPermissionDenied
	}
	return claims.StoragePath, nil
}

// Upload 上传媒体对象，最多尝试 3 次
// 返回存储路径；对象名随机生成避免冲突
func (s *MediaService) Upload(ctx context.Context, prefix string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.ErrEmptyPayload
	}

	objectName := prefix + "/" + uuid.NewString()

	var lastErr error
	for attempt := 1; attempt <= uploadAttempts; attempt++ {
		if err := s.store.Put(ctx, objectName, data); err != nil {
			lastErr = err
			s.logger.Warn("Media upload attempt failed",
				"objectName", objectName,
				"attempt", attempt,
				"error", err)
			continue
		}
		return objectName, nil
	}

	return "", errors.ErrUploadFailed.Wrap(lastErr)
}
