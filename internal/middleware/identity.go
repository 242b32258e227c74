package middleware

import (
	"github.com/gin-gonic/gin"

	"sudooom.im.sync/pkg/pair"
	"sudooom.im.sync/pkg/response"
)

// userIdKey 上下文中的用户 ID 键
const userIdKey = "userId"

// Identity 用户身份中间件
// 认证由接入网关完成，这里信任网关注入的 X-User-Id 头
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetHeader("X-User-Id")
		if userId == "" || pair.Validate(userId) != nil {
			response.Unauthorized(c)
			c.Abort()
			return
		}
		c.Set(userIdKey, userId)
		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) string {
	return c.GetString(userIdKey)
}
