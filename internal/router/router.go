package router

import (
	"github.com/gin-gonic/gin"

	"sudooom.im.sync/internal/config"
	"sudooom.im.sync/internal/handler"
	"sudooom.im.sync/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(
	cfg *config.Config,
	conversationHandler *handler.ConversationHandler,
	messageHandler *handler.MessageHandler,
	streakHandler *handler.StreakHandler,
	profileHandler *handler.ProfileHandler,
	mediaHandler *handler.MediaHandler,
) *gin.Engine {
	if cfg.App.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	// API v1（身份由接入网关注入）
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Identity())
	{
		conversations := v1.Group("/conversations")
		{
			conversations.POST("", conversationHandler.Create)
			conversations.GET("", conversationHandler.List)
			conversations.GET("/:id", conversationHandler.Get)
			conversations.POST("/:id/read", conversationHandler.MarkRead)
			conversations.DELETE("/:id", conversationHandler.Delete)
			conversations.GET("/:id/messages", messageHandler.Window)
			conversations.POST("/:id/messages", messageHandler.Send)
		}

		messages := v1.Group("/messages")
		{
			messages.POST("/:id/unsend", messageHandler.Unsend)
			messages.POST("/:id/reactions", messageHandler.React)
			messages.POST("/:id/view", messageHandler.View)
			messages.DELETE("/:id", messageHandler.Hide)
		}

		streaks := v1.Group("/streaks")
		{
			streaks.GET("/:id", streakHandler.Get)
		}

		profiles := v1.Group("/profiles")
		{
			profiles.GET("/:id", profileHandler.Get)
			profiles.PUT("", profileHandler.Update)
		}

		media := v1.Group("/media")
		{
			media.POST("", mediaHandler.Upload)
			media.GET("/view", mediaHandler.View)
		}
	}

	return r
}
