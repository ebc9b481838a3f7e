package api

import (
	"github.com/gin-gonic/gin"

	"snapfixer/internal/api/middleware"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Photos         *PhotoHandler
	Rules          *RulesHandler
	Ws             *WsHandler
	Internal       *InternalHandler
	InternalSecret string
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。Ws 为 nil 时不挂载状态推送接口。
func RegisterRoutes(router *gin.Engine, h Handlers) {
	v1 := router.Group("/v1")
	{
		photoGroup := v1.Group("/photos")
		{
			photoGroup.POST("/:slug", h.Photos.UploadPhoto)
			photoGroup.GET("/:id", h.Photos.GetPhotoStatus)
			if h.Ws != nil {
				photoGroup.GET("/:id/ws", h.Ws.HandleConnection)
			}
		}

		rulesGroup := v1.Group("/rules")
		{
			rulesGroup.GET("", h.Rules.ListRules)
			rulesGroup.GET("/:slug", h.Rules.GetRule)
		}
	}

	internal := router.Group("/internal/v1")
	internal.Use(middleware.InternalSecretMiddleware(h.InternalSecret))
	{
		internal.POST("/jobs/sweep", h.Internal.TriggerSweep)
	}
}
