package http

import "github.com/gin-gonic/gin"

func RegisterRoutingRoutes(r *gin.Engine, handler *RoutingHandler) {
	routes := r.Group("/routes")
	{
		routes.GET("", handler.GetRoutes)
		routes.POST("/resolve", handler.PostResolve)
	}
	r.GET("/stats", handler.GetStats)
}
