package http

import "github.com/gin-gonic/gin"

// RegisterVideoRoutes registra las rutas HTTP del dominio Video.
func RegisterVideoRoutes(r *gin.Engine, handler *VideoHandler) {
	videos := r.Group("/v1/videos")
	{
		videos.POST("", handler.CreateVideo)
		videos.GET("", handler.ListVideos)
		videos.GET("/:id", handler.GetVideo)
		videos.PUT("/:id", handler.UpdateVideo)
		videos.DELETE("/:id", handler.DeleteVideo)
		videos.POST("/:id/validate", handler.RequestValidation)
	}

	r.GET("/v1/validation-runs/:id", handler.GetValidationRun)
}
