package http

import "github.com/gin-gonic/gin"

// RegisterPlacementRoutes registra las rutas HTTP del dominio Placement.
func RegisterPlacementRoutes(r *gin.Engine, handler *PlacementHandler) {
	placements := r.Group("/v1/placements")
	{
		placements.POST("", handler.CreatePlacement)
		placements.GET("", handler.ListPlacements)
		placements.GET("/:id", handler.GetPlacement)
		placements.PUT("/:id", handler.UpdatePlacement)
		placements.DELETE("/:id", handler.DeletePlacement)
		placements.GET("/:id/file", handler.GetPlacementFile)
	}
}
