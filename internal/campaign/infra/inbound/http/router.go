package http

import "github.com/gin-gonic/gin"

// RegisterCampaignRoutes registra las rutas HTTP del dominio Campaign.
func RegisterCampaignRoutes(r *gin.Engine, handler *CampaignHandler) {
	campaigns := r.Group("/v1/campaigns")
	{
		campaigns.POST("", handler.CreateCampaign)
		campaigns.GET("", handler.ListCampaigns)
		campaigns.GET("/:id", handler.GetCampaign)
		campaigns.PUT("/:id", handler.UpdateCampaign)
		campaigns.DELETE("/:id", handler.DeleteCampaign)
	}
}
