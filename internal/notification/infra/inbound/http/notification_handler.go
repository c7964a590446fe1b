package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/placementlab/internal/notification/application"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/pkg/utils"
)

type NotificationHandler struct {
	service *application.NotificationService
}

func NewNotificationHandler(service *application.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// ListNotifications endpoint GET /v1/notifications?aggregate_id=&limit=
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	aggregateID := c.Query("aggregate_id")
	if aggregateID == "" {
		utils.SendDomainError(c, sharedDomain.NewValidationError("aggregate_id", "is required"))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.SendDomainError(c, sharedDomain.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	list, err := h.service.ListByAggregate(c.Request.Context(), aggregateID, limit)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, list)
}

// RegisterNotificationRoutes registra las rutas HTTP de notificaciones.
func RegisterNotificationRoutes(r *gin.Engine, handler *NotificationHandler) {
	r.GET("/v1/notifications", handler.ListNotifications)
}
