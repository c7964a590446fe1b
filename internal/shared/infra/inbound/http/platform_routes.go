package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
	"github.com/davicafu/placementlab/pkg/utils"
)

// PlatformHandler expone la salud, las métricas, el log de auditoría y la DLQ.
type PlatformHandler struct {
	eventLog    sharedDomain.EventLogReader
	deadLetters queue.DeadLetterStore
	log         *zap.Logger
}

func NewPlatformHandler(eventLog sharedDomain.EventLogReader, deadLetters queue.DeadLetterStore, log *zap.Logger) *PlatformHandler {
	return &PlatformHandler{eventLog: eventLog, deadLetters: deadLetters, log: log}
}

func RegisterPlatformRoutes(r *gin.Engine, h *PlatformHandler) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.GET("/events", h.ListEvents)

		admin := v1.Group("/admin")
		admin.GET("/dead-letters", h.ListDeadLetters)
		admin.POST("/dead-letters/:id/redrive", h.Redrive)
	}
}

func (h *PlatformHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListEvents GET /v1/events?aggregate_id=
func (h *PlatformHandler) ListEvents(c *gin.Context) {
	aggregateID := c.Query("aggregate_id")
	if aggregateID == "" {
		utils.SendDomainError(c, sharedDomain.NewValidationError("aggregate_id", "is required"))
		return
	}
	limit, err := QueryLimit(c)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	if limit == 0 {
		limit = 100
	}

	evts, err := h.eventLog.ListByAggregate(c.Request.Context(), aggregateID, limit)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, evts)
}

// ListDeadLetters GET /v1/admin/dead-letters?queue=
func (h *PlatformHandler) ListDeadLetters(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	letters, err := h.deadLetters.ListDeadLetters(c.Request.Context(), c.Query("queue"), limit)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, letters)
}

// Redrive POST /v1/admin/dead-letters/:id/redrive
func (h *PlatformHandler) Redrive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid id")
		return
	}
	msg, err := h.deadLetters.Redrive(c.Request.Context(), id)
	switch {
	case errors.Is(err, queue.ErrDeadLetterNotFound):
		utils.SendNotFound(c, err.Error())
		return
	case errors.Is(err, queue.ErrAlreadyQueued):
		utils.SendError(c, http.StatusConflict, utils.CodeAlreadyQueued, err.Error())
		return
	case err != nil:
		utils.SendDomainError(c, err)
		return
	}

	h.log.Info("Dead letter redriven", zap.String("dead_letter_id", id.String()), zap.String("queue", msg.Queue))
	utils.SendSuccess(c, http.StatusAccepted, gin.H{
		"message_id": msg.ID,
		"queue":      msg.Queue,
		"event_id":   msg.EventID,
	})
}
