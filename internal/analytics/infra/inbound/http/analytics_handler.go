package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/placementlab/internal/analytics/application"
	analyticsDomain "github.com/davicafu/placementlab/internal/analytics/domain"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/pkg/utils"
)

const dayLayout = "2006-01-02"

type AnalyticsHandler struct {
	service *application.AnalyticsService
}

func NewAnalyticsHandler(service *application.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// DailyCounts endpoint GET /v1/analytics/daily?from=YYYY-MM-DD&to=YYYY-MM-DD
// Por defecto los últimos 7 días; to es inclusivo.
func (h *AnalyticsHandler) DailyCounts(c *gin.Context) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	from, err := parseDay(c, "from", today.AddDate(0, 0, -6))
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	to, err := parseDay(c, "to", today)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}

	counts, err := h.service.DailyCounts(c.Request.Context(), from, to.AddDate(0, 0, 1))
	if errors.Is(err, analyticsDomain.ErrAnalyticsDisabled) {
		utils.SendError(c, http.StatusServiceUnavailable, utils.CodeAnalyticsDisabled, err.Error())
		return
	}
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, counts)
}

func parseDay(c *gin.Context, name string, def time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(dayLayout, raw)
	if err != nil {
		return time.Time{}, sharedDomain.NewValidationError(name, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// RegisterAnalyticsRoutes registra las rutas HTTP de analítica.
func RegisterAnalyticsRoutes(r *gin.Engine, handler *AnalyticsHandler) {
	r.GET("/v1/analytics/daily", handler.DailyCounts)
}
