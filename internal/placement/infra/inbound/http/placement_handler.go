package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/placementlab/internal/placement/application"
	placementDomain "github.com/davicafu/placementlab/internal/placement/domain"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedHTTP "github.com/davicafu/placementlab/internal/shared/infra/inbound/http"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	"github.com/davicafu/placementlab/pkg/utils"
)

// PlacementHandler encapsula los endpoints HTTP de Placement.
type PlacementHandler struct {
	service *application.PlacementService
}

func NewPlacementHandler(service *application.PlacementService) *PlacementHandler {
	return &PlacementHandler{service: service}
}

type timeRangeRequest struct {
	StartTime float64 `json:"start_time" validate:"gte=0"`
	EndTime   float64 `json:"end_time" validate:"gtfield=StartTime"`
}

type positionRequest struct {
	X      float64 `json:"x" validate:"gte=0,lte=1"`
	Y      float64 `json:"y" validate:"gte=0,lte=1"`
	Width  float64 `json:"width" validate:"gt=0,lte=1"`
	Height float64 `json:"height" validate:"gt=0,lte=1"`
}

type placementRequest struct {
	VideoID     string            `json:"video_id" validate:"required,uuid"`
	ProductID   string            `json:"product_id" validate:"required,uuid"`
	CampaignID  string            `json:"campaign_id" validate:"omitempty,uuid"`
	TimeRange   *timeRangeRequest `json:"time_range" validate:"required"`
	Position    *positionRequest  `json:"position" validate:"omitempty"`
	Description string            `json:"description" validate:"max=1000"`
}

// placementUpdateRequest es el cuerpo de PUT: sólo cambian los campos presentes.
// video_id, product_id y campaign_id se leen para rechazarlos de forma explícita.
type placementUpdateRequest struct {
	VideoID     *string           `json:"video_id"`
	ProductID   *string           `json:"product_id"`
	CampaignID  *string           `json:"campaign_id"`
	TimeRange   *timeRangeRequest `json:"time_range" validate:"omitempty"`
	Position    *positionRequest  `json:"position" validate:"omitempty"`
	Description *string           `json:"description" validate:"omitempty,max=1000"`
	// Version es la versión que el cliente leyó.
	Version int `json:"version" validate:"omitempty,gte=1"`
}

func (r placementUpdateRequest) immutable() error {
	verr := &sharedDomain.ValidationError{}
	if r.VideoID != nil {
		verr.Add("video_id", "cannot be changed")
	}
	if r.ProductID != nil {
		verr.Add("product_id", "cannot be changed")
	}
	if r.CampaignID != nil {
		verr.Add("campaign_id", "cannot be changed")
	}
	return verr.OrNil()
}

func (r placementUpdateRequest) changes() placementDomain.PlacementChanges {
	ch := placementDomain.PlacementChanges{Description: r.Description}
	if tr := r.TimeRange; tr != nil {
		ch.TimeRange = &placementDomain.TimeRange{StartTime: tr.StartTime, EndTime: tr.EndTime}
	}
	if p := r.Position; p != nil {
		ch.Position = &placementDomain.Position{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
	}
	return ch
}

// fields asume que la validación de etiquetas ya pasó: los UUID son válidos.
func (r placementRequest) fields() placementDomain.PlacementFields {
	f := placementDomain.PlacementFields{
		VideoID:     uuid.MustParse(r.VideoID),
		ProductID:   uuid.MustParse(r.ProductID),
		TimeRange:   placementDomain.TimeRange{StartTime: r.TimeRange.StartTime, EndTime: r.TimeRange.EndTime},
		Description: r.Description,
	}
	if r.CampaignID != "" {
		id := uuid.MustParse(r.CampaignID)
		f.CampaignID = &id
	}
	if p := r.Position; p != nil {
		f.Position = &placementDomain.Position{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
	}
	return f
}

// CreatePlacement endpoint POST /v1/placements
func (h *PlacementHandler) CreatePlacement(c *gin.Context) {
	var req placementRequest
	if !sharedHTTP.BindJSON(c, &req) {
		return
	}
	key, err := sharedHTTP.IdempotencyKey(c)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	p, replayed, err := h.service.CreatePlacement(c.Request.Context(), key, req.fields())
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendCommandResult(c, http.StatusCreated, p, replayed)
}

// GetPlacement endpoint GET /v1/placements/:id
func (h *PlacementHandler) GetPlacement(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.GetPlacement(c.Request.Context(), id)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, p)
}

// ListPlacements endpoint GET /v1/placements?video_id&product_id&status&limit&cursor
func (h *PlacementHandler) ListPlacements(c *gin.Context) {
	videoID, err := sharedHTTP.QueryUUID(c, "video_id")
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	productID, err := sharedHTTP.QueryUUID(c, "product_id")
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	limit, err := sharedHTTP.QueryLimit(c)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}

	page, err := h.service.ListPlacements(c.Request.Context(), videoID, productID, c.Query("status"),
		sharedQuery.CursorPagination{Limit: limit, Cursor: c.Query("cursor")})
	if err != nil {
		sharedHTTP.SendListError(c, err)
		return
	}
	utils.SendPage(c, page.Items, page.Meta)
}

// UpdatePlacement endpoint PUT /v1/placements/:id
func (h *PlacementHandler) UpdatePlacement(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req placementUpdateRequest
	if !sharedHTTP.BindJSON(c, &req) {
		return
	}
	if req.Version == 0 {
		utils.SendDomainError(c, sharedHTTP.ErrVersionRequired)
		return
	}
	if err := req.immutable(); err != nil {
		utils.SendDomainError(c, err)
		return
	}

	p, err := h.service.UpdatePlacement(c.Request.Context(), id, req.Version, req.changes())
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, p)
}

// DeletePlacement endpoint DELETE /v1/placements/:id?version=
func (h *PlacementHandler) DeletePlacement(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}
	version, err := sharedHTTP.QueryVersion(c)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}

	if err := h.service.DeletePlacement(c.Request.Context(), id, version); err != nil {
		utils.SendDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPlacementFile endpoint GET /v1/placements/:id/file
// 200 con la URL firmada, 202 mientras se genera, 422 si la generación falló.
func (h *PlacementHandler) GetPlacementFile(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}

	url, err := h.service.FileLink(c.Request.Context(), id)
	switch {
	case errors.Is(err, placementDomain.ErrFilePending):
		c.Header("Location", "/v1/placements/"+id.String())
		utils.SendSuccess(c, http.StatusAccepted, gin.H{"status": placementDomain.PlacementPending})
	case errors.Is(err, placementDomain.ErrFileFailed):
		utils.SendError(c, http.StatusUnprocessableEntity, utils.CodeFileGenerationFailed, err.Error())
	case err != nil:
		utils.SendDomainError(c, err)
	default:
		utils.SendSuccess(c, http.StatusOK, gin.H{"url": url})
	}
}
