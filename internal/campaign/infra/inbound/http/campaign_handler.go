package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/placementlab/internal/campaign/application"
	campaignDomain "github.com/davicafu/placementlab/internal/campaign/domain"
	sharedHTTP "github.com/davicafu/placementlab/internal/shared/infra/inbound/http"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	"github.com/davicafu/placementlab/pkg/utils"
)

type CampaignHandler struct {
	service *application.CampaignService
}

func NewCampaignHandler(service *application.CampaignService) *CampaignHandler {
	return &CampaignHandler{service: service}
}

type campaignRequest struct {
	Name       string     `json:"name" validate:"required,max=200"`
	Advertiser string     `json:"advertiser" validate:"max=200"`
	Status     string     `json:"status" validate:"omitempty,oneof=draft active paused completed"`
	StartsAt   *time.Time `json:"starts_at"`
	EndsAt     *time.Time `json:"ends_at"`
	// Version sólo se usa en PUT.
	Version int `json:"version"`
}

func (r campaignRequest) fields() campaignDomain.CampaignFields {
	return campaignDomain.CampaignFields{
		Name:       r.Name,
		Advertiser: r.Advertiser,
		Status:     campaignDomain.CampaignStatus(r.Status),
		StartsAt:   r.StartsAt,
		EndsAt:     r.EndsAt,
	}
}

// CreateCampaign endpoint POST /v1/campaigns
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req campaignRequest
	if !sharedHTTP.BindJSON(c, &req) {
		return
	}
	key, err := sharedHTTP.IdempotencyKey(c)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	campaign, replayed, err := h.service.CreateCampaign(c.Request.Context(), key, req.fields())
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendCommandResult(c, http.StatusCreated, campaign, replayed)
}

// GetCampaign endpoint GET /v1/campaigns/:id
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}
	campaign, err := h.service.GetCampaign(c.Request.Context(), id)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, campaign)
}

// ListCampaigns endpoint GET /v1/campaigns?status&advertiser&limit&cursor
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	limit, err := sharedHTTP.QueryLimit(c)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	page, err := h.service.ListCampaigns(c.Request.Context(), c.Query("status"), c.Query("advertiser"),
		sharedQuery.CursorPagination{Limit: limit, Cursor: c.Query("cursor")})
	if err != nil {
		sharedHTTP.SendListError(c, err)
		return
	}
	utils.SendPage(c, page.Items, page.Meta)
}

// UpdateCampaign endpoint PUT /v1/campaigns/:id
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req campaignRequest
	if !sharedHTTP.BindJSON(c, &req) {
		return
	}
	if req.Version < 1 {
		utils.SendDomainError(c, sharedHTTP.ErrVersionRequired)
		return
	}

	campaign, err := h.service.UpdateCampaign(c.Request.Context(), id, req.Version, req.fields())
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, campaign)
}

// DeleteCampaign endpoint DELETE /v1/campaigns/:id?version=
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}
	version, err := sharedHTTP.QueryVersion(c)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	if err := h.service.DeleteCampaign(c.Request.Context(), id, version); err != nil {
		utils.SendDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
