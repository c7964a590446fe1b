package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	sharedHTTP "github.com/davicafu/placementlab/internal/shared/infra/inbound/http"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	"github.com/davicafu/placementlab/internal/video/application"
	videoDomain "github.com/davicafu/placementlab/internal/video/domain"
	"github.com/davicafu/placementlab/pkg/utils"
)

// VideoHandler encapsula los endpoints HTTP de Video y ValidationRun.
type VideoHandler struct {
	service *application.VideoService
}

func NewVideoHandler(service *application.VideoService) *VideoHandler {
	return &VideoHandler{service: service}
}

type videoRequest struct {
	Title           string  `json:"title" validate:"required,max=300"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gt=0"`
	SourceURL       string  `json:"source_url" validate:"omitempty,url"`
	Status          string  `json:"status" validate:"omitempty,oneof=draft published archived"`
}

func (r videoRequest) fields() videoDomain.VideoFields {
	return videoDomain.VideoFields{
		Title:           r.Title,
		DurationSeconds: r.DurationSeconds,
		SourceURL:       r.SourceURL,
		Status:          videoDomain.VideoStatus(r.Status),
	}
}

type updateVideoRequest struct {
	Title           string  `json:"title" validate:"required,max=300"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gt=0"`
	SourceURL       string  `json:"source_url" validate:"omitempty,url"`
	Status          string  `json:"status" validate:"omitempty,oneof=draft published archived"`
	Version         int     `json:"version" validate:"required,gte=1"`
}

// CreateVideo endpoint POST /v1/videos
func (h *VideoHandler) CreateVideo(c *gin.Context) {
	var req videoRequest
	if !sharedHTTP.BindJSON(c, &req) {
		return
	}
	key, err := sharedHTTP.IdempotencyKey(c)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	v, replayed, err := h.service.CreateVideo(c.Request.Context(), key, req.fields())
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendCommandResult(c, http.StatusCreated, v, replayed)
}

// GetVideo endpoint GET /v1/videos/:id
func (h *VideoHandler) GetVideo(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}
	v, err := h.service.GetVideo(c.Request.Context(), id)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, v)
}

// ListVideos endpoint GET /v1/videos?status&limit&cursor
func (h *VideoHandler) ListVideos(c *gin.Context) {
	limit, err := sharedHTTP.QueryLimit(c)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}

	page, err := h.service.ListVideos(c.Request.Context(), c.Query("status"),
		sharedQuery.CursorPagination{Limit: limit, Cursor: c.Query("cursor")})
	if err != nil {
		sharedHTTP.SendListError(c, err)
		return
	}
	utils.SendPage(c, page.Items, page.Meta)
}

// UpdateVideo endpoint PUT /v1/videos/:id
func (h *VideoHandler) UpdateVideo(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req updateVideoRequest
	if !sharedHTTP.BindJSON(c, &req) {
		return
	}

	fields := videoRequest{Title: req.Title, DurationSeconds: req.DurationSeconds, SourceURL: req.SourceURL, Status: req.Status}.fields()
	v, err := h.service.UpdateVideo(c.Request.Context(), id, req.Version, fields)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, v)
}

// DeleteVideo endpoint DELETE /v1/videos/:id?version=
func (h *VideoHandler) DeleteVideo(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}
	version, err := sharedHTTP.QueryVersion(c)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}

	if err := h.service.DeleteVideo(c.Request.Context(), id, version); err != nil {
		utils.SendDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestValidation endpoint POST /v1/videos/:id/validate
// Responde 202 con la ejecución pending y su URL de estado.
func (h *VideoHandler) RequestValidation(c *gin.Context) {
	id, ok := sharedHTTP.ParamUUID(c, "id")
	if !ok {
		return
	}
	key, err := sharedHTTP.IdempotencyKey(c)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	run, replayed, err := h.service.RequestValidation(c.Request.Context(), key, id)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	c.Header("Location", "/v1/validation-runs/"+run.ID)
	utils.SendCommandResult(c, http.StatusAccepted, run, replayed)
}

// GetValidationRun endpoint GET /v1/validation-runs/:id
func (h *VideoHandler) GetValidationRun(c *gin.Context) {
	run, err := h.service.GetValidationRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, run)
}
