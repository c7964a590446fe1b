// en pkg/utils/response.go
package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
)

// Códigos de error estables del contrato HTTP.
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeBadRequest             = "BAD_REQUEST"
	CodeNotFound               = "NOT_FOUND"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeAlreadyProcessing      = "ALREADY_PROCESSING"
	CodeRateLimited            = "RATE_LIMITED"
	CodeFileGenerationFailed   = "FILE_GENERATION_FAILED"
	CodeAnalyticsDisabled      = "ANALYTICS_DISABLED"
	CodeAlreadyQueued          = "ALREADY_QUEUED"
	CodeInternal               = "INTERNAL_ERROR"
)

// HeaderIdempotentReplayed marca las respuestas servidas desde el store de idempotencia.
const HeaderIdempotentReplayed = "Idempotent-Replayed"

// ErrorBody define la estructura estándar para las respuestas de error.
type ErrorBody struct {
	Code    string                    `json:"code"`
	Message string                    `json:"message"`
	Details []sharedDomain.FieldError `json:"details"`
}

// SendSuccess envía una respuesta exitosa con un payload de datos.
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"data": data,
	})
}

// SendPage envía un listado con sus metadatos de paginación.
func SendPage(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"meta": meta,
	})
}

// SendCommandResult envía el resultado de un comando idempotente.
// Una repetición conserva el status original y añade la cabecera de replay.
func SendCommandResult(c *gin.Context, statusCode int, data interface{}, replayed bool) {
	if replayed {
		c.Header(HeaderIdempotentReplayed, "true")
	}
	SendSuccess(c, statusCode, data)
}

// SendError envía una respuesta de error con un formato estandarizado.
func SendError(c *gin.Context, statusCode int, code, message string, details ...sharedDomain.FieldError) {
	if details == nil {
		details = []sharedDomain.FieldError{}
	}
	c.AbortWithStatusJSON(statusCode, gin.H{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// SendDomainError traduce la taxonomía de errores de dominio a HTTP.
func SendDomainError(c *gin.Context, err error) {
	var verr *sharedDomain.ValidationError
	switch {
	case errors.As(err, &verr):
		SendError(c, http.StatusUnprocessableEntity, CodeValidation, "request validation failed", verr.Fields...)
	case errors.Is(err, sharedDomain.ErrNotFound):
		SendNotFound(c, err.Error())
	case errors.Is(err, sharedDomain.ErrConcurrentModification):
		SendError(c, http.StatusConflict, CodeConcurrentModification,
			"the resource was modified by another request; fetch it again and retry")
	case errors.Is(err, sharedDomain.ErrAlreadyProcessing):
		SendError(c, http.StatusConflict, CodeAlreadyProcessing,
			"a request with the same idempotency key is still being processed")
	default:
		_ = c.Error(err)
		SendInternalServerError(c, "internal error")
	}
}

// --- Helpers específicos para errores comunes ---

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, CodeBadRequest, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, CodeNotFound, message)
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, CodeInternal, message)
}
