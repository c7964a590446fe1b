package http

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	"github.com/davicafu/placementlab/pkg/utils"
)

// BindJSON decodifica el cuerpo en dst y aplica sus reglas `validate`.
// JSON mal formado -> 400; campos inválidos -> 422. Devuelve false si ya respondió.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.SendBadRequest(c, "malformed JSON body: "+err.Error())
		return false
	}
	if err := sharedDomain.ValidateStruct(dst); err != nil {
		utils.SendDomainError(c, err)
		return false
	}
	return true
}

// ParamUUID lee un parámetro de ruta como UUID. Devuelve false si ya respondió.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.SendBadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID lee un query param opcional como UUID.
func QueryUUID(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, sharedDomain.NewValidationError(name, "must be a valid UUID")
	}
	return &id, nil
}

// QueryLimit lee `limit` (1..100, 20 por defecto).
func QueryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return 0, sharedDomain.NewValidationError("limit", "must be between 1 and 100")
	}
	return n, nil
}

// QueryVersion lee la versión esperada de `?version=` (obligatoria en DELETE).
func QueryVersion(c *gin.Context) (int, error) {
	n, err := strconv.Atoi(c.Query("version"))
	if err != nil || n < 1 {
		return 0, sharedDomain.NewValidationError("version", "is required and must be a positive integer")
	}
	return n, nil
}

// IdempotencyKey devuelve la cabecera Idempotency-Key (puede estar vacía).
func IdempotencyKey(c *gin.Context) (string, error) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if len(key) > 255 {
		return "", errors.New("idempotency key too long")
	}
	return key, nil
}

// SendListError responde a un fallo de listado; un cursor corrupto es un error del cliente.
func SendListError(c *gin.Context, err error) {
	if errors.Is(err, sharedQuery.ErrInvalidCursor) {
		utils.SendDomainError(c, sharedDomain.NewValidationError("cursor", "is invalid"))
		return
	}
	utils.SendDomainError(c, err)
}

// ErrVersionRequired se devuelve cuando un PUT no trae la versión esperada.
var ErrVersionRequired = sharedDomain.NewValidationError("version", "is required and must be a positive integer")
