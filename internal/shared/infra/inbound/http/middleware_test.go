package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence/persistencetest"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type errorEnvelope struct {
	Error struct {
		Code    string                    `json:"code"`
		Details []sharedDomain.FieldError `json:"details"`
	} `json:"error"`
}

func TestCorrelationID_PropagatesHeaderToContext(t *testing.T) {
	// Arrange
	r := gin.New()
	r.Use(CorrelationID())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = sharedDomain.CorrelationIDFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	// Act
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderCorrelationID, "corr-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, "corr-123", seen)
	assert.Equal(t, "corr-123", w.Header().Get(HeaderCorrelationID))
}

func TestCorrelationID_ReplacesMalformedHeader(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationID())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = sharedDomain.CorrelationIDFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	cases := map[string]string{
		"demasiado largo":   strings.Repeat("a", 129),
		"espacios":          "corr 123",
		"caracteres de log": "corr\"}{",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set(HeaderCorrelationID, header)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.NotEqual(t, header, seen)
			_, err := uuid.Parse(seen)
			assert.NoError(t, err)
			assert.Equal(t, seen, w.Header().Get(HeaderCorrelationID))
		})
	}

	// El límite exacto se acepta
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderCorrelationID, strings.Repeat("b", 128))
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, strings.Repeat("b", 128), seen)
}

func TestCorrelationID_GeneratesWhenMissing(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	_, err := uuid.Parse(w.Header().Get(HeaderCorrelationID))
	assert.NoError(t, err)
}

func TestRateLimiter_Returns429WhenBucketIsEmpty(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(0.001, 2).Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			var body errorEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "RATE_LIMITED", body.Error.Code)
		}
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
}

type bindTarget struct {
	Name  string  `json:"name" validate:"required,max=5"`
	Start float64 `json:"start" validate:"gte=0"`
}

func TestBindJSON_MalformedIs400AndInvalidIs422(t *testing.T) {
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		var req bindTarget
		if !BindJSON(c, &req) {
			return
		}
		c.Status(http.StatusCreated)
	})

	cases := []struct {
		body string
		code int
	}{
		{`{"name":`, http.StatusBadRequest},
		{`{"name":"toolong","start":-1}`, http.StatusUnprocessableEntity},
		{`{"name":"ok","start":1}`, http.StatusCreated},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(tc.body)))
		assert.Equal(t, tc.code, w.Code, tc.body)

		if tc.code == http.StatusUnprocessableEntity {
			var body errorEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
			assert.Len(t, body.Error.Details, 2)
		}
	}
}

func TestPlatformRoutes_DeadLetterRedrive(t *testing.T) {
	// Arrange: un mensaje en la DLQ
	db := persistencetest.OpenSQLite(t)
	q := queue.NewSQLQueue(db)
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, queue.Notification, uuid.New(), "t", []byte(`{}`)))
	msgs, err := q.Receive(ctx, queue.Notification, 1, time.Minute)
	require.NoError(t, err)
	dl, err := q.DeadLetter(ctx, msgs[0], assert.AnError)
	require.NoError(t, err)

	r := gin.New()
	RegisterPlatformRoutes(r, NewPlatformHandler(persistence.NewEventLogRepo(db), q, zap.NewNop()))

	// Act + Assert: listar
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/dead-letters?queue=notification", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), dl.ID.String())

	// Reenviar
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/admin/dead-letters/"+dl.ID.String()+"/redrive", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	depth, err := q.Depth(ctx, queue.Notification)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	// Un segundo reenvío no encuentra el dead letter
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/admin/dead-letters/"+dl.ID.String()+"/redrive", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlatformRoutes_RedriveOfQueuedEventIsConflict(t *testing.T) {
	// Arrange: el evento está en la DLQ y otra copia sigue en la cola
	db := persistencetest.OpenSQLite(t)
	q := queue.NewSQLQueue(db)
	ctx := context.Background()
	eventID := uuid.New()
	require.NoError(t, q.Send(ctx, queue.Notification, eventID, "t", []byte(`{}`)))
	msgs, err := q.Receive(ctx, queue.Notification, 1, time.Minute)
	require.NoError(t, err)
	dl, err := q.DeadLetter(ctx, msgs[0], assert.AnError)
	require.NoError(t, err)
	require.NoError(t, q.Send(ctx, queue.Notification, eventID, "t", []byte(`{}`)))

	r := gin.New()
	RegisterPlatformRoutes(r, NewPlatformHandler(persistence.NewEventLogRepo(db), q, zap.NewNop()))

	// Act
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/admin/dead-letters/"+dl.ID.String()+"/redrive", nil))

	// Assert
	require.Equal(t, http.StatusConflict, w.Code)
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ALREADY_QUEUED", body.Error.Code)
	letters, err := q.ListDeadLetters(ctx, queue.Notification, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Nil(t, letters[0].RedrivenAt)
}

func TestPlatformRoutes_EventsRequireAggregateID(t *testing.T) {
	db := persistencetest.OpenSQLite(t)
	r := gin.New()
	RegisterPlatformRoutes(r, NewPlatformHandler(persistence.NewEventLogRepo(db), queue.NewSQLQueue(db), zap.NewNop()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/events", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
