package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/placementlab/internal/config"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		LogLevel:             "info",
		HTTPPort:             "0",
		DBDriver:             "sqlite",
		DatabaseURL:          filepath.Join(dir, "app.db"),
		AutoMigrate:          true,
		CacheTTL:             time.Minute,
		EventBus:             config.BusMemory,
		StorageDir:           filepath.Join(dir, "files"),
		FileURLTTL:           time.Minute,
		OutboxPeriod:         time.Second,
		OutboxLimit:          100,
		WorkerBatchSize:      10,
		WorkerVisibility:     5 * time.Second,
		WorkerMaxReceives:    3,
		RateLimitRPS:         1000,
		RateLimitBurst:       1000,
		IdempotencyBackend:   "sql",
		IdempotencyRetention: time.Hour,
		ConsistencyTier:      "cp",
	}
}

type harness struct {
	t      *testing.T
	c      *Container
	router *gin.Engine
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, testConfig(t))
}

func newHarnessWith(t *testing.T, cfg *config.Config) *harness {
	c, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return &harness{t: t, c: c, router: c.Router()}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) data(w *httptest.ResponseRecorder) map[string]interface{} {
	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

// relay publica el outbox pendiente; con el bus en memoria el dispatcher encola en el acto.
func (h *harness) relay() {
	h.c.Relayer.ProcessBatch(context.Background())
}

func (h *harness) work(q string) int {
	runner, err := h.c.Worker(q)
	require.NoError(h.t, err)
	n, err := runner.RunOnce(context.Background())
	require.NoError(h.t, err)
	return n
}

func (h *harness) depth(q string) int64 {
	n, err := h.c.Queue.Depth(context.Background(), q)
	require.NoError(h.t, err)
	return n
}

func (h *harness) createVideo() string {
	w := h.do(http.MethodPost, "/v1/videos", `{"title":"Demo","duration_seconds":120}`)
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return h.data(w)["id"].(string)
}

func TestContainer_ScenarioA_PlacementFlowsThroughQueues(t *testing.T) {
	// Arrange
	h := newHarness(t)
	videoID := h.createVideo()
	h.relay()
	h.work(queue.Sync)

	// Act: crear el placement
	w := h.do(http.MethodPost, "/v1/placements", fmt.Sprintf(
		`{"video_id":%q,"product_id":%q,"time_range":{"start_time":30.5,"end_time":45}}`, videoID, uuid.NewString()))

	// Assert: 201 y el evento llega a file-generation y notification
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	placementID := h.data(w)["id"].(string)
	assert.Equal(t, "pending", h.data(w)["status"])

	h.relay()
	assert.Equal(t, int64(1), h.depth(queue.FileGeneration))
	assert.Equal(t, int64(1), h.depth(queue.Notification))

	// Mientras no hay fichero el endpoint responde 202
	pending := h.do(http.MethodGet, "/v1/placements/"+placementID+"/file", "")
	assert.Equal(t, http.StatusAccepted, pending.Code)

	// El worker genera el fichero y el placement pasa a active
	assert.Equal(t, 1, h.work(queue.FileGeneration))
	file := h.do(http.MethodGet, "/v1/placements/"+placementID+"/file", "")
	require.Equal(t, http.StatusOK, file.Code, file.Body.String())
	assert.Contains(t, h.data(file)["url"], "placements/"+placementID)

	// La notificación queda guardada por id de evento
	assert.Equal(t, 1, h.work(queue.Notification))
	notes := h.do(http.MethodGet, "/v1/notifications?aggregate_id="+placementID, "")
	require.Equal(t, http.StatusOK, notes.Code)
	assert.Contains(t, notes.Body.String(), "placement.created")

	// El log de auditoría y la analítica ven los eventos
	h.relay()
	h.work(queue.Sync)
	audit := h.do(http.MethodGet, "/v1/events?aggregate_id="+placementID, "")
	require.Equal(t, http.StatusOK, audit.Code)
	assert.Contains(t, audit.Body.String(), "placement.file_generated")

	daily := h.do(http.MethodGet, "/v1/analytics/daily", "")
	require.Equal(t, http.StatusOK, daily.Code)
	assert.Contains(t, daily.Body.String(), "placement.created")
}

func TestContainer_ScenarioE_ValidationOfVideoWithoutPlacements(t *testing.T) {
	// Arrange
	h := newHarness(t)
	videoID := h.createVideo()

	// Act
	w := h.do(http.MethodPost, "/v1/videos/"+videoID+"/validate", "")

	// Assert
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	location := w.Header().Get("Location")
	require.NotEmpty(t, location)

	h.relay()
	assert.Equal(t, 1, h.work(queue.Validation))

	run := h.do(http.MethodGet, location, "")
	require.Equal(t, http.StatusOK, run.Code)
	assert.Equal(t, "completed", h.data(run)["status"])
	assert.Equal(t, float64(0), h.data(run)["issues_count"])
}

func TestContainer_UnknownQueue(t *testing.T) {
	h := newHarness(t)

	_, err := h.c.Worker("billing")

	assert.ErrorIs(t, err, ErrUnknownQueue)
}

func TestContainer_HealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/metrics", "").Code)
	assert.Nil(t, h.c.BusConsumer())
}

func TestContainer_KeylessCreatesAreIndependent(t *testing.T) {
	// Arrange
	h := newHarness(t)

	// Act: dos creaciones sin Idempotency-Key
	first := h.createVideo()
	second := h.createVideo()
	body := func(start, end float64) string {
		return fmt.Sprintf(`{"video_id":%q,"product_id":%q,"time_range":{"start_time":%g,"end_time":%g}}`,
			first, uuid.NewString(), start, end)
	}
	created := h.do(http.MethodPost, "/v1/placements", body(10, 20))
	overlap := h.do(http.MethodPost, "/v1/placements", body(15, 25))

	// Assert: cada petición se ejecuta y se valida por separado
	assert.NotEqual(t, first, second)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	require.Equal(t, http.StatusUnprocessableEntity, overlap.Code, overlap.Body.String())
	assert.Contains(t, overlap.Body.String(), "time_range")
}

func TestContainer_RedriveRecoversFailedPlacementFile(t *testing.T) {
	// Arrange: el almacenamiento de ficheros no está disponible
	cfg := testConfig(t)
	cfg.WorkerRetryBase = time.Millisecond
	cfg.WorkerRetryMaxDelay = 2 * time.Millisecond
	h := newHarnessWith(t, cfg)
	videoID := h.createVideo()
	require.NoError(t, os.RemoveAll(cfg.StorageDir))
	require.NoError(t, os.WriteFile(cfg.StorageDir, nil, 0o644))

	w := h.do(http.MethodPost, "/v1/placements", fmt.Sprintf(
		`{"video_id":%q,"product_id":%q,"time_range":{"start_time":0,"end_time":10}}`, videoID, uuid.NewString()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	placementID := h.data(w)["id"].(string)
	h.relay()

	for processed, i := 0, 0; processed < cfg.WorkerMaxReceives && i < 100; i++ {
		time.Sleep(5 * time.Millisecond)
		processed += h.work(queue.FileGeneration)
	}
	failed := h.do(http.MethodGet, "/v1/placements/"+placementID+"/file", "")
	require.Equal(t, http.StatusUnprocessableEntity, failed.Code, failed.Body.String())

	var letters struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	list := h.do(http.MethodGet, "/v1/admin/dead-letters?queue="+queue.FileGeneration, "")
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &letters))
	require.Len(t, letters.Data, 1)

	// Act: el almacenamiento vuelve y el operador reenvía el mensaje
	require.NoError(t, os.Remove(cfg.StorageDir))
	require.NoError(t, os.MkdirAll(cfg.StorageDir, 0o755))
	redrive := h.do(http.MethodPost, "/v1/admin/dead-letters/"+letters.Data[0].ID+"/redrive", "")
	require.Equal(t, http.StatusAccepted, redrive.Code, redrive.Body.String())
	processed := h.work(queue.FileGeneration)

	// Assert
	assert.Equal(t, 1, processed)
	file := h.do(http.MethodGet, "/v1/placements/"+placementID+"/file", "")
	require.Equal(t, http.StatusOK, file.Code, file.Body.String())
	got := h.do(http.MethodGet, "/v1/placements/"+placementID, "")
	assert.Equal(t, "active", h.data(got)["status"])
}
