package events

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedEvents "github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/worker"
	"github.com/davicafu/placementlab/internal/video/application"
	videoDomain "github.com/davicafu/placementlab/internal/video/domain"
)

// ValidationConsumer procesa la cola "validation".
type ValidationConsumer struct {
	service *application.VideoService
	log     *zap.Logger
}

func NewValidationConsumer(service *application.VideoService, log *zap.Logger) *ValidationConsumer {
	return &ValidationConsumer{service: service, log: log}
}

// Process ejecuta la validación pedida por video.validation_requested.
func (c *ValidationConsumer) Process(ctx context.Context, env sharedEvents.Envelope) ([]byte, error) {
	if env.Type != sharedEvents.VideoValidationRequested {
		return nil, sharedDomain.Terminal("unexpected event type "+env.Type, nil)
	}
	req, err := sharedEvents.DecodeData[sharedEvents.ValidationRequested](env)
	if err != nil {
		return nil, sharedDomain.Terminal("invalid payload", err)
	}

	run, err := c.service.ExecuteValidation(ctx, req.RunID)
	if errors.Is(err, videoDomain.ErrValidationRunNotFound) {
		return nil, sharedDomain.Terminal("unknown validation run", err)
	}
	if err != nil {
		return nil, err
	}

	c.log.Info("🔎 Validation processed",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("issues", run.IssuesCount))
	return json.Marshal(map[string]interface{}{"run_id": run.ID, "status": run.Status})
}

// OnDeadLetter deja la ejecución en failed cuando el mensaje agota sus reintentos.
func (c *ValidationConsumer) OnDeadLetter(ctx context.Context, env sharedEvents.Envelope, cause error) error {
	req, err := sharedEvents.DecodeData[sharedEvents.ValidationRequested](env)
	if err != nil || req.RunID == "" {
		return nil
	}
	err = c.service.FailValidation(ctx, req.RunID, cause.Error())
	if errors.Is(err, videoDomain.ErrValidationRunNotFound) {
		return nil
	}
	return err
}

var (
	_ worker.Processor      = (*ValidationConsumer)(nil).Process
	_ worker.DeadLetterHook = (*ValidationConsumer)(nil).OnDeadLetter
)
