package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/davicafu/placementlab/internal/placement/application"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	sharedEvents "github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/worker"
)

// FileConsumer procesa la cola "file-generation".
type FileConsumer struct {
	service *application.PlacementService
	log     *zap.Logger
}

func NewFileConsumer(service *application.PlacementService, log *zap.Logger) *FileConsumer {
	return &FileConsumer{service: service, log: log}
}

type fileResult struct {
	PlacementID string `json:"placement_id"`
	Version     int    `json:"version"`
	FileKey     string `json:"file_key,omitempty"`
	Stale       bool   `json:"stale,omitempty"`
}

// Process genera el fichero de la versión que describe el evento.
func (c *FileConsumer) Process(ctx context.Context, env sharedEvents.Envelope) ([]byte, error) {
	if env.Type != sharedEvents.PlacementCreated && env.Type != sharedEvents.PlacementUpdated {
		return nil, sharedDomain.Terminal("unexpected event type "+env.Type, nil)
	}
	changed, err := sharedEvents.DecodeData[sharedEvents.PlacementChanged](env)
	if err != nil {
		return nil, sharedDomain.Terminal("invalid payload", err)
	}

	key, stale, err := c.service.GenerateFile(ctx, changed.ID, changed.Version)
	if err != nil {
		return nil, err
	}

	log := c.log.With(zap.String("placement_id", changed.ID.String()), zap.Int("version", changed.Version))
	if stale {
		log.Info("⏭️ Stale placement event skipped")
	} else {
		log.Info("📄 Placement file attached", zap.String("file_key", key))
	}
	return json.Marshal(fileResult{PlacementID: changed.ID.String(), Version: changed.Version, FileKey: key, Stale: stale})
}

// OnDeadLetter marca el placement como failed si sigue en la versión del evento.
func (c *FileConsumer) OnDeadLetter(ctx context.Context, env sharedEvents.Envelope, cause error) error {
	changed, err := sharedEvents.DecodeData[sharedEvents.PlacementChanged](env)
	if err != nil {
		return nil
	}
	return c.service.MarkFileFailed(ctx, changed.ID, changed.Version, cause.Error())
}

var (
	_ worker.Processor      = (*FileConsumer)(nil).Process
	_ worker.DeadLetterHook = (*FileConsumer)(nil).OnDeadLetter
)
