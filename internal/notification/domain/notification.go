package domain

import (
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification es un aviso para el usuario derivado de un evento.
// ID es el id del evento: una misma entrega repetida produce el mismo documento.
type Notification struct {
	ID            uuid.UUID `json:"id"`
	EventType     string    `json:"event_type"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	Severity      Severity  `json:"severity"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// FromEnvelope traduce un evento a notificación.
// Devuelve ErrUnsupportedEvent para los tipos que no notifican y ErrInvalidPayload si data no se puede leer.
func FromEnvelope(env events.Envelope) (*Notification, error) {
	severity, message, err := describe(env)
	if errors.Is(err, ErrUnsupportedEvent) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &Notification{
		ID:            env.ID,
		EventType:     env.Type,
		AggregateType: env.AggregateType,
		AggregateID:   env.Subject,
		Severity:      severity,
		Message:       message,
		CorrelationID: env.CorrelationID,
		OccurredAt:    env.Time.UTC(),
		CreatedAt:     sharedDomain.Now(),
	}, nil
}

func describe(env events.Envelope) (Severity, string, error) {
	switch env.Type {
	case events.PlacementCreated:
		p, err := events.DecodeData[events.PlacementChanged](env)
		if err != nil {
			return "", "", err
		}
		return SeverityInfo, fmt.Sprintf("Placement %s created on video %s (%gs-%gs)", p.ID, p.VideoID, p.StartTime, p.EndTime), nil

	case events.PlacementDeleted:
		p, err := events.DecodeData[events.PlacementDeletedPayload](env)
		if err != nil {
			return "", "", err
		}
		return SeverityInfo, fmt.Sprintf("Placement %s deleted from video %s", p.ID, p.VideoID), nil

	case events.PlacementFileGenerated:
		p, err := events.DecodeData[events.PlacementFileGeneratedPayload](env)
		if err != nil {
			return "", "", err
		}
		return SeverityInfo, fmt.Sprintf("Placement %s file ready at %s", p.ID, p.FileKey), nil

	case events.PlacementFileFailed:
		p, err := events.DecodeData[events.PlacementFileFailedPayload](env)
		if err != nil {
			return "", "", err
		}
		return SeverityError, fmt.Sprintf("Placement %s file generation failed: %s", p.ID, p.Reason), nil

	case events.VideoValidationCompleted:
		r, err := events.DecodeData[events.ValidationFinished](env)
		if err != nil {
			return "", "", err
		}
		if r.IssuesCount > 0 {
			return SeverityWarning, fmt.Sprintf("Validation %s of video %s found %d issue(s)", r.RunID, r.VideoID, r.IssuesCount), nil
		}
		return SeverityInfo, fmt.Sprintf("Validation %s of video %s passed", r.RunID, r.VideoID), nil

	case events.VideoValidationFailed:
		r, err := events.DecodeData[events.ValidationFinished](env)
		if err != nil {
			return "", "", err
		}
		return SeverityError, fmt.Sprintf("Validation %s of video %s failed: %s", r.RunID, r.VideoID, r.Error), nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedEvent, env.Type)
}
