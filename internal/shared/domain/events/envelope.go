package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	SpecVersion     = "1.0"
	ContentTypeJSON = "application/json"
	SourcePrefix    = "placementlab/"
)

// Envelope es el formato de cable de los eventos de dominio (alineado con CloudEvents 1.0).
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	ID              uuid.UUID       `json:"id"`
	Time            time.Time       `json:"time"`
	Subject         string          `json:"subject,omitempty"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	AggregateType   string          `json:"aggregatetype,omitempty"`
	SchemaVersion   int             `json:"schemaversion,omitempty"`
	CorrelationID   string          `json:"correlation_id"`
	Data            json.RawMessage `json:"data"`
}

// PartitionKey mantiene el orden por agregado en los brokers particionados.
func (e Envelope) PartitionKey() string {
	return e.Subject
}

// FromOutbox construye el envelope de una fila del outbox.
func FromOutbox(evt sharedDomain.OutboxEvent, meta EventMetadata) (Envelope, error) {
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal outbox payload %s: %w", evt.ID, err)
	}

	version := meta.SchemaVersion
	if version == 0 {
		version = 1
	}

	return Envelope{
		SpecVersion:     SpecVersion,
		Type:            evt.EventType,
		Source:          SourcePrefix + evt.AggregateType,
		ID:              evt.ID,
		Time:            evt.CreatedAt.UTC(),
		Subject:         evt.AggregateID,
		DataContentType: ContentTypeJSON,
		AggregateType:   evt.AggregateType,
		SchemaVersion:   version,
		CorrelationID:   evt.CorrelationID,
		Data:            data,
	}, nil
}

// Encode serializa el envelope.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

var ErrMalformedEnvelope = errors.New("malformed event envelope")

// Decode deserializa y comprueba los campos obligatorios.
func Decode(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	switch {
	case env.SpecVersion == "":
		return Envelope{}, fmt.Errorf("%w: missing specversion", ErrMalformedEnvelope)
	case env.Type == "":
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	case env.ID == uuid.Nil:
		return Envelope{}, fmt.Errorf("%w: missing id", ErrMalformedEnvelope)
	}
	return env, nil
}

// DecodeData deserializa el payload del envelope al tipo T.
func DecodeData[T any](env Envelope) (T, error) {
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s data: %w", env.Type, err)
	}
	return out, nil
}
