package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
)

// EventMetadata describe el esquema registrado de un tipo de evento.
type EventMetadata struct {
	Type          reflect.Type // tipo Go del payload
	Topic         string
	AggregateType string
	SchemaVersion int
}

// Registry mapea tipo de evento -> metadatos. Cada dominio aporta el suyo con NewEventRegistry.
type Registry map[string]EventMetadata

var ErrUnsupportedSchema = errors.New("unsupported schema version")

// Merge combina varios registros en uno nuevo.
func Merge(registries ...Registry) Registry {
	out := make(Registry)
	for _, r := range registries {
		for k, v := range r {
			out[k] = v
		}
	}
	return out
}

// Lookup devuelve los metadatos de un tipo de evento.
func (r Registry) Lookup(eventType string) (EventMetadata, bool) {
	m, ok := r[eventType]
	return m, ok
}

// Check valida que el envelope se pueda consumir con los esquemas conocidos.
// Las versiones iguales o anteriores a la registrada son compatibles (evolución aditiva);
// una versión posterior se rechaza.
func (r Registry) Check(env Envelope) error {
	meta, ok := r[env.Type]
	if !ok {
		return fmt.Errorf("%w: %s", sharedDomain.ErrUnroutableEvent, env.Type)
	}
	if env.SchemaVersion > meta.SchemaVersion {
		return fmt.Errorf("%w: %s v%d (known v%d)", ErrUnsupportedSchema, env.Type, env.SchemaVersion, meta.SchemaVersion)
	}
	return nil
}

// DecodePayload crea una instancia del tipo registrado y la rellena con raw.
func (r Registry) DecodePayload(eventType string, raw []byte) (interface{}, error) {
	meta, ok := r[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sharedDomain.ErrUnroutableEvent, eventType)
	}
	payload := reflect.New(meta.Type).Interface()
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	return payload, nil
}

// Types devuelve los tipos de evento registrados.
func (r Registry) Types() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}
