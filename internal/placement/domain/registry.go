package domain

import (
	"reflect"

	"github.com/davicafu/placementlab/internal/shared/domain/events"
)

func NewEventRegistry() events.Registry {
	meta := func(payload interface{}) events.EventMetadata {
		return events.EventMetadata{
			Type:          reflect.TypeOf(payload),
			Topic:         events.PlacementTopic,
			AggregateType: AggregateType,
			SchemaVersion: 1,
		}
	}
	return events.Registry{
		events.PlacementCreated:       meta(events.PlacementChanged{}),
		events.PlacementUpdated:       meta(events.PlacementChanged{}),
		events.PlacementDeleted:       meta(events.PlacementDeletedPayload{}),
		events.PlacementFileGenerated: meta(events.PlacementFileGeneratedPayload{}),
		events.PlacementFileFailed:    meta(events.PlacementFileFailedPayload{}),
	}
}
