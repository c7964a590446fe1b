package domain

import (
	"reflect"

	"github.com/davicafu/placementlab/internal/shared/domain/events"
)

func NewEventRegistry() events.Registry {
	changed := events.EventMetadata{
		Type:          reflect.TypeOf(events.VideoChanged{}),
		Topic:         events.VideoTopic,
		AggregateType: AggregateType,
		SchemaVersion: 1,
	}
	finished := events.EventMetadata{
		Type:          reflect.TypeOf(events.ValidationFinished{}),
		Topic:         events.VideoTopic,
		AggregateType: AggregateType,
		SchemaVersion: 1,
	}

	return events.Registry{
		events.VideoCreated: changed,
		events.VideoUpdated: changed,
		events.VideoDeleted: {
			Type:          reflect.TypeOf(events.VideoDeletedPayload{}),
			Topic:         events.VideoTopic,
			AggregateType: AggregateType,
			SchemaVersion: 1,
		},
		events.VideoValidationRequested: {
			Type:          reflect.TypeOf(events.ValidationRequested{}),
			Topic:         events.VideoTopic,
			AggregateType: AggregateType,
			SchemaVersion: 1,
		},
		events.VideoValidationCompleted: finished,
		events.VideoValidationFailed:    finished,
	}
}
