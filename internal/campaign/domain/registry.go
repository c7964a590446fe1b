package domain

import (
	"reflect"

	"github.com/davicafu/placementlab/internal/shared/domain/events"
)

func NewEventRegistry() events.Registry {
	changed := events.EventMetadata{
		Type:          reflect.TypeOf(events.CampaignChanged{}),
		Topic:         events.CampaignTopic,
		AggregateType: AggregateType,
		SchemaVersion: 1,
	}
	return events.Registry{
		events.CampaignCreated: changed,
		events.CampaignUpdated: changed,
		events.CampaignDeleted: {
			Type:          reflect.TypeOf(events.CampaignDeletedPayload{}),
			Topic:         events.CampaignTopic,
			AggregateType: AggregateType,
			SchemaVersion: 1,
		},
	}
}
