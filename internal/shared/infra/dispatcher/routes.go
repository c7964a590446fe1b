// Package dispatcher reparte los eventos publicados entre las colas de suscriptores.
package dispatcher

import (
	"sort"

	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/davicafu/placementlab/internal/shared/infra/queue"
	"github.com/samber/lo"
)

// RoutingTable mapea tipo de evento -> colas suscritas. Es estática.
type RoutingTable map[string][]string

// DefaultRoutes es la tabla de suscripciones del sistema.
func DefaultRoutes() RoutingTable {
	audit := []string{queue.Notification, queue.Sync}

	return RoutingTable{
		events.PlacementCreated:       {queue.FileGeneration, queue.Notification, queue.Sync},
		events.PlacementUpdated:       {queue.FileGeneration, queue.Sync},
		events.PlacementDeleted:       audit,
		events.PlacementFileGenerated: audit,
		events.PlacementFileFailed:    audit,

		events.CampaignCreated: {queue.Sync},
		events.CampaignUpdated: {queue.Sync},
		events.CampaignDeleted: {queue.Sync},

		events.VideoCreated:             {queue.Sync},
		events.VideoUpdated:             {queue.Sync},
		events.VideoDeleted:             {queue.Sync},
		events.VideoValidationRequested: {queue.Validation},
		events.VideoValidationCompleted: audit,
		events.VideoValidationFailed:    audit,
	}
}

// QueuesFor devuelve las colas de un tipo de evento, sin duplicados.
func (r RoutingTable) QueuesFor(eventType string) []string {
	return lo.Uniq(r[eventType])
}

// Subscribers devuelve los tipos de evento a los que se suscribe una cola, ordenados.
func (r RoutingTable) Subscribers(q string) []string {
	types := lo.Filter(lo.Keys(r), func(t string, _ int) bool {
		return lo.Contains(r[t], q)
	})
	sort.Strings(types)
	return types
}
