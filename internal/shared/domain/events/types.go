package events

// Tipos de evento: "<namespace>.<aggregate>.<verb>".
const (
	Namespace = "com.nedlia"

	PlacementCreated       = Namespace + ".placement.created"
	PlacementUpdated       = Namespace + ".placement.updated"
	PlacementDeleted       = Namespace + ".placement.deleted"
	PlacementFileGenerated = Namespace + ".placement.file_generated"
	PlacementFileFailed    = Namespace + ".placement.file_failed"

	CampaignCreated = Namespace + ".campaign.created"
	CampaignUpdated = Namespace + ".campaign.updated"
	CampaignDeleted = Namespace + ".campaign.deleted"

	VideoCreated             = Namespace + ".video.created"
	VideoUpdated             = Namespace + ".video.updated"
	VideoDeleted             = Namespace + ".video.deleted"
	VideoValidationRequested = Namespace + ".video.validation_requested"
	VideoValidationCompleted = Namespace + ".video.validation_completed"
	VideoValidationFailed    = Namespace + ".video.validation_failed"
)

// Topics por agregado.
const (
	PlacementTopic = "nedlia.placement"
	CampaignTopic  = "nedlia.campaign"
	VideoTopic     = "nedlia.video"
	// DefaultTopic recibe tipos aún no registrados en este binario.
	DefaultTopic = "nedlia.events"
)

// Topics devuelve todos los topics que el relayer puede usar.
func Topics() []string {
	return []string{PlacementTopic, CampaignTopic, VideoTopic, DefaultTopic}
}
