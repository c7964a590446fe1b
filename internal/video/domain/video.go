package domain

import (
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/placementlab/internal/shared/infra/platform/bus"
	"github.com/google/uuid"
)

type VideoStatus string

const (
	VideoDraft     VideoStatus = "draft"
	VideoPublished VideoStatus = "published"
	VideoArchived  VideoStatus = "archived"
)

// AggregateType es el nombre del agregado en el outbox y en los envelopes.
const AggregateType = "video"

// Video es el contenedor de los placements: su duración acota sus rangos de tiempo.
type Video struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	DurationSeconds float64     `json:"duration_seconds"`
	SourceURL       string      `json:"source_url,omitempty"`
	Status          VideoStatus `json:"status"`
	Version         int         `json:"version"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	DeletedAt       *time.Time  `json:"deleted_at,omitempty"`
}

// VideoFields son los campos editables de un vídeo.
type VideoFields struct {
	Title           string
	DurationSeconds float64
	SourceURL       string
	Status          VideoStatus
}

// NewVideo crea un vídeo en versión 1. Sin estado explícito nace como draft.
func NewVideo(f VideoFields) (*Video, error) {
	now := sharedDomain.Now()
	v := &Video{
		ID:        uuid.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := v.apply(f); err != nil {
		return nil, err
	}
	return v, nil
}

// Update sustituye los campos editables. La versión la fija el repositorio.
func (v *Video) Update(f VideoFields) error {
	if err := v.apply(f); err != nil {
		return err
	}
	v.UpdatedAt = sharedDomain.Now()
	return nil
}

func (v *Video) apply(f VideoFields) error {
	if f.Status == "" {
		f.Status = VideoDraft
	}
	verr := &sharedDomain.ValidationError{}
	if f.Title == "" {
		verr.Add("title", "is required")
	}
	if f.DurationSeconds <= 0 {
		verr.Add("duration_seconds", "must be greater than 0")
	}
	switch f.Status {
	case VideoDraft, VideoPublished, VideoArchived:
	default:
		verr.Add("status", "must be one of [draft published archived]")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	v.Title = f.Title
	v.DurationSeconds = f.DurationSeconds
	v.SourceURL = f.SourceURL
	v.Status = f.Status
	return nil
}

func (v *Video) IsDeleted() bool {
	return v.DeletedAt != nil
}

func (v *Video) PartitionKey() string {
	return v.ID.String()
}

// ToEvent construye el payload de video.created / video.updated.
func (v *Video) ToEvent() events.VideoChanged {
	return events.VideoChanged{
		ID:              v.ID,
		Title:           v.Title,
		DurationSeconds: v.DurationSeconds,
		Status:          string(v.Status),
		Version:         v.Version,
	}
}

var _ sharedBus.Keyer = (*Video)(nil)
