package domain

import (
	"encoding/json"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/placementlab/internal/shared/infra/platform/bus"
	"github.com/google/uuid"
)

type PlacementStatus string

const (
	PlacementPending PlacementStatus = "pending"
	PlacementActive  PlacementStatus = "active"
	PlacementFailed  PlacementStatus = "failed"
)

const AggregateType = "placement"

// ParseStatus acepta sólo los estados conocidos.
func ParseStatus(raw string) (PlacementStatus, error) {
	switch st := PlacementStatus(raw); st {
	case PlacementPending, PlacementActive, PlacementFailed:
		return st, nil
	}
	return "", sharedDomain.NewValidationError("status", "must be one of pending, active, failed")
}

// TimeRange es un intervalo semiabierto [start, end) en segundos del vídeo.
type TimeRange struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Overlaps usa la regla a.start < b.end && b.start < a.end: rangos contiguos no se solapan.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.StartTime < o.EndTime && o.StartTime < r.EndTime
}

// Position es la caja del producto en pantalla, normalizada a 0..1.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Placement struct {
	ID          uuid.UUID       `json:"id"`
	VideoID     uuid.UUID       `json:"video_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	CampaignID  *uuid.UUID      `json:"campaign_id,omitempty"`
	TimeRange   TimeRange       `json:"time_range"`
	Position    *Position       `json:"position,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      PlacementStatus `json:"status"`
	FileKey     string          `json:"file_key,omitempty"`
	FileURL     string          `json:"file_url,omitempty"`
	FileError   string          `json:"file_error,omitempty"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// PlacementFields son los datos que aporta el usuario.
type PlacementFields struct {
	VideoID     uuid.UUID
	ProductID   uuid.UUID
	CampaignID  *uuid.UUID
	TimeRange   TimeRange
	Position    *Position
	Description string
}

// Validate comprueba las reglas que no dependen de otros agregados.
func (f PlacementFields) Validate() error {
	verr := &sharedDomain.ValidationError{}
	if f.VideoID == uuid.Nil {
		verr.Add("video_id", "is required")
	}
	if f.ProductID == uuid.Nil {
		verr.Add("product_id", "is required")
	}
	if f.TimeRange.StartTime < 0 {
		verr.Add("time_range.start_time", "must be greater than or equal to 0")
	}
	if f.TimeRange.EndTime <= f.TimeRange.StartTime {
		verr.Add("time_range.end_time", "must be greater than start_time")
	}
	if p := f.Position; p != nil {
		if p.X < 0 || p.X > 1 {
			verr.Add("position.x", "must be between 0 and 1")
		}
		if p.Y < 0 || p.Y > 1 {
			verr.Add("position.y", "must be between 0 and 1")
		}
		if p.Width <= 0 || p.Width > 1 {
			verr.Add("position.width", "must be greater than 0 and at most 1")
		}
		if p.Height <= 0 || p.Height > 1 {
			verr.Add("position.height", "must be greater than 0 and at most 1")
		}
	}
	if len(f.Description) > 1000 {
		verr.Add("description", "must be at most 1000 characters")
	}
	return verr.OrNil()
}

// NewPlacement crea un placement pending en versión 1.
func NewPlacement(f PlacementFields) (*Placement, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	now := sharedDomain.Now()
	p := &Placement{
		ID:        uuid.New(),
		Status:    PlacementPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.assign(f)
	return p, nil
}

// PlacementChanges es una actualización parcial: los campos nil conservan el valor almacenado.
// El vídeo, el producto y la campaña quedan fijados al crear el placement.
type PlacementChanges struct {
	TimeRange   *TimeRange
	Position    *Position
	Description *string
}

// Fields devuelve los datos de usuario actuales.
func (p *Placement) Fields() PlacementFields {
	return PlacementFields{
		VideoID:     p.VideoID,
		ProductID:   p.ProductID,
		CampaignID:  p.CampaignID,
		TimeRange:   p.TimeRange,
		Position:    p.Position,
		Description: p.Description,
	}
}

// Update aplica los cambios sobre los datos almacenados y devuelve el resultado.
// El fichero anterior deja de valer: vuelve a pending hasta que se genere el de la nueva versión.
func (p *Placement) Update(ch PlacementChanges) (PlacementFields, error) {
	f := p.Fields()
	if ch.TimeRange != nil {
		f.TimeRange = *ch.TimeRange
	}
	if ch.Position != nil {
		pos := *ch.Position
		f.Position = &pos
	}
	if ch.Description != nil {
		f.Description = *ch.Description
	}
	if err := f.Validate(); err != nil {
		return PlacementFields{}, err
	}
	p.assign(f)
	p.Status = PlacementPending
	p.FileKey = ""
	p.FileURL = ""
	p.FileError = ""
	p.UpdatedAt = sharedDomain.Now()
	return f, nil
}

func (p *Placement) assign(f PlacementFields) {
	p.VideoID = f.VideoID
	p.ProductID = f.ProductID
	p.CampaignID = f.CampaignID
	p.TimeRange = f.TimeRange
	p.Position = f.Position
	p.Description = f.Description
}

// AttachFile activa el placement con su fichero generado.
func (p *Placement) AttachFile(key string) {
	p.Status = PlacementActive
	p.FileKey = key
	p.FileError = ""
	p.UpdatedAt = sharedDomain.Now()
}

// MarkFileFailed deja constancia de que la generación no terminó.
func (p *Placement) MarkFileFailed(reason string) {
	p.Status = PlacementFailed
	p.FileError = reason
	p.UpdatedAt = sharedDomain.Now()
}

// FileTarget devuelve la versión que debe tener el placement para adjuntar el fichero
// de un evento de la versión indicada. Un reenvío desde la DLQ también puede reintentar
// la generación que dejó el placement en failed (versión + 1).
func (p *Placement) FileTarget(version int, redrive bool) (int, bool) {
	switch {
	case p.Version == version:
		return version, true
	case redrive && p.Status == PlacementFailed && p.Version == version+1:
		return p.Version, true
	}
	return 0, false
}

func (p *Placement) PartitionKey() string {
	return p.ID.String()
}

func (p *Placement) ToEvent() events.PlacementChanged {
	return events.PlacementChanged{
		ID:          p.ID,
		VideoID:     p.VideoID,
		ProductID:   p.ProductID,
		CampaignID:  p.CampaignID,
		StartTime:   p.TimeRange.StartTime,
		EndTime:     p.TimeRange.EndTime,
		Description: p.Description,
		Status:      string(p.Status),
		Version:     p.Version,
	}
}

// FileKeyFor es la ruta del fichero de datos de una versión concreta.
func FileKeyFor(id uuid.UUID, version int) string {
	return fmt.Sprintf("placements/%s/v%d.json", id, version)
}

// PlacementFile es el contenido del fichero de datos que consumen los reproductores.
type PlacementFile struct {
	PlacementID uuid.UUID  `json:"placement_id"`
	VideoID     uuid.UUID  `json:"video_id"`
	ProductID   uuid.UUID  `json:"product_id"`
	CampaignID  *uuid.UUID `json:"campaign_id,omitempty"`
	TimeRange   TimeRange  `json:"time_range"`
	Position    *Position  `json:"position,omitempty"`
	Description string     `json:"description,omitempty"`
	Version     int        `json:"version"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// RenderFile serializa el fichero de la versión actual del placement.
func (p *Placement) RenderFile(generatedAt time.Time) ([]byte, error) {
	return json.MarshalIndent(PlacementFile{
		PlacementID: p.ID,
		VideoID:     p.VideoID,
		ProductID:   p.ProductID,
		CampaignID:  p.CampaignID,
		TimeRange:   p.TimeRange,
		Position:    p.Position,
		Description: p.Description,
		Version:     p.Version,
		GeneratedAt: generatedAt.UTC(),
	}, "", "  ")
}

var _ sharedBus.Keyer = (*Placement)(nil)
