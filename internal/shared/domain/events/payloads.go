package events

import (
	"time"

	"github.com/google/uuid"
)

// ---------------- Placement ----------------

// PlacementChanged es el payload de placement.created y placement.updated.
// Version identifica el estado que el consumidor debe materializar.
type PlacementChanged struct {
	ID          uuid.UUID  `json:"id"`
	VideoID     uuid.UUID  `json:"video_id"`
	ProductID   uuid.UUID  `json:"product_id"`
	CampaignID  *uuid.UUID `json:"campaign_id,omitempty"`
	StartTime   float64    `json:"start_time"`
	EndTime     float64    `json:"end_time"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Version     int        `json:"version"`
}

type PlacementDeletedPayload struct {
	ID      uuid.UUID `json:"id"`
	VideoID uuid.UUID `json:"video_id"`
	Version int       `json:"version"`
}

type PlacementFileGeneratedPayload struct {
	ID      uuid.UUID `json:"id"`
	VideoID uuid.UUID `json:"video_id"`
	Version int       `json:"version"`
	FileKey string    `json:"file_key"`
}

type PlacementFileFailedPayload struct {
	ID      uuid.UUID `json:"id"`
	VideoID uuid.UUID `json:"video_id"`
	Version int       `json:"version"`
	Reason  string    `json:"reason"`
}

// ---------------- Campaign ----------------

type CampaignChanged struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Advertiser string     `json:"advertiser,omitempty"`
	Status     string     `json:"status"`
	StartsAt   *time.Time `json:"starts_at,omitempty"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
	Version    int        `json:"version"`
}

type CampaignDeletedPayload struct {
	ID      uuid.UUID `json:"id"`
	Version int       `json:"version"`
}

// ---------------- Video ----------------

type VideoChanged struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationSeconds float64   `json:"duration_seconds"`
	Status          string    `json:"status"`
	Version         int       `json:"version"`
}

type VideoDeletedPayload struct {
	ID      uuid.UUID `json:"id"`
	Version int       `json:"version"`
}

type ValidationRequested struct {
	RunID   string    `json:"run_id"`
	VideoID uuid.UUID `json:"video_id"`
}

// ValidationFinished es el payload de validation_completed y validation_failed.
type ValidationFinished struct {
	RunID       string    `json:"run_id"`
	VideoID     uuid.UUID `json:"video_id"`
	Status      string    `json:"status"`
	IssuesCount int       `json:"issues_count"`
	Error       string    `json:"error,omitempty"`
}
