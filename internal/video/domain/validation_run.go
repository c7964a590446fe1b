package domain

import (
	"fmt"
	"sort"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Códigos de las comprobaciones de validación.
const (
	IssueTimeRangeExceedsDuration = "time_range_exceeds_duration"
	IssueOverlappingPlacement     = "overlapping_placement"
	IssueCampaignInactive         = "campaign_inactive"
	IssueCampaignMissing          = "campaign_missing"
)

// Issue es un problema encontrado en un placement del vídeo.
type Issue struct {
	PlacementID uuid.UUID `json:"placement_id"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
}

// ValidationRun es el recurso de estado de una validación asíncrona.
// Sólo transita pending -> completed | failed.
type ValidationRun struct {
	ID          string     `json:"id"`
	VideoID     uuid.UUID  `json:"video_id"`
	Status      RunStatus  `json:"status"`
	Issues      []Issue    `json:"issues"`
	IssuesCount int        `json:"issues_count"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewValidationRunID genera ids del tipo "vr_V1StGXR8_Z5jdHi6B-myT".
func NewValidationRunID() string {
	return "vr_" + gonanoid.Must()
}

func NewValidationRun(videoID uuid.UUID) *ValidationRun {
	return &ValidationRun{
		ID:        NewValidationRunID(),
		VideoID:   videoID,
		Status:    RunPending,
		Issues:    []Issue{},
		CreatedAt: sharedDomain.Now(),
	}
}

func (r *ValidationRun) IsFinished() bool {
	return r.Status != RunPending
}

// Retryable informa si la ejecución puede volver a evaluarse: sólo una failed
// cuyo mensaje un operador reenvió desde la DLQ.
func (r *ValidationRun) Retryable(redrive bool) bool {
	return redrive && r.Status == RunFailed
}

// Complete cierra la ejecución con las incidencias encontradas.
func (r *ValidationRun) Complete(issues []Issue) {
	now := sharedDomain.Now()
	if issues == nil {
		issues = []Issue{}
	}
	r.Status = RunCompleted
	r.Error = ""
	r.Issues = issues
	r.IssuesCount = len(issues)
	r.CompletedAt = &now
}

// Fail cierra la ejecución sin resultado.
func (r *ValidationRun) Fail(reason string) {
	now := sharedDomain.Now()
	r.Status = RunFailed
	r.Error = reason
	r.CompletedAt = &now
}

// ---------- Comprobaciones ----------

// PlacementSnapshot es la vista de un placement vivo que necesita la validación.
type PlacementSnapshot struct {
	ID         uuid.UUID
	StartTime  float64
	EndTime    float64
	CampaignID *uuid.UUID
}

// CampaignState es el estado de una campaña referenciada; Found=false si no existe o está borrada.
type CampaignState struct {
	Found  bool
	Active bool
}

// Evaluate aplica todas las comprobaciones a los placements vivos del vídeo.
func Evaluate(v *Video, placements []PlacementSnapshot, campaigns map[uuid.UUID]CampaignState) []Issue {
	issues := []Issue{}

	sorted := make([]PlacementSnapshot, len(placements))
	copy(sorted, placements)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartTime == sorted[j].StartTime {
			return sorted[i].ID.String() < sorted[j].ID.String()
		}
		return sorted[i].StartTime < sorted[j].StartTime
	})

	for i, p := range sorted {
		if p.EndTime > v.DurationSeconds {
			issues = append(issues, Issue{
				PlacementID: p.ID,
				Code:        IssueTimeRangeExceedsDuration,
				Message:     fmt.Sprintf("end_time %.3f exceeds video duration %.3f", p.EndTime, v.DurationSeconds),
			})
		}

		for _, other := range sorted[i+1:] {
			if other.StartTime >= p.EndTime {
				break
			}
			issues = append(issues, Issue{
				PlacementID: other.ID,
				Code:        IssueOverlappingPlacement,
				Message:     fmt.Sprintf("overlaps placement %s", p.ID),
			})
		}

		if p.CampaignID == nil {
			continue
		}
		switch state := campaigns[*p.CampaignID]; {
		case !state.Found:
			issues = append(issues, Issue{
				PlacementID: p.ID,
				Code:        IssueCampaignMissing,
				Message:     fmt.Sprintf("campaign %s does not exist", p.CampaignID),
			})
		case !state.Active:
			issues = append(issues, Issue{
				PlacementID: p.ID,
				Code:        IssueCampaignInactive,
				Message:     fmt.Sprintf("campaign %s is not active", p.CampaignID),
			})
		}
	}
	return issues
}
