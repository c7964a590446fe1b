package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	videoDomain "github.com/davicafu/placementlab/internal/video/domain"
	"github.com/google/uuid"
)

// ValidationSourceSQL lee placements y campañas de las tablas de sus agregados.
type ValidationSourceSQL struct {
	db *persistence.DB
}

func NewValidationSourceSQL(db *persistence.DB) *ValidationSourceSQL {
	return &ValidationSourceSQL{db: db}
}

func (s *ValidationSourceSQL) LivePlacements(ctx context.Context, videoID uuid.UUID) ([]videoDomain.PlacementSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_time, end_time, campaign_id FROM placements
		 WHERE video_id = ? AND deleted_at IS NULL ORDER BY start_time`, videoID.String())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []videoDomain.PlacementSnapshot
	for rows.Next() {
		var p videoDomain.PlacementSnapshot
		var campaignID *string
		if err := rows.Scan(&p.ID, &p.StartTime, &p.EndTime, &campaignID); err != nil {
			return nil, err
		}
		if campaignID != nil && *campaignID != "" {
			id, err := uuid.Parse(*campaignID)
			if err != nil {
				return nil, fmt.Errorf("invalid campaign id in placement %s: %w", p.ID, err)
			}
			p.CampaignID = &id
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *ValidationSourceSQL) CampaignStates(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]videoDomain.CampaignState, error) {
	states := make(map[uuid.UUID]videoDomain.CampaignState, len(ids))
	if len(ids) == 0 {
		return states, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status FROM campaigns WHERE deleted_at IS NULL AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		states[id] = videoDomain.CampaignState{Found: true, Active: status == "active"}
	}
	return states, rows.Err()
}

var _ videoDomain.ValidationSource = (*ValidationSourceSQL)(nil)
