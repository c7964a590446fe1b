package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	placementDomain "github.com/davicafu/placementlab/internal/placement/domain"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	"github.com/google/uuid"
)

// PlacementRepoSQL implementa PlacementRepository sobre SQLite o Postgres.
type PlacementRepoSQL struct {
	db *persistence.DB
}

func NewPlacementRepoSQL(db *persistence.DB) *PlacementRepoSQL {
	return &PlacementRepoSQL{db: db}
}

const placementColumns = `id, video_id, product_id, campaign_id, start_time, end_time, position, description,
	status, file_key, file_error, version, created_at, updated_at, deleted_at`

// ------------------ CRUD + Outbox ------------------

func (r *PlacementRepoSQL) Create(ctx context.Context, p *placementDomain.Placement, evt sharedDomain.OutboxEvent) error {
	position, err := encodePosition(p.Position)
	if err != nil {
		return err
	}

	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		if err := checkOverlap(ctx, tx, p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO placements (id, video_id, product_id, campaign_id, start_time, end_time, position, description,
			   status, file_key, file_error, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?, ?)`,
			p.ID.String(), p.VideoID.String(), p.ProductID.String(), nullUUID(p.CampaignID),
			p.TimeRange.StartTime, p.TimeRange.EndTime, position, p.Description,
			string(p.Status), p.Version, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

func (r *PlacementRepoSQL) Update(ctx context.Context, p *placementDomain.Placement, expected int, evt sharedDomain.OutboxEvent) error {
	position, err := encodePosition(p.Position)
	if err != nil {
		return err
	}

	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		if err := checkOverlap(ctx, tx, p); err != nil {
			return err
		}
		err := persistence.ExecVersioned(ctx, tx, "placements", p.ID.String(), expected,
			`video_id = ?, product_id = ?, campaign_id = ?, start_time = ?, end_time = ?, position = ?,
			 description = ?, status = ?, file_key = ?, file_error = ?, updated_at = ?`,
			p.VideoID.String(), p.ProductID.String(), nullUUID(p.CampaignID), p.TimeRange.StartTime, p.TimeRange.EndTime,
			position, p.Description, string(p.Status), p.FileKey, p.FileError, p.UpdatedAt,
		)
		if err != nil {
			return mapRowErr(err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

func (r *PlacementRepoSQL) SoftDelete(ctx context.Context, id uuid.UUID, expected int, evt sharedDomain.OutboxEvent) error {
	now := sharedDomain.Now()
	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		err := persistence.ExecVersioned(ctx, tx, "placements", id.String(), expected,
			"deleted_at = ?, updated_at = ?", now, now,
		)
		if err != nil {
			return mapRowErr(err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

func (r *PlacementRepoSQL) SaveFileState(ctx context.Context, p *placementDomain.Placement, expected int, evt sharedDomain.OutboxEvent) error {
	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		err := persistence.ExecVersioned(ctx, tx, "placements", p.ID.String(), expected,
			"status = ?, file_key = ?, file_error = ?, updated_at = ?",
			string(p.Status), p.FileKey, p.FileError, p.UpdatedAt,
		)
		if err != nil {
			return mapRowErr(err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

// checkOverlap bloquea el vídeo y busca otro placement vivo que se solape.
// Con el vídeo bloqueado dos escrituras concurrentes sobre el mismo vídeo se serializan.
func checkOverlap(ctx context.Context, tx *persistence.Tx, p *placementDomain.Placement) error {
	var duration float64
	err := tx.QueryRowContext(ctx,
		`SELECT duration_seconds FROM videos WHERE id = ? AND deleted_at IS NULL`+tx.ForUpdate(), p.VideoID.String(),
	).Scan(&duration)
	if persistence.IsNoRows(err) {
		return sharedDomain.NewValidationError("video_id", "video does not exist")
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	var other uuid.UUID
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM placements
		 WHERE video_id = ? AND id <> ? AND deleted_at IS NULL AND start_time < ? AND ? < end_time
		 ORDER BY start_time LIMIT 1`,
		p.VideoID.String(), p.ID.String(), p.TimeRange.EndTime, p.TimeRange.StartTime,
	).Scan(&other)
	switch {
	case persistence.IsNoRows(err):
		return nil
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	}
	return placementDomain.OverlapError(other)
}

// ------------------ Lectura ------------------

func (r *PlacementRepoSQL) GetByID(ctx context.Context, id uuid.UUID) (*placementDomain.Placement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+placementColumns+` FROM placements WHERE id = ? AND deleted_at IS NULL`, id.String())

	p, err := scanPlacement(row)
	if err != nil {
		if persistence.IsNoRows(err) {
			return nil, placementDomain.ErrPlacementNotFound
		}
		return nil, fmt.Errorf("db scan error: %w", err)
	}
	return p, nil
}

func (r *PlacementRepoSQL) List(ctx context.Context, criteria sharedDomain.Criteria, page sharedQuery.CursorPagination) (sharedQuery.Page[*placementDomain.Placement], error) {
	cursor, err := sharedQuery.DecodeCursor(page.Cursor)
	if err != nil {
		return sharedQuery.Page[*placementDomain.Placement]{}, err
	}
	limit := sharedQuery.ClampLimit(page.Limit)

	query, args := persistence.KeysetQuery(
		`SELECT `+placementColumns+` FROM placements`,
		sharedDomain.And(criteria, sharedDomain.NotDeleted()), cursor, limit,
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return sharedQuery.Page[*placementDomain.Placement]{}, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var placements []*placementDomain.Placement
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return sharedQuery.Page[*placementDomain.Placement]{}, err
		}
		placements = append(placements, p)
	}
	if err := rows.Err(); err != nil {
		return sharedQuery.Page[*placementDomain.Placement]{}, err
	}

	return sharedQuery.NewPage(placements, limit, func(p *placementDomain.Placement) sharedQuery.Cursor {
		return sharedQuery.Cursor{CreatedAt: p.CreatedAt, ID: p.ID.String()}
	}), nil
}

// ------------------ Helpers ------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPlacement(s scanner) (*placementDomain.Placement, error) {
	var p placementDomain.Placement
	var campaignID uuid.NullUUID
	var position sql.NullString
	var status string
	var createdAt, updatedAt, deletedAt persistence.Timestamp
	if err := s.Scan(&p.ID, &p.VideoID, &p.ProductID, &campaignID, &p.TimeRange.StartTime, &p.TimeRange.EndTime,
		&position, &p.Description, &status, &p.FileKey, &p.FileError, &p.Version,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	if campaignID.Valid {
		id := campaignID.UUID
		p.CampaignID = &id
	}
	if position.Valid && position.String != "" {
		p.Position = &placementDomain.Position{}
		if err := json.Unmarshal([]byte(position.String), p.Position); err != nil {
			return nil, fmt.Errorf("invalid position in placement %s: %w", p.ID, err)
		}
	}
	p.Status = placementDomain.PlacementStatus(status)
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	p.DeletedAt = deletedAt.Ptr()
	return &p, nil
}

func encodePosition(pos *placementDomain.Position) (interface{}, error) {
	if pos == nil {
		return nil, nil
	}
	b, err := json.Marshal(pos)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal position: %w", err)
	}
	return string(b), nil
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func mapRowErr(err error) error {
	if errors.Is(err, persistence.ErrRowNotFound) {
		return placementDomain.ErrPlacementNotFound
	}
	return err
}

var _ placementDomain.PlacementRepository = (*PlacementRepoSQL)(nil)
