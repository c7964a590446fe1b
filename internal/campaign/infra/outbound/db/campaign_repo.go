package db

import (
	"context"
	"errors"
	"fmt"

	campaignDomain "github.com/davicafu/placementlab/internal/campaign/domain"
	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	"github.com/google/uuid"
)

// CampaignRepoSQL implementa CampaignRepository sobre SQLite o Postgres.
type CampaignRepoSQL struct {
	db *persistence.DB
}

func NewCampaignRepoSQL(db *persistence.DB) *CampaignRepoSQL {
	return &CampaignRepoSQL{db: db}
}

const campaignColumns = `id, name, advertiser, status, starts_at, ends_at, version, created_at, updated_at, deleted_at`

func (r *CampaignRepoSQL) Create(ctx context.Context, c *campaignDomain.Campaign, evt sharedDomain.OutboxEvent) error {
	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO campaigns (id, name, advertiser, status, starts_at, ends_at, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID.String(), c.Name, c.Advertiser, string(c.Status),
			persistence.NullTime(c.StartsAt), persistence.NullTime(c.EndsAt),
			c.Version, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

func (r *CampaignRepoSQL) Update(ctx context.Context, c *campaignDomain.Campaign, expected int, evt sharedDomain.OutboxEvent) error {
	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		err := persistence.ExecVersioned(ctx, tx, "campaigns", c.ID.String(), expected,
			"name = ?, advertiser = ?, status = ?, starts_at = ?, ends_at = ?, updated_at = ?",
			c.Name, c.Advertiser, string(c.Status),
			persistence.NullTime(c.StartsAt), persistence.NullTime(c.EndsAt), c.UpdatedAt,
		)
		if err != nil {
			return mapRowErr(err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

func (r *CampaignRepoSQL) SoftDelete(ctx context.Context, id uuid.UUID, expected int, evt sharedDomain.OutboxEvent) error {
	now := sharedDomain.Now()
	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		if err := persistence.ExecVersioned(ctx, tx, "campaigns", id.String(), expected,
			"deleted_at = ?, updated_at = ?", now, now); err != nil {
			return mapRowErr(err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

func (r *CampaignRepoSQL) GetByID(ctx context.Context, id uuid.UUID) (*campaignDomain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = ? AND deleted_at IS NULL`, id.String()))
	if err != nil {
		if persistence.IsNoRows(err) {
			return nil, campaignDomain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("db scan error: %w", err)
	}
	return c, nil
}

func (r *CampaignRepoSQL) List(ctx context.Context, criteria sharedDomain.Criteria, page sharedQuery.CursorPagination) (sharedQuery.Page[*campaignDomain.Campaign], error) {
	var empty sharedQuery.Page[*campaignDomain.Campaign]
	cursor, err := sharedQuery.DecodeCursor(page.Cursor)
	if err != nil {
		return empty, err
	}
	limit := sharedQuery.ClampLimit(page.Limit)

	query, args := persistence.KeysetQuery(`SELECT `+campaignColumns+` FROM campaigns`,
		sharedDomain.And(criteria, sharedDomain.NotDeleted()), cursor, limit)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return empty, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var campaigns []*campaignDomain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return empty, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return empty, err
	}

	return sharedQuery.NewPage(campaigns, limit, func(c *campaignDomain.Campaign) sharedQuery.Cursor {
		return sharedQuery.Cursor{CreatedAt: c.CreatedAt, ID: c.ID.String()}
	}), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(s scanner) (*campaignDomain.Campaign, error) {
	var c campaignDomain.Campaign
	var status string
	var startsAt, endsAt, createdAt, updatedAt, deletedAt persistence.Timestamp
	if err := s.Scan(&c.ID, &c.Name, &c.Advertiser, &status, &startsAt, &endsAt, &c.Version,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	c.Status = campaignDomain.CampaignStatus(status)
	c.StartsAt = startsAt.Ptr()
	c.EndsAt = endsAt.Ptr()
	c.CreatedAt = createdAt.Time
	c.UpdatedAt = updatedAt.Time
	c.DeletedAt = deletedAt.Ptr()
	return &c, nil
}

func mapRowErr(err error) error {
	if errors.Is(err, persistence.ErrRowNotFound) {
		return campaignDomain.ErrCampaignNotFound
	}
	return err
}

var _ campaignDomain.CampaignRepository = (*CampaignRepoSQL)(nil)
