package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence"
	sharedQuery "github.com/davicafu/placementlab/internal/shared/infra/platform/query"
	videoDomain "github.com/davicafu/placementlab/internal/video/domain"
	"github.com/google/uuid"
)

// VideoRepoSQL implementa VideoRepository sobre SQLite o Postgres.
type VideoRepoSQL struct {
	db *persistence.DB
}

func NewVideoRepoSQL(db *persistence.DB) *VideoRepoSQL {
	return &VideoRepoSQL{db: db}
}

const videoColumns = `id, title, duration_seconds, source_url, status, version, created_at, updated_at, deleted_at`

// ------------------ CRUD + Outbox ------------------

func (r *VideoRepoSQL) Create(ctx context.Context, v *videoDomain.Video, evt sharedDomain.OutboxEvent) error {
	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO videos (id, title, duration_seconds, source_url, status, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID.String(), v.Title, v.DurationSeconds, v.SourceURL, string(v.Status), v.Version, v.CreatedAt, v.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

func (r *VideoRepoSQL) Update(ctx context.Context, v *videoDomain.Video, expected int, evt sharedDomain.OutboxEvent) error {
	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		err := persistence.ExecVersioned(ctx, tx, "videos", v.ID.String(), expected,
			"title = ?, duration_seconds = ?, source_url = ?, status = ?, updated_at = ?",
			v.Title, v.DurationSeconds, v.SourceURL, string(v.Status), v.UpdatedAt,
		)
		if err != nil {
			return mapRowErr(err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

func (r *VideoRepoSQL) SoftDelete(ctx context.Context, id uuid.UUID, expected int, evt sharedDomain.OutboxEvent) error {
	now := sharedDomain.Now()
	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		err := persistence.ExecVersioned(ctx, tx, "videos", id.String(), expected,
			"deleted_at = ?, updated_at = ?", now, now,
		)
		if err != nil {
			return mapRowErr(err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

// ------------------ Lectura ------------------

func (r *VideoRepoSQL) GetByID(ctx context.Context, id uuid.UUID) (*videoDomain.Video, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = ? AND deleted_at IS NULL`, id.String())

	v, err := scanVideo(row)
	if err != nil {
		if persistence.IsNoRows(err) {
			return nil, videoDomain.ErrVideoNotFound
		}
		return nil, fmt.Errorf("db scan error: %w", err)
	}
	return v, nil
}

func (r *VideoRepoSQL) List(ctx context.Context, criteria sharedDomain.Criteria, page sharedQuery.CursorPagination) (sharedQuery.Page[*videoDomain.Video], error) {
	cursor, err := sharedQuery.DecodeCursor(page.Cursor)
	if err != nil {
		return sharedQuery.Page[*videoDomain.Video]{}, err
	}
	limit := sharedQuery.ClampLimit(page.Limit)

	query, args := persistence.KeysetQuery(
		`SELECT `+videoColumns+` FROM videos`,
		sharedDomain.And(criteria, sharedDomain.NotDeleted()), cursor, limit,
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return sharedQuery.Page[*videoDomain.Video]{}, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var videos []*videoDomain.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return sharedQuery.Page[*videoDomain.Video]{}, err
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return sharedQuery.Page[*videoDomain.Video]{}, err
	}

	return sharedQuery.NewPage(videos, limit, func(v *videoDomain.Video) sharedQuery.Cursor {
		return sharedQuery.Cursor{CreatedAt: v.CreatedAt, ID: v.ID.String()}
	}), nil
}

// ------------------ Validation runs ------------------

func (r *VideoRepoSQL) CreateRun(ctx context.Context, run *videoDomain.ValidationRun, evt sharedDomain.OutboxEvent) error {
	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		// El vídeo debe seguir vivo en la misma transacción
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM videos WHERE id = ? AND deleted_at IS NULL`+tx.ForUpdate(), run.VideoID.String(),
		).Scan(&exists)
		if persistence.IsNoRows(err) {
			return videoDomain.ErrVideoNotFound
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO validation_runs (id, video_id, status, issues, issues_count, error, created_at)
			 VALUES (?, ?, ?, '[]', 0, '', ?)`,
			run.ID, run.VideoID.String(), string(run.Status), run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

func (r *VideoRepoSQL) GetRun(ctx context.Context, id string) (*videoDomain.ValidationRun, error) {
	var run videoDomain.ValidationRun
	var status string
	var issues []byte
	var createdAt, completedAt persistence.Timestamp

	err := r.db.QueryRowContext(ctx,
		`SELECT id, video_id, status, issues, issues_count, error, created_at, completed_at
		 FROM validation_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.VideoID, &status, &issues, &run.IssuesCount, &run.Error, &createdAt, &completedAt)
	if err != nil {
		if persistence.IsNoRows(err) {
			return nil, videoDomain.ErrValidationRunNotFound
		}
		return nil, fmt.Errorf("db scan error: %w", err)
	}

	if err := json.Unmarshal(issues, &run.Issues); err != nil {
		return nil, fmt.Errorf("invalid issues in validation run %s: %w", id, err)
	}
	run.Status = videoDomain.RunStatus(status)
	run.CreatedAt = createdAt.Time
	run.CompletedAt = completedAt.Ptr()
	return &run, nil
}

func (r *VideoRepoSQL) FinishRun(ctx context.Context, run *videoDomain.ValidationRun, from videoDomain.RunStatus, evt sharedDomain.OutboxEvent) error {
	issues, err := json.Marshal(run.Issues)
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}

	return persistence.WithTx(ctx, r.db, func(tx *persistence.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE validation_runs SET status = ?, issues = ?, issues_count = ?, error = ?, completed_at = ?
			 WHERE id = ? AND status = ?`,
			string(run.Status), string(issues), run.IssuesCount, run.Error, persistence.NullTime(run.CompletedAt),
			run.ID, string(from),
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get RowsAffected: %w", err)
		}
		if rows == 0 {
			return videoDomain.ErrRunAlreadyFinished
		}
		return persistence.InsertOutboxTx(ctx, tx, evt)
	})
}

// ------------------ Helpers ------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(s scanner) (*videoDomain.Video, error) {
	var v videoDomain.Video
	var status string
	var createdAt, updatedAt, deletedAt persistence.Timestamp
	if err := s.Scan(&v.ID, &v.Title, &v.DurationSeconds, &v.SourceURL, &status, &v.Version,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	v.Status = videoDomain.VideoStatus(status)
	v.CreatedAt = createdAt.Time
	v.UpdatedAt = updatedAt.Time
	v.DeletedAt = deletedAt.Ptr()
	return &v, nil
}

func mapRowErr(err error) error {
	if errors.Is(err, persistence.ErrRowNotFound) {
		return videoDomain.ErrVideoNotFound
	}
	return err
}

var _ videoDomain.VideoRepository = (*VideoRepoSQL)(nil)
