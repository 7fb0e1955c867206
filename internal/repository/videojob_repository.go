package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

type VideoJobRepository struct {
	db *sql.DB
}

func NewVideoJobRepository(db *sql.DB) *VideoJobRepository {
	return &VideoJobRepository{db: db}
}

func (r *VideoJobRepository) Create(ctx context.Context, job *models.VideoJob) error {
	const query = `
INSERT INTO video_jobs (video_id, user_id, message_id, context_key, model_id, model_logo_url, status)
VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)`
	if _, err := r.db.ExecContext(ctx, query, job.VideoID, job.UserID, job.MessageID, job.ContextKey, job.ModelID, job.ModelLogoURL, models.VideoJobPending); err != nil {
		return fmt.Errorf("insert video job: %w", err)
	}
	return nil
}

func (r *VideoJobRepository) Get(ctx context.Context, videoID string) (*models.VideoJob, error) {
	const query = `
SELECT video_id, user_id, message_id, context_key, COALESCE(model_id, ''), COALESCE(model_logo_url, ''), status, COALESCE(artifact_url, ''), COALESCE(error_message, ''), created_at, updated_at
FROM video_jobs WHERE video_id = ?`
	row := r.db.QueryRowContext(ctx, query, videoID)
	var job models.VideoJob
	if err := row.Scan(&job.VideoID, &job.UserID, &job.MessageID, &job.ContextKey, &job.ModelID, &job.ModelLogoURL, &job.Status, &job.ArtifactURL, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan video job: %w", err)
	}
	return &job, nil
}

func (r *VideoJobRepository) MarkCompleted(ctx context.Context, videoID, artifactURL string) error {
	const query = `
UPDATE video_jobs SET status = ?, artifact_url = NULLIF(?, ''), updated_at = NOW()
WHERE video_id = ?`
	if _, err := r.db.ExecContext(ctx, query, models.VideoJobCompleted, artifactURL, videoID); err != nil {
		return fmt.Errorf("mark video job completed: %w", err)
	}
	return nil
}

func (r *VideoJobRepository) MarkFailed(ctx context.Context, videoID, message string) error {
	const query = `
UPDATE video_jobs SET status = ?, error_message = NULLIF(?, ''), updated_at = NOW()
WHERE video_id = ?`
	if _, err := r.db.ExecContext(ctx, query, models.VideoJobFailed, message, videoID); err != nil {
		return fmt.Errorf("mark video job failed: %w", err)
	}
	return nil
}

// ListPending returns jobs that were still in flight when the process last
// stopped, so their poll chains can be resumed on boot.
func (r *VideoJobRepository) ListPending(ctx context.Context) ([]models.VideoJob, error) {
	const query = `
SELECT video_id, user_id, message_id, context_key, COALESCE(model_id, ''), COALESCE(model_logo_url, ''), status, COALESCE(artifact_url, ''), COALESCE(error_message, ''), created_at, updated_at
FROM video_jobs WHERE status = ?`
	rows, err := r.db.QueryContext(ctx, query, models.VideoJobPending)
	if err != nil {
		return nil, fmt.Errorf("list pending video jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.VideoJob
	for rows.Next() {
		var job models.VideoJob
		if err := rows.Scan(&job.VideoID, &job.UserID, &job.MessageID, &job.ContextKey, &job.ModelID, &job.ModelLogoURL, &job.Status, &job.ArtifactURL, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pending video job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
