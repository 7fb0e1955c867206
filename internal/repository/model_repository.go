package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

type ModelRepository struct {
	db *sql.DB
}

func NewModelRepository(db *sql.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

const modelColumns = `id, name, COALESCE(logo_url, ''), can_image, can_video, can_prompt, credit_cost, is_active, created_at, updated_at`

func scanModel(scan func(dest ...any) error) (*models.AIModel, error) {
	var m models.AIModel
	var canImage, canVideo, canPrompt, isActive int
	if err := scan(&m.ID, &m.Name, &m.LogoURL, &canImage, &canVideo, &canPrompt, &m.CreditCost, &isActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.CanImage = canImage != 0
	m.CanVideo = canVideo != 0
	m.CanPrompt = canPrompt != 0
	m.IsActive = isActive != 0
	return &m, nil
}

func (r *ModelRepository) ListActive(ctx context.Context) ([]models.AIModel, error) {
	const query = `SELECT ` + modelColumns + ` FROM ai_models WHERE is_active = 1 ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var out []models.AIModel
	for rows.Next() {
		m, err := scanModel(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *ModelRepository) GetByID(ctx context.Context, id string) (*models.AIModel, error) {
	const query = `SELECT ` + modelColumns + ` FROM ai_models WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	m, err := scanModel(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get model: %w", err)
	}
	return m, nil
}

func (r *ModelRepository) Upsert(ctx context.Context, m *models.AIModel) error {
	const query = `
INSERT INTO ai_models (id, name, logo_url, can_image, can_video, can_prompt, credit_cost, is_active)
VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name = VALUES(name), logo_url = VALUES(logo_url), can_image = VALUES(can_image),
    can_video = VALUES(can_video), can_prompt = VALUES(can_prompt),
    credit_cost = VALUES(credit_cost), is_active = VALUES(is_active), updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, m.ID, m.Name, m.LogoURL,
		boolToInt(m.CanImage), boolToInt(m.CanVideo), boolToInt(m.CanPrompt), m.CreditCost, boolToInt(m.IsActive)); err != nil {
		return fmt.Errorf("upsert model: %w", err)
	}
	return nil
}

func (r *ModelRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM ai_models WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
