package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

type PromptRepository struct {
	db *sql.DB
}

func NewPromptRepository(db *sql.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

const promptColumns = `id, title, COALESCE(subtitle, ''), body, function_id, position, is_active, created_at, updated_at`

func scanPrompt(scan func(dest ...any) error) (*models.CreationPrompt, error) {
	var p models.CreationPrompt
	var isActive int
	if err := scan(&p.ID, &p.Title, &p.Subtitle, &p.Body, &p.Function, &p.Position, &isActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.IsActive = isActive != 0
	return &p, nil
}

func (r *PromptRepository) ListActive(ctx context.Context) ([]models.CreationPrompt, error) {
	const query = `SELECT ` + promptColumns + ` FROM creation_prompts WHERE is_active = 1 ORDER BY position ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var out []models.CreationPrompt
	for rows.Next() {
		p, err := scanPrompt(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PromptRepository) GetByID(ctx context.Context, id int64) (*models.CreationPrompt, error) {
	const query = `SELECT ` + promptColumns + ` FROM creation_prompts WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	p, err := scanPrompt(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return p, nil
}

func (r *PromptRepository) Create(ctx context.Context, p *models.CreationPrompt) (*models.CreationPrompt, error) {
	const query = `
INSERT INTO creation_prompts (title, subtitle, body, function_id, position, is_active)
VALUES (?, NULLIF(?, ''), ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, p.Title, p.Subtitle, p.Body, p.Function, p.Position, boolToInt(p.IsActive))
	if err != nil {
		return nil, fmt.Errorf("create prompt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("prompt last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PromptRepository) Update(ctx context.Context, p *models.CreationPrompt) (*models.CreationPrompt, error) {
	const query = `
UPDATE creation_prompts
SET title = ?, subtitle = NULLIF(?, ''), body = ?, function_id = ?, position = ?, is_active = ?, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, p.Title, p.Subtitle, p.Body, p.Function, p.Position, boolToInt(p.IsActive), p.ID); err != nil {
		return nil, fmt.Errorf("update prompt: %w", err)
	}
	return r.GetByID(ctx, p.ID)
}

func (r *PromptRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM creation_prompts WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	return nil
}
