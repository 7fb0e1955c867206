package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

type CostRepository struct {
	db *sql.DB
}

func NewCostRepository(db *sql.DB) *CostRepository {
	return &CostRepository{db: db}
}

func (r *CostRepository) All(ctx context.Context) (map[models.FunctionID]int, error) {
	const query = `SELECT function_id, credits FROM action_costs`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list action costs: %w", err)
	}
	defer rows.Close()

	costs := make(map[models.FunctionID]int)
	for rows.Next() {
		var fn models.FunctionID
		var credits int
		if err := rows.Scan(&fn, &credits); err != nil {
			return nil, fmt.Errorf("scan action cost: %w", err)
		}
		costs[fn] = credits
	}
	return costs, rows.Err()
}

func (r *CostRepository) Set(ctx context.Context, fn models.FunctionID, credits int) error {
	const query = `
INSERT INTO action_costs (function_id, credits)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE credits = VALUES(credits), updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, fn, credits); err != nil {
		return fmt.Errorf("set action cost: %w", err)
	}
	return nil
}

// Seed inserts defaults for any function that has no cost row yet.
func (r *CostRepository) Seed(ctx context.Context, defaults map[models.FunctionID]int) error {
	for fn, credits := range defaults {
		const query = `INSERT IGNORE INTO action_costs (function_id, credits) VALUES (?, ?)`
		if _, err := r.db.ExecContext(ctx, query, fn, credits); err != nil {
			return fmt.Errorf("seed action cost %s: %w", fn, err)
		}
	}
	return nil
}
