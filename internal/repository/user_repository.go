package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, COALESCE(name, ''), api_token, credits, subscription_active, subscription_expires_at, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var active int
	var expires sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.APIToken, &u.Credits, &active, &expires, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.SubscriptionActive = active != 0
	if expires.Valid {
		t := expires.Time
		u.SubscriptionExpiresAt = &t
	}
	return &u, nil
}

func (r *UserRepository) FindByToken(ctx context.Context, token string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE api_token = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, token))
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	const query = `
INSERT INTO users (email, name, api_token, credits, subscription_active, subscription_expires_at)
VALUES (?, NULLIF(?, ''), ?, ?, ?, ?)`
	active := 0
	if user.SubscriptionActive {
		active = 1
	}
	res, err := r.db.ExecContext(ctx, query, user.Email, user.Name, user.APIToken, user.Credits, active, user.SubscriptionExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id
	return user, nil
}

// Deduct atomically removes amount credits from the user's balance. It
// reports false when the balance is too low; the row is left untouched in
// that case.
func (r *UserRepository) Deduct(ctx context.Context, userID int64, amount int) (bool, error) {
	const query = `
UPDATE users SET credits = credits - ?, updated_at = NOW()
WHERE id = ? AND credits >= ?`
	res, err := r.db.ExecContext(ctx, query, amount, userID, amount)
	if err != nil {
		return false, fmt.Errorf("deduct credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deduct rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *UserRepository) Grant(ctx context.Context, userID int64, amount int) error {
	const query = `UPDATE users SET credits = credits + ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, amount, userID); err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	return nil
}

func (r *UserRepository) Balance(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT credits FROM users WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var credits int
	if err := row.Scan(&credits); err != nil {
		return 0, fmt.Errorf("scan balance: %w", err)
	}
	return credits, nil
}

// ActivateSubscription extends the subscription until the given instant and
// flips the active flag.
func (r *UserRepository) ActivateSubscription(ctx context.Context, userID int64, until time.Time) error {
	const query = `
UPDATE users SET subscription_active = 1, subscription_expires_at = ?, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, until, userID); err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}
	return nil
}

func (r *UserRepository) DeactivateSubscription(ctx context.Context, userID int64) error {
	const query = `UPDATE users SET subscription_active = 0, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	return nil
}
