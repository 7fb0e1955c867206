package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, plan_id, provider, provider_payment_charge_id, currency, amount, status, raw_payload, created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	const query = `
INSERT INTO payments (user_id, plan_id, provider, provider_payment_charge_id, currency, amount, status, raw_payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, payment.UserID, payment.PlanID, payment.Provider, payment.ProviderCharge, payment.Currency, payment.Amount, payment.Status, payment.RawPayload)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("payment last insert id: %w", err)
	}
	payment.ID = id
	return nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, paymentID int64, status string, payload string) error {
	const query = `UPDATE payments SET status = ?, raw_payload = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, payload, paymentID); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// FindByProviderCharge looks up a payment by the provider's charge id. Used
// to keep webhook redeliveries idempotent.
func (r *PaymentRepository) FindByProviderCharge(ctx context.Context, provider, chargeID string) (*models.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE provider = ? AND provider_payment_charge_id = ? LIMIT 1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, provider, chargeID))
	if err != nil {
		return nil, fmt.Errorf("find payment by charge: %w", err)
	}
	return p, nil
}

// ListRecent returns the newest payments first, capped at limit.
func (r *PaymentRepository) ListRecent(ctx context.Context, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + paymentColumns + ` FROM payments ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		var planID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.UserID, &planID, &p.Provider, &p.ProviderCharge, &p.Currency, &p.Amount, &p.Status, &p.RawPayload, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment list: %w", err)
		}
		if planID.Valid {
			p.PlanID = &planID.Int64
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row *sql.Row) (*models.Payment, error) {
	var p models.Payment
	var planID sql.NullInt64
	if err := row.Scan(&p.ID, &p.UserID, &planID, &p.Provider, &p.ProviderCharge, &p.Currency, &p.Amount, &p.Status, &p.RawPayload, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if planID.Valid {
		p.PlanID = &planID.Int64
	}
	return &p, nil
}
