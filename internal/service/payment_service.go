package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/victorhdnz/goghlab-backend/internal/config"
	"github.com/victorhdnz/goghlab-backend/internal/models"
)

var ErrWebhookSignature = errors.New("invalid webhook signature")

// Charge processing states. A charge stays in paymentProcessing until the
// grant and activation land, so a redelivery can retry a half-processed event.
const (
	paymentSucceeded  = "succeeded"
	paymentProcessing = "processing"
)

// PaymentStore persists webhook events keyed by the provider's charge id.
type PaymentStore interface {
	FindByProviderCharge(ctx context.Context, provider, chargeID string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, paymentID int64, status string, payload string) error
	ListRecent(ctx context.Context, limit int) ([]models.Payment, error)
}

// SubscriberAccounts is the slice of the user store a paid charge touches.
type SubscriberAccounts interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Grant(ctx context.Context, userID int64, amount int) error
	ActivateSubscription(ctx context.Context, userID int64, until time.Time) error
}

// PlanSource resolves the purchased plan for a charge.
type PlanSource interface {
	GetByID(ctx context.Context, id int64) (*models.Plan, error)
	GetDefault(ctx context.Context) (*models.Plan, error)
}

// PaymentService consumes payment-provider webhooks. A succeeded payment
// grants the purchased plan's credits and activates the subscription for the
// plan period. Events are idempotent per provider charge id.
type PaymentService struct {
	cfg      config.Config
	log      *slog.Logger
	payments PaymentStore
	users    SubscriberAccounts
	plans    PlanSource
	now      func() time.Time
}

func NewPaymentService(cfg config.Config, log *slog.Logger, payments PaymentStore, users SubscriberAccounts, plans PlanSource) *PaymentService {
	return &PaymentService{
		cfg:      cfg,
		log:      log,
		payments: payments,
		users:    users,
		plans:    plans,
		now:      time.Now,
	}
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payment struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Currency string `json:"currency"`
		Amount   int    `json:"amount"`
		Metadata struct {
			UserID int64 `json:"user_id"`
			PlanID int64 `json:"plan_id"`
		} `json:"metadata"`
	} `json:"payment"`
}

// HandleWebhook processes one provider callback. The signature is an HMAC of
// the raw body with the configured webhook secret; when no secret is set the
// check is skipped (local development).
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if s.cfg.PaymentWebhookSecret != "" && !s.verifySignature(body, signature) {
		return ErrWebhookSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}
	if event.Payment.ID == "" {
		return fmt.Errorf("webhook payload missing payment id")
	}

	existing, err := s.payments.FindByProviderCharge(ctx, s.cfg.PaymentProvider, event.Payment.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status == paymentSucceeded {
		// Providers redeliver; the first successful processing wins.
		return nil
	}

	if event.Payment.Status != paymentSucceeded {
		_, err := s.recordPayment(ctx, existing, event, body, event.Payment.Status)
		return err
	}

	user, err := s.users.FindByID(ctx, event.Payment.Metadata.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("webhook for unknown user %d", event.Payment.Metadata.UserID)
	}

	plan, err := s.resolvePlan(ctx, event.Payment.Metadata.PlanID)
	if err != nil {
		return err
	}

	// The charge is recorded as processing first and only flipped to
	// succeeded once the grant and activation land. An error in between
	// leaves the row retriable, so the provider's redelivery finishes the
	// job instead of being dropped by the idempotency guard above.
	record, err := s.recordPayment(ctx, existing, event, body, paymentProcessing)
	if err != nil {
		return err
	}

	if err := s.users.Grant(ctx, user.ID, plan.Credits); err != nil {
		return err
	}
	until := s.now().Add(time.Duration(plan.PeriodDays) * 24 * time.Hour)
	if user.SubscriptionExpiresAt != nil && user.SubscriptionExpiresAt.After(s.now()) {
		until = user.SubscriptionExpiresAt.Add(time.Duration(plan.PeriodDays) * 24 * time.Hour)
	}
	if err := s.users.ActivateSubscription(ctx, user.ID, until); err != nil {
		return err
	}

	if err := s.payments.UpdateStatus(ctx, record.ID, paymentSucceeded, string(body)); err != nil {
		return err
	}

	s.log.Info("payment processed", "user_id", user.ID, "plan_id", plan.ID, "credits", plan.Credits, "charge", event.Payment.ID)
	return nil
}

// ListRecent exposes the newest payments to the admin panel.
func (s *PaymentService) ListRecent(ctx context.Context, limit int) ([]models.Payment, error) {
	return s.payments.ListRecent(ctx, limit)
}

func (s *PaymentService) resolvePlan(ctx context.Context, planID int64) (*models.Plan, error) {
	if planID > 0 {
		plan, err := s.plans.GetByID(ctx, planID)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			return plan, nil
		}
	}
	plan, err := s.plans.GetDefault(ctx)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("no active plan configured")
	}
	return plan, nil
}

func (s *PaymentService) recordPayment(ctx context.Context, existing *models.Payment, event webhookEvent, body []byte, status string) (*models.Payment, error) {
	if existing != nil {
		if err := s.payments.UpdateStatus(ctx, existing.ID, status, string(body)); err != nil {
			return nil, err
		}
		existing.Status = status
		return existing, nil
	}
	var planID *int64
	if event.Payment.Metadata.PlanID > 0 {
		id := event.Payment.Metadata.PlanID
		planID = &id
	}
	record := &models.Payment{
		UserID:         event.Payment.Metadata.UserID,
		PlanID:         planID,
		Provider:       s.cfg.PaymentProvider,
		ProviderCharge: event.Payment.ID,
		Currency:       event.Payment.Currency,
		Amount:         event.Payment.Amount,
		Status:         status,
		RawPayload:     string(body),
	}
	if err := s.payments.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	return record, nil
}

func (s *PaymentService) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.cfg.PaymentWebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
