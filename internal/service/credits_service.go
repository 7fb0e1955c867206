package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/victorhdnz/goghlab-backend/internal/config"
	"github.com/victorhdnz/goghlab-backend/internal/models"
)

// ErrInsufficientCredits is the one deduction failure that is surfaced to the
// user as such; every other failure collapses into the generic service error.
var ErrInsufficientCredits = errors.New("insufficient credits")

// CreditLedger is the balance side of the credits service, backed by the
// user repository in production.
type CreditLedger interface {
	Deduct(ctx context.Context, userID int64, amount int) (bool, error)
	Grant(ctx context.Context, userID int64, amount int) error
	Balance(ctx context.Context, userID int64) (int, error)
}

// CostSource provides the per-function credit costs.
type CostSource interface {
	All(ctx context.Context) (map[models.FunctionID]int, error)
	Set(ctx context.Context, fn models.FunctionID, credits int) error
}

type CreditsService struct {
	cfg    config.Config
	log    *slog.Logger
	ledger CreditLedger
	costs  CostSource
}

func NewCreditsService(cfg config.Config, log *slog.Logger, ledger CreditLedger, costs CostSource) *CreditsService {
	return &CreditsService{cfg: cfg, log: log, ledger: ledger, costs: costs}
}

// Costs returns the cost of every function, filling gaps with the configured
// default so callers always see a complete map.
func (s *CreditsService) Costs(ctx context.Context) (map[models.FunctionID]int, error) {
	stored, err := s.costs.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load action costs: %w", err)
	}
	out := s.cfg.DefaultActionCosts()
	for fn, credits := range stored {
		out[fn] = credits
	}
	return out, nil
}

// CostFor resolves the cost of one function. Lookup failures fall back to
// the configured default rather than blocking the submission.
func (s *CreditsService) CostFor(ctx context.Context, fn models.FunctionID) int {
	stored, err := s.costs.All(ctx)
	if err != nil {
		s.log.Error("action cost lookup failed, using default", "function", fn, "err", err)
		return s.defaultCost()
	}
	if credits, ok := stored[fn]; ok && credits > 0 {
		return credits
	}
	return s.defaultCost()
}

func (s *CreditsService) defaultCost() int {
	if s.cfg.DefaultActionCost > 0 {
		return s.cfg.DefaultActionCost
	}
	return 1
}

// Deduct atomically charges the user. The outcome is discriminated: nil on
// success, ErrInsufficientCredits when the balance is too low, any other
// error for infrastructure failures.
func (s *CreditsService) Deduct(ctx context.Context, userID int64, amount int) error {
	ok, err := s.ledger.Deduct(ctx, userID, amount)
	if err != nil {
		return fmt.Errorf("deduct credits: %w", err)
	}
	if !ok {
		return ErrInsufficientCredits
	}
	return nil
}

func (s *CreditsService) Grant(ctx context.Context, userID int64, amount int) error {
	if err := s.ledger.Grant(ctx, userID, amount); err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	return nil
}

func (s *CreditsService) Balance(ctx context.Context, userID int64) (int, error) {
	return s.ledger.Balance(ctx, userID)
}

func (s *CreditsService) SetCost(ctx context.Context, fn models.FunctionID, credits int) error {
	if !models.IsValidFunction(fn) {
		return ErrInvalidFunction
	}
	if credits <= 0 {
		return fmt.Errorf("credits must be positive")
	}
	return s.costs.Set(ctx, fn, credits)
}
