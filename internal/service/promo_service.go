package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/victorhdnz/goghlab-backend/internal/models"
	"github.com/victorhdnz/goghlab-backend/internal/repository"
)

var ErrPromoInvalid = errors.New("promo code invalid")
var ErrPromoAlreadyRedeemed = errors.New("promo code already redeemed")

// PromoStore persists promo codes. Redeem must refuse exhausted or repeated
// redemptions with the repository sentinels.
type PromoStore interface {
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	GetByID(ctx context.Context, id int64) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
	Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
	Update(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
	Delete(ctx context.Context, id int64) error
	Redeem(ctx context.Context, userID, promoID int64, bonus int) error
}

type PromoService struct {
	promos PromoStore
}

func NewPromoService(promos PromoStore) *PromoService {
	return &PromoService{promos: promos}
}

// Apply redeems a promo code for bonus credits. The usage counter, redemption
// record and credit grant move together or not at all.
func (s *PromoService) Apply(ctx context.Context, userID int64, code string, bonus int) error {
	promo, err := s.promos.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("get promo: %w", err)
	}
	if promo == nil {
		return ErrPromoInvalid
	}

	err = s.promos.Redeem(ctx, userID, promo.ID, bonus)
	switch {
	case errors.Is(err, repository.ErrPromoExhausted):
		return ErrPromoInvalid
	case errors.Is(err, repository.ErrPromoRedeemed):
		return ErrPromoAlreadyRedeemed
	}
	return err
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	return s.promos.List(ctx)
}

func (s *PromoService) GetByID(ctx context.Context, id int64) (*models.PromoCode, error) {
	return s.promos.GetByID(ctx, id)
}

func (s *PromoService) Create(ctx context.Context, code string, maxUses int) (*models.PromoCode, error) {
	if code == "" || maxUses <= 0 {
		return nil, fmt.Errorf("code and max_uses are required")
	}
	return s.promos.Create(ctx, &models.PromoCode{Code: code, MaxUses: maxUses})
}

func (s *PromoService) Update(ctx context.Context, id int64, code string, maxUses, uses int) (*models.PromoCode, error) {
	return s.promos.Update(ctx, &models.PromoCode{ID: id, Code: code, MaxUses: maxUses, Uses: uses})
}

func (s *PromoService) Delete(ctx context.Context, id int64) error {
	return s.promos.Delete(ctx, id)
}
