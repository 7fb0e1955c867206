package service

import (
	"context"
	"fmt"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

// ModelCatalog is the AI-model side of the catalog, backed by the model
// repository in production.
type ModelCatalog interface {
	ListActive(ctx context.Context) ([]models.AIModel, error)
	GetByID(ctx context.Context, id string) (*models.AIModel, error)
	Upsert(ctx context.Context, m *models.AIModel) error
	Delete(ctx context.Context, id string) error
}

// PromptCatalog is the creation-prompt side of the catalog.
type PromptCatalog interface {
	ListActive(ctx context.Context) ([]models.CreationPrompt, error)
	GetByID(ctx context.Context, id int64) (*models.CreationPrompt, error)
	Create(ctx context.Context, p *models.CreationPrompt) (*models.CreationPrompt, error)
	Update(ctx context.Context, p *models.CreationPrompt) (*models.CreationPrompt, error)
	Delete(ctx context.Context, id int64) error
}

// CatalogService serves the member-facing model and prompt listings and their
// admin CRUD counterparts.
type CatalogService struct {
	modelRepo  ModelCatalog
	promptRepo PromptCatalog
}

func NewCatalogService(modelRepo ModelCatalog, promptRepo PromptCatalog) *CatalogService {
	return &CatalogService{modelRepo: modelRepo, promptRepo: promptRepo}
}

func (s *CatalogService) ListModels(ctx context.Context) ([]models.AIModel, error) {
	return s.modelRepo.ListActive(ctx)
}

func (s *CatalogService) GetModel(ctx context.Context, id string) (*models.AIModel, error) {
	return s.modelRepo.GetByID(ctx, id)
}

func (s *CatalogService) SaveModel(ctx context.Context, m *models.AIModel) error {
	if m.ID == "" {
		return fmt.Errorf("model id is required")
	}
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	return s.modelRepo.Upsert(ctx, m)
}

func (s *CatalogService) DeleteModel(ctx context.Context, id string) error {
	return s.modelRepo.Delete(ctx, id)
}

func (s *CatalogService) ListPrompts(ctx context.Context) ([]models.CreationPrompt, error) {
	return s.promptRepo.ListActive(ctx)
}

func (s *CatalogService) CreatePrompt(ctx context.Context, p *models.CreationPrompt) (*models.CreationPrompt, error) {
	if p.Title == "" || p.Body == "" {
		return nil, fmt.Errorf("title and body are required")
	}
	if !models.IsValidFunction(p.Function) {
		return nil, ErrInvalidFunction
	}
	return s.promptRepo.Create(ctx, p)
}

func (s *CatalogService) UpdatePrompt(ctx context.Context, p *models.CreationPrompt) (*models.CreationPrompt, error) {
	existing, err := s.promptRepo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("prompt not found")
	}
	if !models.IsValidFunction(p.Function) {
		return nil, ErrInvalidFunction
	}
	return s.promptRepo.Update(ctx, p)
}

func (s *CatalogService) DeletePrompt(ctx context.Context, id int64) error {
	return s.promptRepo.Delete(ctx, id)
}
