package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/victorhdnz/goghlab-backend/internal/models"
	"github.com/victorhdnz/goghlab-backend/internal/service"
)

func (s *Server) handleAdminListModels(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListModels(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if list == nil {
		list = []models.AIModel{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"models": list})
}

type adminModelRequest struct {
	Name       string `json:"name"`
	LogoURL    string `json:"logo_url"`
	CanImage   bool   `json:"can_image"`
	CanVideo   bool   `json:"can_video"`
	CanPrompt  bool   `json:"can_prompt"`
	CreditCost int    `json:"credit_cost"`
	IsActive   *bool  `json:"is_active"`
}

func (s *Server) handleAdminSaveModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req adminModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	model := models.AIModel{
		ID:         id,
		Name:       req.Name,
		LogoURL:    req.LogoURL,
		CanImage:   req.CanImage,
		CanVideo:   req.CanVideo,
		CanPrompt:  req.CanPrompt,
		CreditCost: req.CreditCost,
		IsActive:   true,
	}
	if req.IsActive != nil {
		model.IsActive = *req.IsActive
	}

	if err := s.catalog.SaveModel(r.Context(), &model); err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, model)
}

func (s *Server) handleAdminDeleteModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.catalog.DeleteModel(r.Context(), id); err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAdminListPrompts(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListPrompts(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if list == nil {
		list = []models.CreationPrompt{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"creation_prompts": list})
}

type adminPromptRequest struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`
	Function string `json:"function"`
	Position int    `json:"position"`
	IsActive *bool  `json:"is_active"`
}

func (r adminPromptRequest) toModel() models.CreationPrompt {
	p := models.CreationPrompt{
		Title:    r.Title,
		Subtitle: r.Subtitle,
		Body:     r.Body,
		Function: models.FunctionID(r.Function),
		Position: r.Position,
		IsActive: true,
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	return p
}

func (s *Server) handleAdminCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req adminPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	prompt := req.toModel()
	created, err := s.catalog.CreatePrompt(r.Context(), &prompt)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAdminUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	var req adminPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	prompt := req.toModel()
	prompt.ID = id
	updated, err := s.catalog.UpdatePrompt(r.Context(), &prompt)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAdminDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	if err := s.catalog.DeletePrompt(r.Context(), id); err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAdminListPlans(w http.ResponseWriter, r *http.Request) {
	list, err := s.plans.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if list == nil {
		list = []models.Plan{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"plans": list})
}

type adminPlanRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Currency        *string `json:"currency"`
	PriceMinorUnits *int    `json:"price_minor_units"`
	Credits         *int    `json:"credits"`
	PeriodDays      *int    `json:"period_days"`
	IsActive        *bool   `json:"is_active"`
}

func (s *Server) handleAdminCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req adminPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	input := service.CreatePlanInput{IsActive: req.IsActive}
	if req.Title != nil {
		input.Title = *req.Title
	}
	if req.Description != nil {
		input.Description = *req.Description
	}
	if req.Currency != nil {
		input.Currency = *req.Currency
	}
	if req.PriceMinorUnits != nil {
		input.PriceMinorUnits = *req.PriceMinorUnits
	}
	if req.Credits != nil {
		input.Credits = *req.Credits
	}
	if req.PeriodDays != nil {
		input.PeriodDays = *req.PeriodDays
	}

	plan, err := s.plans.Create(r.Context(), input)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleAdminUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	var req adminPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	plan, err := s.plans.Update(r.Context(), id, service.UpdatePlanInput{
		Title:           req.Title,
		Description:     req.Description,
		Currency:        req.Currency,
		PriceMinorUnits: req.PriceMinorUnits,
		Credits:         req.Credits,
		PeriodDays:      req.PeriodDays,
		IsActive:        req.IsActive,
	})
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleAdminDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	if err := s.plans.Delete(r.Context(), id); err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAdminListCosts(w http.ResponseWriter, r *http.Request) {
	costs, err := s.credits.Costs(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"costByAction": costs})
}

type adminCostRequest struct {
	Credits int `json:"credits"`
}

func (s *Server) handleAdminSetCost(w http.ResponseWriter, r *http.Request) {
	fn := models.FunctionID(chi.URLParam(r, "function"))

	var req adminCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	if err := s.credits.SetCost(r.Context(), fn, req.Credits); err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"function": fn, "credits": req.Credits})
}

func (s *Server) handleAdminListPayments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := parseID(raw); err == nil && parsed > 0 {
			limit = int(parsed)
		}
	}
	list, err := s.payments.ListRecent(r.Context(), limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if list == nil {
		list = []models.Payment{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"payments": list})
}

func (s *Server) handleAdminListPromos(w http.ResponseWriter, r *http.Request) {
	list, err := s.promos.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if list == nil {
		list = []models.PromoCode{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"promo_codes": list})
}

type adminPromoRequest struct {
	Code    string `json:"code"`
	MaxUses int    `json:"max_uses"`
	Uses    int    `json:"uses"`
}

func (s *Server) handleAdminCreatePromo(w http.ResponseWriter, r *http.Request) {
	var req adminPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	promo, err := s.promos.Create(r.Context(), req.Code, req.MaxUses)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, promo)
}

func (s *Server) handleAdminUpdatePromo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	var req adminPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	promo, err := s.promos.Update(r.Context(), id, req.Code, req.MaxUses, req.Uses)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, promo)
}

func (s *Server) handleAdminDeletePromo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	if err := s.promos.Delete(r.Context(), id); err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
