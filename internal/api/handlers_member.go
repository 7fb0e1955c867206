package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/victorhdnz/goghlab-backend/internal/models"
	"github.com/victorhdnz/goghlab-backend/internal/service"
)

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	costs, err := s.credits.Costs(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"costByAction": costs})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
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

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
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

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
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

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user == nil {
		s.writeServiceError(w, service.ErrLoginRequired)
		return
	}
	balance, err := s.credits.Balance(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"credits": balance})
}

type generateRequest struct {
	Tab        string `json:"tab"`
	Prompt     string `json:"prompt"`
	ModelID    string `json:"modelId"`
	PromptID   string `json:"promptId"`
	CreditCost int    `json:"creditCost"`
}

type generateResponse struct {
	UserMessage      *models.ChatMessage `json:"userMessage,omitempty"`
	AssistantMessage models.ChatMessage  `json:"assistantMessage"`
	VideoID          string              `json:"videoId,omitempty"`
	CreditCost       int                 `json:"creditCost"`
	Code             string              `json:"code,omitempty"`
	Error            string              `json:"error,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	result, err := s.creation.Submit(r.Context(), userFrom(r.Context()), service.SubmitInput{
		Function:   models.FunctionID(req.Tab),
		Prompt:     req.Prompt,
		ModelID:    req.ModelID,
		PromptID:   req.PromptID,
		CreditCost: req.CreditCost,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeSubmitResult(w, result)
}

type regenerateRequest struct {
	MessageID string `json:"messageId"`
	Tab       string `json:"tab"`
	PromptID  string `json:"promptId"`
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	result, err := s.creation.Regenerate(r.Context(), userFrom(r.Context()), service.RegenerateInput{
		MessageID: req.MessageID,
		Function:  models.FunctionID(req.Tab),
		PromptID:  req.PromptID,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeSubmitResult(w, result)
}

// writeSubmitResult renders a classified generation outcome. An upstream
// credit rejection keeps the assistant message but answers 402 so the client
// shows the credits modal.
func (s *Server) writeSubmitResult(w http.ResponseWriter, result *service.SubmitResult) {
	resp := generateResponse{
		UserMessage:      result.UserMessage,
		AssistantMessage: result.AssistantMessage,
		VideoID:          result.VideoID,
		CreditCost:       result.Cost,
	}
	status := http.StatusOK
	if result.InsufficientCredits {
		status = http.StatusPaymentRequired
		resp.Code = "insufficient_credits"
		resp.Error = result.AssistantMessage.Content
	}
	s.writeJSON(w, status, resp)
}

type videoStatusResponse struct {
	Status      string `json:"status"`
	VideoURL    string `json:"videoUrl,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Message     string `json:"message,omitempty"`
}

func (s *Server) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("videoId")
	if videoID == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "videoId is required")
		return
	}

	job, err := s.creation.VideoStatus(r.Context(), userFrom(r.Context()), videoID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "video job not found")
		return
	}

	resp := videoStatusResponse{Status: string(job.Status)}
	switch job.Status {
	case models.VideoJobCompleted:
		resp.VideoURL = job.ArtifactURL
	case models.VideoJobFailed:
		resp.Message = job.ErrorMessage
		if resp.Message == "" {
			resp.Message = service.VideoFailedMessage
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	fn := models.FunctionID(r.URL.Query().Get("tab"))
	promptID := r.URL.Query().Get("promptId")

	messages, err := s.creation.Messages(r.Context(), userFrom(r.Context()), fn, promptID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type redeemRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleRedeemPromo(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user == nil {
		s.writeServiceError(w, service.ErrLoginRequired)
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "code is required")
		return
	}

	if err := s.promos.Apply(r.Context(), user.ID, req.Code, s.promoBonus); err != nil {
		switch {
		case errors.Is(err, service.ErrPromoInvalid):
			s.writeError(w, http.StatusBadRequest, "promo_invalid", "Código promocional inválido.")
		case errors.Is(err, service.ErrPromoAlreadyRedeemed):
			s.writeError(w, http.StatusBadRequest, "promo_redeemed", "Este código já foi utilizado.")
		default:
			s.internalError(w, err)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"credits_added": s.promoBonus})
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "read body error")
		return
	}
	signature := r.Header.Get("X-Signature")
	if err := s.payments.HandleWebhook(r.Context(), body, signature); err != nil {
		if errors.Is(err, service.ErrWebhookSignature) {
			s.writeError(w, http.StatusUnauthorized, "invalid_signature", "invalid signature")
			return
		}
		s.log.Error("payment webhook", "err", err)
		s.writeError(w, http.StatusBadRequest, "bad_request", "webhook rejected")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
