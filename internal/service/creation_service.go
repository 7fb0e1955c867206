package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victorhdnz/goghlab-backend/internal/config"
	"github.com/victorhdnz/goghlab-backend/internal/conversation"
	"github.com/victorhdnz/goghlab-backend/internal/models"
	"github.com/victorhdnz/goghlab-backend/internal/provider"
)

var (
	ErrLoginRequired         = errors.New("login required")
	ErrSubscriptionRequired  = errors.New("active subscription required")
	ErrInvalidFunction       = errors.New("unknown creation function")
	ErrPromptRequired        = errors.New("prompt is required")
	ErrMessageNotRegenerable = errors.New("message cannot be regenerated")
)

// User-facing strings. Internal error detail never reaches the member; every
// unexpected failure collapses into GenericServiceMessage.
const (
	VideoProcessingMessage     = "Estamos gerando seu vídeo. Isso pode levar alguns minutos..."
	GenericServiceMessage      = "Não foi possível concluir sua solicitação agora. Tente novamente em alguns instantes."
	InsufficientCreditsMessage = "Seus créditos acabaram. Recarregue seu plano para continuar criando."
	VideoFailedMessage         = "Não conseguimos gerar seu vídeo. Tente novamente."
	DoneMessage                = "Pronto."
)

// GenerationClient submits prompts to the upstream vendor.
type GenerationClient interface {
	Generate(ctx context.Context, req provider.GenerateRequest) (*provider.Result, error)
}

// ModelSource resolves model metadata (logo, per-model cost override).
type ModelSource interface {
	GetByID(ctx context.Context, id string) (*models.AIModel, error)
}

// VideoJobStore records async video jobs and their terminal outcomes.
type VideoJobStore interface {
	Create(ctx context.Context, job *models.VideoJob) error
	Get(ctx context.Context, videoID string) (*models.VideoJob, error)
	MarkCompleted(ctx context.Context, videoID, artifactURL string) error
	MarkFailed(ctx context.Context, videoID, message string) error
}

// GenerationLogStore keeps the charged-generation audit trail.
type GenerationLogStore interface {
	Log(ctx context.Context, entry models.GenerationLog) error
}

// VideoWatcher runs the async poll chain for a video job. Watch must only be
// called once the placeholder message is persisted, so the chain's terminal
// mutation always finds its target.
type VideoWatcher interface {
	Watch(job models.VideoJob)
	CancelWatch(messageID string)
}

// CreationService runs the credit-gated creation flow: authentication and
// subscription checks, atomic pre-deduction, submission, response
// classification and in-place regeneration. Credits are charged before the
// request is sent and are not refunded on downstream failure.
type CreationService struct {
	cfg         config.Config
	log         *slog.Logger
	credits     *CreditsService
	modelSource ModelSource
	client      GenerationClient
	store       conversation.Store
	jobs        VideoJobStore
	poller      VideoWatcher
	generations GenerationLogStore
	now         func() time.Time
}

func NewCreationService(cfg config.Config, log *slog.Logger, credits *CreditsService, modelSource ModelSource, client GenerationClient, store conversation.Store, jobs VideoJobStore, poller VideoWatcher, generations GenerationLogStore) *CreationService {
	return &CreationService{
		cfg:         cfg,
		log:         log,
		credits:     credits,
		modelSource: modelSource,
		client:      client,
		store:       store,
		jobs:        jobs,
		poller:      poller,
		generations: generations,
		now:         time.Now,
	}
}

type SubmitInput struct {
	Function models.FunctionID
	Prompt   string
	ModelID  string
	PromptID string
	// CreditCost overrides the computed cost when positive (templated
	// prompts may carry their own price).
	CreditCost int
}

type RegenerateInput struct {
	MessageID string
	Function  models.FunctionID
	PromptID  string
}

// SubmitResult is what the API layer renders back to the member. When
// InsufficientCredits is set, the upstream rejected the generation after our
// own deduction succeeded; the assistant message already carries the
// user-visible text and the transport maps the result to HTTP 402.
type SubmitResult struct {
	ContextKey          string
	UserMessage         *models.ChatMessage
	AssistantMessage    models.ChatMessage
	Cost                int
	VideoID             string
	InsufficientCredits bool
}

// Submit runs the full gate for a fresh or templated submission. The
// preconditions are checked in a fixed order and nothing is sent upstream
// unless the deduction succeeds.
func (s *CreationService) Submit(ctx context.Context, user *models.User, in SubmitInput) (*SubmitResult, error) {
	if user == nil {
		return nil, ErrLoginRequired
	}
	if !user.HasActiveSubscription(s.now()) {
		return nil, ErrSubscriptionRequired
	}
	if !models.IsValidFunction(in.Function) {
		return nil, ErrInvalidFunction
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, ErrPromptRequired
	}

	model, err := s.lookupModel(ctx, in.ModelID)
	if err != nil {
		return nil, err
	}

	cost := s.resolveCost(ctx, in.CreditCost, model, in.Function)
	if err := s.credits.Deduct(ctx, user.ID, cost); err != nil {
		return nil, err
	}

	key := conversation.ContextKey(in.Function, in.PromptID)
	userMsg := models.ChatMessage{
		ID:        uuid.NewString(),
		From:      models.OriginUser,
		Content:   in.Prompt,
		CreatedAt: s.now(),
	}
	if err := s.appendMessages(ctx, key, userMsg); err != nil {
		return nil, err
	}

	assistant := models.ChatMessage{
		ID:        uuid.NewString(),
		From:      models.OriginAssistant,
		CreatedAt: s.now(),
	}
	if model != nil {
		assistant.ModelLogoURL = model.LogoURL
	}

	result := &SubmitResult{ContextKey: key, UserMessage: &userMsg, Cost: cost}

	res, genErr := s.client.Generate(ctx, provider.GenerateRequest{
		Function: in.Function,
		Prompt:   in.Prompt,
		ModelID:  in.ModelID,
	})
	resultType, watchJob := s.applyOutcome(ctx, user, key, &assistant, res, genErr, in.Prompt, in.ModelID, cost, result)

	if err := s.appendMessages(ctx, key, assistant); err != nil {
		return nil, err
	}
	result.AssistantMessage = assistant

	// The poll chain starts only after the placeholder is persisted; its
	// terminal write mutates that message in place.
	if watchJob != nil && s.poller != nil {
		s.poller.Watch(*watchJob)
	}

	s.logGeneration(ctx, user.ID, in.Function, in.ModelID, in.Prompt, cost, resultType)
	return result, nil
}

// Regenerate re-runs generation for an existing assistant message, replacing
// its content in place. The full gate applies again: a regeneration is a new
// charged attempt, never an automatic retry.
func (s *CreationService) Regenerate(ctx context.Context, user *models.User, in RegenerateInput) (*SubmitResult, error) {
	if user == nil {
		return nil, ErrLoginRequired
	}
	if !user.HasActiveSubscription(s.now()) {
		return nil, ErrSubscriptionRequired
	}
	if !models.IsValidFunction(in.Function) {
		return nil, ErrInvalidFunction
	}

	key := conversation.ContextKey(in.Function, in.PromptID)
	messages, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	idx := -1
	for i := range messages {
		if messages[i].ID == in.MessageID && messages[i].From == models.OriginAssistant {
			idx = i
			break
		}
	}
	if idx < 0 || messages[idx].RegeneratePrompt == "" {
		return nil, ErrMessageNotRegenerable
	}
	target := messages[idx]

	// Cost preference: per-message snapshot, then the current function
	// cost, then a literal 1-credit fallback.
	cost := target.RegenerateCreditCost
	if cost <= 0 {
		cost = s.credits.CostFor(ctx, in.Function)
	}
	if cost <= 0 {
		cost = 1
	}
	if err := s.credits.Deduct(ctx, user.ID, cost); err != nil {
		return nil, err
	}

	// A new attempt supersedes any still-running poll chain for this
	// message.
	if s.poller != nil {
		s.poller.CancelWatch(target.ID)
	}

	prompt := target.RegeneratePrompt
	target.Content = ""
	target.ImageDataURL = ""
	target.VideoDataURL = ""

	result := &SubmitResult{ContextKey: key, Cost: cost}

	res, genErr := s.client.Generate(ctx, provider.GenerateRequest{
		Function: in.Function,
		Prompt:   prompt,
		ModelID:  "",
	})
	resultType, watchJob := s.applyOutcome(ctx, user, key, &target, res, genErr, prompt, "", cost, result)

	// Only the regenerated message is replaced, under the store's per-key
	// serialization. Outcomes landing on other messages while the provider
	// call was in flight stay intact.
	if err := s.store.Update(ctx, key, func(current []models.ChatMessage) []models.ChatMessage {
		for i := range current {
			if current[i].ID == target.ID {
				current[i] = target
				break
			}
		}
		return current
	}); err != nil {
		return nil, fmt.Errorf("store conversation: %w", err)
	}
	result.AssistantMessage = target

	if watchJob != nil && s.poller != nil {
		s.poller.Watch(*watchJob)
	}

	s.logGeneration(ctx, user.ID, in.Function, "", prompt, cost, resultType)
	return result, nil
}

// Messages returns the persisted conversation for one context.
func (s *CreationService) Messages(ctx context.Context, user *models.User, fn models.FunctionID, promptID string) ([]models.ChatMessage, error) {
	if user == nil {
		return nil, ErrLoginRequired
	}
	if !models.IsValidFunction(fn) {
		return nil, ErrInvalidFunction
	}
	return s.store.Get(ctx, conversation.ContextKey(fn, promptID))
}

// VideoStatus reports the recorded state of a video job. Jobs are only
// visible to their owner.
func (s *CreationService) VideoStatus(ctx context.Context, user *models.User, videoID string) (*models.VideoJob, error) {
	if user == nil {
		return nil, ErrLoginRequired
	}
	job, err := s.jobs.Get(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video job: %w", err)
	}
	if job == nil || job.UserID != user.ID {
		return nil, nil
	}
	return job, nil
}

// applyOutcome classifies the generation response (or failure) into exactly
// one mutation of the assistant message. It returns the audit result type
// and, for video outcomes, the job whose poll chain the caller starts after
// persisting the message.
func (s *CreationService) applyOutcome(ctx context.Context, user *models.User, key string, msg *models.ChatMessage, res *provider.Result, genErr error, prompt, modelID string, cost int, out *SubmitResult) (string, *models.VideoJob) {
	if genErr != nil {
		if perr, ok := provider.AsError(genErr); ok && perr.CreditsExhausted() {
			msg.Content = perr.Message
			if msg.Content == "" {
				msg.Content = InsufficientCreditsMessage
			}
			out.InsufficientCredits = true
			return "error", nil
		}
		s.log.Error("generation failed", "function", key, "err", genErr)
		msg.Content = GenericServiceMessage
		return "error", nil
	}

	switch res.Kind {
	case provider.KindImage:
		contentType := res.ContentType
		if contentType == "" {
			contentType = "image/png"
		}
		msg.Content = ""
		msg.ImageDataURL = "data:" + contentType + ";base64," + res.ImageBase64
		msg.RegeneratePrompt = prompt
		msg.RegenerateCreditCost = cost
		return "image", nil

	case provider.KindVideo:
		msg.Content = VideoProcessingMessage
		msg.RegeneratePrompt = prompt
		msg.RegenerateCreditCost = cost
		job := models.VideoJob{
			VideoID:      res.VideoID,
			UserID:       user.ID,
			MessageID:    msg.ID,
			ContextKey:   key,
			ModelID:      modelID,
			ModelLogoURL: msg.ModelLogoURL,
			Status:       models.VideoJobPending,
		}
		if err := s.jobs.Create(ctx, &job); err != nil {
			s.log.Error("failed to record video job", "video_id", job.VideoID, "err", err)
		}
		out.VideoID = res.VideoID
		return "video", &job

	case provider.KindText:
		msg.Content = res.Text
		msg.RegeneratePrompt = prompt
		msg.RegenerateCreditCost = cost
		return "text", nil

	default:
		msg.Content = res.Message
		if msg.Content == "" {
			msg.Content = DoneMessage
		}
		return "other", nil
	}
}

func (s *CreationService) lookupModel(ctx context.Context, modelID string) (*models.AIModel, error) {
	if modelID == "" {
		return nil, nil
	}
	model, err := s.modelSource.GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("lookup model: %w", err)
	}
	return model, nil
}

func (s *CreationService) resolveCost(ctx context.Context, override int, model *models.AIModel, fn models.FunctionID) int {
	if override > 0 {
		return override
	}
	if model != nil && model.CreditCost > 0 {
		return model.CreditCost
	}
	return s.credits.CostFor(ctx, fn)
}

func (s *CreationService) appendMessages(ctx context.Context, key string, msgs ...models.ChatMessage) error {
	err := s.store.Update(ctx, key, func(existing []models.ChatMessage) []models.ChatMessage {
		return append(existing, msgs...)
	})
	if err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	return nil
}

func (s *CreationService) logGeneration(ctx context.Context, userID int64, fn models.FunctionID, modelID, prompt string, cost int, resultType string) {
	if s.generations == nil {
		return
	}
	entry := models.GenerationLog{
		UserID:     userID,
		Function:   fn,
		ModelID:    modelID,
		Prompt:     prompt,
		Cost:       cost,
		ResultType: resultType,
	}
	if err := s.generations.Log(ctx, entry); err != nil {
		s.log.Error("failed to log generation", "err", err)
	}
}
