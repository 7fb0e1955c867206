// Package api exposes the member-facing creation endpoints and the admin
// panel over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/victorhdnz/goghlab-backend/internal/models"
	"github.com/victorhdnz/goghlab-backend/internal/service"
)

type Server struct {
	addr          string
	adminUsername string
	adminPassword string
	promoBonus    int
	log           *slog.Logger
	users         *service.UserService
	creation      *service.CreationService
	credits       *service.CreditsService
	catalog       *service.CatalogService
	plans         *service.PlanService
	promos        *service.PromoService
	payments      *service.PaymentService
	router        *chi.Mux
}

type Options struct {
	Addr          string
	AdminUsername string
	AdminPassword string
	PromoBonus    int
}

func NewServer(opts Options, log *slog.Logger, users *service.UserService, creation *service.CreationService, credits *service.CreditsService, catalog *service.CatalogService, plans *service.PlanService, promos *service.PromoService, payments *service.PaymentService) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:          opts.Addr,
		adminUsername: opts.AdminUsername,
		adminPassword: opts.AdminPassword,
		promoBonus:    opts.PromoBonus,
		log:           log,
		users:         users,
		creation:      creation,
		credits:       credits,
		catalog:       catalog,
		plans:         plans,
		promos:        promos,
		payments:      payments,
		router:        r,
	}

	r.Get("/healthz", s.handleHealth)
	r.Post("/webhook/payments", s.handlePaymentWebhook)

	r.Get("/api/credits/costs", s.handleCosts)
	r.Get("/api/creation-ai-models", s.handleListModels)
	r.Get("/api/creation-prompts", s.handleListPrompts)
	r.Get("/api/plans", s.handleListPlans)

	r.Group(func(member chi.Router) {
		member.Use(s.memberContext())
		member.Get("/api/credits/balance", s.handleBalance)
		member.Post("/api/creation/generate", s.handleGenerate)
		member.Post("/api/creation/regenerate", s.handleRegenerate)
		member.Get("/api/creation/generate/video-status", s.handleVideoStatus)
		member.Get("/api/creation/messages", s.handleMessages)
		member.Post("/api/promo/redeem", s.handleRedeemPromo)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(s.basicAuthMiddleware())
		admin.Route("/admin/models", func(r chi.Router) {
			r.Get("/", s.handleAdminListModels)
			r.Put("/{id}", s.handleAdminSaveModel)
			r.Delete("/{id}", s.handleAdminDeleteModel)
		})
		admin.Route("/admin/creation-prompts", func(r chi.Router) {
			r.Get("/", s.handleAdminListPrompts)
			r.Post("/", s.handleAdminCreatePrompt)
			r.Put("/{id}", s.handleAdminUpdatePrompt)
			r.Delete("/{id}", s.handleAdminDeletePrompt)
		})
		admin.Route("/admin/plans", func(r chi.Router) {
			r.Get("/", s.handleAdminListPlans)
			r.Post("/", s.handleAdminCreatePlan)
			r.Put("/{id}", s.handleAdminUpdatePlan)
			r.Delete("/{id}", s.handleAdminDeletePlan)
		})
		admin.Route("/admin/costs", func(r chi.Router) {
			r.Get("/", s.handleAdminListCosts)
			r.Put("/{function}", s.handleAdminSetCost)
		})
		admin.Get("/admin/payments", s.handleAdminListPayments)
		admin.Route("/admin/promo-codes", func(r chi.Router) {
			r.Get("/", s.handleAdminListPromos)
			r.Post("/", s.handleAdminCreatePromo)
			r.Put("/{id}", s.handleAdminUpdatePromo)
			r.Delete("/{id}", s.handleAdminDeletePromo)
		})
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userContextKey struct{}

// memberContext resolves the bearer token to a user and stashes it in the
// request context. An absent or unknown token stores a nil user; the service
// layer decides whether that aborts the operation, so the error taxonomy
// lives in one place.
func (s *Server) memberContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			user, err := s.users.Authenticate(r.Context(), token)
			if err != nil {
				s.internalError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey{}).(*models.User)
	return user
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.adminUsername || pass != s.adminPassword {
				w.Header().Set("WWW-Authenticate", `Basic realm="goghlab"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{"code": code, "error": message})
}

// writeServiceError maps the service error taxonomy to HTTP. Anything
// outside the taxonomy is logged and collapsed into the fixed generic
// message; internal detail never reaches the member.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrLoginRequired):
		s.writeError(w, http.StatusUnauthorized, "login_required", "Faça login para continuar.")
	case errors.Is(err, service.ErrSubscriptionRequired):
		s.writeError(w, http.StatusForbidden, "subscription_required", "Assine um plano para usar as criações.")
	case errors.Is(err, service.ErrInsufficientCredits):
		s.writeError(w, http.StatusPaymentRequired, "insufficient_credits", service.InsufficientCreditsMessage)
	case errors.Is(err, service.ErrInvalidFunction),
		errors.Is(err, service.ErrPromptRequired),
		errors.Is(err, service.ErrMessageNotRegenerable):
		s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		s.internalError(w, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("handler error", "err", err)
	s.writeError(w, http.StatusInternalServerError, "internal_error", service.GenericServiceMessage)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
