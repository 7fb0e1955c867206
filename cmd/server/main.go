package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/victorhdnz/goghlab-backend/internal/api"
	"github.com/victorhdnz/goghlab-backend/internal/config"
	"github.com/victorhdnz/goghlab-backend/internal/conversation"
	"github.com/victorhdnz/goghlab-backend/internal/database"
	"github.com/victorhdnz/goghlab-backend/internal/notify"
	"github.com/victorhdnz/goghlab-backend/internal/provider"
	"github.com/victorhdnz/goghlab-backend/internal/repository"
	"github.com/victorhdnz/goghlab-backend/internal/service"
	"github.com/victorhdnz/goghlab-backend/internal/storage"
	"github.com/victorhdnz/goghlab-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	modelRepo := repository.NewModelRepository(db)
	promptRepo := repository.NewPromptRepository(db)
	costRepo := repository.NewCostRepository(db)
	videoJobRepo := repository.NewVideoJobRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	planRepo := repository.NewPlanRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	if err := costRepo.Seed(ctx, cfg.DefaultActionCosts()); err != nil {
		log.Fatalf("seed action costs: %v", err)
	}

	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
	})
	if err != nil {
		log.Fatalf("storage uploader: %v", err)
	}

	notifier, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAlertChatID, logr)
	if err != nil {
		log.Fatalf("telegram notifier: %v", err)
	}

	providerClient := provider.NewClient(cfg, logr)
	store := conversation.NewMySQLStore(db)

	userService := service.NewUserService(userRepo)
	creditsService := service.NewCreditsService(cfg, logr, userRepo, costRepo)
	catalogService := service.NewCatalogService(modelRepo, promptRepo)
	planService := service.NewPlanService(cfg, planRepo)
	promoService := service.NewPromoService(promoRepo)
	paymentService := service.NewPaymentService(cfg, logr, paymentRepo, userRepo, planService)

	poller := service.NewVideoPoller(cfg, logr, providerClient, videoJobRepo, store, uploader, pollerNotifier(notifier))
	poller.Start(ctx)

	creationService := service.NewCreationService(cfg, logr, creditsService, modelRepo, providerClient, store, videoJobRepo, poller, generationRepo)

	if err := planService.EnsureDefaultPlan(ctx); err != nil {
		log.Fatalf("ensure default plan: %v", err)
	}

	// Jobs that were still pending when the previous process died resume
	// their poll chains.
	pending, err := videoJobRepo.ListPending(ctx)
	if err != nil {
		logr.Error("list pending video jobs", "err", err)
	}
	for _, job := range pending {
		poller.Watch(job)
	}
	if len(pending) > 0 {
		logr.Info("resumed pending video jobs", "count", len(pending))
	}

	server := api.NewServer(api.Options{
		Addr:          cfg.ListenAddr,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		PromoBonus:    cfg.PromoBonusCredits,
	}, logr, userService, creationService, creditsService, catalogService, planService, promoService, paymentService)

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("api server stopped", "err", err)
	}

	poller.Wait()
}

// pollerNotifier keeps the poller's Notifier dependency nil when alerting is
// not configured, so it skips alert calls instead of hitting a nil bot.
func pollerNotifier(n *notify.TelegramNotifier) service.Notifier {
	if n == nil {
		return nil
	}
	return n
}
