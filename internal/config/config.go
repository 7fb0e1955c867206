package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

// Config aggregates runtime configuration for the creation backend and its
// supporting services.
type Config struct {
	ListenAddr string
	MySQLDSN   string

	ProviderAPIKey  string
	ProviderBaseURL string
	RequestTimeout  time.Duration

	// Video jobs: delay before the first status poll and spacing between
	// subsequent polls while the job is still pending.
	VideoPollInitialDelay time.Duration
	VideoPollInterval     time.Duration

	// Fallback per-generation cost when neither the action_costs table nor
	// the selected model define one.
	DefaultActionCost int
	PromoBonusCredits int

	PaymentProvider        string
	PaymentWebhookSecret   string
	PaymentCurrency        string
	PaymentPriceMinorUnits int
	PaymentCreditsPerPlan  int
	PaymentPeriodDays      int

	AdminUsername string
	AdminPassword string

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string

	TelegramBotToken    string
	TelegramAlertChatID int64
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultProviderBaseURL = "https://api.goghlab.ai"

	cfg := Config{
		ListenAddr:             getEnv("LISTEN_ADDR", ":8080"),
		ProviderBaseURL:        normalizeBaseURL(getEnv("PROVIDER_BASE_URL", defaultProviderBaseURL), defaultProviderBaseURL),
		RequestTimeout:         time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		VideoPollInitialDelay:  time.Second * time.Duration(getInt("VIDEO_POLL_INITIAL_DELAY_SECONDS", 12)),
		VideoPollInterval:      time.Second * time.Duration(getInt("VIDEO_POLL_INTERVAL_SECONDS", 8)),
		DefaultActionCost:      getInt("DEFAULT_ACTION_COST", 1),
		PromoBonusCredits:      getInt("PROMO_BONUS_CREDITS", 50),
		PaymentProvider:        strings.ToLower(getEnv("PAYMENT_PROVIDER", "stripe")),
		PaymentCurrency:        getEnv("PAYMENT_CURRENCY", "BRL"),
		PaymentPriceMinorUnits: getInt("PAYMENT_PRICE_MINOR_UNITS", 9700),
		PaymentCreditsPerPlan:  getInt("PAYMENT_CREDITS_PER_PLAN", 100),
		PaymentPeriodDays:      getInt("PAYMENT_PERIOD_DAYS", 30),
		AdminUsername:          getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:          getEnv("ADMIN_PASSWORD", "change-me"),
		S3Endpoint:             getEnv("S3_ENDPOINT", ""),
		S3Region:               os.Getenv("S3_REGION"),
		S3AccessKey:            os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:            os.Getenv("S3_SECRET_KEY"),
		S3Bucket:               os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:        os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:         getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:               getEnv("S3_PREFIX", "creations"),
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAlertChatID:    getInt64("TELEGRAM_ALERT_CHAT_ID", 0),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.ProviderAPIKey = os.Getenv("PROVIDER_API_KEY")
	cfg.PaymentWebhookSecret = os.Getenv("PAYMENT_WEBHOOK_SECRET")

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.ProviderAPIKey == "" {
		missing = append(missing, "PROVIDER_API_KEY")
	}
	if cfg.S3Region == "" {
		missing = append(missing, "S3_REGION")
	}
	if cfg.S3AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY")
	}
	if cfg.S3SecretKey == "" {
		missing = append(missing, "S3_SECRET_KEY")
	}
	if cfg.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if cfg.S3PublicBaseURL == "" {
		missing = append(missing, "S3_PUBLIC_BASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// DefaultActionCosts seeds the action_costs table on first boot. Values can
// be edited afterwards through the admin API.
func (c Config) DefaultActionCosts() map[models.FunctionID]int {
	return map[models.FunctionID]int{
		models.FunctionFoto:    c.DefaultActionCost,
		models.FunctionVideo:   c.DefaultActionCost,
		models.FunctionRoteiro: c.DefaultActionCost,
		models.FunctionVangogh: c.DefaultActionCost,
	}
}

// normalizeBaseURL keeps provider requests on an absolute https URL even when
// the variable holds a bare host.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return parsed.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// Running purely off process environment is fine in containers.
	return nil
}
