package models

import "time"

// FunctionID identifies one of the creation categories offered by the
// platform. It governs which models and prompt templates apply and which
// per-action credit cost is charged.
type FunctionID string

const (
	FunctionFoto    FunctionID = "foto"
	FunctionVideo   FunctionID = "video"
	FunctionRoteiro FunctionID = "roteiro"
	FunctionVangogh FunctionID = "vangogh"
)

func IsValidFunction(fn FunctionID) bool {
	switch fn {
	case FunctionFoto, FunctionVideo, FunctionRoteiro, FunctionVangogh:
		return true
	default:
		return false
	}
}

// MessageOrigin tells who authored a chat message.
type MessageOrigin string

const (
	OriginUser      MessageOrigin = "user"
	OriginAssistant MessageOrigin = "assistant"
)

// ChatMessage is one turn of a creation conversation. An assistant message
// waiting on a video job shows a placeholder in Content until the job reaches
// a terminal state; then exactly one of VideoDataURL (payload) or Content
// (error text) is set.
type ChatMessage struct {
	ID                   string        `json:"id"`
	From                 MessageOrigin `json:"from"`
	Content              string        `json:"content"`
	ImageDataURL         string        `json:"imageDataUrl,omitempty"`
	VideoDataURL         string        `json:"videoDataUrl,omitempty"`
	RegeneratePrompt     string        `json:"regeneratePrompt,omitempty"`
	RegenerateCreditCost int           `json:"regenerateCreditCost,omitempty"`
	ModelLogoURL         string        `json:"modelLogoUrl,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
}

type User struct {
	ID                    int64
	Email                 string
	Name                  string
	APIToken              string
	Credits               int
	SubscriptionActive    bool
	SubscriptionExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HasActiveSubscription reports whether the user may use member features at
// the given instant. An expiry in the past overrides the active flag.
func (u *User) HasActiveSubscription(now time.Time) bool {
	if !u.SubscriptionActive {
		return false
	}
	if u.SubscriptionExpiresAt != nil && u.SubscriptionExpiresAt.Before(now) {
		return false
	}
	return true
}

// AIModel is a selectable backend generation engine for one or more
// functions. CreditCost overrides the per-action cost when positive.
type AIModel struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	LogoURL    string    `json:"logo_url"`
	CanImage   bool      `json:"can_image"`
	CanVideo   bool      `json:"can_video"`
	CanPrompt  bool      `json:"can_prompt"`
	CreditCost int       `json:"credit_cost"`
	IsActive   bool      `json:"-"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// CreationPrompt is an admin-curated template offered as a one-click
// starting point on a function tab.
type CreationPrompt struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Subtitle  string     `json:"subtitle,omitempty"`
	Body      string     `json:"body"`
	Function  FunctionID `json:"function"`
	Position  int        `json:"position"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
}

type VideoJobStatus string

const (
	VideoJobPending   VideoJobStatus = "pending"
	VideoJobCompleted VideoJobStatus = "completed"
	VideoJobFailed    VideoJobStatus = "failed"
)

// VideoJob binds an upstream video generation task to the assistant message
// that displays its outcome.
type VideoJob struct {
	VideoID      string
	UserID       int64
	MessageID    string
	ContextKey   string
	ModelID      string
	ModelLogoURL string
	Status       VideoJobStatus
	ArtifactURL  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type GenerationLog struct {
	ID         int64
	UserID     int64
	Function   FunctionID
	ModelID    string
	Prompt     string
	Cost       int
	ResultType string
	CreatedAt  time.Time
}

type PromoCode struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	MaxUses   int       `json:"max_uses"`
	Uses      int       `json:"uses"`
	CreatedAt time.Time `json:"created_at"`
}

type Payment struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	PlanID         *int64    `json:"plan_id,omitempty"`
	Provider       string    `json:"provider"`
	ProviderCharge string    `json:"provider_charge_id"`
	Currency       string    `json:"currency"`
	Amount         int       `json:"amount"`
	Status         string    `json:"status"`
	RawPayload     string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Plan is a purchasable subscription package: a price, a credit allowance and
// the subscription period it activates.
type Plan struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Currency        string    `json:"currency"`
	PriceMinorUnits int       `json:"price_minor_units"`
	Credits         int       `json:"credits"`
	PeriodDays      int       `json:"period_days"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
