package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/victorhdnz/goghlab-backend/internal/config"
	"github.com/victorhdnz/goghlab-backend/internal/conversation"
	"github.com/victorhdnz/goghlab-backend/internal/models"
	"github.com/victorhdnz/goghlab-backend/internal/provider"
	"github.com/victorhdnz/goghlab-backend/internal/repository"
	"github.com/victorhdnz/goghlab-backend/internal/service"
)

type fakeUsers struct {
	byToken map[string]*models.User
}

func (f *fakeUsers) FindByToken(_ context.Context, token string) (*models.User, error) {
	return f.byToken[token], nil
}

func (f *fakeUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	for _, u := range f.byToken {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Grant(ctx context.Context, userID int64, amount int) error {
	u, _ := f.FindByID(ctx, userID)
	if u != nil {
		u.Credits += amount
	}
	return nil
}

func (f *fakeUsers) ActivateSubscription(ctx context.Context, userID int64, until time.Time) error {
	u, _ := f.FindByID(ctx, userID)
	if u != nil {
		u.SubscriptionActive = true
		u.SubscriptionExpiresAt = &until
	}
	return nil
}

type fakeLedger struct {
	balances map[int64]int
}

func (f *fakeLedger) Deduct(_ context.Context, userID int64, amount int) (bool, error) {
	if f.balances[userID] < amount {
		return false, nil
	}
	f.balances[userID] -= amount
	return true, nil
}

func (f *fakeLedger) Grant(_ context.Context, userID int64, amount int) error {
	f.balances[userID] += amount
	return nil
}

func (f *fakeLedger) Balance(_ context.Context, userID int64) (int, error) {
	return f.balances[userID], nil
}

type fakeCosts struct {
	costs map[models.FunctionID]int
	err   error
}

func (f *fakeCosts) All(_ context.Context) (map[models.FunctionID]int, error) {
	return f.costs, f.err
}

func (f *fakeCosts) Set(_ context.Context, fn models.FunctionID, credits int) error {
	f.costs[fn] = credits
	return nil
}

type fakeModelCatalog struct {
	list []models.AIModel
	err  error
}

func (f *fakeModelCatalog) ListActive(_ context.Context) ([]models.AIModel, error) {
	return f.list, f.err
}

func (f *fakeModelCatalog) GetByID(_ context.Context, id string) (*models.AIModel, error) {
	for i := range f.list {
		if f.list[i].ID == id {
			return &f.list[i], nil
		}
	}
	return nil, nil
}

func (f *fakeModelCatalog) Upsert(_ context.Context, m *models.AIModel) error {
	f.list = append(f.list, *m)
	return nil
}

func (f *fakeModelCatalog) Delete(_ context.Context, id string) error {
	for i := range f.list {
		if f.list[i].ID == id {
			f.list = append(f.list[:i], f.list[i+1:]...)
			break
		}
	}
	return nil
}

type fakePromptCatalog struct {
	list []models.CreationPrompt
}

func (f *fakePromptCatalog) ListActive(_ context.Context) ([]models.CreationPrompt, error) {
	return f.list, nil
}

func (f *fakePromptCatalog) GetByID(_ context.Context, id int64) (*models.CreationPrompt, error) {
	for i := range f.list {
		if f.list[i].ID == id {
			return &f.list[i], nil
		}
	}
	return nil, nil
}

func (f *fakePromptCatalog) Create(_ context.Context, p *models.CreationPrompt) (*models.CreationPrompt, error) {
	p.ID = int64(len(f.list) + 1)
	f.list = append(f.list, *p)
	return p, nil
}

func (f *fakePromptCatalog) Update(_ context.Context, p *models.CreationPrompt) (*models.CreationPrompt, error) {
	return p, nil
}

func (f *fakePromptCatalog) Delete(_ context.Context, _ int64) error { return nil }

type fakeGenerator struct {
	result *provider.Result
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, _ provider.GenerateRequest) (*provider.Result, error) {
	return f.result, f.err
}

type fakeJobs struct {
	jobs map[string]*models.VideoJob
}

func (f *fakeJobs) Create(_ context.Context, job *models.VideoJob) error {
	f.jobs[job.VideoID] = job
	return nil
}

func (f *fakeJobs) Get(_ context.Context, videoID string) (*models.VideoJob, error) {
	return f.jobs[videoID], nil
}

func (f *fakeJobs) MarkCompleted(_ context.Context, videoID, artifactURL string) error {
	if j, ok := f.jobs[videoID]; ok {
		j.Status = models.VideoJobCompleted
		j.ArtifactURL = artifactURL
	}
	return nil
}

func (f *fakeJobs) MarkFailed(_ context.Context, videoID, message string) error {
	if j, ok := f.jobs[videoID]; ok {
		j.Status = models.VideoJobFailed
		j.ErrorMessage = message
	}
	return nil
}

type fakePaymentStore struct {
	records []*models.Payment
	nextID  int64
}

func (f *fakePaymentStore) FindByProviderCharge(_ context.Context, provider, chargeID string) (*models.Payment, error) {
	for _, p := range f.records {
		if p.Provider == provider && p.ProviderCharge == chargeID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentStore) Create(_ context.Context, p *models.Payment) error {
	f.nextID++
	p.ID = f.nextID
	f.records = append(f.records, p)
	return nil
}

func (f *fakePaymentStore) UpdateStatus(_ context.Context, id int64, status, payload string) error {
	for _, p := range f.records {
		if p.ID == id {
			p.Status = status
			p.RawPayload = payload
		}
	}
	return nil
}

func (f *fakePaymentStore) ListRecent(_ context.Context, limit int) ([]models.Payment, error) {
	var out []models.Payment
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.records[i])
	}
	return out, nil
}

type fakePlanSource struct {
	def *models.Plan
}

func (f *fakePlanSource) GetByID(_ context.Context, _ int64) (*models.Plan, error) { return nil, nil }
func (f *fakePlanSource) GetDefault(_ context.Context) (*models.Plan, error)       { return f.def, nil }

type fakePromoStore struct {
	byCode    map[string]*models.PromoCode
	redeemErr error
	redeemed  int
}

func (f *fakePromoStore) GetByCode(_ context.Context, code string) (*models.PromoCode, error) {
	return f.byCode[code], nil
}

func (f *fakePromoStore) GetByID(_ context.Context, _ int64) (*models.PromoCode, error) {
	return nil, nil
}

func (f *fakePromoStore) List(_ context.Context) ([]models.PromoCode, error) { return nil, nil }

func (f *fakePromoStore) Create(_ context.Context, p *models.PromoCode) (*models.PromoCode, error) {
	return p, nil
}

func (f *fakePromoStore) Update(_ context.Context, p *models.PromoCode) (*models.PromoCode, error) {
	return p, nil
}

func (f *fakePromoStore) Delete(_ context.Context, _ int64) error { return nil }

func (f *fakePromoStore) Redeem(_ context.Context, _, _ int64, _ int) error {
	if f.redeemErr != nil {
		return f.redeemErr
	}
	f.redeemed++
	return nil
}

type serverFixture struct {
	handler  http.Handler
	users    *fakeUsers
	ledger   *fakeLedger
	jobs     *fakeJobs
	modelsC  *fakeModelCatalog
	costs    *fakeCosts
	payStore *fakePaymentStore
	promos   *fakePromoStore
}

func newServerFixture(t *testing.T, gen *fakeGenerator) *serverFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		DefaultActionCost:    1,
		PaymentProvider:      "stripe",
		PaymentWebhookSecret: "whsec",
	}

	users := &fakeUsers{byToken: map[string]*models.User{
		"member-token": {ID: 1, SubscriptionActive: true, Credits: 100},
		"lapsed-token": {ID: 2, SubscriptionActive: false},
	}}
	ledger := &fakeLedger{balances: map[int64]int{1: 100, 2: 100}}
	costs := &fakeCosts{costs: map[models.FunctionID]int{models.FunctionFoto: 2}}
	modelsC := &fakeModelCatalog{list: []models.AIModel{{ID: "brush", Name: "Brush", IsActive: true}}}
	promptsC := &fakePromptCatalog{}
	jobs := &fakeJobs{jobs: map[string]*models.VideoJob{}}

	payStore := &fakePaymentStore{}
	planSrc := &fakePlanSource{def: &models.Plan{ID: 1, Credits: 60, PeriodDays: 30, IsActive: true}}
	promoStore := &fakePromoStore{byCode: map[string]*models.PromoCode{
		"GOGH50": {ID: 3, Code: "GOGH50", MaxUses: 10},
	}}

	creditsSvc := service.NewCreditsService(cfg, log, ledger, costs)
	userSvc := service.NewUserService(users)
	catalogSvc := service.NewCatalogService(modelsC, promptsC)
	creationSvc := service.NewCreationService(cfg, log, creditsSvc, modelsC, gen, conversation.NewMemoryStore(), jobs, nil, nil)
	paymentSvc := service.NewPaymentService(cfg, log, payStore, users, planSrc)
	promoSvc := service.NewPromoService(promoStore)

	srv := NewServer(Options{
		Addr:          ":0",
		AdminUsername: "admin",
		AdminPassword: "secret",
		PromoBonus:    50,
	}, log, userSvc, creationSvc, creditsSvc, catalogSvc, nil, promoSvc, paymentSvc)

	return &serverFixture{
		handler:  srv.Handler(),
		users:    users,
		ledger:   ledger,
		jobs:     jobs,
		modelsC:  modelsC,
		costs:    costs,
		payStore: payStore,
		promos:   promoStore,
	}
}

func (fx *serverFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})
	rec := fx.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerateWithoutTokenIsUnauthorized(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})
	rec := fx.do(t, http.MethodPost, "/api/creation/generate", "", `{"tab":"foto","prompt":"p"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "login_required" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestGenerateWithoutSubscriptionIsForbidden(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})
	rec := fx.do(t, http.MethodPost, "/api/creation/generate", "lapsed-token", `{"tab":"foto","prompt":"p"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "subscription_required" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestGenerateInsufficientOwnCredits(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})
	fx.ledger.balances[1] = 0

	rec := fx.do(t, http.MethodPost, "/api/creation/generate", "member-token", `{"tab":"foto","prompt":"p"}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "insufficient_credits" {
		t.Errorf("code = %v", body["code"])
	}
	if body["error"] != service.InsufficientCreditsMessage {
		t.Errorf("error = %v", body["error"])
	}
}

func TestGenerateImageSuccess(t *testing.T) {
	gen := &fakeGenerator{result: &provider.Result{Kind: provider.KindImage, ImageBase64: "aW1n", ContentType: "image/png"}}
	fx := newServerFixture(t, gen)

	rec := fx.do(t, http.MethodPost, "/api/creation/generate", "member-token", `{"tab":"foto","prompt":"um gato"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	asst, ok := body["assistantMessage"].(map[string]any)
	if !ok {
		t.Fatalf("assistantMessage missing: %v", body)
	}
	if asst["imageDataUrl"] != "data:image/png;base64,aW1n" {
		t.Errorf("imageDataUrl = %v", asst["imageDataUrl"])
	}
	if body["creditCost"] != float64(2) {
		t.Errorf("creditCost = %v", body["creditCost"])
	}
	if fx.ledger.balances[1] != 98 {
		t.Errorf("balance = %d", fx.ledger.balances[1])
	}
}

func TestGenerateUpstreamCreditsExhaustedMapsTo402(t *testing.T) {
	gen := &fakeGenerator{err: &provider.Error{StatusCode: 402, Message: "sem créditos"}}
	fx := newServerFixture(t, gen)

	rec := fx.do(t, http.MethodPost, "/api/creation/generate", "member-token", `{"tab":"foto","prompt":"p"}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "insufficient_credits" {
		t.Errorf("code = %v", body["code"])
	}
	asst := body["assistantMessage"].(map[string]any)
	if asst["content"] != "sem créditos" {
		t.Errorf("assistant content = %v", asst["content"])
	}
}

func TestGenerateUnknownFunctionIsBadRequest(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})
	rec := fx.do(t, http.MethodPost, "/api/creation/generate", "member-token", `{"tab":"musica","prompt":"p"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateGenericFailureStaysInBand(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream exploded with secrets")}
	fx := newServerFixture(t, gen)

	rec := fx.do(t, http.MethodPost, "/api/creation/generate", "member-token", `{"tab":"foto","prompt":"p"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; generic failures render as assistant text", rec.Code)
	}
	body := decodeBody(t, rec)
	asst := body["assistantMessage"].(map[string]any)
	if asst["content"] != service.GenericServiceMessage {
		t.Errorf("content = %v", asst["content"])
	}
	if strings.Contains(rec.Body.String(), "secrets") {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}
}

func TestVideoStatusEndpoint(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})
	fx.jobs.jobs["vid-1"] = &models.VideoJob{
		VideoID: "vid-1", UserID: 1,
		Status: models.VideoJobCompleted, ArtifactURL: "https://cdn/v.mp4",
	}

	rec := fx.do(t, http.MethodGet, "/api/creation/generate/video-status?videoId=vid-1", "member-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "completed" || body["videoUrl"] != "https://cdn/v.mp4" {
		t.Errorf("body = %v", body)
	}

	rec = fx.do(t, http.MethodGet, "/api/creation/generate/video-status?videoId=nope", "member-token", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job: status = %d, want 404", rec.Code)
	}

	rec = fx.do(t, http.MethodGet, "/api/creation/generate/video-status", "member-token", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing videoId: status = %d, want 400", rec.Code)
	}
}

func TestMessagesEndpointRoundTrip(t *testing.T) {
	gen := &fakeGenerator{result: &provider.Result{Kind: provider.KindText, Text: "olá"}}
	fx := newServerFixture(t, gen)

	rec := fx.do(t, http.MethodPost, "/api/creation/generate", "member-token", `{"tab":"roteiro","prompt":"escreve"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: %d", rec.Code)
	}

	rec = fx.do(t, http.MethodGet, "/api/creation/messages?tab=roteiro", "member-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("messages: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	messages, ok := body["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v", body["messages"])
	}
}

func TestPublicCatalogEndpoints(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})

	rec := fx.do(t, http.MethodGet, "/api/creation-ai-models", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("models: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if list, ok := body["models"].([]any); !ok || len(list) != 1 {
		t.Errorf("models = %v", body["models"])
	}

	rec = fx.do(t, http.MethodGet, "/api/credits/costs", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("costs: %d", rec.Code)
	}
	body = decodeBody(t, rec)
	costs, ok := body["costByAction"].(map[string]any)
	if !ok {
		t.Fatalf("costByAction = %v", body["costByAction"])
	}
	// stored value for foto, default for the rest
	if costs["foto"] != float64(2) || costs["video"] != float64(1) {
		t.Errorf("costs = %v", costs)
	}
}

func TestCatalogFailureHidesDetail(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})
	fx.modelsC.err = errors.New("table ai_models is on fire")

	rec := fx.do(t, http.MethodGet, "/api/creation-ai-models", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != service.GenericServiceMessage {
		t.Errorf("error = %v", body["error"])
	}
	if strings.Contains(rec.Body.String(), "on fire") {
		t.Errorf("internal detail leaked")
	}
}

func TestBalanceEndpoint(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})

	rec := fx.do(t, http.MethodGet, "/api/credits/balance", "member-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["credits"] != float64(100) {
		t.Errorf("credits = %v", body["credits"])
	}

	rec = fx.do(t, http.MethodGet, "/api/credits/balance", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("guest balance: status = %d", rec.Code)
	}
}

func TestAdminRequiresBasicAuth(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/admin/models/", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no auth: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/models/", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/models/", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("good auth: status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSetCost(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodPut, "/admin/costs/video", strings.NewReader(`{"credits":9}`))
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if fx.costs.costs[models.FunctionVideo] != 9 {
		t.Errorf("cost not stored: %v", fx.costs.costs)
	}

	req = httptest.NewRequest(http.MethodPut, "/admin/costs/musica", strings.NewReader(`{"credits":9}`))
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown function: status = %d", rec.Code)
	}
}

func chargeBody(chargeID string, userID int64) string {
	return fmt.Sprintf(
		`{"event":"payment.updated","payment":{"id":%q,"status":"succeeded","currency":"BRL","amount":9700,"metadata":{"user_id":%d}}}`,
		chargeID, userID)
}

func signWebhook(body string) string {
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(fx *serverFixture, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/payments", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	return rec
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})
	body := chargeBody("ch_1", 1)

	rec := postWebhook(fx, body, "deadbeef")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := decodeBody(t, rec); got["code"] != "invalid_signature" {
		t.Errorf("code = %v", got["code"])
	}
	if len(fx.payStore.records) != 0 {
		t.Errorf("forged event recorded: %+v", fx.payStore.records)
	}
}

func TestPaymentWebhookGrantsPlanCredits(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})
	body := chargeBody("ch_1", 1)

	rec := postWebhook(fx, body, signWebhook(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	member := fx.users.byToken["member-token"]
	if member.Credits != 160 {
		t.Errorf("credits = %d, want 160 after plan grant", member.Credits)
	}
	if !member.SubscriptionActive || member.SubscriptionExpiresAt == nil {
		t.Errorf("subscription not activated: %+v", member)
	}
	if len(fx.payStore.records) != 1 || fx.payStore.records[0].Status != "succeeded" {
		t.Errorf("payment records: %+v", fx.payStore.records)
	}

	// redelivery answers 200 without granting again
	rec = postWebhook(fx, body, signWebhook(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d", rec.Code)
	}
	if member.Credits != 160 {
		t.Errorf("credits = %d, redelivery granted twice", member.Credits)
	}
}

func TestRedeemPromoEndpoint(t *testing.T) {
	fx := newServerFixture(t, &fakeGenerator{})

	rec := fx.do(t, http.MethodPost, "/api/promo/redeem", "member-token", `{"code":"GOGH50"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["credits_added"] != float64(50) {
		t.Errorf("credits_added = %v", body["credits_added"])
	}
	if fx.promos.redeemed != 1 {
		t.Errorf("redeemed = %d", fx.promos.redeemed)
	}

	rec = fx.do(t, http.MethodPost, "/api/promo/redeem", "member-token", `{"code":"NOPE"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown code: status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "promo_invalid" {
		t.Errorf("code = %v", body["code"])
	}

	fx.promos.redeemErr = repository.ErrPromoRedeemed
	rec = fx.do(t, http.MethodPost, "/api/promo/redeem", "member-token", `{"code":"GOGH50"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("repeat redemption: status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "promo_redeemed" {
		t.Errorf("code = %v", body["code"])
	}

	rec = fx.do(t, http.MethodPost, "/api/promo/redeem", "", `{"code":"GOGH50"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("guest redemption: status = %d", rec.Code)
	}
}
