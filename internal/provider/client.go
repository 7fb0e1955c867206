// Package provider talks to the upstream generation vendor. Image, script
// and prompt generations complete within one request; video generations
// return an opaque job id that must be polled for completion.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/victorhdnz/goghlab-backend/internal/config"
	"github.com/victorhdnz/goghlab-backend/internal/models"
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Client{
		apiKey:  cfg.ProviderAPIKey,
		baseURL: strings.TrimRight(cfg.ProviderBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type GenerateRequest struct {
	Function models.FunctionID
	Prompt   string
	ModelID  string
}

// ResultKind discriminates the heterogeneous generation response. Every
// response is classified into exactly one kind; unknown shapes land on
// KindOther rather than being dropped.
type ResultKind string

const (
	KindImage ResultKind = "image"
	KindVideo ResultKind = "video"
	KindText  ResultKind = "text"
	KindOther ResultKind = "other"
)

type Result struct {
	Kind        ResultKind
	ImageBase64 string
	ContentType string
	VideoID     string
	Text        string
	Message     string
}

// VideoStatus is one poll answer for an async video job. Status holds the
// vendor's literal state; anything that is not completed or failed means the
// job is still in flight.
type VideoStatus struct {
	Status      string `json:"status"`
	VideoBase64 string `json:"videoBase64"`
	ContentType string `json:"contentType"`
	Message     string `json:"message"`
}

func (s *VideoStatus) Completed() bool { return s.Status == "completed" }
func (s *VideoStatus) Failed() bool    { return s.Status == "failed" }

// Error is a classified vendor failure. Transport problems are returned as
// plain errors; Error is only used when the vendor answered with a
// non-success status.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// CreditsExhausted reports whether the failure is the distinguished
// payment-required case that must reach the user as such.
func (e *Error) CreditsExhausted() bool {
	return e.StatusCode == http.StatusPaymentRequired || e.Code == "insufficient_credits"
}

// AsError extracts a classified vendor failure from err, if any.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// Generate submits a prompt and classifies the response into a tagged Result.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	body, err := json.Marshal(map[string]any{
		"tab":     req.Function,
		"prompt":  req.Prompt,
		"modelId": req.ModelID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/v1/creations/generate", nil, body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Type        string `json:"type"`
		ImageBase64 string `json:"imageBase64"`
		ContentType string `json:"contentType"`
		VideoID     string `json:"videoId"`
		Text        string `json:"text"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode generate response: %w (body=%s)", err, truncateBody(raw))
	}

	result := &Result{Message: payload.Message}
	switch {
	case payload.Type == "image" && payload.ImageBase64 != "":
		result.Kind = KindImage
		result.ImageBase64 = payload.ImageBase64
		result.ContentType = payload.ContentType
	case payload.Type == "video" && payload.VideoID != "":
		result.Kind = KindVideo
		result.VideoID = payload.VideoID
	case payload.Type == "text" && payload.Text != "":
		result.Kind = KindText
		result.Text = payload.Text
	default:
		result.Kind = KindOther
	}

	if c.log != nil {
		c.log.Info("generation classified", "function", req.Function, "model", req.ModelID, "kind", result.Kind)
	}
	return result, nil
}

// GetVideoStatus fetches the current state of an async video job.
func (c *Client) GetVideoStatus(ctx context.Context, videoID string) (*VideoStatus, error) {
	params := url.Values{}
	params.Set("videoId", videoID)

	raw, err := c.do(ctx, http.MethodGet, "/v1/creations/video-status", params, nil)
	if err != nil {
		return nil, err
	}

	var status VideoStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode video status: %w (body=%s)", err, truncateBody(raw))
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	rel, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if params != nil {
		rel.RawQuery = params.Encode()
	}
	fullURL := base.ResolveReference(rel).String()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		perr := &Error{StatusCode: resp.StatusCode}
		var errBody struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &errBody) == nil {
			perr.Code = errBody.Code
			perr.Message = errBody.Error
		}
		if c.log != nil {
			c.log.Error("provider call failed", "status", resp.StatusCode, "url", fullURL, "body", truncateBody(raw))
		}
		return nil, perr
	}

	return raw, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
