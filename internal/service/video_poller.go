package service

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"time"

	"github.com/victorhdnz/goghlab-backend/internal/config"
	"github.com/victorhdnz/goghlab-backend/internal/conversation"
	"github.com/victorhdnz/goghlab-backend/internal/models"
	"github.com/victorhdnz/goghlab-backend/internal/provider"
)

// VideoStatusClient polls the upstream vendor for async job state.
type VideoStatusClient interface {
	GetVideoStatus(ctx context.Context, videoID string) (*provider.VideoStatus, error)
}

// ArtifactUploader stores a finished artifact and returns its public URL.
type ArtifactUploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// Notifier raises an operational alert. Implementations must be safe to call
// from multiple goroutines.
type Notifier interface {
	Alert(ctx context.Context, text string)
}

// VideoPoller drives one cancellable poll chain per video job. The first poll
// happens after the configured initial delay; while the job stays pending,
// each subsequent poll is scheduled a fixed interval after the previous
// response. Chains for distinct jobs are fully independent. A chain applies
// exactly one terminal mutation to its assistant message: completed (payload
// attached, placeholder cleared), failed (error text), or transport error
// (generic text).
type VideoPoller struct {
	log          *slog.Logger
	client       VideoStatusClient
	jobs         VideoJobStore
	store        conversation.Store
	uploader     ArtifactUploader
	notifier     Notifier
	initialDelay time.Duration
	interval     time.Duration

	mu      sync.Mutex
	base    context.Context
	watches map[string]*watch
	wg      sync.WaitGroup
}

type watch struct {
	cancel context.CancelFunc
}

func NewVideoPoller(cfg config.Config, log *slog.Logger, client VideoStatusClient, jobs VideoJobStore, store conversation.Store, uploader ArtifactUploader, notifier Notifier) *VideoPoller {
	initial := cfg.VideoPollInitialDelay
	if initial <= 0 {
		initial = 12 * time.Second
	}
	interval := cfg.VideoPollInterval
	if interval <= 0 {
		interval = 8 * time.Second
	}
	return &VideoPoller{
		log:          log,
		client:       client,
		jobs:         jobs,
		store:        store,
		uploader:     uploader,
		notifier:     notifier,
		initialDelay: initial,
		interval:     interval,
		watches:      make(map[string]*watch),
	}
}

// Start binds the poller to its lifecycle context. Chains started afterwards
// stop when ctx is cancelled.
func (p *VideoPoller) Start(ctx context.Context) {
	p.mu.Lock()
	p.base = ctx
	p.mu.Unlock()
}

// Watch begins the poll chain for a job. A chain already running for the same
// assistant message is superseded and cancelled first.
func (p *VideoPoller) Watch(job models.VideoJob) {
	p.mu.Lock()
	base := p.base
	if base == nil {
		base = context.Background()
	}
	if existing, ok := p.watches[job.MessageID]; ok {
		existing.cancel()
	}
	ctx, cancel := context.WithCancel(base)
	w := &watch{cancel: cancel}
	p.watches[job.MessageID] = w
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		defer p.clearWatch(job.MessageID, w)
		p.run(ctx, job)
	}()
}

// CancelWatch stops the poll chain bound to a message, if any. The chain
// exits without mutating the message.
func (p *VideoPoller) CancelWatch(messageID string) {
	p.mu.Lock()
	w, ok := p.watches[messageID]
	if ok {
		delete(p.watches, messageID)
	}
	p.mu.Unlock()
	if ok {
		w.cancel()
	}
}

// Wait blocks until every chain has exited. Used on shutdown after the
// lifecycle context is cancelled.
func (p *VideoPoller) Wait() {
	p.wg.Wait()
}

func (p *VideoPoller) clearWatch(messageID string, w *watch) {
	p.mu.Lock()
	if current, ok := p.watches[messageID]; ok && current == w {
		delete(p.watches, messageID)
	}
	p.mu.Unlock()
}

func (p *VideoPoller) run(ctx context.Context, job models.VideoJob) {
	if !p.sleep(ctx, p.initialDelay) {
		return
	}

	for {
		status, err := p.client.GetVideoStatus(ctx, job.VideoID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transport errors are terminal; a fresh attempt is an
			// explicit user action.
			p.log.Error("video status poll failed", "video_id", job.VideoID, "err", err)
			p.finishFailed(job, GenericServiceMessage)
			return
		}

		switch {
		case status.Completed():
			p.finishCompleted(job, status)
			return
		case status.Failed():
			message := status.Message
			if message == "" {
				message = VideoFailedMessage
			}
			p.finishFailed(job, message)
			return
		default:
			if !p.sleep(ctx, p.interval) {
				return
			}
		}
	}
}

func (p *VideoPoller) finishCompleted(job models.VideoJob, status *provider.VideoStatus) {
	// Terminal writes get their own context so a shutdown mid-completion
	// does not lose the outcome.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	contentType := status.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}

	artifactURL := ""
	if p.uploader != nil && status.VideoBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(status.VideoBase64)
		if err != nil {
			p.log.Error("invalid video payload", "video_id", job.VideoID, "err", err)
		} else if url, err := p.uploader.Upload(ctx, data, contentType); err != nil {
			p.log.Error("artifact upload failed", "video_id", job.VideoID, "err", err)
		} else {
			artifactURL = url
		}
	}

	if err := p.jobs.MarkCompleted(ctx, job.VideoID, artifactURL); err != nil {
		p.log.Error("mark video job completed", "video_id", job.VideoID, "err", err)
	}

	p.mutateMessage(ctx, job, func(msg *models.ChatMessage) {
		msg.Content = ""
		msg.VideoDataURL = "data:" + contentType + ";base64," + status.VideoBase64
	})

	p.log.Info("video job completed", "video_id", job.VideoID, "message_id", job.MessageID)
}

func (p *VideoPoller) finishFailed(job models.VideoJob, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.jobs.MarkFailed(ctx, job.VideoID, message); err != nil {
		p.log.Error("mark video job failed", "video_id", job.VideoID, "err", err)
	}

	p.mutateMessage(ctx, job, func(msg *models.ChatMessage) {
		msg.Content = message
		msg.VideoDataURL = ""
	})

	if p.notifier != nil {
		p.notifier.Alert(ctx, "video job "+job.VideoID+" failed: "+message)
	}
}

// mutateMessage applies the terminal write through the store's serialized
// update path, so it cannot be lost to a submission appending on the same
// context concurrently.
func (p *VideoPoller) mutateMessage(ctx context.Context, job models.VideoJob, apply func(*models.ChatMessage)) {
	found := false
	err := p.store.Update(ctx, job.ContextKey, func(messages []models.ChatMessage) []models.ChatMessage {
		for i := range messages {
			if messages[i].ID == job.MessageID {
				apply(&messages[i])
				found = true
				break
			}
		}
		return messages
	})
	if err != nil {
		p.log.Error("store conversation for video result", "context", job.ContextKey, "err", err)
		return
	}
	if !found {
		p.log.Warn("video result for unknown message", "message_id", job.MessageID, "context", job.ContextKey)
	}
}

func (p *VideoPoller) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
