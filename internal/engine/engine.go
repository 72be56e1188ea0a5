// ABOUTME: Engine composition: owned stores, collaborator interfaces, and state snapshots.
// ABOUTME: Every mutation runs under one mutex; backend calls are fired from goroutines and reconcile under guards.

package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/coven-console/internal/activity"
	"github.com/2389/coven-console/internal/api"
	"github.com/2389/coven-console/internal/clock"
	"github.com/2389/coven-console/internal/dedupe"
	"github.com/2389/coven-console/internal/domain"
	"github.com/2389/coven-console/internal/metrics"
	"github.com/2389/coven-console/internal/roster"
	"github.com/2389/coven-console/internal/timeline"
)

const (
	// statusTTL is how long transient status text stays visible.
	statusTTL = 3 * time.Second
	// graceDelay defers local clears after a successful command so the
	// backend's own terminal event usually lands first.
	graceDelay = 1 * time.Second
	// typingTick is the cadence of the operator typing counter.
	typingTick = 1 * time.Second

	historyLimit = 100
	dedupeTTL    = 5 * time.Minute
	dedupeSize   = 1024
	// commandTimeout bounds every backend call fired by the engine.
	commandTimeout = 30 * time.Second
)

// Validation errors, rejected before any network call.
var (
	ErrNoOpenConversation = errors.New("no conversation is open")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrAlreadySending     = errors.New("a send is already in flight")
	ErrNoPendingReview    = errors.New("no response is pending review")
	ErrNoCancelTarget     = errors.New("nothing to cancel")
)

// Backend is the REST-shaped command surface the engine talks to.
type Backend interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	History(ctx context.Context, userID string, limit int) ([]domain.Message, error)
	MarkRead(ctx context.Context, userID string) error
	SendMessage(ctx context.Context, userID, content string) (*api.SendResult, error)
	SetAIEnabled(ctx context.Context, userID string, enabled bool) error
	ApproveResponse(ctx context.Context, userID, responseID string) error
	RejectResponse(ctx context.Context, userID, responseID, reason string) error
	CancelProcessing(ctx context.Context, userID, messageID string) error
}

// Emitter is the raw push-channel send surface, used for typing
// signals and as the fallback delivery path when a REST command fails.
type Emitter interface {
	TypingStart(userID, adminID string) error
	TypingStop(userID, adminID string) error
	ApproveResponse(userID, responseID string) error
	RejectResponse(userID, responseID, reason string) error
	CancelProcessing(userID, messageID string) error
}

// typingState is the scoped typing-counter resource: acquired on focus,
// released on blur, send, and conversation switch. epoch invalidates
// stale tick callbacks after a release.
type typingState struct {
	visible bool
	elapsed int
	timer   clock.Timer
	epoch   int
}

// statusState is the transient status line for the open conversation.
// remoteTyping holds the admin id whose typing indicator the line is
// currently showing, so the matching stop event clears it without
// comparing display text.
type statusState struct {
	text         string
	remoteTyping string
	timer        clock.Timer
	epoch        int
}

// Engine owns all client-resident conversation state. Collaborators push
// events in via HandleEvent; the UI reads snapshots and calls the
// operator-action methods.
type Engine struct {
	mu sync.Mutex

	logger  *slog.Logger
	clock   clock.Clock
	metrics *metrics.Metrics
	backend Backend
	emitter Emitter
	adminID string

	roster     *roster.Store
	timeline   *timeline.Store
	activity   *activity.Store
	seenEvents *dedupe.Cache

	pendingReview *domain.PendingReview
	typing        typingState
	status        statusState
	sending       bool
	draft         string

	onNewUser func(userID, displayName string)

	// Subscriptions live behind their own mutex so notifyChanged can be
	// called whether or not mu is held.
	subMu       sync.Mutex
	subscribers map[string]chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the real clock, for tests.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) { e.clock = clk }
}

// WithNewUserNotifier registers a callback fired once per newly
// discovered conversation.
func WithNewUserNotifier(fn func(userID, displayName string)) Option {
	return func(e *Engine) { e.onNewUser = fn }
}

// New creates an engine. adminID distinguishes this operator's typing
// from other operators on the same conversations.
func New(backend Backend, emitter Emitter, adminID string, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}

	e := &Engine{
		logger:      logger.With("component", "engine"),
		clock:       clock.New(),
		metrics:     m,
		backend:     backend,
		emitter:     emitter,
		adminID:     adminID,
		subscribers: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.roster = roster.New(e.clock, logger)
	e.timeline = timeline.New(logger)
	e.activity = activity.New()
	e.seenEvents = dedupe.New(dedupeTTL, dedupeSize, e.clock)
	return e
}

// Bootstrap loads the initial roster from the backend.
func (e *Engine) Bootstrap(ctx context.Context) error {
	convs, err := e.backend.ListConversations(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.roster.Seed(convs)
	e.metrics.Conversations.Set(float64(e.roster.Len()))
	e.mu.Unlock()
	e.notifyChanged()
	return nil
}

// Conversations returns the roster, most recently active first.
func (e *Engine) Conversations() []domain.Conversation {
	return e.roster.List()
}

// Search filters the roster without mutating it.
func (e *Engine) Search(query string) []domain.Conversation {
	return e.roster.Search(query)
}

// Unread returns conversation ids with unseen messages.
func (e *Engine) Unread() []string {
	return e.roster.Unread()
}

// Messages returns a copy of one conversation's timeline.
func (e *Engine) Messages(userID string) []domain.Message {
	return e.timeline.Messages(userID)
}

// ActivityFor returns the agent activity for one conversation; ok is
// false when the conversation is idle.
func (e *Engine) ActivityFor(userID string) (domain.Activity, bool) {
	return e.activity.Get(userID)
}

// ActivitySnapshot returns a copy of the whole activity map.
func (e *Engine) ActivitySnapshot() map[string]domain.Activity {
	return e.activity.Snapshot()
}

// OpenConversation returns the id of the open conversation, or "".
func (e *Engine) OpenConversation() string {
	return e.roster.Open()
}

// PendingReview returns a copy of the open conversation's pending review,
// or nil when there is none.
func (e *Engine) PendingReview() *domain.PendingReview {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingReview == nil {
		return nil
	}
	pr := *e.pendingReview
	return &pr
}

// TypingInfo returns this operator's typing indicator state.
func (e *Engine) TypingInfo() domain.AdminTypingInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.AdminTypingInfo{Visible: e.typing.visible, ElapsedSeconds: e.typing.elapsed}
}

// Status returns the transient status line, or "".
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status.text
}

// Draft returns the current input draft. After a failed send it holds
// the restored message content.
func (e *Engine) Draft() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// SetDraft stores the operator's in-progress input.
func (e *Engine) SetDraft(text string) {
	e.mu.Lock()
	e.draft = text
	e.mu.Unlock()
}

// Sending reports whether a send is in flight.
func (e *Engine) Sending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sending
}

// Open switches the open conversation. The typing counter is discarded,
// the per-open-conversation views reset, and history plus mark-read are
// requested in the background. Outstanding requests for the previous
// conversation keep running; their callbacks no-op under the guards.
func (e *Engine) Open(userID string) {
	e.mu.Lock()

	// Scoped resources of the previous conversation.
	e.releaseTypingLocked()
	e.pendingReview = nil
	e.clearStatusLocked()

	e.roster.SetOpen(userID)

	// A conversation can already hold a drafted reply when the operator
	// switches to it; rebuild the denormalized view from the activity map.
	if a, ok := e.activity.Get(userID); ok && a.Type == domain.ActivityPendingReview {
		e.pendingReview = &domain.PendingReview{
			ResponseID: a.ResponseID,
			MessageID:  a.MessageID,
			Content:    a.Content,
			UserID:     userID,
		}
	}
	e.mu.Unlock()
	e.notifyChanged()

	if userID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := e.backend.MarkRead(ctx, userID); err != nil {
			e.logger.Warn("mark-read failed", "user_id", userID, "error", err)
		}
		history, err := e.backend.History(ctx, userID, historyLimit)
		if err != nil {
			e.logger.Warn("history load failed", "user_id", userID, "error", err)
			return
		}
		if added := e.timeline.Merge(userID, history); added > 0 {
			e.notifyChanged()
		}
	}()
}

// ToggleAgent enables or disables the agent for a conversation. The
// roster flips only after the backend confirms.
func (e *Engine) ToggleAgent(userID string, enabled bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := e.backend.SetAIEnabled(ctx, userID, enabled); err != nil {
			e.metrics.CommandFailures.WithLabelValues("toggle_agent").Inc()
			e.mu.Lock()
			if e.roster.Open() == userID {
				e.setStatusLocked("Agent toggle failed: "+err.Error(), statusTTL)
			}
			e.mu.Unlock()
			e.notifyChanged()
			return
		}
		e.roster.SetAIEnabled(userID, enabled)
		e.notifyChanged()
	}()
}

// setStatusLocked replaces the transient status line. ttl 0 keeps the
// text until it is replaced or cleared. Must be called with mu held.
func (e *Engine) setStatusLocked(text string, ttl time.Duration) {
	if e.status.timer != nil {
		e.status.timer.Stop()
		e.status.timer = nil
	}
	e.status.epoch++
	e.status.text = text
	e.status.remoteTyping = ""

	if ttl <= 0 {
		return
	}
	epoch := e.status.epoch
	e.status.timer = e.clock.AfterFunc(ttl, func() {
		e.mu.Lock()
		if e.status.epoch == epoch {
			e.status.text = ""
			e.status.remoteTyping = ""
			e.status.timer = nil
		}
		e.mu.Unlock()
		e.notifyChanged()
	})
}

// clearStatusLocked wipes the status line. Must be called with mu held.
func (e *Engine) clearStatusLocked() {
	if e.status.timer != nil {
		e.status.timer.Stop()
		e.status.timer = nil
	}
	e.status.epoch++
	e.status.text = ""
	e.status.remoteTyping = ""
}
