// ABOUTME: Chi router over engine snapshots: roster, activity, review, timeline.
// ABOUTME: The pending-review endpoint renders the draft's markdown for preview.

package observer

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"

	"github.com/2389/coven-console/internal/domain"
	"github.com/2389/coven-console/internal/metrics"
)

// View is the slice of engine state the observer reads. Snapshots are
// copies; handlers never hold engine locks across a response.
type View interface {
	Conversations() []domain.Conversation
	Search(query string) []domain.Conversation
	Unread() []string
	Messages(userID string) []domain.Message
	ActivitySnapshot() map[string]domain.Activity
	OpenConversation() string
	PendingReview() *domain.PendingReview
	TypingInfo() domain.AdminTypingInfo
	Status() string
}

// Server serves the observer endpoints.
type Server struct {
	view     View
	metrics  *metrics.Metrics
	logger   *slog.Logger
	markdown goldmark.Markdown
}

// New creates an observer server over the given view.
func New(view View, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		view:     view,
		metrics:  m,
		logger:   logger.With("component", "observer"),
		markdown: goldmark.New(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/conversations", s.handleConversations)
		r.Get("/conversations/{userID}/messages", s.handleMessages)
		r.Get("/unread", s.handleUnread)
		r.Get("/activity", s.handleActivity)
		r.Get("/review", s.handleReview)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]string{"status": "ok"})
}

// stateResponse is the one-call snapshot for dashboards that poll.
type stateResponse struct {
	OpenConversation string                     `json:"openConversation"`
	Status           string                     `json:"status"`
	Typing           domain.AdminTypingInfo     `json:"typing"`
	Unread           []string                   `json:"unread"`
	Activity         map[string]domain.Activity `json:"activity"`
	Conversations    []domain.Conversation      `json:"conversations"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.respond(w, stateResponse{
		OpenConversation: s.view.OpenConversation(),
		Status:           s.view.Status(),
		Typing:           s.view.TypingInfo(),
		Unread:           s.view.Unread(),
		Activity:         s.view.ActivitySnapshot(),
		Conversations:    s.view.Conversations(),
	})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		s.respond(w, s.view.Search(q))
		return
	}
	s.respond(w, s.view.Conversations())
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	msgs := s.view.Messages(userID)

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		if limit < len(msgs) {
			msgs = msgs[len(msgs)-limit:]
		}
	}
	s.respond(w, msgs)
}

func (s *Server) handleUnread(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.view.Unread())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.view.ActivitySnapshot())
}

// reviewResponse carries the draft both raw and rendered, so a preview
// pane does not need its own markdown pipeline.
type reviewResponse struct {
	ResponseID  string `json:"responseId"`
	MessageID   string `json:"messageId"`
	UserID      string `json:"userId"`
	Content     string `json:"content"`
	ContentHTML string `json:"contentHtml"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	pr := s.view.PendingReview()
	if pr == nil {
		http.Error(w, `{"error":"no pending review"}`, http.StatusNotFound)
		return
	}

	var rendered bytes.Buffer
	if err := s.markdown.Convert([]byte(pr.Content), &rendered); err != nil {
		s.logger.Warn("draft markdown rendering failed", "error", err)
		rendered.Reset()
	}

	s.respond(w, reviewResponse{
		ResponseID:  pr.ResponseID,
		MessageID:   pr.MessageID,
		UserID:      pr.UserID,
		Content:     pr.Content,
		ContentHTML: rendered.String(),
	})
}

func (s *Server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encoding failed", "error", err)
	}
}
