// Package devagent is a small in-memory agent service speaking the same
// HTTP surface the client expects: session CRUD plus a streaming run
// endpoint. It exists for local development and demos, with the actual
// reply generation delegated to a pluggable Responder, so the full client
// stack can be exercised without a real deployment.
package devagent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucident-ai/adkchat"
)

// Responder generates the assistant reply for a run. Implementations emit
// the reply incrementally; each emitted delta is flushed to the client as
// its own event frame.
type Responder interface {
	Respond(ctx context.Context, history []adkchat.ChatMessage, emit func(delta string) error) error
}

// Config configures a Server.
type Config struct {
	// AppName is the application name used as the author of assistant
	// events. Defaults to adkchat.DefaultAppName.
	AppName string

	// Responder generates replies. Required.
	Responder Responder

	// Logger for structured logging. If nil, logging is disabled.
	Logger adkchat.Logger
}

// Server holds the sessions and serves the agent HTTP surface.
type Server struct {
	appName   string
	responder Responder
	logger    adkchat.Logger

	mu       sync.Mutex
	sessions map[string]*adkchat.Session
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Responder == nil {
		return nil, fmt.Errorf("%w: Responder is required", adkchat.ErrInvalidConfig)
	}
	if cfg.AppName == "" {
		cfg.AppName = adkchat.DefaultAppName
	}
	if cfg.Logger == nil {
		cfg.Logger = adkchat.NopLogger()
	}
	return &Server{
		appName:   cfg.AppName,
		responder: cfg.Responder,
		logger:    cfg.Logger,
		sessions:  make(map[string]*adkchat.Session),
	}, nil
}

// Handler returns the service's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /apps/{app}/users/{user}/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /apps/{app}/users/{user}/sessions", s.handleListSessions)
	mux.HandleFunc("GET /apps/{app}/users/{user}/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /apps/{app}/users/{user}/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /run_sse", s.handleRun)
	return mux
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionName string `json:"session_name"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	session := &adkchat.Session{
		ID:         uuid.New().String(),
		AppName:    r.PathValue("app"),
		UserID:     r.PathValue("user"),
		State:      map[string]any{},
		Events:     []adkchat.Event{},
		LastUpdate: adkchat.UnixSeconds(time.Now()),
	}
	if body.SessionName != "" {
		session.State["session_name"] = body.SessionName
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.Info("session created", "session_id", session.ID, "user_id", session.UserID)
	s.writeJSON(w, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")

	s.mu.Lock()
	out := make([]*adkchat.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.UserID == user {
			out = append(out, session)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdate.Time().After(out[j].LastUpdate.Time())
	})
	s.writeJSON(w, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	session, ok := s.sessions[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	s.logger.Info("session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req adkchat.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid run request", http.StatusBadRequest)
		return
	}
	text := firstText(req.NewMessage.Content)
	if text == "" {
		http.Error(w, "message text is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	session, ok := s.sessions[req.SessionID]
	var history []adkchat.ChatMessage
	if ok {
		history = adkchat.MessagesFromSession(session, adkchat.ToolPartHide)
	}
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	history = append(history, adkchat.NewUserChatMessage(text))

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	var full string
	err := s.responder.Respond(r.Context(), history, func(delta string) error {
		full += delta
		payload, err := json.Marshal(map[string]any{
			"content": map[string]any{
				"parts": []map[string]any{{"text": delta}},
			},
		})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Headers are already out; end the stream without the
		// terminator and let the client treat what arrived as the
		// reply.
		s.logger.Error("responder failed", "session_id", req.SessionID, "error", err)
		return
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	s.record(session, text, full)
}

// record appends the exchange to the session's history.
func (s *Server) record(session *adkchat.Session, userText, replyText string) {
	now := adkchat.UnixSeconds(time.Now())
	invocation := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	session.Events = append(session.Events,
		adkchat.Event{
			ID:           uuid.New().String(),
			InvocationID: invocation,
			Author:       "user",
			Content:      adkchat.Content{Role: "user", Parts: []adkchat.Part{adkchat.NewTextPart(userText)}},
			Timestamp:    now,
		},
		adkchat.Event{
			ID:           uuid.New().String(),
			InvocationID: invocation,
			Author:       s.appName,
			Content:      adkchat.Content{Role: "model", Parts: []adkchat.Part{adkchat.NewTextPart(replyText)}},
			Timestamp:    now,
		},
	)
	session.LastUpdate = now
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", "error", err)
	}
}

func firstText(c adkchat.Content) string {
	for _, p := range c.Parts {
		if p.Kind() == adkchat.PartKindText {
			return p.Text
		}
	}
	return ""
}
