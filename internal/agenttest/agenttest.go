// Package agenttest provides an in-memory fake of the agent service's HTTP
// surface for tests. It speaks the same session and run_sse wire format as
// the real service, with scripted assistant replies.
package agenttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucident-ai/adkchat"
)

// Server is a fake agent service. Create one with NewServer and point a
// client at URL(). All methods are safe for concurrent use.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	sessions map[string]*adkchat.Session
	replies  [][]string
	runs     int
}

// NewServer starts the fake service. Callers own shutdown via Close.
func NewServer() *Server {
	s := &Server{sessions: make(map[string]*adkchat.Session)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /apps/{app}/users/{user}/sessions", s.handleCreate)
	mux.HandleFunc("GET /apps/{app}/users/{user}/sessions", s.handleList)
	mux.HandleFunc("GET /apps/{app}/users/{user}/sessions/{id}", s.handleGet)
	mux.HandleFunc("DELETE /apps/{app}/users/{user}/sessions/{id}", s.handleDelete)
	mux.HandleFunc("POST /run_sse", s.handleRun)

	s.srv = httptest.NewServer(mux)
	return s
}

// URL returns the base URL for client configuration.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the fake service down.
func (s *Server) Close() { s.srv.Close() }

// Seed installs a session directly, bypassing the HTTP surface.
func (s *Server) Seed(session *adkchat.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// ScriptReply queues the deltas streamed for the next run_sse call. Each
// call to ScriptReply covers one run; runs beyond the script echo the user
// message.
func (s *Server) ScriptReply(deltas ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, deltas)
}

// Runs reports how many run_sse calls the server has handled.
func (s *Server) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Session returns a seeded or created session by id, or nil.
func (s *Server) Session(id string) *adkchat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionName string `json:"session_name"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

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

	writeJSON(w, session)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]*adkchat.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	s.mu.Unlock()

	writeJSON(w, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	session, ok := s.sessions[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, session)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	_, ok := s.sessions[r.PathValue("id")]
	delete(s.sessions, r.PathValue("id"))
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req adkchat.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid run request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	session, ok := s.sessions[req.SessionID]
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	s.runs++
	var deltas []string
	if len(s.replies) > 0 {
		deltas = s.replies[0]
		s.replies = s.replies[1:]
	} else {
		deltas = []string{"echo: ", userText(req)}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	full := ""
	for _, delta := range deltas {
		full += delta
		payload, _ := json.Marshal(map[string]any{
			"content": map[string]any{
				"parts": []map[string]any{{"text": delta}},
			},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")

	s.mu.Lock()
	now := adkchat.UnixSeconds(time.Now())
	session.Events = append(session.Events,
		adkchat.Event{
			ID:        uuid.New().String(),
			Author:    "user",
			Content:   adkchat.Content{Role: "user", Parts: []adkchat.Part{adkchat.NewTextPart(userText(req))}},
			Timestamp: now,
		},
		adkchat.Event{
			ID:        uuid.New().String(),
			Author:    session.AppName,
			Content:   adkchat.Content{Role: "model", Parts: []adkchat.Part{adkchat.NewTextPart(full)}},
			Timestamp: now,
		},
	)
	session.LastUpdate = now
	s.mu.Unlock()
}

func userText(req adkchat.RunRequest) string {
	for _, p := range req.NewMessage.Content.Parts {
		if p.Kind() == adkchat.PartKindText {
			return p.Text
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
