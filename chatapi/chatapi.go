// Package chatapi exposes the conversation flow over HTTP for frontends
// that cannot talk to the agent service directly. POST /api/chat accepts
// the accumulated message list and streams the assistant reply back as
// server-sent events in the same frame format the agent service uses, so
// the streaming decoder works unchanged against either endpoint.
package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucident-ai/adkchat"
)

// Streamer produces the assistant reply stream for a user message.
// *adkchat.Client satisfies it.
type Streamer interface {
	SendMessage(ctx context.Context, text, sessionID string) io.ReadCloser
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	SessionID string               `json:"sessionId,omitempty"`
	Messages  []adkchat.ChatMessage `json:"messages"`
}

// Handler serves the chat endpoint.
type Handler struct {
	streamer Streamer
	logger   adkchat.Logger
}

// NewHandler creates a Handler backed by the given streamer. A nil logger
// discards everything.
func NewHandler(streamer Streamer, logger adkchat.Logger) *Handler {
	if logger == nil {
		logger = adkchat.NopLogger()
	}
	return &Handler{streamer: streamer, logger: logger}
}

// NewServeMux returns a mux with the chat routes registered.
func NewServeMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", withRequestLog(h.logger, http.HandlerFunc(h.handleChat)))
	return mux
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages must not be empty", http.StatusBadRequest)
		return
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != adkchat.RoleUser {
		http.Error(w, "last message must be from the user", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(last.Content) == "" {
		http.Error(w, "message text must not be empty", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support flushing")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	stream := h.streamer.SendMessage(r.Context(), last.Content, req.SessionID)
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	// Relay upstream frames as they arrive. The upstream never fails
	// outright; connection problems surface as an apology reply inside
	// the stream itself.
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				h.logger.Debug("client went away mid-stream", "error", werr)
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Warn("reply stream ended abnormally", "error", err)
			}
			return
		}
	}
}

// MockStreamer is a Streamer that answers every message with a canned
// reply, split into word-sized deltas with an optional pause between them.
// It stands in for the agent service in demos and tests.
type MockStreamer struct {
	Reply string
	Delay time.Duration
}

// SendMessage implements Streamer.
func (m *MockStreamer) SendMessage(ctx context.Context, text, sessionID string) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		words := strings.Split(m.Reply, " ")
		for i, word := range words {
			if i > 0 {
				word = " " + word
			}
			payload, err := json.Marshal(map[string]any{
				"content": map[string]any{
					"parts": []map[string]any{{"text": word}},
				},
			})
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(pw, "data: %s\n\n", payload); err != nil {
				return
			}
			if m.Delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(m.Delay):
				}
			}
		}
		fmt.Fprint(pw, "data: [DONE]\n\n")
	}()
	return pr
}

// statusRecorder captures the status code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func withRequestLog(logger adkchat.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
