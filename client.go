package adkchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// apologyText is streamed to the user when a message could not be delivered
// to the agent service at all.
const apologyText = "Sorry, I couldn't connect to the server. Please try again later."

// Client talks to an ADK-style agent service: session CRUD plus the
// streaming run endpoint. Its guiding policy is that no transport or
// protocol failure may propagate as an unhandled error into the UI layer —
// each operation degrades the way its callers expect (fallback session,
// not-found result, empty list, apology stream).
//
// A Client owns the "current session" pointer for one user. The pointer is
// explicit per-Client state rather than package-level state, so independent
// clients never interfere.
type Client struct {
	baseURL string
	appName string
	userID  string
	http    *http.Client
	stream  *http.Client
	logger  Logger

	mu        sync.Mutex
	sessionID string
}

// New creates a Client for the agent service described by cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// SSE responses outlive any sane request timeout.
	stream := *cfg.HTTPClient
	stream.Timeout = 0

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		appName: cfg.AppName,
		userID:  cfg.UserID,
		http:    cfg.HTTPClient,
		stream:  &stream,
		logger:  cfg.Logger,
	}, nil
}

// SessionID returns the current session id, or "" when none is set.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSessionID sets the current session pointer.
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

func (c *Client) sessionsURL() string {
	return fmt.Sprintf("%s/apps/%s/users/%s/sessions", c.baseURL, c.appName, c.userID)
}

func (c *Client) sessionURL(id string) string {
	return c.sessionsURL() + "/" + id
}

func (c *Client) runURL() string {
	return c.baseURL + "/run_sse"
}

// CreateSession requests a new session from the agent service and sets it
// as the current session. It never fails: when the service is unreachable
// or answers with something unusable, a fallback session with a locally
// generated mock- id and empty history is synthesized instead, so the UI
// can still offer an empty conversation while the backend is down.
func (c *Client) CreateSession(ctx context.Context, name string) *Session {
	body := struct {
		SessionName string `json:"session_name,omitempty"`
	}{SessionName: name}

	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sessionsURL(), bytes.NewReader(payload))
	if err != nil {
		return c.fallbackSession(name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fallbackSession(name, fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fallbackSession(name, fmt.Errorf("%w: status %d", ErrRemote, resp.StatusCode))
	}

	var session Session
	if err := decodeJSON(resp, &session); err != nil {
		return c.fallbackSession(name, err)
	}

	c.SetSessionID(session.ID)
	return &session
}

// fallbackSession synthesizes a local session after a failed create. The
// mock- prefix keeps the id distinguishable from server-issued ids.
func (c *Client) fallbackSession(name string, cause error) *Session {
	id := FallbackIDPrefix + uuid.New().String()
	c.logger.Warn("create session failed, using local fallback",
		"error", cause, "fallback_id", id)

	state := map[string]any{}
	if name != "" {
		state[sessionNameKey] = name
	}

	c.SetSessionID(id)
	return &Session{
		ID:         id,
		AppName:    c.appName,
		UserID:     c.userID,
		State:      state,
		Events:     []Event{},
		LastUpdate: UnixSeconds(time.Now()),
	}
}

// GetSession fetches one session. A 404 maps to ErrSessionNotFound so
// callers can decide to create a replacement. Transport failures and
// unparseable bodies are logged and also reported as not-found, keeping
// read paths resilient; any other failure status is a hard error.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL(id), nil)
	if err != nil {
		return nil, NewClientErrorWithSession("GetSession", id, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("get session failed, treating as not found", "session_id", id, "error", err)
		return nil, NewClientErrorWithSession("GetSession", id, ErrSessionNotFound)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewClientErrorWithSession("GetSession", id, ErrSessionNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, NewClientErrorWithSession("GetSession", id,
			fmt.Errorf("%w: status %d", ErrRemote, resp.StatusCode))
	}

	var session Session
	if err := decodeJSON(resp, &session); err != nil {
		c.logger.Warn("get session returned malformed body, treating as not found",
			"session_id", id, "error", err)
		return nil, NewClientErrorWithSession("GetSession", id, ErrSessionNotFound)
	}
	return &session, nil
}

// ListSessions fetches all sessions for the configured user. Failures of
// any kind are logged and yield an empty list; a listing failure must never
// take the session directory down with it.
func (c *Client) ListSessions(ctx context.Context) []*Session {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionsURL(), nil)
	if err != nil {
		c.logger.Error("list sessions request", "error", err)
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("list sessions failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("list sessions failed", "status", resp.StatusCode)
		return nil
	}

	var sessions []*Session
	if err := decodeJSON(resp, &sessions); err != nil {
		c.logger.Warn("list sessions returned malformed body", "error", err)
		return nil
	}
	return sessions
}

// DeleteSession deletes a session. The failure, if any, is logged and
// returned, but callers are expected to proceed optimistically regardless.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.sessionURL(id), nil)
	if err != nil {
		return NewClientErrorWithSession("DeleteSession", id, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("delete session failed", "session_id", id, "error", err)
		return NewClientErrorWithSession("DeleteSession", id, fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("delete session failed", "session_id", id, "status", resp.StatusCode)
		return NewClientErrorWithSession("DeleteSession", id,
			fmt.Errorf("%w: status %d", ErrRemote, resp.StatusCode))
	}
	return nil
}

// SendMessage posts a user message to the run endpoint and returns the raw
// SSE response body for a streaming.Decoder to consume. When sessionID is
// empty the current session is used, creating one first if necessary. The
// returned stream is never nil: if the request fails outright, the caller
// gets a synthetic one-shot stream carrying an apology frame and the
// terminal marker, so the UI always has a stream it can render to
// completion. The caller owns the stream and must close it.
func (c *Client) SendMessage(ctx context.Context, text string, sessionID string) io.ReadCloser {
	target := sessionID
	if target == "" {
		target = c.SessionID()
	}
	if target == "" {
		target = c.CreateSession(ctx, "").ID
	}

	runReq := RunRequest{
		AppName:   c.appName,
		UserID:    c.userID,
		SessionID: target,
		NewMessage: NewMessage{
			Role:    string(RoleUser),
			Content: Content{Parts: []Part{NewTextPart(text)}},
		},
		Streaming: true,
	}

	payload, _ := json.Marshal(runReq)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.runURL(), bytes.NewReader(payload))
	if err != nil {
		return c.apologyStream(target, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return c.apologyStream(target, fmt.Errorf("%w: %v", ErrNetwork, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return c.apologyStream(target,
			fmt.Errorf("%w: status %d: %s", ErrRemote, resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	return resp.Body
}

// apologyStream builds the synthetic one-shot response used when a message
// could not be delivered. It is framed as regular SSE so the decoder path
// stays uniform.
func (c *Client) apologyStream(sessionID string, cause error) io.ReadCloser {
	c.logger.Error("send message failed, returning apology stream",
		"session_id", sessionID, "error", cause)

	frame := struct {
		Content Content `json:"content"`
	}{Content: Content{Parts: []Part{NewTextPart(apologyText)}}}

	payload, _ := json.Marshal(frame)

	var b strings.Builder
	fmt.Fprintf(&b, "data: %s\n\n", payload)
	b.WriteString("data: [DONE]\n\n")
	return io.NopCloser(strings.NewReader(b.String()))
}

// decodeJSON decodes a JSON response body, rejecting responses that do not
// declare a JSON content type. A reverse proxy answering for a dead backend
// tends to return HTML with a 200, which must not be mistaken for data.
func decodeJSON(resp *http.Response, v any) error {
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "application/json") {
		return fmt.Errorf("%w: content-type %q", ErrMalformedResponse, ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
