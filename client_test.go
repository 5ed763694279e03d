package adkchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lucident-ai/adkchat/streaming"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := New(Config{
		BaseURL: baseURL,
		AppName: "test_app",
		UserID:  "tester",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func writeSessionJSON(t *testing.T, w http.ResponseWriter, s *Session) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		t.Fatalf("encode session: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(DefaultConfig(), WithBaseURL("")); err == nil {
		t.Error("expected error for empty base url option")
	}
	if _, err := New(Config{}); err != nil {
		t.Errorf("zero config should fall back to defaults, got %v", err)
	}
}

func TestCreateSession_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/apps/test_app/users/tester/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			SessionName string `json:"session_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body.SessionName != "Planning" {
			t.Errorf("session_name = %q, want Planning", body.SessionName)
		}
		writeSessionJSON(t, w, &Session{
			ID:         "s-123",
			AppName:    "test_app",
			UserID:     "tester",
			State:      map[string]any{"session_name": "Planning"},
			Events:     []Event{},
			LastUpdate: UnixSeconds(time.Now()),
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	session := client.CreateSession(context.Background(), "Planning")

	if session.ID != "s-123" {
		t.Errorf("id = %q, want s-123", session.ID)
	}
	if session.IsFallback() {
		t.Error("server-issued session reported as fallback")
	}
	if session.Name() != "Planning" {
		t.Errorf("name = %q, want Planning", session.Name())
	}
	if client.SessionID() != "s-123" {
		t.Errorf("current session = %q, want s-123", client.SessionID())
	}
}

func TestCreateSession_FallbackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // unreachable from the start

	client := newTestClient(t, srv.URL)
	session := client.CreateSession(context.Background(), "")

	if !session.IsFallback() {
		t.Fatalf("expected fallback session, got id %q", session.ID)
	}
	if !strings.HasPrefix(session.ID, FallbackIDPrefix) {
		t.Errorf("fallback id %q missing %q prefix", session.ID, FallbackIDPrefix)
	}
	if len(session.Events) != 0 {
		t.Errorf("fallback session has %d events, want 0", len(session.Events))
	}
	if client.SessionID() != session.ID {
		t.Error("fallback session not set as current")
	}
}

func TestCreateSession_FallbackOnNonJSON(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "html with 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprint(w, "<html>gateway</html>")
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "json content type, broken body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, "{not json")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			session := client.CreateSession(context.Background(), "")
			if !session.IsFallback() {
				t.Errorf("expected fallback session, got id %q", session.ID)
			}
		})
	}
}

func TestGetSession_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetSession(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestGetSession_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetSession(context.Background(), "s-1")
	if !errors.Is(err, ErrRemote) {
		t.Errorf("err = %v, want ErrRemote", err)
	}

	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("err %T is not a *ClientError", err)
	}
	if ce.SessionID != "s-1" {
		t.Errorf("ClientError.SessionID = %q, want s-1", ce.SessionID)
	}
}

func TestGetSession_NetworkFailureIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetSession(context.Background(), "s-1")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestListSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":"a","last_update_time":1700000000.5},{"id":"b","last_update_time":1700000300}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	sessions := client.ListSessions(context.Background())

	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].ID != "a" || sessions[1].ID != "b" {
		t.Errorf("ids = %q, %q", sessions[0].ID, sessions[1].ID)
	}
	if got := sessions[1].LastUpdate.Time().Unix(); got != 1700000300 {
		t.Errorf("last update = %d, want 1700000300", got)
	}
}

func TestListSessions_DegradesToEmpty(t *testing.T) {
	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closed.Close()

	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	}))
	defer html.Close()

	for name, url := range map[string]string{"network failure": closed.URL, "non-json body": html.URL} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, url)
			if sessions := client.ListSessions(context.Background()); len(sessions) != 0 {
				t.Errorf("got %d sessions, want 0", len(sessions))
			}
		})
	}
}

func TestDeleteSession(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		deleted = r.URL.Path
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if err := client.DeleteSession(context.Background(), "s-9"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if want := "/apps/test_app/users/tester/sessions/s-9"; deleted != want {
		t.Errorf("deleted path = %q, want %q", deleted, want)
	}
}

func TestDeleteSession_FailureIsReturnedNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if err := client.DeleteSession(context.Background(), "s-9"); !errors.Is(err, ErrRemote) {
		t.Errorf("err = %v, want ErrRemote", err)
	}
}

func TestSendMessage_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/run_sse" {
			t.Errorf("path = %s, want /run_sse", r.URL.Path)
		}
		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode run request: %v", err)
		}
		if req.SessionID != "s-42" || !req.Streaming {
			t.Errorf("run request = %+v", req)
		}
		if len(req.NewMessage.Content.Parts) != 1 || req.NewMessage.Content.Parts[0].Text != "Hello" {
			t.Errorf("new message parts = %+v", req.NewMessage.Content.Parts)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"content\":{\"parts\":[{\"text\":\"Hi\"}]}}\n\n")
		fmt.Fprint(w, "data: {\"content\":{\"parts\":[{\"text\":\" there\"}]}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	dec := streaming.NewDecoder(client.SendMessage(context.Background(), "Hello", "s-42"))
	defer dec.Close()

	text, err := dec.Text()
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if text != "Hi there" {
		t.Errorf("assistant content = %q, want %q", text, "Hi there")
	}
}

func TestSendMessage_CreatesSessionWhenNoneActive(t *testing.T) {
	var runSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/apps/test_app/users/tester/sessions":
			writeSessionJSON(t, w, &Session{ID: "s-new"})
		case "/run_sse":
			var req RunRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode run request: %v", err)
			}
			runSession = req.SessionID
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: [DONE]\n\n")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	dec := streaming.NewDecoder(client.SendMessage(context.Background(), "hi", ""))
	defer dec.Close()
	if _, err := dec.Text(); err != nil {
		t.Fatalf("stream: %v", err)
	}

	if runSession != "s-new" {
		t.Errorf("run used session %q, want s-new", runSession)
	}
	if client.SessionID() != "s-new" {
		t.Errorf("current session = %q, want s-new", client.SessionID())
	}
}

func TestSendMessage_ApologyStreamOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(t, srv.URL)
	dec := streaming.NewDecoder(client.SendMessage(context.Background(), "hi", "s-1"))
	defer dec.Close()

	text, err := dec.Text()
	if err != nil {
		t.Fatalf("apology stream must decode cleanly, got %v", err)
	}
	if !strings.Contains(text, "couldn't connect") {
		t.Errorf("apology text = %q", text)
	}
}
