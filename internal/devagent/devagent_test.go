package devagent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lucident-ai/adkchat"
	"github.com/lucident-ai/adkchat/streaming"
)

func echoServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	server, err := New(Config{Responder: EchoResponder{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return server, srv
}

func TestNew_RequiresResponder(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, adkchat.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	_, srv := echoServer(t)

	client, err := adkchat.New(adkchat.Config{BaseURL: srv.URL, AppName: "dev", UserID: "alice"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ctx := context.Background()

	session := client.CreateSession(ctx, "Scratch")
	if session.IsFallback() {
		t.Fatal("dev server reachable but client fell back")
	}
	if session.Name() != "Scratch" {
		t.Errorf("name = %q", session.Name())
	}

	listed := client.ListSessions(ctx)
	if len(listed) != 1 || listed[0].ID != session.ID {
		t.Errorf("listed = %+v", listed)
	}

	if err := client.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.GetSession(ctx, session.ID); !errors.Is(err, adkchat.ErrSessionNotFound) {
		t.Errorf("get after delete = %v, want ErrSessionNotFound", err)
	}
}

func TestServer_ListScopedToUser(t *testing.T) {
	_, srv := echoServer(t)
	ctx := context.Background()

	alice, _ := adkchat.New(adkchat.Config{BaseURL: srv.URL, AppName: "dev", UserID: "alice"})
	bob, _ := adkchat.New(adkchat.Config{BaseURL: srv.URL, AppName: "dev", UserID: "bob"})

	alice.CreateSession(ctx, "")
	bob.CreateSession(ctx, "")

	if got := len(alice.ListSessions(ctx)); got != 1 {
		t.Errorf("alice sees %d sessions, want 1", got)
	}
}

func TestServer_RunStreamsAndRecords(t *testing.T) {
	server, srv := echoServer(t)

	client, err := adkchat.New(adkchat.Config{BaseURL: srv.URL, AppName: "dev", UserID: "alice"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ctx := context.Background()
	session := client.CreateSession(ctx, "")

	dec := streaming.NewDecoder(client.SendMessage(ctx, "hello world", session.ID))
	defer dec.Close()
	text, err := dec.Text()
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if text != "You said: hello world" {
		t.Errorf("reply = %q", text)
	}

	stored, ok := server.sessions[session.ID]
	if !ok {
		t.Fatal("session vanished")
	}
	if len(stored.Events) != 2 {
		t.Fatalf("got %d events, want user + assistant", len(stored.Events))
	}
	if stored.Events[0].Author != "user" || stored.Events[1].Author != adkchat.DefaultAppName {
		t.Errorf("authors = %q, %q", stored.Events[0].Author, stored.Events[1].Author)
	}
	msgs := adkchat.MessagesFromSession(stored, adkchat.ToolPartHide)
	if msgs[1].Content != "You said: hello world" {
		t.Errorf("recorded reply = %q", msgs[1].Content)
	}
}

func TestServer_RunUnknownSession(t *testing.T) {
	_, srv := echoServer(t)

	body := `{"app_name":"dev","user_id":"alice","session_id":"missing","new_message":{"role":"user","content":{"parts":[{"text":"hi"}]}},"streaming":true}`
	resp, err := http.Post(srv.URL+"/run_sse", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /run_sse: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_RunRejectsEmptyMessage(t *testing.T) {
	_, srv := echoServer(t)

	body := `{"app_name":"dev","user_id":"alice","session_id":"s","new_message":{"role":"user","content":{"parts":[]}},"streaming":true}`
	resp, err := http.Post(srv.URL+"/run_sse", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /run_sse: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
