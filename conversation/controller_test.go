package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lucident-ai/adkchat"
)

// sseStream builds a ReadCloser carrying one frame per delta plus the
// terminator, the shape the session client hands to the decoder.
func sseStream(deltas ...string) io.ReadCloser {
	var b strings.Builder
	for _, d := range deltas {
		fmt.Fprintf(&b, "data: {\"content\":{\"parts\":[{\"text\":%q}]}}\n\n", d)
	}
	b.WriteString("data: [DONE]\n\n")
	return io.NopCloser(strings.NewReader(b.String()))
}

type fakeAPI struct {
	mu       sync.Mutex
	sessions map[string]*adkchat.Session
	getErr   error
	streams  []io.ReadCloser
	sent     []string
}

func (f *fakeAPI) GetSession(ctx context.Context, sessionID string) (*adkchat.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, adkchat.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, text, sessionID string) io.ReadCloser {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	if len(f.streams) == 0 {
		return sseStream()
	}
	next := f.streams[0]
	f.streams = f.streams[1:]
	return next
}

func historySession(texts ...string) *adkchat.Session {
	s := &adkchat.Session{}
	for i, text := range texts {
		author := "user"
		if i%2 == 1 {
			author = "assistant"
		}
		s.Events = append(s.Events, adkchat.Event{
			ID:      fmt.Sprintf("e%d", i),
			Author:  author,
			Content: adkchat.Content{Parts: []adkchat.Part{adkchat.NewTextPart(text)}},
		})
	}
	return s
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestController_LoadHistory(t *testing.T) {
	api := &fakeAPI{sessions: map[string]*adkchat.Session{
		"s-1": historySession("hello", "hi, how can I help?"),
	}}
	ctrl := New(api)

	if ctrl.State() != StateIdle {
		t.Errorf("initial state = %s, want idle", ctrl.State())
	}

	ctrl.SetActiveSession(context.Background(), "s-1")

	if ctrl.State() != StateReady {
		t.Errorf("state = %s, want ready", ctrl.State())
	}
	msgs := ctrl.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != adkchat.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != adkchat.RoleAssistant || msgs[1].Content != "hi, how can I help?" {
		t.Errorf("second message = %+v", msgs[1])
	}
}

func TestController_LoadHistory_UnknownSessionStartsEmpty(t *testing.T) {
	ctrl := New(&fakeAPI{})
	ctrl.SetActiveSession(context.Background(), "mock-abc")

	if ctrl.State() != StateReady {
		t.Errorf("state = %s, want ready", ctrl.State())
	}
	if msgs := ctrl.Messages(); len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
	if ctrl.Err() != nil {
		t.Errorf("err = %v, want nil", ctrl.Err())
	}
}

func TestController_LoadHistory_Error(t *testing.T) {
	boom := errors.New("backend exploded")
	ctrl := New(&fakeAPI{getErr: fmt.Errorf("get session: %w", boom)})
	ctrl.SetActiveSession(context.Background(), "s-1")

	if ctrl.State() != StateError {
		t.Errorf("state = %s, want error", ctrl.State())
	}
	if !errors.Is(ctrl.Err(), boom) {
		t.Errorf("err = %v, want wrapped backend error", ctrl.Err())
	}
}

func TestController_Send(t *testing.T) {
	api := &fakeAPI{streams: []io.ReadCloser{sseStream("Hi", " there", "!")}}

	var changes int
	ctrl := New(api, WithOnChange(func() { changes++ }))
	ctrl.SetActiveSession(context.Background(), "mock-1")

	if err := ctrl.Send(context.Background(), "greet me"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if ctrl.State() != StateReady {
		t.Errorf("state = %s, want ready", ctrl.State())
	}
	msgs := ctrl.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != adkchat.RoleUser || msgs[0].Content != "greet me" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != adkchat.RoleAssistant || msgs[1].Content != "Hi there!" {
		t.Errorf("assistant message = %+v", msgs[1])
	}
	if api.sent[0] != "greet me" {
		t.Errorf("sent %q to the client", api.sent[0])
	}
	if changes == 0 {
		t.Error("onChange never fired")
	}
}

func TestController_Send_NoSession(t *testing.T) {
	ctrl := New(&fakeAPI{})
	if err := ctrl.Send(context.Background(), "hi"); !errors.Is(err, adkchat.ErrNoSession) {
		t.Errorf("Send before SetActiveSession = %v, want ErrNoSession", err)
	}
}

func TestController_Send_Busy(t *testing.T) {
	pr, pw := io.Pipe()
	api := &fakeAPI{streams: []io.ReadCloser{pr}}
	ctrl := New(api)
	ctrl.SetActiveSession(context.Background(), "mock-1")

	done := make(chan error, 1)
	go func() { done <- ctrl.Send(context.Background(), "first") }()
	waitFor(t, "stream to start", func() bool { return ctrl.State() == StateStreaming })

	if err := ctrl.Send(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Send = %v, want ErrBusy", err)
	}

	io.WriteString(pw, "data: [DONE]\n\n")
	pw.Close()
	if err := <-done; err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if ctrl.State() != StateReady {
		t.Errorf("state = %s, want ready", ctrl.State())
	}
}

func TestController_Send_StreamErrorKeepsPartial(t *testing.T) {
	pr, pw := io.Pipe()
	api := &fakeAPI{streams: []io.ReadCloser{pr}}
	ctrl := New(api)
	ctrl.SetActiveSession(context.Background(), "mock-1")

	done := make(chan error, 1)
	go func() { done <- ctrl.Send(context.Background(), "hi") }()

	io.WriteString(pw, "data: {\"content\":{\"parts\":[{\"text\":\"partial an\"}]}}\n\n")
	waitFor(t, "first delta", func() bool {
		msgs := ctrl.Messages()
		return len(msgs) == 2 && msgs[1].Content != ""
	})
	pw.CloseWithError(errors.New("connection reset"))

	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ctrl.State() != StateError {
		t.Errorf("state = %s, want error", ctrl.State())
	}
	if ctrl.Err() == nil {
		t.Error("stream failure not recorded")
	}
	if msgs := ctrl.Messages(); msgs[1].Content != "partial an" {
		t.Errorf("partial content = %q", msgs[1].Content)
	}
}

// TestController_SwitchAbandonsStream pins the core isolation property:
// once the active session changes, nothing from the old session's in-flight
// reply may reach the new session's message list, and the old stream is
// closed rather than left draining in the background.
func TestController_SwitchAbandonsStream(t *testing.T) {
	pr, pw := io.Pipe()
	api := &fakeAPI{
		sessions: map[string]*adkchat.Session{
			"s-2": historySession("older question", "older answer"),
		},
		streams: []io.ReadCloser{pr},
	}
	ctrl := New(api)
	ctrl.SetActiveSession(context.Background(), "mock-1")

	done := make(chan error, 1)
	go func() { done <- ctrl.Send(context.Background(), "question for session one") }()

	io.WriteString(pw, "data: {\"content\":{\"parts\":[{\"text\":\"LEAKED\"}]}}\n\n")
	waitFor(t, "first delta", func() bool {
		msgs := ctrl.Messages()
		return len(msgs) == 2 && strings.Contains(msgs[1].Content, "LEAKED")
	})

	ctrl.SetActiveSession(context.Background(), "s-2")

	// The writer may or may not get these through before the closed read
	// side rejects them; either way they must not surface.
	io.WriteString(pw, "data: {\"content\":{\"parts\":[{\"text\":\" MORE\"}]}}\n\n")
	pw.Close()

	if err := <-done; err != nil {
		t.Fatalf("abandoned Send: %v", err)
	}

	if ctrl.State() != StateReady {
		t.Errorf("state = %s, want ready", ctrl.State())
	}
	if ctrl.Err() != nil {
		t.Errorf("abandoned stream surfaced an error: %v", ctrl.Err())
	}
	msgs := ctrl.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want the 2 from session two", len(msgs))
	}
	for _, m := range msgs {
		if strings.Contains(m.Content, "LEAKED") || strings.Contains(m.Content, "MORE") {
			t.Errorf("delta from abandoned stream leaked into %+v", m)
		}
	}
	if msgs[0].Content != "older question" || msgs[1].Content != "older answer" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestController_Close(t *testing.T) {
	api := &fakeAPI{sessions: map[string]*adkchat.Session{"s-1": historySession("q", "a")}}
	ctrl := New(api)
	ctrl.SetActiveSession(context.Background(), "s-1")

	ctrl.Close()

	if ctrl.State() != StateIdle {
		t.Errorf("state = %s, want idle", ctrl.State())
	}
	if len(ctrl.Messages()) != 0 || ctrl.SessionID() != "" {
		t.Error("Close did not reset the controller")
	}
}

func TestController_ToolPartPolicy(t *testing.T) {
	session := &adkchat.Session{Events: []adkchat.Event{{
		ID:     "e1",
		Author: "assistant",
		Content: adkchat.Content{Parts: []adkchat.Part{
			adkchat.NewFunctionCallPart("fc", "search", nil),
			adkchat.NewTextPart("Found it."),
		}},
	}}}
	api := &fakeAPI{sessions: map[string]*adkchat.Session{"s-1": session}}

	ctrl := New(api, WithToolPartPolicy(adkchat.ToolPartCompact))
	ctrl.SetActiveSession(context.Background(), "s-1")

	msgs := ctrl.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Content, "[calling search]") {
		t.Errorf("messages = %+v, want compact tool rendering", msgs)
	}
}
