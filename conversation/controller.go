// Package conversation tracks the message list and streaming state for the
// active chat session. A Controller owns one conversation at a time: loading
// history replaces the list wholesale, and a streamed reply grows the final
// assistant message delta by delta. Switching the active session abandons any
// in-flight work; deltas from an abandoned stream are never appended to the
// new session's messages.
package conversation

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/lucident-ai/adkchat"
	"github.com/lucident-ai/adkchat/streaming"
)

// ErrBusy is returned by Send while a previous reply is still streaming.
var ErrBusy = errors.New("conversation: reply already streaming")

// State is the controller's lifecycle phase.
type State string

const (
	// StateIdle means no session has been selected yet.
	StateIdle State = "idle"

	// StateLoadingHistory means the session's events are being fetched.
	StateLoadingHistory State = "loading_history"

	// StateReady means the message list is settled and a new message can
	// be sent.
	StateReady State = "ready"

	// StateStreaming means an assistant reply is being received.
	StateStreaming State = "streaming"

	// StateError means the last load or stream failed. The message list
	// holds whatever was assembled before the failure.
	StateError State = "error"
)

// SessionAPI is the slice of the session client the controller needs.
// *adkchat.Client satisfies it.
type SessionAPI interface {
	GetSession(ctx context.Context, sessionID string) (*adkchat.Session, error)
	SendMessage(ctx context.Context, text, sessionID string) io.ReadCloser
}

// Controller holds the conversation for the active session.
//
// All methods are safe for concurrent use. Mutations are guarded by a mutex
// plus a generation counter: every session switch bumps the generation, and
// any load or stream started under an older generation discards its results
// instead of touching the current message list.
type Controller struct {
	api      SessionAPI
	policy   adkchat.ToolPartPolicy
	logger   adkchat.Logger
	onChange func()

	mu        sync.Mutex
	gen       uint64
	sessionID string
	state     State
	messages  []adkchat.ChatMessage
	lastErr   error
	stream    *streaming.Decoder
}

// Option configures a Controller.
type Option func(*Controller)

// WithToolPartPolicy sets how tool activity in history is rendered.
func WithToolPartPolicy(policy adkchat.ToolPartPolicy) Option {
	return func(c *Controller) { c.policy = policy }
}

// WithLogger sets the logger. A nil logger discards everything.
func WithLogger(logger adkchat.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOnChange registers a callback invoked after every state or message
// list change. It is called without the controller lock held, so it may call
// back into the controller.
func WithOnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// New creates a controller in StateIdle.
func New(api SessionAPI, opts ...Option) *Controller {
	c := &Controller{
		api:    api,
		policy: adkchat.ToolPartHide,
		logger: adkchat.NopLogger(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the id of the active session, or "" before the first
// SetActiveSession.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Err returns the error that put the controller into StateError, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Messages returns a snapshot copy of the current message list.
func (c *Controller) Messages() []adkchat.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]adkchat.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// SetActiveSession switches the controller to sessionID and loads its
// history. Any in-flight load or stream for the previous session is
// abandoned: its decoder is closed and none of its results reach the new
// message list.
//
// A session that cannot be fetched because it does not exist on the service
// (including locally synthesized fallback sessions) starts empty and ready.
func (c *Controller) SetActiveSession(ctx context.Context, sessionID string) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.closeStreamLocked()
	c.sessionID = sessionID
	c.messages = nil
	c.lastErr = nil
	c.state = StateLoadingHistory
	c.mu.Unlock()
	c.notify()

	session, err := c.api.GetSession(ctx, sessionID)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		c.messages = adkchat.MessagesFromSession(session, c.policy)
		c.state = StateReady
	case errors.Is(err, adkchat.ErrSessionNotFound):
		c.logger.Debug("session has no remote history", "session_id", sessionID)
		c.state = StateReady
	default:
		c.logger.Error("load history failed", "session_id", sessionID, "error", err)
		c.lastErr = err
		c.state = StateError
	}
	c.mu.Unlock()
	c.notify()
}

// Send submits a user message and streams the assistant reply into the
// message list. The user message and an empty assistant placeholder are
// appended immediately; each delta then grows the placeholder in place.
// Send blocks until the stream ends; run it in a goroutine when the caller
// must stay responsive and observe progress through OnChange and Messages.
//
// Returns ErrBusy if a reply is already streaming and adkchat.ErrNoSession
// before the first SetActiveSession. A transport failure does not error
// here: the client substitutes an apology reply and the stream completes
// normally.
func (c *Controller) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.sessionID == "" {
		c.mu.Unlock()
		return adkchat.ErrNoSession
	}
	gen := c.gen
	sessionID := c.sessionID
	user := adkchat.NewUserChatMessage(text)
	reply := adkchat.NewAssistantPlaceholder()
	c.messages = append(c.messages, user, reply)
	c.lastErr = nil
	c.state = StateStreaming
	c.mu.Unlock()
	c.notify()

	dec := streaming.NewDecoder(c.api.SendMessage(ctx, text, sessionID))

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		dec.Close()
		return nil
	}
	c.stream = dec
	c.mu.Unlock()

	for dec.Next() {
		delta := dec.Delta()
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			dec.Close()
			return nil
		}
		c.appendDeltaLocked(reply.ID, delta)
		c.mu.Unlock()
		c.notify()
	}
	err := dec.Err()
	dec.Close()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.stream = nil
	if err != nil {
		c.logger.Error("reply stream failed", "session_id", sessionID, "error", err)
		c.lastErr = err
		c.state = StateError
	} else {
		c.state = StateReady
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// appendDeltaLocked grows the assistant message with the given id. The
// message is looked up by id rather than position so history reloads that
// race with the final deltas cannot corrupt an unrelated message.
func (c *Controller) appendDeltaLocked(messageID, delta string) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == messageID {
			c.messages[i].Content += delta
			return
		}
	}
}

// closeStreamLocked closes the active decoder, if any. Closing unblocks a
// Send goroutine waiting on the network.
func (c *Controller) closeStreamLocked() {
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
}

// Close abandons any in-flight work and returns the controller to StateIdle.
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	c.closeStreamLocked()
	c.sessionID = ""
	c.messages = nil
	c.lastErr = nil
	c.state = StateIdle
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
