// Package directory manages the list of sessions shown to the user and
// which one is active. List contents come from the agent service; the
// controller applies optimistic local edits so creating and deleting
// sessions feels immediate, then reconciles on the next refresh. The active
// session id is persisted through a localstate.Store so it survives
// restarts.
package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/lucident-ai/adkchat"
	"github.com/lucident-ai/adkchat/localstate"
)

// SessionAPI is the slice of the session client the controller needs.
// *adkchat.Client satisfies it. CreateSession and ListSessions degrade
// rather than fail, matching the client's contract.
type SessionAPI interface {
	CreateSession(ctx context.Context, name string) *adkchat.Session
	ListSessions(ctx context.Context) []*adkchat.Session
	DeleteSession(ctx context.Context, sessionID string) error
}

// Controller owns the ordered session list and the active selection.
// All methods are safe for concurrent use.
type Controller struct {
	api      SessionAPI
	store    localstate.Store
	logger   adkchat.Logger
	onSelect func(sessionID string)

	mu       sync.Mutex
	entries  []*adkchat.Session
	activeID string
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore sets where the active session id is persisted. Defaults to an
// in-memory store.
func WithStore(store localstate.Store) Option {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

// WithLogger sets the logger. A nil logger discards everything.
func WithLogger(logger adkchat.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOnSelect registers a callback invoked whenever the active session
// changes, including to "". It is called without the controller lock held.
// Applications typically wire this to conversation.Controller.SetActiveSession.
func WithOnSelect(fn func(sessionID string)) Option {
	return func(c *Controller) { c.onSelect = fn }
}

// New creates a controller with an empty list and no active session.
func New(api SessionAPI, opts ...Option) *Controller {
	c := &Controller{
		api:    api,
		store:  &localstate.Memory{},
		logger: adkchat.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Entries returns a snapshot of the session list, most recently updated
// first.
func (c *Controller) Entries() []*adkchat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*adkchat.Session, len(c.entries))
	copy(out, c.entries)
	return out
}

// ActiveID returns the id of the active session, or "" when none is
// selected.
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Active returns the active session entry, or nil when none is selected.
func (c *Controller) Active() *adkchat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(c.activeID)
}

// Restore loads the persisted active session id, refreshes the list from
// the service, and selects that session if it still exists, otherwise the
// most recent one. Call it once at startup.
func (c *Controller) Restore(ctx context.Context) {
	saved, err := c.store.ActiveSession()
	if err != nil {
		c.logger.Warn("read persisted session id failed", "error", err)
	}
	c.refresh(ctx)
	c.Select(saved)
}

// Refresh replaces the list with the service's view and re-resolves the
// active selection. Locally synthesized fallback sessions are unknown to
// the service and drop out here.
func (c *Controller) Refresh(ctx context.Context) {
	c.refresh(ctx)
	c.Select(c.ActiveID())
}

func (c *Controller) refresh(ctx context.Context) {
	sessions := c.api.ListSessions(ctx)
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastUpdate.Time().After(sessions[j].LastUpdate.Time())
	})

	c.mu.Lock()
	c.entries = sessions
	c.mu.Unlock()
}

// Create asks the service for a new session, prepends it to the list, and
// makes it active. The entry appears immediately even when the service is
// unreachable; the client substitutes a fallback session in that case.
func (c *Controller) Create(ctx context.Context, name string) *adkchat.Session {
	session := c.api.CreateSession(ctx, name)

	c.mu.Lock()
	c.entries = append([]*adkchat.Session{session}, c.entries...)
	c.mu.Unlock()

	c.setActive(session.ID)
	return session
}

// Delete removes the session locally first, then from the service. A remote
// failure is logged and returned but does not restore the entry; the next
// refresh reconciles. Deleting the active session immediately creates a
// fresh replacement so the user is never left without one.
func (c *Controller) Delete(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	wasActive := c.activeID == sessionID
	for i, s := range c.entries {
		if s.ID == sessionID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	err := c.api.DeleteSession(ctx, sessionID)
	if err != nil {
		c.logger.Warn("delete session failed", "session_id", sessionID, "error", err)
	}

	if wasActive {
		c.Create(ctx, "")
	}
	return err
}

// Select makes sessionID active. An id not present in the list falls back
// to the most recently updated session, or to no selection when the list is
// empty. The chosen id is persisted and reported through OnSelect.
func (c *Controller) Select(sessionID string) {
	c.mu.Lock()
	if c.findLocked(sessionID) == nil {
		sessionID = ""
		if len(c.entries) > 0 {
			sessionID = c.entries[0].ID
		}
	}
	c.mu.Unlock()

	c.setActive(sessionID)
}

func (c *Controller) setActive(sessionID string) {
	c.mu.Lock()
	changed := c.activeID != sessionID
	c.activeID = sessionID
	c.mu.Unlock()
	if !changed {
		return
	}

	if err := c.store.SetActiveSession(sessionID); err != nil {
		c.logger.Warn("persist session id failed", "session_id", sessionID, "error", err)
	}
	if c.onSelect != nil {
		c.onSelect(sessionID)
	}
}

func (c *Controller) findLocked(sessionID string) *adkchat.Session {
	if sessionID == "" {
		return nil
	}
	for _, s := range c.entries {
		if s.ID == sessionID {
			return s
		}
	}
	return nil
}
