// Package localstate persists the small amount of client-side state that
// survives restarts, currently just the id of the active session. Everything
// else about a conversation lives on the agent service.
package localstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store reads and writes the persisted client state.
type Store interface {
	// ActiveSession returns the persisted active session id, or "" when
	// none has been saved yet.
	ActiveSession() (string, error)

	// SetActiveSession persists the active session id. An empty id clears
	// the selection.
	SetActiveSession(id string) error
}

// state is the on-disk layout.
type state struct {
	ActiveSession string `json:"active_session,omitempty"`
}

// FileStore keeps state in a JSON file. The zero value is not usable; use
// NewFileStore.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// DefaultPath returns the conventional location for the state file,
// <user config dir>/adkchat/state.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "adkchat", "state.json"), nil
}

// NewFileStore creates a store backed by the file at path. The file and its
// directory are created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// ActiveSession implements Store. A missing file is not an error; it means
// no session has been selected yet.
func (f *FileStore) ActiveSession() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.load()
	if err != nil {
		return "", err
	}
	return s.ActiveSession, nil
}

// SetActiveSession implements Store.
func (f *FileStore) SetActiveSession(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.load()
	if err != nil {
		return err
	}
	s.ActiveSession = id
	return f.save(s)
}

func (f *FileStore) load() (state, error) {
	var s state
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read state file: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse state file %s: %w", f.path, err)
	}
	return s, nil
}

func (f *FileStore) save(s state) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Memory is an in-memory Store for tests and for callers that do not want
// persistence.
type Memory struct {
	mu sync.Mutex
	id string
}

// ActiveSession implements Store.
func (m *Memory) ActiveSession() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

// SetActiveSession implements Store.
func (m *Memory) SetActiveSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	return nil
}
