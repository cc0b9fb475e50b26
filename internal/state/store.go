// Package state persists accounts and synced events in a single JSON file.
// The file doubles as the credential store, so it is written 0600.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/skedtool/sked/internal/core"
)

type fileData struct {
	Accounts map[string]*core.Account     `json:"accounts"`
	Events   map[string]*core.SyncedEvent `json:"events"`
	// Bumped on every write; purely diagnostic
	SavedAt time.Time `json:"saved_at"`
}

// FileStore implements core.Store on top of one JSON file. Every mutation
// rewrites the file; a mutex keeps mutations atomic within the process.
type FileStore struct {
	path string

	mu   sync.Mutex
	data fileData
}

// Open loads the state file, starting fresh if it does not exist yet.
func Open(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		data: fileData{
			Accounts: make(map[string]*core.Account),
			Events:   make(map[string]*core.SyncedEvent),
		},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	if s.data.Accounts == nil {
		s.data.Accounts = make(map[string]*core.Account)
	}
	if s.data.Events == nil {
		s.data.Events = make(map[string]*core.SyncedEvent)
	}
	return s, nil
}

// flush writes the state to disk. Callers hold s.mu.
func (s *FileStore) flush() error {
	s.data.SavedAt = time.Now()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) SaveAccount(_ context.Context, a *core.Account) error {
	if a.ID == "" {
		return fmt.Errorf("%w: account id is empty", core.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.data.Accounts[a.ID] = &cp
	return s.flush()
}

func (s *FileStore) GetAccount(_ context.Context, id string) (*core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data.Accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *FileStore) ListAccounts(_ context.Context, user string) ([]*core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Account
	for _, a := range s.data.Accounts {
		if a.User != user {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSync.Equal(out[j].LastSync) {
			return out[i].LastSync.Before(out[j].LastSync)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *FileStore) SaveEvent(_ context.Context, e *core.SyncedEvent) error {
	if e.ID == "" {
		return fmt.Errorf("%w: event id is empty", core.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Events[e.ID] = e.Clone()
	return s.flush()
}

func (s *FileStore) GetEvent(_ context.Context, id string) (*core.SyncedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data.Events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, core.ErrNotFound)
	}
	return e.Clone(), nil
}

func (s *FileStore) ListEvents(_ context.Context, user string) ([]*core.SyncedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.SyncedEvent
	for _, e := range s.data.Events {
		if e.User != user {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *FileStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Events[id]; !ok {
		return fmt.Errorf("event %s: %w", id, core.ErrNotFound)
	}
	delete(s.data.Events, id)
	return s.flush()
}
