package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/docchat/internal/workspace"
)

var ErrNotFound = errors.New("store: workspace not found")

type entry struct {
	ws       *workspace.Workspace
	lastSeen time.Time
}

// WorkspaceStore keeps workspaces in memory, keyed by an opaque token.
// Nothing survives a restart.
type WorkspaceStore struct {
	mu      sync.Mutex
	deps    workspace.Deps
	entries map[string]*entry
	now     func() time.Time
}

func NewWorkspaceStore(deps workspace.Deps) *WorkspaceStore {
	return &WorkspaceStore{
		deps:    deps,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Create builds a new workspace and returns it.
func (s *WorkspaceStore) Create(ctx context.Context) (*workspace.Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := newToken()
	ws := workspace.New(id, s.deps)

	s.mu.Lock()
	s.entries[id] = &entry{ws: ws, lastSeen: s.now()}
	s.mu.Unlock()

	slog.Debug("creating workspace", "workspace", id)
	return ws, nil
}

// Get returns the workspace for id and marks it as recently used.
func (s *WorkspaceStore) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = s.now()
	return e.ws, nil
}

// DeleteExpired removes workspaces idle for longer than ttl and returns how
// many were removed.
func (s *WorkspaceStore) DeleteExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	var expired []*workspace.Workspace
	for id, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.ws)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	for _, ws := range expired {
		ws.Close()
	}
	return len(expired), nil
}

// Close releases every workspace and empties the store.
func (s *WorkspaceStore) Close() int {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range entries {
		e.ws.Close()
	}
	return len(entries)
}

// Count returns the number of live workspaces.
func (s *WorkspaceStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Janitor evicts idle workspaces every interval until ctx is cancelled.
func (s *WorkspaceStore) Janitor(ctx context.Context, interval, ttl time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.DeleteExpired(ctx, ttl)
			if err != nil {
				return nil
			}
			if n > 0 {
				slog.Info("evicted idle workspaces", "count", n, "remaining", s.Count())
			}
		}
	}
}

func newToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
