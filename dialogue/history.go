// Package dialogue stores per-session conversation history across turns, on
// top of the cache.Cache abstraction. A Turn reads a snapshot before it
// starts and the caller appends to it once the Turn completes; the store
// itself never runs concurrently with the Turn it is backing, so a snapshot
// taken up front is never stale mid-Turn.
package dialogue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lookatitude/avatar-gateway/cache"
	"github.com/lookatitude/avatar-gateway/pipeline"
)

// Store holds bounded per-session history on top of a cache.Cache backend.
// A mutex guards the read-modify-write around Append, since cache.Cache's
// Get+Set pair is not itself atomic.
type Store struct {
	backend cache.Cache
	ttl     time.Duration
	maxTurns int

	mu sync.Mutex
}

// New wraps backend in a Store. maxTurns bounds how many prior turns are
// retained per session; zero means unlimited. ttl is the cache entry's
// expiration; zero uses the backend's own default TTL.
func New(backend cache.Cache, maxTurns int, ttl time.Duration) *Store {
	return &Store{backend: backend, ttl: ttl, maxTurns: maxTurns}
}

func key(sessionID string) string {
	return fmt.Sprintf("dialogue:%s", sessionID)
}

// Snapshot returns the history recorded for sessionID, or nil if none
// exists yet. The returned slice is a copy; callers may not mutate the
// store's state through it.
func (s *Store) Snapshot(ctx context.Context, sessionID string) ([]pipeline.HistoryEntry, error) {
	if sessionID == "" {
		return nil, nil
	}
	v, found, err := s.backend.Get(ctx, key(sessionID))
	if err != nil {
		return nil, fmt.Errorf("dialogue: get snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	entries, ok := v.([]pipeline.HistoryEntry)
	if !ok {
		return nil, fmt.Errorf("dialogue: corrupt history entry for session %q", sessionID)
	}
	out := make([]pipeline.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Append records the user's utterance and the assistant's reply from one
// completed Turn, trimming to maxTurns pairs if configured.
func (s *Store) Append(ctx context.Context, sessionID, userText, assistantText string) error {
	if sessionID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.snapshotLocked(ctx, sessionID)
	if err != nil {
		return err
	}
	updated := append(existing,
		pipeline.HistoryEntry{Role: "user", Text: userText},
		pipeline.HistoryEntry{Role: "assistant", Text: assistantText},
	)
	if s.maxTurns > 0 {
		maxEntries := s.maxTurns * 2
		if len(updated) > maxEntries {
			updated = updated[len(updated)-maxEntries:]
		}
	}
	if err := s.backend.Set(ctx, key(sessionID), updated, s.ttl); err != nil {
		return fmt.Errorf("dialogue: append: %w", err)
	}
	return nil
}

func (s *Store) snapshotLocked(ctx context.Context, sessionID string) ([]pipeline.HistoryEntry, error) {
	v, found, err := s.backend.Get(ctx, key(sessionID))
	if err != nil {
		return nil, fmt.Errorf("dialogue: get snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	entries, ok := v.([]pipeline.HistoryEntry)
	if !ok {
		return nil, fmt.Errorf("dialogue: corrupt history entry for session %q", sessionID)
	}
	return entries, nil
}
