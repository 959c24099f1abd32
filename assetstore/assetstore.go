// Package assetstore implements the Asset Store: a write-once, fsync-backed
// area for audio and video artifacts produced by a turn. Readers that race
// the writer must never observe a truncated file; confirm_stable is the
// mechanism that makes that guarantee visible to callers before they serve
// bytes to a browser.
package assetstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the media type of a stored artifact.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Artifact is an immutable handle to a written file. ByteSize only ever
// increases, and only during Put; once Put returns it is final.
type Artifact struct {
	ID       string
	Kind     Kind
	Path     string
	ByteSize int64
	WrittenAt time.Time
}

// ErrStorageFull and ErrIOError are returned by Put; callers must treat the
// artifact as absent and fail the owning chunk.
var (
	ErrStorageFull = errors.New("assetstore: storage full")
	ErrIOError     = errors.New("assetstore: io error")
)

// ErrNotReady is returned by OpenRange and by ConfirmStable on timeout. It
// signals the caller should respond 503 with Retry-After: 0, not treat the
// write as failed.
var ErrNotReady = errors.New("assetstore: artifact not ready")

// Config configures a Store.
type Config struct {
	// Dir is the directory artifacts are written under. It is created if
	// missing.
	Dir string

	// StableSizePoll is the interval between size samples in ConfirmStable.
	// Defaults to 100ms.
	StableSizePoll time.Duration

	// StableSizeBudget bounds how long ConfirmStable will poll before giving
	// up. Defaults to 2s.
	StableSizeBudget time.Duration
}

func (c Config) withDefaults() Config {
	if c.StableSizePoll <= 0 {
		c.StableSizePoll = 100 * time.Millisecond
	}
	if c.StableSizeBudget <= 0 {
		c.StableSizeBudget = 2 * time.Second
	}
	return c
}

// Store is a filesystem-backed Asset Store. Two concurrent Puts never write
// the same path, since every path is derived from a fresh process-unique ID.
type Store struct {
	cfg Config

	mu        sync.RWMutex
	artifacts map[string]*Artifact
}

// New creates a Store rooted at cfg.Dir, creating the directory if absent.
func New(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, fmt.Errorf("assetstore: Dir must not be empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("assetstore: %w: %w", ErrIOError, err)
	}
	return &Store{cfg: cfg, artifacts: make(map[string]*Artifact)}, nil
}

// Put writes data to a unique path under the store's directory, flushes, and
// fsyncs the file descriptor before returning. Once Put returns, any later
// reader sees the complete file.
func (s *Store) Put(ctx context.Context, data []byte, kind Kind) (*Artifact, error) {
	id := uuid.NewString()
	path := filepath.Join(s.cfg.Dir, string(kind)+"-"+id+ext(kind))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("assetstore: %w: path collision for %s", ErrIOError, path)
		}
		if errors.Is(err, syscall.ENOSPC) {
			return nil, ErrStorageFull
		}
		return nil, fmt.Errorf("assetstore: %w: %w", ErrIOError, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(path)
		if errors.Is(err, syscall.ENOSPC) {
			return nil, ErrStorageFull
		}
		return nil, fmt.Errorf("assetstore: %w: %w", ErrIOError, err)
	}
	if err := f.Sync(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("assetstore: %w: %w", ErrIOError, err)
	}

	art := &Artifact{
		ID:        id,
		Kind:      kind,
		Path:      path,
		ByteSize:  int64(len(data)),
		WrittenAt: time.Now(),
	}

	s.mu.Lock()
	s.artifacts[id] = art
	s.mu.Unlock()

	return art, nil
}

// ConfirmStable polls the artifact's on-disk size at cfg.StableSizePoll
// intervals until two consecutive samples are equal, or until
// cfg.StableSizeBudget elapses, in which case it returns ErrNotReady.
//
// Put already fsyncs before returning, so for a Store-written artifact this
// always succeeds on the first pair of samples; ConfirmStable exists to let
// a reader verify readiness without holding a reference to the writer.
func (s *Store) ConfirmStable(ctx context.Context, art *Artifact) error {
	deadline := time.Now().Add(s.cfg.StableSizeBudget)

	prev, err := statSize(art.Path)
	if err != nil {
		return ErrNotReady
	}
	for {
		if time.Now().After(deadline) {
			return ErrNotReady
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.StableSizePoll):
		}
		cur, err := statSize(art.Path)
		if err != nil {
			return ErrNotReady
		}
		if cur == prev {
			return nil
		}
		prev = cur
	}
}

// OpenRange opens a read handle over the artifact positioned for a Range
// response covering [start, end] inclusive. end of -1 means "to EOF". The
// size used to validate the range is the size recorded at Put time, which is
// authoritative regardless of any concurrent activity on the path.
func (s *Store) OpenRange(ctx context.Context, id string, start, end int64) (io.ReadCloser, int64, error) {
	s.mu.RLock()
	art, ok := s.artifacts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, 0, ErrNotReady
	}

	if end < 0 || end >= art.ByteSize {
		end = art.ByteSize - 1
	}
	if start < 0 || start > end {
		return nil, 0, fmt.Errorf("assetstore: invalid range %d-%d for size %d", start, end, art.ByteSize)
	}

	f, err := os.Open(art.Path)
	if err != nil {
		return nil, 0, ErrNotReady
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("assetstore: %w: %w", ErrIOError, err)
	}

	length := end - start + 1
	return &limitedReadCloser{r: io.LimitReader(f, length), c: f}, length, nil
}

// Get returns the artifact registered under id, if any.
func (s *Store) Get(id string) (*Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	art, ok := s.artifacts[id]
	return art, ok
}

// Writable probes that the store's directory still accepts writes by
// creating and removing a zero-byte file, without registering it as an
// artifact. Used by the gateway's health check to distinguish a live store
// from one whose directory has gone read-only or run out of space.
func (s *Store) Writable() error {
	probe := filepath.Join(s.cfg.Dir, ".health-"+uuid.NewString())
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("assetstore: %w: %w", ErrIOError, err)
	}
	f.Close()
	return os.Remove(probe)
}

// Evict removes every artifact matching predicate, deleting its backing file
// and dropping it from the index.
func (s *Store) Evict(predicate func(*Artifact) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, art := range s.artifacts {
		if predicate(art) {
			os.Remove(art.Path)
			delete(s.artifacts, id)
		}
	}
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error                { return l.c.Close() }

func ext(kind Kind) string {
	switch kind {
	case KindVideo:
		return ".mp4"
	case KindAudio:
		return ".pcm"
	default:
		return ".bin"
	}
}

func statSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

