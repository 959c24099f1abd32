package assetstore

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Dir: t.TempDir(), StableSizePoll: 5 * time.Millisecond, StableSizeBudget: 200 * time.Millisecond})
	require.NoError(t, err)
	return s
}

func TestPut_WritesCompleteFile(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("hello world")

	art, err := s.Put(context.Background(), payload, KindAudio)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), art.ByteSize)

	rc, n, err := s.OpenRange(context.Background(), art.ID, 0, -1)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(len(payload)), n)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestPut_UniquePaths(t *testing.T) {
	s := newTestStore(t)
	a1, err := s.Put(context.Background(), []byte("a"), KindVideo)
	require.NoError(t, err)
	a2, err := s.Put(context.Background(), []byte("b"), KindVideo)
	require.NoError(t, err)
	assert.NotEqual(t, a1.Path, a2.Path)
	assert.NotEqual(t, a1.ID, a2.ID)
}

func TestConfirmStable_Succeeds(t *testing.T) {
	s := newTestStore(t)
	art, err := s.Put(context.Background(), []byte("stable"), KindAudio)
	require.NoError(t, err)

	err = s.ConfirmStable(context.Background(), art)
	assert.NoError(t, err)
}

func TestConfirmStable_TimesOutOnMissingFile(t *testing.T) {
	s := newTestStore(t)
	fake := &Artifact{ID: "missing", Path: s.cfg.Dir + "/does-not-exist.pcm", ByteSize: 0}

	err := s.ConfirmStable(context.Background(), fake)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestOpenRange_PartialRange(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("0123456789")
	art, err := s.Put(context.Background(), payload, KindVideo)
	require.NoError(t, err)

	rc, n, err := s.OpenRange(context.Background(), art.ID, 2, 5)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(4), n)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), got)
}

func TestOpenRange_UnknownArtifact(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.OpenRange(context.Background(), "nonexistent", 0, -1)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestOpenRange_InvalidRange(t *testing.T) {
	s := newTestStore(t)
	art, err := s.Put(context.Background(), []byte("short"), KindAudio)
	require.NoError(t, err)

	_, _, err = s.OpenRange(context.Background(), art.ID, 10, 20)
	assert.Error(t, err)
}

func TestEvict_RemovesMatchingArtifacts(t *testing.T) {
	s := newTestStore(t)
	keep, err := s.Put(context.Background(), []byte("keep"), KindAudio)
	require.NoError(t, err)
	drop, err := s.Put(context.Background(), []byte("drop"), KindVideo)
	require.NoError(t, err)

	s.Evict(func(a *Artifact) bool { return a.Kind == KindVideo })

	_, ok := s.Get(drop.ID)
	assert.False(t, ok)
	_, ok = s.Get(keep.ID)
	assert.True(t, ok)

	_, _, err = s.OpenRange(context.Background(), drop.ID, 0, -1)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestByteSizeNeverDecreases(t *testing.T) {
	s := newTestStore(t)
	art, err := s.Put(context.Background(), []byte("immutable"), KindAudio)
	require.NoError(t, err)

	initial := art.ByteSize
	time.Sleep(10 * time.Millisecond)

	got, ok := s.Get(art.ID)
	require.True(t, ok)
	assert.Equal(t, initial, got.ByteSize)
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
