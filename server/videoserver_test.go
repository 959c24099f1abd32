package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookatitude/avatar-gateway/assetstore"
)

func newVideoTestServer(t *testing.T) (*VideoServer, *assetstore.Store) {
	t.Helper()
	store, err := assetstore.New(assetstore.Config{
		Dir:              t.TempDir(),
		StableSizePoll:   5 * time.Millisecond,
		StableSizeBudget: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	return &VideoServer{Store: store}, store
}

func serveVideoRequest(t *testing.T, vs *VideoServer, id, rangeHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/videos/"+id, nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	req = mux.SetURLVars(req, map[string]string{"artifact_id": id})
	rec := httptest.NewRecorder()
	vs.ServeHTTP(rec, req)
	return rec
}

func TestVideoServer_FullContent(t *testing.T) {
	vs, store := newVideoTestServer(t)
	art, err := store.Put(context.Background(), []byte("0123456789"), assetstore.KindVideo)
	require.NoError(t, err)

	rec := serveVideoRequest(t, vs, art.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "0123456789", rec.Body.String())
}

func TestVideoServer_PartialRange(t *testing.T) {
	vs, store := newVideoTestServer(t)
	art, err := store.Put(context.Background(), []byte("0123456789"), assetstore.KindVideo)
	require.NoError(t, err)

	rec := serveVideoRequest(t, vs, art.ID, "bytes=2-5")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, "2345", rec.Body.String())
}

func TestVideoServer_SuffixRange(t *testing.T) {
	vs, store := newVideoTestServer(t)
	art, err := store.Put(context.Background(), []byte("0123456789"), assetstore.KindVideo)
	require.NoError(t, err)

	rec := serveVideoRequest(t, vs, art.ID, "bytes=-3")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "789", rec.Body.String())
}

func TestVideoServer_UnknownArtifact(t *testing.T) {
	vs, _ := newVideoTestServer(t)
	rec := serveVideoRequest(t, vs, "nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVideoServer_NotReadyReturns503WithRetryAfter(t *testing.T) {
	vs, store := newVideoTestServer(t)
	art, err := store.Put(context.Background(), []byte("data"), assetstore.KindVideo)
	require.NoError(t, err)
	// Evict the backing file but keep the index entry, simulating a race
	// where confirm_stable can never observe a settled size.
	require.NoError(t, os.Remove(art.Path))

	rec := serveVideoRequest(t, vs, art.ID, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("Retry-After"))
}

func TestVideoServer_InvalidRangeRejected(t *testing.T) {
	vs, store := newVideoTestServer(t)
	art, err := store.Put(context.Background(), []byte("short"), assetstore.KindVideo)
	require.NoError(t, err)

	rec := serveVideoRequest(t, vs, art.ID, "bytes=100-200")
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
}
