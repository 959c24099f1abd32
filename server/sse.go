package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// SSEWriter wraps an http.ResponseWriter configured for an
// text/event-stream response: it sets the SSE headers on first use and
// exposes a WriteEvent method that encodes one event in the wire format and
// flushes immediately.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher

	headerOnce sync.Once
}

// NewSSEWriter wraps w for SSE output. It returns an error if w does not
// implement http.Flusher, since every emit must be flushed individually.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("server: response writer does not support flushing")
	}
	return &SSEWriter{w: w, flusher: f}, nil
}

func (s *SSEWriter) writeHeader() {
	s.headerOnce.Do(func() {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-store")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
	})
}

// WriteEvent writes one SSE frame: "event: <kind>\ndata: <json>\n\n", then
// flushes. data is marshaled to JSON.
func (s *SSEWriter) WriteEvent(kind string, data any) error {
	s.writeHeader()

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("server: marshal sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", kind, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Dispatcher serializes events from one Turn onto one SSEWriter, assigning
// a dense, strictly monotonic seq and a monotonic server_timestamp to every
// emission. A Dispatcher is bound to exactly one session and must not be
// shared across Turns; its counter is local to that session by
// construction.
type Dispatcher struct {
	sse    *SSEWriter
	start  time.Time
	seq    atomic.Int64
	closed atomic.Bool
}

// NewDispatcher opens a Dispatcher bound to w.
func NewDispatcher(w http.ResponseWriter) (*Dispatcher, error) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{sse: sse, start: time.Now()}, nil
}

// envelope carries the fields every event payload includes regardless of
// kind.
type envelope struct {
	Seq             int64   `json:"seq"`
	ServerTimestamp float64 `json:"server_timestamp"`
}

// Emit assigns this Dispatcher's next seq and current server_timestamp,
// merges them into payload, encodes the result as one SSE frame of the
// given kind, and flushes. Emit after Close returns an error without
// writing anything.
func (d *Dispatcher) Emit(kind string, payload map[string]any) error {
	if d.closed.Load() {
		return fmt.Errorf("server: emit after dispatcher close")
	}
	env := envelope{
		Seq:             d.seq.Add(1) - 1,
		ServerTimestamp: time.Since(d.start).Seconds(),
	}
	merged := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		merged[k] = v
	}
	merged["seq"] = env.Seq
	merged["server_timestamp"] = env.ServerTimestamp
	return d.sse.WriteEvent(kind, merged)
}

// Close marks the Dispatcher terminated. Subsequent Emit calls fail.
func (d *Dispatcher) Close() {
	d.closed.Store(true)
}
