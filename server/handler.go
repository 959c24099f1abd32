package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lookatitude/avatar-gateway/core"
	"github.com/lookatitude/avatar-gateway/dialogue"
	"github.com/lookatitude/avatar-gateway/o11y"
	"github.com/lookatitude/avatar-gateway/pipeline"
)

// maxUploadBytes bounds the multipart body the conversation handler will
// read into memory before spilling to a temp file.
const maxUploadBytes = 32 << 20

// uploadRequest is validated against the decoded multipart fields before a
// Turn is started, so a malformed request never reaches the adapters.
type uploadRequest struct {
	Language string `validate:"omitempty,bcp47_language"`
}

var upload = validator.New()

func init() {
	upload.RegisterValidation("bcp47_language", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		if v == "" {
			return true
		}
		if len(v) < 2 || len(v) > 35 {
			return false
		}
		for _, r := range v {
			if !(r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				return false
			}
		}
		return true
	})
}

// ConversationHandler implements POST /conversation/stream: it decodes the
// multipart upload, runs one Turn through Adapters, and streams the
// resulting pipeline events to the client via the SSE Dispatcher.
type ConversationHandler struct {
	Adapters pipeline.Adapters

	// PortraitRef and VoiceRef are the default speaker/portrait references
	// used when the request does not supply its own; a production
	// deployment would resolve these per authenticated user instead.
	PortraitRef []byte
	VoiceRef    []byte

	// History, if set, persists dialogue across turns keyed by the
	// X-Session-Id request header. A request without that header gets no
	// history: the turn proceeds stateless rather than erroring.
	History *dialogue.Store
}

func (h *ConversationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx = core.WithRequestID(ctx, r.Header.Get("X-Turn-Id"))
	ctx = core.WithSessionID(ctx, r.Header.Get("X-Session-Id"))
	logger := o11y.FromContext(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("invalid multipart body: %v", err), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "missing audio field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, "failed to read audio field", http.StatusBadRequest)
		return
	}

	language := r.FormValue("language")
	if err := upload.Struct(uploadRequest{Language: language}); err != nil {
		http.Error(w, fmt.Sprintf("invalid language hint: %v", err), http.StatusBadRequest)
		return
	}
	if language == "" {
		language = "en"
	}

	dispatcher, err := NewDispatcher(w)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	defer dispatcher.Close()

	sessionID := core.GetSessionID(ctx)

	var history []pipeline.HistoryEntry
	if h.History != nil {
		history, err = h.History.Snapshot(ctx, sessionID)
		if err != nil {
			logger.Warn(ctx, "failed to load dialogue history, proceeding without it", "session_id", sessionID, "error", err)
		}
	}

	var userText, assistantText string
	completed := false

	for event, err := range h.Adapters.RunTurn(ctx, audio, language, h.PortraitRef, h.VoiceRef, history) {
		if err != nil {
			logger.Error(ctx, "pipeline stream error", "turn_id", core.GetRequestID(ctx), "error", err)
			return
		}
		switch event.Kind {
		case pipeline.EventTranscription:
			userText = event.Text
		case pipeline.EventLLMResponse:
			assistantText = event.Text
		case pipeline.EventComplete:
			completed = true
		}
		if emitErr := emitEvent(dispatcher, event); emitErr != nil {
			logger.Warn(ctx, "sse emit failed, aborting turn", "turn_id", core.GetRequestID(ctx), "error", emitErr)
			return
		}
		logger.Info(ctx, "sse emit", "turn_id", core.GetRequestID(ctx), "event_kind", event.Kind, "wall_time", time.Now().Format(time.RFC3339Nano))
	}

	if completed && h.History != nil && sessionID != "" {
		if err := h.History.Append(ctx, sessionID, userText, assistantText); err != nil {
			logger.Warn(ctx, "failed to persist dialogue history", "session_id", sessionID, "error", err)
		}
	}
}

func emitEvent(d *Dispatcher, e pipeline.Event) error {
	switch e.Kind {
	case pipeline.EventTranscription:
		return d.Emit(string(e.Kind), map[string]any{
			"text": e.Text, "language": e.Language, "time": e.Time,
		})
	case pipeline.EventLLMResponse:
		return d.Emit(string(e.Kind), map[string]any{"text": e.Text})
	case pipeline.EventVideoChunk:
		return d.Emit(string(e.Kind), map[string]any{
			"chunk_index":      e.ChunkIndex,
			"video_url":        e.VideoURL,
			"text_chunk":       e.Text,
			"chunk_time":       e.ChunkTime,
			"audio_duration_s": e.AudioDurationS,
			"video_duration_s": e.VideoDurationS,
		})
	case pipeline.EventComplete:
		return d.Emit(string(e.Kind), map[string]any{
			"total_time": e.TotalTime, "chunk_count": e.ChunkCount,
		})
	case pipeline.EventError:
		return d.Emit(string(e.Kind), map[string]any{
			"error": e.ErrorMessage, "kind": string(e.ErrorKind),
		})
	default:
		return fmt.Errorf("server: unknown event kind %q", e.Kind)
	}
}

// HealthStatus is the liveness/readiness JSON payload for GET /health.
type HealthStatus struct {
	Status       string `json:"status"`
	ModelsLoaded bool   `json:"models_loaded"`
}

// HealthHandler reports readiness by consulting an o11y.HealthRegistry
// covering the asset store and every adapter slot.
type HealthHandler struct {
	Registry *o11y.HealthRegistry
}

// NewHealthHandler builds a HealthHandler with one checker per adapter slot
// and a writability probe on the asset store. The adapter checkers only
// confirm a provider was registered at startup, since none of the ASR/LLM/
// TTS/LipSync interfaces expose a reachability probe; the asset store
// checker is the one that can turn Unhealthy after startup, if its directory
// goes read-only or fills up.
func NewHealthHandler(a pipeline.Adapters) *HealthHandler {
	registry := o11y.NewHealthRegistry()
	registry.Register("asset_store", o11y.HealthCheckerFunc(func(ctx context.Context) o11y.HealthResult {
		if a.Store == nil {
			return o11y.HealthResult{Status: o11y.Degraded, Component: "asset_store", Message: "not configured", Timestamp: time.Now()}
		}
		if err := a.Store.Writable(); err != nil {
			return o11y.HealthResult{Status: o11y.Unhealthy, Component: "asset_store", Message: err.Error(), Timestamp: time.Now()}
		}
		return o11y.HealthResult{Status: o11y.Healthy, Component: "asset_store", Timestamp: time.Now()}
	}))
	registry.Register("asr", adapterChecker("asr", a.ASR != nil))
	registry.Register("llm", adapterChecker("llm", a.LLM != nil))
	registry.Register("tts", adapterChecker("tts", a.TTS != nil))
	registry.Register("lipsync", adapterChecker("lipsync", a.LipSync != nil))
	return &HealthHandler{Registry: registry}
}

func adapterChecker(name string, registered bool) o11y.HealthChecker {
	return o11y.HealthCheckerFunc(func(ctx context.Context) o11y.HealthResult {
		result := o11y.HealthResult{Component: name, Status: o11y.Healthy, Timestamp: time.Now()}
		if !registered {
			result.Status = o11y.Degraded
			result.Message = "provider not registered"
		}
		return result
	})
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	results := h.Registry.CheckAll(r.Context())
	status := aggregateStatus(results)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthStatus{
		Status:       status,
		ModelsLoaded: status == "healthy",
	})
}

// aggregateStatus maps HealthRegistry results onto the gateway's three-value
// liveness vocabulary: any Unhealthy component fails the whole check; a
// Degraded component (a provider not yet registered) is reported as still
// initializing rather than down.
func aggregateStatus(results []o11y.HealthResult) string {
	status := "healthy"
	for _, r := range results {
		switch r.Status {
		case o11y.Unhealthy:
			return "unhealthy"
		case o11y.Degraded:
			status = "initializing"
		}
	}
	return status
}
