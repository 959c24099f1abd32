// Package pipeline executes one conversation Turn end to end: ASR transcribes
// the uploaded audio, the LLM drafts a reply, the chunker splits the reply
// into speakable fragments, and each fragment is rendered to audio then video
// strictly in order before its event is published. The pipeline never
// produces the next chunk's audio before the previous chunk's video has been
// stored and confirmed, since the lip-sync stage is assumed to be a
// single-resource (GPU) bottleneck.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/lookatitude/avatar-gateway/assetstore"
	"github.com/lookatitude/avatar-gateway/chunker"
	"github.com/lookatitude/avatar-gateway/llm"
	"github.com/lookatitude/avatar-gateway/o11y"
	"github.com/lookatitude/avatar-gateway/resilience"
	"github.com/lookatitude/avatar-gateway/schema"
	"github.com/lookatitude/avatar-gateway/voice/lipsync"
	"github.com/lookatitude/avatar-gateway/voice/stt"
	"github.com/lookatitude/avatar-gateway/voice/tts"
)

// llmRetryPolicy retries a throttled or transiently unavailable LLM call
// once (two attempts in all) before the turn falls back to the canned response; the
// LLM stage is the one stage the error taxonomy allows to recover in place.
var llmRetryPolicy = resilience.RetryPolicy{
	MaxAttempts:    2,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     1 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         true,
}

// EventKind identifies the wire event kind a stage emits, matching the SSE
// vocabulary the dispatcher encodes.
type EventKind string

const (
	EventTranscription EventKind = "transcription"
	EventLLMResponse    EventKind = "llm_response"
	EventVideoChunk     EventKind = "video_chunk"
	EventComplete       EventKind = "complete"
	EventError          EventKind = "error"
)

// ErrorKind classifies a terminal error event per the adapter/storage/
// internal taxonomy. The pipeline never emits ClientDisconnect as an event:
// a disconnect ends the stream silently.
type ErrorKind string

const (
	ErrorKindAdapter  ErrorKind = "adapter"
	ErrorKindStorage  ErrorKind = "storage"
	ErrorKindInternal ErrorKind = "internal"
)

// Event is one pipeline-level occurrence during a Turn. Only the fields
// relevant to Kind are populated. Seq and server timestamp are not
// assigned here: the SSE dispatcher stamps those atomically at emission
// time, since sequencing is its contract to own, not the pipeline's.
type Event struct {
	Kind EventKind

	// transcription
	Text     string
	Language string
	Time     float64

	// video_chunk (TextChunk reuses Text, ChunkIndex/URL/durations below)
	ChunkIndex     int
	VideoURL       string
	ChunkTime      float64
	AudioDurationS float64
	VideoDurationS float64

	// complete
	TotalTime  float64
	ChunkCount int

	// error
	ErrorMessage string
	ErrorKind    ErrorKind
}

// HistoryEntry is one turn of prior dialogue, supplied by the caller as a
// snapshot taken before this Turn begins.
type HistoryEntry struct {
	Role string // "user" or "assistant"
	Text string
}

// Timeouts bounds each adapter stage. Zero values fall back to the package
// defaults below.
type Timeouts struct {
	ASR     time.Duration
	LLM     time.Duration
	TTS     time.Duration
	LipSync time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.ASR <= 0 {
		t.ASR = 30 * time.Second
	}
	if t.LLM <= 0 {
		t.LLM = 60 * time.Second
	}
	if t.TTS <= 0 {
		t.TTS = 30 * time.Second
	}
	if t.LipSync <= 0 {
		t.LipSync = 60 * time.Second
	}
	return t
}

// Adapters bundles the four inference façades plus the asset store a Turn
// runs against. All four adapter interfaces are invoked sequentially from
// the single goroutine driving RunTurn; nothing here needs its own locking.
type Adapters struct {
	ASR     stt.STT
	LLM     llm.ChatModel
	TTS     tts.TTS
	LipSync lipsync.LipSync
	Store   *assetstore.Store

	// SystemPrompt frames every LLM call.
	SystemPrompt string

	// FallbackResponse is returned in place of an LLM reply when the LLM
	// adapter fails; the Turn continues rather than aborting, since an LLM
	// failure is the one recoverable adapter error in the taxonomy.
	FallbackResponse string

	ChunkerOptions []chunker.Option
	LipSyncOptions []lipsync.Option
	Timeouts       Timeouts

	// TraceExporter, if set, receives a record of every LLM call this Turn
	// makes (success or fallback) for cost/latency analysis. A failure to
	// export is logged and never affects the Turn.
	TraceExporter o11y.TraceExporter
}

// RunTurn executes one Turn and returns a stream of pipeline Events. The
// returned iterator must be drained (or its yield stopped) by the caller;
// cancelling ctx propagates at the next stage boundary and ends the stream
// without emitting a complete event.
func (a Adapters) RunTurn(ctx context.Context, userAudio []byte, languageHint string, portraitRef, voiceRef []byte, history []HistoryEntry) iter.Seq2[Event, error] {
	timeouts := a.Timeouts.withDefaults()

	return func(yield func(Event, error) bool) {
		start := time.Now()

		if ctx.Err() != nil {
			return
		}

		text, lang, err := a.transcribe(ctx, userAudio, languageHint, timeouts.ASR)
		if err != nil {
			yield(errorEvent(ErrorKindAdapter, err), nil)
			return
		}
		if !yield(Event{Kind: EventTranscription, Text: text, Language: lang, Time: time.Since(start).Seconds()}, nil) {
			return
		}

		if ctx.Err() != nil {
			return
		}

		response := a.respond(ctx, text, lang, history, timeouts.LLM)
		if !yield(Event{Kind: EventLLMResponse, Text: response}, nil) {
			return
		}

		fragments := chunker.Split(response, a.ChunkerOptions...)

		for i, fragment := range fragments {
			if ctx.Err() != nil {
				return
			}

			chunkStart := time.Now()

			audio, err := a.synthesize(ctx, fragment, voiceRef, lang, timeouts.TTS)
			if err != nil {
				yield(errorEvent(ErrorKindAdapter, fmt.Errorf("tts chunk %d: %w", i, err)), nil)
				return
			}
			audioArt, err := a.Store.Put(ctx, audio, assetstore.KindAudio)
			if err != nil {
				yield(errorEvent(ErrorKindStorage, fmt.Errorf("store audio chunk %d: %w", i, err)), nil)
				return
			}
			audioDurationS := estimatePCMDurationSeconds(audio)

			video, err := a.animate(ctx, audio, portraitRef, timeouts.LipSync)
			if err != nil {
				yield(errorEvent(ErrorKindAdapter, fmt.Errorf("lipsync chunk %d: %w", i, err)), nil)
				return
			}
			videoArt, err := a.Store.Put(ctx, video.Video, assetstore.KindVideo)
			if err != nil {
				yield(errorEvent(ErrorKindStorage, fmt.Errorf("store video chunk %d: %w", i, err)), nil)
				return
			}
			if err := a.Store.ConfirmStable(ctx, videoArt); err != nil {
				yield(errorEvent(ErrorKindStorage, fmt.Errorf("confirm video chunk %d: %w", i, err)), nil)
				return
			}
			_ = audioArt

			event := Event{
				Kind:           EventVideoChunk,
				ChunkIndex:     i,
				VideoURL:       "/videos/" + videoArt.ID,
				Text:           fragment,
				ChunkTime:      time.Since(chunkStart).Seconds(),
				AudioDurationS: audioDurationS,
				VideoDurationS: video.DurationS,
			}
			if !yield(event, nil) {
				return
			}
		}

		if ctx.Err() != nil {
			return
		}

		yield(Event{Kind: EventComplete, TotalTime: time.Since(start).Seconds(), ChunkCount: len(fragments)}, nil)
	}
}

func errorEvent(kind ErrorKind, err error) Event {
	return Event{Kind: EventError, ErrorKind: kind, ErrorMessage: err.Error()}
}

func (a Adapters) transcribe(ctx context.Context, audio []byte, languageHint string, timeout time.Duration) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var opts []stt.Option
	if languageHint != "" {
		opts = append(opts, stt.WithLanguage(languageHint))
	}
	text, err := a.ASR.Transcribe(ctx, audio, opts...)
	if err != nil {
		return "", "", err
	}
	lang := languageHint
	if lang == "" {
		lang = "en"
	}
	return text, lang, nil
}

// respond calls the LLM and falls back to a canned response on failure,
// since LLM errors are the one recoverable stage in the error taxonomy.
func (a Adapters) respond(ctx context.Context, text, lang string, history []HistoryEntry, timeout time.Duration) string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs := make([]schema.Message, 0, len(history)+2)
	if a.SystemPrompt != "" {
		msgs = append(msgs, schema.NewSystemMessage(a.SystemPrompt))
	}
	for _, h := range history {
		if h.Role == "assistant" {
			msgs = append(msgs, schema.NewAIMessage(h.Text))
		} else {
			msgs = append(msgs, schema.NewHumanMessage(h.Text))
		}
	}
	msgs = append(msgs, schema.NewHumanMessage(text))

	callStart := time.Now()
	reply, err := resilience.Retry(ctx, llmRetryPolicy, func(ctx context.Context) (*schema.AIMessage, error) {
		return a.LLM.Generate(ctx, msgs)
	})

	if a.TraceExporter != nil {
		a.exportLLMCall(ctx, msgs, reply, time.Since(callStart), err)
	}

	if err != nil {
		if a.FallbackResponse != "" {
			return a.FallbackResponse
		}
		return "I'm sorry, I couldn't come up with a response just now."
	}
	return reply.Text()
}

// exportLLMCall reports a Turn's LLM call to the configured TraceExporter as
// one record; a retried call is reported once, with the total duration and
// the final outcome.
// Export failures are logged, never propagated: tracing is best-effort.
func (a Adapters) exportLLMCall(ctx context.Context, msgs []schema.Message, reply *schema.AIMessage, dur time.Duration, genErr error) {
	data := o11y.LLMCallData{
		Model:    a.LLM.ModelID(),
		Duration: dur,
	}
	for _, m := range msgs {
		data.Messages = append(data.Messages, map[string]any{"role": string(m.GetRole()), "text": m.Text()})
	}
	if genErr != nil {
		data.Error = genErr.Error()
	} else if reply != nil {
		data.Response = map[string]any{"text": reply.Text()}
	}
	if err := a.TraceExporter.ExportLLMCall(ctx, data); err != nil {
		o11y.FromContext(ctx).Warn(ctx, "trace export failed", "error", err)
	}
}

// synthesize renders one fragment to audio. voiceRef (the speaker reference
// clip) and lang selection are carried by the concrete TTS adapter's own
// Config at construction time rather than per-call, since the façade's
// Synthesize signature is provider-agnostic.
func (a Adapters) synthesize(ctx context.Context, text string, voiceRef []byte, lang string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.TTS.Synthesize(ctx, text)
}

func (a Adapters) animate(ctx context.Context, audio, portrait []byte, timeout time.Duration) (lipsync.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.LipSync.Animate(ctx, audio, portrait, a.LipSyncOptions...)
}

// estimatePCMDurationSeconds assumes 16-bit mono PCM at 16kHz, matching the
// sample rate the local TTS/LipSync providers default to. Remote providers
// report their own duration_s in a richer adapter response; callers using
// those should prefer that value over this estimate.
func estimatePCMDurationSeconds(pcm []byte) float64 {
	const sampleRate = 16000
	samples := len(pcm) / 2
	return float64(samples) / float64(sampleRate)
}
