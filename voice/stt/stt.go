// Package stt defines the speech-to-text adapter façade: a provider-agnostic
// STT interface, a Register/New/List provider registry, functional options,
// composable hooks, and a FrameProcessor bridge into the voice package's
// frame-processing chain.
package stt

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/lookatitude/avatar-gateway/internal/hookutil"
	"github.com/lookatitude/avatar-gateway/voice"
)

// Word is a single word within a transcript, with its timing and confidence.
type Word struct {
	Text       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// TranscriptEvent is one increment of a streamed transcription.
type TranscriptEvent struct {
	Text       string
	IsFinal    bool
	Confidence float64
	Timestamp  time.Duration
	Language   string
	Words      []Word
}

// STT transcribes speech to text.
type STT interface {
	// Transcribe renders a complete audio buffer to text in a single call.
	Transcribe(ctx context.Context, audio []byte, opts ...Option) (string, error)

	// TranscribeStream renders a stream of incoming audio chunks to a stream
	// of transcript events, which may include interim (non-final) results.
	TranscribeStream(ctx context.Context, audioStream iter.Seq2[[]byte, error], opts ...Option) iter.Seq2[TranscriptEvent, error]
}

// Config holds transcription parameters.
type Config struct {
	Language    string
	Model       string
	Punctuation bool
	Diarization bool
	SampleRate  int
	Encoding    string
}

// Option is a functional option applied to a Config.
type Option func(*Config)

// ApplyOptions builds a Config from a list of Options.
func ApplyOptions(opts ...Option) Config {
	var cfg Config
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func WithLanguage(l string) Option      { return func(c *Config) { c.Language = l } }
func WithModel(m string) Option         { return func(c *Config) { c.Model = m } }
func WithPunctuation(b bool) Option     { return func(c *Config) { c.Punctuation = b } }
func WithDiarization(b bool) Option     { return func(c *Config) { c.Diarization = b } }
func WithSampleRate(n int) Option       { return func(c *Config) { c.SampleRate = n } }
func WithEncoding(e string) Option      { return func(c *Config) { c.Encoding = e } }

// Hooks provides optional callbacks invoked around transcription.
type Hooks struct {
	OnTranscript func(ctx context.Context, event TranscriptEvent)
	OnUtterance  func(ctx context.Context, text string)
	OnError      func(ctx context.Context, err error) error
}

// ComposeHooks merges multiple Hooks into one. OnTranscript and OnUtterance
// run every hook unconditionally, in order. OnError runs each hook in order
// and stops at the first non-nil return; if every hook returns nil, the
// original error is returned.
func ComposeHooks(hooks ...Hooks) Hooks {
	return Hooks{
		OnTranscript: hookutil.ComposeVoid1(hooks, func(h Hooks) func(context.Context, TranscriptEvent) {
			return h.OnTranscript
		}),
		OnUtterance: hookutil.ComposeVoid1(hooks, func(h Hooks) func(context.Context, string) {
			return h.OnUtterance
		}),
		OnError: hookutil.ComposeErrorPassthrough(hooks, func(h Hooks) func(context.Context, error) error {
			return h.OnError
		}),
	}
}

// Factory constructs an STT engine from Config.
type Factory func(Config) (STT, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory under name. It panics if name is empty,
// factory is nil, or name is already registered.
func Register(name string, factory Factory) {
	if name == "" {
		panic("stt: Register called with empty name")
	}
	if factory == nil {
		panic("stt: Register called with nil factory")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("stt: Register called twice for provider %q", name))
	}
	registry[name] = factory
}

// New instantiates the provider registered under name with cfg.
func New(name string, cfg Config) (STT, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("stt: unknown provider %q", name)
	}
	return factory(cfg)
}

// List returns the names of all registered providers, sorted alphabetically.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AsFrameProcessor adapts s into a voice.FrameProcessor: FrameAudio input
// frames are transcribed into FrameText output frames; all other frame
// types pass through unchanged.
func AsFrameProcessor(s STT, opts ...Option) voice.FrameProcessor {
	return voice.FrameProcessorFunc(func(ctx context.Context, in <-chan voice.Frame, out chan<- voice.Frame) error {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case frame, ok := <-in:
				if !ok {
					return nil
				}
				if frame.Type != voice.FrameAudio {
					select {
					case out <- frame:
					case <-ctx.Done():
						return ctx.Err()
					}
					continue
				}
				text, err := s.Transcribe(ctx, frame.Data, opts...)
				if err != nil {
					return fmt.Errorf("stt: transcribe: %w", err)
				}
				if text == "" {
					continue
				}
				select {
				case out <- voice.NewTextFrame(text):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	})
}
