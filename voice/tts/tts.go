// Package tts defines the text-to-speech adapter façade: a provider-agnostic
// TTS interface, a Register/New/List provider registry, functional options,
// composable hooks, and a FrameProcessor bridge into the voice package's
// frame-processing chain.
package tts

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"

	"github.com/lookatitude/avatar-gateway/internal/hookutil"
	"github.com/lookatitude/avatar-gateway/voice"
)

// AudioFormat identifies the encoding of synthesized audio.
type AudioFormat string

const (
	FormatPCM  AudioFormat = "pcm"
	FormatOpus AudioFormat = "opus"
	FormatMP3  AudioFormat = "mp3"
	FormatWAV  AudioFormat = "wav"
)

// TTS synthesizes speech from text.
type TTS interface {
	// Synthesize renders text to audio in a single call.
	Synthesize(ctx context.Context, text string, opts ...Option) ([]byte, error)

	// SynthesizeStream renders a stream of incoming text chunks to a stream
	// of audio chunks, preserving order.
	SynthesizeStream(ctx context.Context, textStream iter.Seq2[string, error], opts ...Option) iter.Seq2[[]byte, error]
}

// Config holds synthesis parameters.
type Config struct {
	Voice      string
	Model      string
	SampleRate int
	Format     AudioFormat
	Speed      float64
	Pitch      float64
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

func WithVoice(v string) Option      { return func(c *Config) { c.Voice = v } }
func WithModel(m string) Option      { return func(c *Config) { c.Model = m } }
func WithSampleRate(n int) Option    { return func(c *Config) { c.SampleRate = n } }
func WithFormat(f AudioFormat) Option { return func(c *Config) { c.Format = f } }
func WithSpeed(s float64) Option     { return func(c *Config) { c.Speed = s } }
func WithPitch(p float64) Option     { return func(c *Config) { c.Pitch = p } }

// Hooks provides optional callbacks invoked around synthesis.
type Hooks struct {
	BeforeSynthesize func(ctx context.Context, text string)
	OnAudioChunk     func(ctx context.Context, chunk []byte)
	OnError          func(ctx context.Context, err error) error
}

// ComposeHooks merges multiple Hooks into one. BeforeSynthesize and
// OnAudioChunk run every hook unconditionally, in order. OnError runs each
// hook in order and stops at the first non-nil return; if every hook
// returns nil, the original error is returned.
func ComposeHooks(hooks ...Hooks) Hooks {
	return Hooks{
		BeforeSynthesize: hookutil.ComposeVoid1(hooks, func(h Hooks) func(context.Context, string) {
			return h.BeforeSynthesize
		}),
		OnAudioChunk: hookutil.ComposeVoid1(hooks, func(h Hooks) func(context.Context, []byte) {
			return h.OnAudioChunk
		}),
		OnError: hookutil.ComposeErrorPassthrough(hooks, func(h Hooks) func(context.Context, error) error {
			return h.OnError
		}),
	}
}

// Factory constructs a TTS engine from Config.
type Factory func(Config) (TTS, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory under name. It panics if name is empty,
// factory is nil, or name is already registered.
func Register(name string, factory Factory) {
	if name == "" {
		panic("tts: Register called with empty name")
	}
	if factory == nil {
		panic("tts: Register called with nil factory")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("tts: Register called twice for provider %q", name))
	}
	registry[name] = factory
}

// New instantiates the provider registered under name with cfg.
func New(name string, cfg Config) (TTS, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tts: unknown provider %q", name)
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

// AsFrameProcessor adapts tts into a voice.FrameProcessor: FrameText input
// frames are synthesized into FrameAudio output frames at sampleRate; all
// other frame types pass through unchanged.
func AsFrameProcessor(t TTS, sampleRate int, opts ...Option) voice.FrameProcessor {
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
				if frame.Type != voice.FrameText {
					select {
					case out <- frame:
					case <-ctx.Done():
						return ctx.Err()
					}
					continue
				}
				audio, err := t.Synthesize(ctx, frame.Text(), opts...)
				if err != nil {
					return fmt.Errorf("tts: synthesize: %w", err)
				}
				if len(audio) == 0 {
					continue
				}
				select {
				case out <- voice.NewAudioFrame(audio, sampleRate):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	})
}
