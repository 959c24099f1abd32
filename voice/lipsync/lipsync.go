// Package lipsync defines the lip-sync adapter façade: a provider-agnostic
// LipSync interface that renders a fast-start MP4 from an audio chunk and a
// portrait reference image, a Register/New/List provider registry,
// functional options, and composable hooks.
package lipsync

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"

	"github.com/lookatitude/avatar-gateway/internal/hookutil"
)

// Resolution identifies the output frame size.
type Resolution string

const (
	Resolution480p  Resolution = "480p"
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// Result is the rendered output of one Animate call: an MP4-compatible,
// fast-start (moov-atom-first) video container along with its duration and
// frame count.
type Result struct {
	Video      []byte
	DurationS  float64
	FrameCount int
}

// LipSync renders talking-head video from audio and a portrait reference.
type LipSync interface {
	// Animate renders one chunk of audio against portrait into a fast-start
	// MP4 Result.
	Animate(ctx context.Context, audio []byte, portrait []byte, opts ...Option) (Result, error)

	// AnimateStream renders a stream of audio chunks into a stream of
	// Results, one per input chunk, preserving order. portrait is reused
	// across every chunk in the stream.
	AnimateStream(ctx context.Context, audioStream iter.Seq2[[]byte, error], portrait []byte, opts ...Option) iter.Seq2[Result, error]
}

// Config holds rendering parameters.
type Config struct {
	FPS            int
	Resolution     Resolution
	DiffusionSteps int
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

func WithFPS(fps int) Option                     { return func(c *Config) { c.FPS = fps } }
func WithResolution(r Resolution) Option         { return func(c *Config) { c.Resolution = r } }
func WithDiffusionSteps(steps int) Option        { return func(c *Config) { c.DiffusionSteps = steps } }

// Hooks provides optional callbacks invoked around rendering.
type Hooks struct {
	BeforeAnimate func(ctx context.Context, audioLen int)
	OnResult      func(ctx context.Context, result Result)
	OnError       func(ctx context.Context, err error) error
}

// ComposeHooks merges multiple Hooks into one. BeforeAnimate and OnResult
// run every hook unconditionally, in order. OnError runs each hook in order
// and stops at the first non-nil return; if every hook returns nil, the
// original error is returned.
func ComposeHooks(hooks ...Hooks) Hooks {
	return Hooks{
		BeforeAnimate: hookutil.ComposeVoid1(hooks, func(h Hooks) func(context.Context, int) {
			return h.BeforeAnimate
		}),
		OnResult: hookutil.ComposeVoid1(hooks, func(h Hooks) func(context.Context, Result) {
			return h.OnResult
		}),
		OnError: hookutil.ComposeErrorPassthrough(hooks, func(h Hooks) func(context.Context, error) error {
			return h.OnError
		}),
	}
}

// Factory constructs a LipSync engine from Config.
type Factory func(Config) (LipSync, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory under name. It panics if name is empty,
// factory is nil, or name is already registered.
func Register(name string, factory Factory) {
	if name == "" {
		panic("lipsync: Register called with empty name")
	}
	if factory == nil {
		panic("lipsync: Register called with nil factory")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("lipsync: Register called twice for provider %q", name))
	}
	registry[name] = factory
}

// New instantiates the provider registered under name with cfg.
func New(name string, cfg Config) (LipSync, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("lipsync: unknown provider %q", name)
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
