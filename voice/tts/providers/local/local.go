// Package local provides a deterministic, offline text-to-speech provider.
// It does not call out to any model; it renders silence whose length is
// derived from the input text, which makes it useful for integration tests
// and as an always-available fallback when no remote TTS provider is
// configured.
//
// Usage:
//
//	import _ "github.com/lookatitude/avatar-gateway/voice/tts/providers/local"
//
//	t, _ := tts.New("local", tts.Config{SampleRate: 16000})
package local

import (
	"context"
	"iter"

	"github.com/lookatitude/avatar-gateway/voice/tts"
)

func init() {
	tts.Register("local", func(cfg tts.Config) (tts.TTS, error) {
		return New(cfg), nil
	})
}

// bytesPerCharMS is a rough estimate of how many milliseconds of audio one
// character of input text renders to, at a speaking pace of ~15 chars/sec.
const bytesPerCharMS = 67

// Provider is a canned TTS engine: it renders silent PCM16 audio sized to
// the input text's estimated spoken duration.
type Provider struct {
	sampleRate int
}

// New constructs a Provider from cfg. A zero SampleRate defaults to 16000.
func New(cfg tts.Config) *Provider {
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = 16000
	}
	return &Provider{sampleRate: sr}
}

// Synthesize renders text to silent PCM16 mono audio whose duration
// approximates the text's spoken length.
func (p *Provider) Synthesize(_ context.Context, text string, opts ...tts.Option) ([]byte, error) {
	cfg := tts.ApplyOptions(opts...)
	sr := p.sampleRate
	if cfg.SampleRate > 0 {
		sr = cfg.SampleRate
	}
	durationMS := len(text) * bytesPerCharMS
	if durationMS == 0 {
		return nil, nil
	}
	samples := sr * durationMS / 1000
	return make([]byte, samples*2), nil // 16-bit PCM, mono
}

// SynthesizeStream renders each text chunk independently, in order.
func (p *Provider) SynthesizeStream(ctx context.Context, textStream iter.Seq2[string, error], opts ...tts.Option) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for text, err := range textStream {
			if err != nil {
				yield(nil, err)
				return
			}
			audio, err := p.Synthesize(ctx, text, opts...)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(audio, nil) {
				return
			}
		}
	}
}
