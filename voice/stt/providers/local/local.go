// Package local provides a deterministic, offline speech-to-text provider.
// It does not call out to any model; it treats its input audio buffer as
// already being UTF-8 text and echoes it back as a single final transcript,
// which makes it useful for integration tests and as an always-available
// fallback when no remote ASR provider is configured.
//
// Usage:
//
//	import _ "github.com/lookatitude/avatar-gateway/voice/stt/providers/local"
//
//	s, _ := stt.New("local", stt.Config{})
package local

import (
	"context"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/lookatitude/avatar-gateway/voice/stt"
)

func init() {
	stt.Register("local", func(cfg stt.Config) (stt.STT, error) {
		return New(cfg), nil
	})
}

// Provider is a canned STT engine: it echoes its input audio buffer back as
// text, replacing any non-UTF-8 bytes.
type Provider struct {
	language string
}

// New constructs a Provider from cfg.
func New(cfg stt.Config) *Provider {
	return &Provider{language: cfg.Language}
}

// Transcribe decodes audio as UTF-8 text (best effort) and returns it
// trimmed of surrounding whitespace.
func (p *Provider) Transcribe(_ context.Context, audio []byte, _ ...stt.Option) (string, error) {
	if !utf8.Valid(audio) {
		audio = []byte(strings.ToValidUTF8(string(audio), ""))
	}
	return strings.TrimSpace(string(audio)), nil
}

// TranscribeStream transcribes each audio chunk independently, marking every
// result final (this provider has no concept of interim results).
func (p *Provider) TranscribeStream(ctx context.Context, audioStream iter.Seq2[[]byte, error], opts ...stt.Option) iter.Seq2[stt.TranscriptEvent, error] {
	return func(yield func(stt.TranscriptEvent, error) bool) {
		for chunk, err := range audioStream {
			if err != nil {
				yield(stt.TranscriptEvent{}, err)
				return
			}
			text, err := p.Transcribe(ctx, chunk, opts...)
			if err != nil {
				yield(stt.TranscriptEvent{}, err)
				return
			}
			if text == "" {
				continue
			}
			event := stt.TranscriptEvent{
				Text:     text,
				IsFinal:  true,
				Language: p.language,
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}
