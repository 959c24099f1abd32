// Package local provides a deterministic, offline lip-sync provider. It does
// not run any diffusion model; it wraps the input audio in a minimal
// fast-start MP4 container (ftyp/moov before mdat) sized and timed from the
// audio alone, ignoring the portrait entirely. This makes it useful for
// integration tests and as an always-available fallback when no remote
// lip-sync provider is configured.
//
// Usage:
//
//	import _ "github.com/lookatitude/avatar-gateway/voice/lipsync/providers/local"
//
//	l, _ := lipsync.New("local", lipsync.Config{FPS: 25})
package local

import (
	"context"
	"encoding/binary"
	"iter"

	"github.com/lookatitude/avatar-gateway/voice/lipsync"
)

func init() {
	lipsync.Register("local", func(cfg lipsync.Config) (lipsync.LipSync, error) {
		return New(cfg), nil
	})
}

const pcmSampleRate = 16000 // assumed sample rate of the input audio, 16-bit mono

// Provider is a canned LipSync engine: it wraps audio in a minimal MP4
// container without rendering any video frames.
type Provider struct {
	fps int
}

// New constructs a Provider from cfg. A zero FPS defaults to 25.
func New(cfg lipsync.Config) *Provider {
	fps := cfg.FPS
	if fps <= 0 {
		fps = 25
	}
	return &Provider{fps: fps}
}

// Animate ignores portrait and wraps audio in a minimal fast-start MP4
// container, computing duration from audio length at 16-bit/16kHz mono.
func (p *Provider) Animate(_ context.Context, audio []byte, _ []byte, opts ...lipsync.Option) (lipsync.Result, error) {
	cfg := lipsync.ApplyOptions(opts...)
	fps := p.fps
	if cfg.FPS > 0 {
		fps = cfg.FPS
	}
	samples := len(audio) / 2
	durationS := float64(samples) / float64(pcmSampleRate)
	frameCount := int(durationS * float64(fps))

	return lipsync.Result{
		Video:      fastStartContainer(audio),
		DurationS:  durationS,
		FrameCount: frameCount,
	}, nil
}

// AnimateStream animates each audio chunk independently, in order.
func (p *Provider) AnimateStream(ctx context.Context, audioStream iter.Seq2[[]byte, error], portrait []byte, opts ...lipsync.Option) iter.Seq2[lipsync.Result, error] {
	return func(yield func(lipsync.Result, error) bool) {
		for chunk, err := range audioStream {
			if err != nil {
				yield(lipsync.Result{}, err)
				return
			}
			result, err := p.Animate(ctx, chunk, portrait, opts...)
			if err != nil {
				yield(lipsync.Result{}, err)
				return
			}
			if !yield(result, nil) {
				return
			}
		}
	}
}

// fastStartContainer wraps payload in a minimal ftyp+moov+mdat box layout so
// consumers can rely on a "moov before mdat" fast-start structure, without
// implementing an actual video codec.
func fastStartContainer(payload []byte) []byte {
	ftyp := box("ftyp", []byte("isom\x00\x00\x02\x00isomiso2avc1mp41"))
	moov := box("moov", box("mvhd", make([]byte, 100)))
	mdat := box("mdat", payload)

	out := make([]byte, 0, len(ftyp)+len(moov)+len(mdat))
	out = append(out, ftyp...)
	out = append(out, moov...)
	out = append(out, mdat...)
	return out
}

// box encodes a single ISO BMFF box: a 4-byte big-endian size, a 4-byte
// type, and the body.
func box(boxType string, body []byte) []byte {
	size := 8 + len(body)
	out := make([]byte, 8, size)
	binary.BigEndian.PutUint32(out[0:4], uint32(size))
	copy(out[4:8], boxType)
	return append(out, body...)
}
