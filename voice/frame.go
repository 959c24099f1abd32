// Package voice defines the frame-based primitives that ASR, dialogue, TTS,
// and lip-sync stages compose through: a uniform Frame type, a
// FrameProcessor interface for streaming stages, and the per-session state
// machine that tracks conversational turns.
package voice

// FrameType identifies what kind of payload a Frame carries.
type FrameType string

const (
	FrameAudio   FrameType = "audio"
	FrameText    FrameType = "text"
	FrameControl FrameType = "control"
	FrameImage   FrameType = "image"
)

// Control signal values carried by FrameControl frames.
const (
	SignalStart          = "start"
	SignalStop           = "stop"
	SignalInterrupt      = "interrupt"
	SignalEndOfUtterance = "end_of_utterance"
)

// Frame is the unit of data flowing through a frame-processing chain.
// Metadata carries type-specific attributes (sample_rate, content_type,
// the control signal name) without requiring a distinct struct per type.
type Frame struct {
	Type     FrameType
	Data     []byte
	Metadata map[string]any
}

// NewAudioFrame builds an audio Frame with its sample rate in Metadata.
func NewAudioFrame(data []byte, sampleRate int) Frame {
	return Frame{
		Type:     FrameAudio,
		Data:     data,
		Metadata: map[string]any{"sample_rate": sampleRate},
	}
}

// NewTextFrame builds a text Frame. The text is stored as Data so Text()
// can recover it without a separate field.
func NewTextFrame(text string) Frame {
	return Frame{Type: FrameText, Data: []byte(text)}
}

// NewControlFrame builds a control Frame carrying the given signal.
func NewControlFrame(signal string) Frame {
	return Frame{
		Type:     FrameControl,
		Metadata: map[string]any{"signal": signal},
	}
}

// NewImageFrame builds an image Frame with its content type in Metadata.
func NewImageFrame(data []byte, contentType string) Frame {
	return Frame{
		Type:     FrameImage,
		Data:     data,
		Metadata: map[string]any{"content_type": contentType},
	}
}

// Text returns the frame's text payload, or "" if the frame carries none.
func (f Frame) Text() string {
	if f.Type != FrameText {
		return ""
	}
	return string(f.Data)
}

// Signal returns the frame's control signal, or "" if the frame is not a
// control frame or carries no signal.
func (f Frame) Signal() string {
	if f.Type != FrameControl || f.Metadata == nil {
		return ""
	}
	s, _ := f.Metadata["signal"].(string)
	return s
}
