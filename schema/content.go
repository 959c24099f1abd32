// Package schema defines the message and content types exchanged with LLM
// providers: the request/response shape for C3.LLM, independent of any one
// vendor's wire format.
package schema

// ContentType identifies the kind of data a ContentPart carries.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentAudio ContentType = "audio"
	ContentVideo ContentType = "video"
	ContentFile  ContentType = "file"
)

// ContentPart is one piece of a message's content. A Message may carry
// several parts, e.g. a text instruction followed by an image.
type ContentPart interface {
	PartType() ContentType
}

// TextPart is plain text content.
type TextPart struct {
	Text string
}

// PartType implements ContentPart.
func (TextPart) PartType() ContentType { return ContentText }

// ImagePart is image content, given either inline as Data or by reference
// as URL.
type ImagePart struct {
	Data     []byte
	MimeType string
	URL      string
}

// PartType implements ContentPart.
func (ImagePart) PartType() ContentType { return ContentImage }

// AudioPart is audio content, given either inline as Data or by reference
// as URL.
type AudioPart struct {
	Data       []byte
	Format     string
	SampleRate int
	URL        string
}

// PartType implements ContentPart.
func (AudioPart) PartType() ContentType { return ContentAudio }

// VideoPart is video content, given either inline as Data or by reference
// as URL.
type VideoPart struct {
	Data     []byte
	MimeType string
	URL      string
}

// PartType implements ContentPart.
func (VideoPart) PartType() ContentType { return ContentVideo }

// FilePart is an opaque file attachment.
type FilePart struct {
	Data     []byte
	Name     string
	MimeType string
}

// PartType implements ContentPart.
func (FilePart) PartType() ContentType { return ContentFile }
