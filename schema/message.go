package schema

import "strings"

// Role identifies who produced a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// Message is the common interface implemented by every message variant in a
// dialogue history.
type Message interface {
	GetRole() Role
	GetContent() []ContentPart
	GetMetadata() map[string]any
	Text() string
}

// textFromParts concatenates the text of every TextPart in parts, joined by
// newlines. Non-text parts are ignored.
func textFromParts(parts []ContentPart) string {
	var texts []string
	for _, p := range parts {
		if tp, ok := p.(TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// SystemMessage carries instructions that frame the assistant's behavior.
type SystemMessage struct {
	Parts    []ContentPart
	Metadata map[string]any
}

// NewSystemMessage builds a SystemMessage from plain text.
func NewSystemMessage(text string) *SystemMessage {
	return &SystemMessage{Parts: []ContentPart{TextPart{Text: text}}}
}

func (m *SystemMessage) GetRole() Role               { return RoleSystem }
func (m *SystemMessage) GetContent() []ContentPart   { return m.Parts }
func (m *SystemMessage) GetMetadata() map[string]any { return m.Metadata }
func (m *SystemMessage) Text() string                { return textFromParts(m.Parts) }

// HumanMessage carries user input: the transcribed ASR result for a turn,
// possibly with attached images.
type HumanMessage struct {
	Parts    []ContentPart
	Metadata map[string]any
}

// NewHumanMessage builds a HumanMessage from plain text.
func NewHumanMessage(text string) *HumanMessage {
	return &HumanMessage{Parts: []ContentPart{TextPart{Text: text}}}
}

func (m *HumanMessage) GetRole() Role               { return RoleHuman }
func (m *HumanMessage) GetContent() []ContentPart   { return m.Parts }
func (m *HumanMessage) GetMetadata() map[string]any { return m.Metadata }
func (m *HumanMessage) Text() string                { return textFromParts(m.Parts) }

// AIMessage carries the model's reply, including any tool calls it requested
// and the usage accounting for the generation.
type AIMessage struct {
	Parts     []ContentPart
	ToolCalls []ToolCall
	Usage     Usage
	ModelID   string
	Metadata  map[string]any
}

// NewAIMessage builds an AIMessage from plain text.
func NewAIMessage(text string) *AIMessage {
	return &AIMessage{Parts: []ContentPart{TextPart{Text: text}}}
}

func (m *AIMessage) GetRole() Role               { return RoleAI }
func (m *AIMessage) GetContent() []ContentPart   { return m.Parts }
func (m *AIMessage) GetMetadata() map[string]any { return m.Metadata }
func (m *AIMessage) Text() string                { return textFromParts(m.Parts) }

// ToolMessage carries the result of a tool call back into the dialogue.
type ToolMessage struct {
	ToolCallID string
	Parts      []ContentPart
	Metadata   map[string]any
}

// NewToolMessage builds a ToolMessage from a call ID and plain-text result.
func NewToolMessage(toolCallID, result string) *ToolMessage {
	return &ToolMessage{ToolCallID: toolCallID, Parts: []ContentPart{TextPart{Text: result}}}
}

func (m *ToolMessage) GetRole() Role               { return RoleTool }
func (m *ToolMessage) GetContent() []ContentPart   { return m.Parts }
func (m *ToolMessage) GetMetadata() map[string]any { return m.Metadata }
func (m *ToolMessage) Text() string                { return textFromParts(m.Parts) }

// Usage reports token accounting for a single generation.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CachedTokens int
}

// StreamChunk is one increment of a streamed generation: a delta of text,
// an in-progress tool call, or a terminal chunk carrying FinishReason/Usage.
type StreamChunk struct {
	ModelID      string
	Delta        string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        *Usage
}
