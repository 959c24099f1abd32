// Package ollama provides the Ollama LLM provider for the avatar gateway.
// It implements the llm.ChatModel interface directly against Ollama's own
// Go client (github.com/ollama/ollama/api), the same client this
// codebase's legacy provider generations used to talk to a local Ollama
// instance, rather than routing through an OpenAI-compatible HTTP shim.
//
// Usage:
//
//	import _ "github.com/lookatitude/avatar-gateway/llm/providers/ollama"
//
//	model, err := llm.New("ollama", config.ProviderConfig{
//	    Model:   "llama3.2",
//	    BaseURL: "http://localhost:11434",
//	})
package ollama

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/lookatitude/avatar-gateway/config"
	"github.com/lookatitude/avatar-gateway/llm"
	"github.com/lookatitude/avatar-gateway/schema"
)

const defaultHost = "http://127.0.0.1:11434"

func init() {
	llm.Register("ollama", func(cfg config.ProviderConfig) (llm.ChatModel, error) {
		return New(cfg)
	})
}

// Model implements llm.ChatModel against a local or remote Ollama server.
//
// Tool binding is accepted (so Model satisfies llm.ChatModel and callers may
// route tool-using conversations through a Router without a type switch) but
// is not sent on the wire: the legacy Ollama provider this package is
// grounded on never forwarded bound tools either, and ChatRequest's
// tool-schema shape is not exercised anywhere else in this codebase.
type Model struct {
	client *api.Client
	model  string
	tools  []schema.ToolDefinition
}

// New creates a new Ollama ChatModel. The server is not contacted at
// construction time; a bad host or missing model surfaces on the first
// Generate/Stream call, matching how the other providers in this package
// construct lazily.
func New(cfg config.ProviderConfig) (*Model, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama: model is required")
	}

	host := cfg.BaseURL
	if host == "" {
		host = defaultHost
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid host %q: %w", host, err)
	}

	client := api.NewClient(parsed, http.DefaultClient)

	return &Model{client: client, model: cfg.Model}, nil
}

// Generate sends messages and returns a complete AI response.
func (m *Model) Generate(ctx context.Context, msgs []schema.Message, opts ...llm.GenerateOption) (*schema.AIMessage, error) {
	req, err := m.buildRequest(msgs, opts, false)
	if err != nil {
		return nil, err
	}

	var final api.ChatResponse
	err = m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: generate failed: %w", err)
	}
	if final.Message.Role != "" && final.Message.Role != "assistant" {
		return nil, fmt.Errorf("ollama: unexpected response role %q", final.Message.Role)
	}

	return convertResponse(&final, m.model), nil
}

// Stream sends messages and returns an iterator of response chunks. Ollama's
// client calls back synchronously as each NDJSON line arrives on the
// response body, so this simply yields from inside that callback instead of
// bridging through a channel and goroutine.
func (m *Model) Stream(ctx context.Context, msgs []schema.Message, opts ...llm.GenerateOption) iter.Seq2[schema.StreamChunk, error] {
	return func(yield func(schema.StreamChunk, error) bool) {
		req, err := m.buildRequest(msgs, opts, true)
		if err != nil {
			yield(schema.StreamChunk{}, err)
			return
		}

		stopped := false
		errStop := errors.New("ollama: stream stopped by consumer")
		callErr := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if !yield(*convertStreamResponse(&resp, m.model), nil) {
				stopped = true
				return errStop
			}
			return nil
		})
		if callErr != nil && !stopped && !errors.Is(callErr, context.Canceled) {
			yield(schema.StreamChunk{}, fmt.Errorf("ollama: stream failed: %w", callErr))
		}
	}
}

// BindTools returns a new Model carrying the given tool definitions; see the
// Model doc comment for why they are not forwarded to Ollama.
func (m *Model) BindTools(tools []schema.ToolDefinition) llm.ChatModel {
	cp := *m
	cp.tools = make([]schema.ToolDefinition, len(tools))
	copy(cp.tools, tools)
	return &cp
}

// ModelID returns the model identifier.
func (m *Model) ModelID() string {
	return m.model
}

func (m *Model) buildRequest(msgs []schema.Message, opts []llm.GenerateOption, stream bool) (*api.ChatRequest, error) {
	genOpts := llm.ApplyOptions(opts...)

	converted, err := convertMessages(msgs)
	if err != nil {
		return nil, err
	}

	options := make(map[string]any)
	if genOpts.Temperature != nil {
		options["temperature"] = *genOpts.Temperature
	}
	if genOpts.TopP != nil {
		options["top_p"] = *genOpts.TopP
	}
	if genOpts.MaxTokens > 0 {
		options["num_predict"] = genOpts.MaxTokens
	}
	if len(genOpts.StopSequences) > 0 {
		options["stop"] = genOpts.StopSequences
	}

	return &api.ChatRequest{
		Model:    m.model,
		Messages: converted,
		Options:  options,
		Stream:   &stream,
	}, nil
}

func convertMessages(msgs []schema.Message) ([]api.Message, error) {
	out := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		switch m := msg.(type) {
		case *schema.SystemMessage:
			out = append(out, api.Message{Role: "system", Content: m.Text()})
		case *schema.HumanMessage:
			out = append(out, api.Message{Role: "user", Content: m.Text(), Images: imagesFromParts(m.Parts)})
		case *schema.AIMessage:
			out = append(out, api.Message{Role: "assistant", Content: m.Text()})
		case *schema.ToolMessage:
			out = append(out, api.Message{Role: "tool", Content: m.Text()})
		default:
			return nil, fmt.Errorf("ollama: unsupported message type %T", msg)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("ollama: no valid messages provided")
	}
	return out, nil
}

func imagesFromParts(parts []schema.ContentPart) []api.ImageData {
	var images []api.ImageData
	for _, p := range parts {
		if img, ok := p.(schema.ImagePart); ok && len(img.Data) > 0 {
			images = append(images, api.ImageData(img.Data))
		}
	}
	return images
}

func convertResponse(resp *api.ChatResponse, modelID string) *schema.AIMessage {
	ai := &schema.AIMessage{ModelID: modelID}
	if resp.Message.Content != "" {
		ai.Parts = append(ai.Parts, schema.TextPart{Text: resp.Message.Content})
	}
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		ai.Usage = schema.Usage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
			TotalTokens:  resp.PromptEvalCount + resp.EvalCount,
		}
	}
	return ai
}

func convertStreamResponse(resp *api.ChatResponse, modelID string) *schema.StreamChunk {
	chunk := &schema.StreamChunk{ModelID: modelID, Delta: resp.Message.Content}
	if resp.Done {
		chunk.FinishReason = string(resp.DoneReason)
		if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
			chunk.Usage = &schema.Usage{
				InputTokens:  resp.PromptEvalCount,
				OutputTokens: resp.EvalCount,
				TotalTokens:  resp.PromptEvalCount + resp.EvalCount,
			}
		}
	}
	return chunk
}
