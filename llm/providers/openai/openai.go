// Package openai provides the OpenAI LLM provider for the avatar gateway.
// It implements the llm.ChatModel interface directly against the
// sashabaranov/go-openai client, the same SDK this codebase's legacy
// provider generations used, rather than routing through an
// OpenAI-compatible HTTP shim.
//
// Usage:
//
//	import _ "github.com/lookatitude/avatar-gateway/llm/providers/openai"
//
//	model, err := llm.New("openai", config.ProviderConfig{
//	    Model:  "gpt-4o",
//	    APIKey: "sk-...",
//	})
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	openaiClient "github.com/sashabaranov/go-openai"

	"github.com/lookatitude/avatar-gateway/config"
	"github.com/lookatitude/avatar-gateway/llm"
	"github.com/lookatitude/avatar-gateway/schema"
)

func init() {
	llm.Register("openai", func(cfg config.ProviderConfig) (llm.ChatModel, error) {
		return New(cfg)
	})
}

// Model implements llm.ChatModel against the OpenAI Chat Completions API.
type Model struct {
	client *openaiClient.Client
	model  string
	tools  []schema.ToolDefinition
}

// New creates a new OpenAI ChatModel.
func New(cfg config.ProviderConfig) (*Model, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}

	clientCfg := openaiClient.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if org, ok := config.GetOption[string](cfg, "organization"); ok && org != "" {
		clientCfg.OrgID = org
	}

	return &Model{
		client: openaiClient.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Generate sends messages and returns a complete AI response.
func (m *Model) Generate(ctx context.Context, msgs []schema.Message, opts ...llm.GenerateOption) (*schema.AIMessage, error) {
	req, err := m.buildRequest(msgs, opts, false)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: generate failed: %w", err)
	}
	return convertResponse(&resp), nil
}

// Stream sends messages and returns an iterator of response chunks.
func (m *Model) Stream(ctx context.Context, msgs []schema.Message, opts ...llm.GenerateOption) iter.Seq2[schema.StreamChunk, error] {
	req, err := m.buildRequest(msgs, opts, true)
	if err != nil {
		return func(yield func(schema.StreamChunk, error) bool) {
			yield(schema.StreamChunk{}, err)
		}
	}

	return func(yield func(schema.StreamChunk, error) bool) {
		stream, err := m.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield(schema.StreamChunk{}, fmt.Errorf("openai: stream failed: %w", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(schema.StreamChunk{}, fmt.Errorf("openai: stream recv: %w", err))
				return
			}
			chunk := convertStreamResponse(&resp, m.model)
			if chunk == nil {
				continue
			}
			if !yield(*chunk, nil) {
				return
			}
		}
	}
}

// BindTools returns a new Model that includes the given tools in every request.
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

func (m *Model) buildRequest(msgs []schema.Message, opts []llm.GenerateOption, stream bool) (openaiClient.ChatCompletionRequest, error) {
	genOpts := llm.ApplyOptions(opts...)

	converted, err := convertMessages(msgs)
	if err != nil {
		return openaiClient.ChatCompletionRequest{}, err
	}

	req := openaiClient.ChatCompletionRequest{
		Model:    m.model,
		Messages: converted,
		Stream:   stream,
	}
	if genOpts.MaxTokens > 0 {
		req.MaxTokens = genOpts.MaxTokens
	}
	if genOpts.Temperature != nil {
		req.Temperature = float32(*genOpts.Temperature)
	}
	if genOpts.TopP != nil {
		req.TopP = float32(*genOpts.TopP)
	}
	if len(genOpts.StopSequences) > 0 {
		req.Stop = genOpts.StopSequences
	}
	if len(m.tools) > 0 {
		req.Tools = convertTools(m.tools)
	}
	switch genOpts.ToolChoice {
	case llm.ToolChoiceNone:
		req.ToolChoice = "none"
	case llm.ToolChoiceRequired:
		req.ToolChoice = "required"
	case llm.ToolChoiceAuto:
		req.ToolChoice = "auto"
	}
	if genOpts.SpecificTool != "" {
		req.ToolChoice = openaiClient.ToolChoice{
			Type:     openaiClient.ToolTypeFunction,
			Function: openaiClient.ToolFunction{Name: genOpts.SpecificTool},
		}
	}

	return req, nil
}

func convertMessages(msgs []schema.Message) ([]openaiClient.ChatCompletionMessage, error) {
	out := make([]openaiClient.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		switch m := msg.(type) {
		case *schema.SystemMessage:
			out = append(out, openaiClient.ChatCompletionMessage{Role: openaiClient.ChatMessageRoleSystem, Content: m.Text()})
		case *schema.HumanMessage:
			out = append(out, openaiClient.ChatCompletionMessage{Role: openaiClient.ChatMessageRoleUser, Content: m.Text()})
		case *schema.AIMessage:
			chatMsg := openaiClient.ChatCompletionMessage{Role: openaiClient.ChatMessageRoleAssistant, Content: m.Text()}
			for _, tc := range m.ToolCalls {
				chatMsg.ToolCalls = append(chatMsg.ToolCalls, openaiClient.ToolCall{
					ID:   tc.ID,
					Type: openaiClient.ToolTypeFunction,
					Function: openaiClient.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, chatMsg)
		case *schema.ToolMessage:
			out = append(out, openaiClient.ChatCompletionMessage{
				Role:       openaiClient.ChatMessageRoleTool,
				Content:    m.Text(),
				ToolCallID: m.ToolCallID,
			})
		default:
			return nil, fmt.Errorf("openai: unsupported message type %T", msg)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("openai: no valid messages provided")
	}
	return out, nil
}

func convertTools(tools []schema.ToolDefinition) []openaiClient.Tool {
	out := make([]openaiClient.Tool, len(tools))
	for i, t := range tools {
		out[i] = openaiClient.Tool{
			Type: openaiClient.ToolTypeFunction,
			Function: &openaiClient.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return out
}

func convertResponse(resp *openaiClient.ChatCompletionResponse) *schema.AIMessage {
	ai := &schema.AIMessage{
		ModelID: resp.Model,
		Usage: schema.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return ai
	}
	choice := resp.Choices[0]
	if choice.Message.Content != "" {
		ai.Parts = append(ai.Parts, schema.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		ai.ToolCalls = append(ai.ToolCalls, schema.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return ai
}

func convertStreamResponse(resp *openaiClient.ChatCompletionStreamResponse, modelID string) *schema.StreamChunk {
	if len(resp.Choices) == 0 {
		return nil
	}
	choice := resp.Choices[0]
	chunk := &schema.StreamChunk{ModelID: modelID, Delta: choice.Delta.Content}
	for _, tc := range choice.Delta.ToolCalls {
		chunk.ToolCalls = append(chunk.ToolCalls, schema.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if choice.FinishReason != "" {
		chunk.FinishReason = string(choice.FinishReason)
		if resp.Usage != nil {
			chunk.Usage = &schema.Usage{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
				TotalTokens:  resp.Usage.TotalTokens,
			}
		}
	}
	return chunk
}
