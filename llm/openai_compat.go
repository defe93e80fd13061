// ABOUTME: mux Client over the OpenAI Chat Completions API for OpenAI-compatible base URLs.
// ABOUTME: Used when OPENAI_BASE_URL points at a gateway or a self-hosted compatible server.
package llm

import (
	"context"
	"fmt"
	"log"

	muxllm "github.com/2389-research/mux/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultCompatMaxTokens = 8192

// OpenAICompatClient implements muxllm.Client with /chat/completions, which
// every OpenAI-compatible provider serves. Generation needs text only, so
// tool calls are not forwarded.
type OpenAICompatClient struct {
	client openai.Client
	model  string
}

// NewOpenAICompatClient creates a client for baseURL. An empty baseURL uses
// the OpenAI default.
func NewOpenAICompatClient(apiKey, model, baseURL string, opts ...option.RequestOption) *OpenAICompatClient {
	if model == "" {
		model = "gpt-4o"
	}
	all := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	all = append(all, opts...)
	return &OpenAICompatClient{client: openai.NewClient(all...), model: model}
}

// CreateMessage sends a request and returns the complete response.
func (c *OpenAICompatClient) CreateMessage(ctx context.Context, req *muxllm.Request) (*muxllm.Response, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return compatResponse(resp), nil
}

// CreateMessageStream sends a request and streams content deltas.
func (c *OpenAICompatClient) CreateMessageStream(ctx context.Context, req *muxllm.Request) (<-chan muxllm.StreamEvent, error) {
	s := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	out := make(chan muxllm.StreamEvent, 64)

	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("component=llm.compat action=stream_panic err=%v", r)
				out <- muxllm.StreamEvent{Type: muxllm.EventError, Error: fmt.Errorf("stream panic: %v", r)}
			}
		}()

		var acc openai.ChatCompletionAccumulator
		out <- muxllm.StreamEvent{Type: muxllm.EventMessageStart}

		for s.Next() {
			chunk := s.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				out <- muxllm.StreamEvent{Type: muxllm.EventContentDelta, Text: chunk.Choices[0].Delta.Content}
			}
		}
		if err := s.Err(); err != nil {
			out <- muxllm.StreamEvent{Type: muxllm.EventError, Error: err}
			return
		}
		out <- muxllm.StreamEvent{Type: muxllm.EventMessageStop, Response: compatResponse(&acc.ChatCompletion)}
	}()

	return out, nil
}

func (c *OpenAICompatClient) params(req *muxllm.Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultCompatMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               model,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	if req.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		text := messageText(msg)
		switch msg.Role {
		case muxllm.RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(text))
		case muxllm.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(text))
		}
	}
	return params
}

func messageText(msg muxllm.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	for _, b := range msg.Blocks {
		if b.Type == muxllm.ContentTypeText {
			return b.Text
		}
	}
	return ""
}

func compatResponse(resp *openai.ChatCompletion) *muxllm.Response {
	out := &muxllm.Response{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: muxllm.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		StopReason: muxllm.StopReasonEndTurn,
	}
	if len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		out.StopReason = muxllm.StopReasonMaxTokens
	}
	if choice.Message.Content != "" {
		out.Content = append(out.Content, muxllm.ContentBlock{
			Type: muxllm.ContentTypeText,
			Text: choice.Message.Content,
		})
	}
	return out
}

var _ muxllm.Client = (*OpenAICompatClient)(nil)
