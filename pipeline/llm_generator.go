// ABOUTME: Generator backed by a mux LLM client.
// ABOUTME: Design system and blueprint are JSON completions; components stream their content deltas as chunks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	muxllm "github.com/2389-research/mux/llm"

	"github.com/2389-research/sitegen/genevent"
	"github.com/2389-research/sitegen/llm"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// LLMGenerator implements Generator with a mux client.
type LLMGenerator struct {
	client    muxllm.Client
	model     string
	maxTokens int
	retry     llm.RetryPolicy
}

// NewLLMGenerator creates a generator. An empty model defers to the client's default.
func NewLLMGenerator(client muxllm.Client, model string) *LLMGenerator {
	policy := llm.DefaultRetryPolicy()
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		log.Printf("component=pipeline.llm action=retry attempt=%d delay=%s err=%v", attempt+1, delay, err)
	}
	return &LLMGenerator{client: client, model: model, maxTokens: 16384, retry: policy}
}

// WithRetry replaces the retry policy for transient provider failures.
func (g *LLMGenerator) WithRetry(p llm.RetryPolicy) *LLMGenerator {
	g.retry = p
	return g
}

func (g *LLMGenerator) request(system, input string) *muxllm.Request {
	return &muxllm.Request{
		Model:     g.model,
		System:    system,
		Messages:  []muxllm.Message{muxllm.NewUserMessage(input)},
		MaxTokens: g.maxTokens,
	}
}

func (g *LLMGenerator) complete(ctx context.Context, req *muxllm.Request) (string, error) {
	var resp *muxllm.Response
	err := llm.Retry(ctx, g.retry, llm.IsTransient, func() error {
		var callErr error
		resp, callErr = g.client.CreateMessage(ctx, req)
		return callErr
	})
	if err != nil {
		return "", err
	}
	text := resp.TextContent()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// DesignSystem asks the model for the site's visual language.
func (g *LLMGenerator) DesignSystem(ctx context.Context, cfg Config) (DesignSystem, error) {
	text, err := g.complete(ctx, g.request(designSystemPrompt, designSystemInput(cfg)))
	if err != nil {
		return DesignSystem{}, err
	}
	return ExtractJSON[DesignSystem](text)
}

// Blueprint asks the model for the ordered file plan.
func (g *LLMGenerator) Blueprint(ctx context.Context, cfg Config, ds DesignSystem) (Blueprint, error) {
	text, err := g.complete(ctx, g.request(blueprintPrompt, blueprintInput(cfg, ds)))
	if err != nil {
		return Blueprint{}, err
	}
	return ExtractJSON[Blueprint](text)
}

// Component streams one file, forwarding each content delta to emit.
func (g *LLMGenerator) Component(ctx context.Context, req ComponentRequest, emit func(string)) (genevent.File, error) {
	mreq := g.request(componentPrompt, componentInput(req))

	var events <-chan muxllm.StreamEvent
	err := llm.Retry(ctx, g.retry, llm.IsTransient, func() error {
		var callErr error
		events, callErr = g.client.CreateMessageStream(ctx, mreq)
		return callErr
	})
	if err != nil {
		return genevent.File{}, err
	}

	var body strings.Builder
	for ev := range events {
		switch ev.Type {
		case muxllm.EventContentDelta:
			body.WriteString(ev.Text)
			emit(ev.Text)
		case muxllm.EventError:
			return genevent.File{}, fmt.Errorf("stream: %w", ev.Error)
		case muxllm.EventMessageStop:
			if body.Len() == 0 && ev.Response != nil {
				body.WriteString(ev.Response.TextContent())
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return genevent.File{}, err
	}

	content := StripCodeFence(body.String())
	if strings.TrimSpace(content) == "" {
		return genevent.File{}, ErrEmptyResponse
	}
	return genevent.File{Path: req.Spec.Path, Content: content}, nil
}

var _ Generator = (*LLMGenerator)(nil)
