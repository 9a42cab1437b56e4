package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LLMTextGenerator implements TextGenerator over a langchaingo model.
// Any llms.Model backend works (OpenAI, Anthropic, Ollama, a fake in
// tests); image inputs are attached as image-URL content parts for
// vision-capable backends.
type LLMTextGenerator struct {
	model       llms.Model
	maxTokens   int
	temperature float64
	hasTemp     bool
}

// LLMOption configures an LLMTextGenerator.
type LLMOption func(*LLMTextGenerator)

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) LLMOption {
	return func(g *LLMTextGenerator) { g.maxTokens = n }
}

// WithTemperature sets sampling temperature.
func WithTemperature(t float64) LLMOption {
	return func(g *LLMTextGenerator) {
		g.temperature = t
		g.hasTemp = true
	}
}

// NewLLMTextGenerator creates a text generator over the given model.
func NewLLMTextGenerator(model llms.Model, opts ...LLMOption) *LLMTextGenerator {
	g := &LLMTextGenerator{model: model}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete implements TextGenerator.
func (g *LLMTextGenerator) Complete(ctx context.Context, req TextRequest) (*Result, error) {
	if g.model == nil {
		return nil, ErrNoModel
	}

	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}

	parts := []llms.ContentPart{llms.TextPart(req.Prompt)}
	for _, img := range req.Images {
		parts = append(parts, llms.ImageURLPart(img))
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: parts,
	})

	var callOpts []llms.CallOption
	if req.Params.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Params.Model))
	}
	if g.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(g.maxTokens))
	}
	if g.hasTemp {
		callOpts = append(callOpts, llms.WithTemperature(g.temperature))
	}

	resp, err := g.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("text completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("text completion: %w", ErrEmptyResult)
	}

	choice := resp.Choices[0]
	return &Result{
		Text:     choice.Content,
		Metadata: choice.GenerationInfo,
	}, nil
}
