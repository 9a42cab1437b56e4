package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel is an in-memory llms.Model capturing what the generator
// sends.
type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, o := range options {
		o(&m.opts)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("legacy path not used")
}

func modelReplying(text string) *fakeModel {
	return &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        text,
		GenerationInfo: map[string]any{"tokens": 12},
	}}}}
}

// TestLLMTextGenerator_Complete verifies message assembly: system
// context, prompt, and image attachments.
func TestLLMTextGenerator_Complete(t *testing.T) {
	m := modelReplying("a better prompt")
	g := NewLLMTextGenerator(m)

	out, err := g.Complete(context.Background(), TextRequest{
		System: "you rewrite prompts",
		Prompt: "a cat",
		Images: []string{"data:a", "data:b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a better prompt", out.Text)
	assert.Equal(t, map[string]any{"tokens": 12}, out.Metadata)

	require.Len(t, m.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.messages[0].Role)

	human := m.messages[1]
	assert.Equal(t, llms.ChatMessageTypeHuman, human.Role)
	require.Len(t, human.Parts, 3)
	assert.Equal(t, llms.TextContent{Text: "a cat"}, human.Parts[0])
	assert.Equal(t, llms.ImageURLContent{URL: "data:a"}, human.Parts[1])
	assert.Equal(t, llms.ImageURLContent{URL: "data:b"}, human.Parts[2])
}

// TestLLMTextGenerator_NoSystem verifies the system message is omitted
// when there is no context.
func TestLLMTextGenerator_NoSystem(t *testing.T) {
	m := modelReplying("answer")
	g := NewLLMTextGenerator(m)

	_, err := g.Complete(context.Background(), TextRequest{Prompt: "question"})
	require.NoError(t, err)
	require.Len(t, m.messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.messages[0].Role)
}

// TestLLMTextGenerator_CallOptions verifies generator and request
// options reach the backend.
func TestLLMTextGenerator_CallOptions(t *testing.T) {
	m := modelReplying("answer")
	g := NewLLMTextGenerator(m, WithMaxTokens(256), WithTemperature(0.2))

	_, err := g.Complete(context.Background(), TextRequest{
		Prompt: "q",
		Params: Params{Model: "gpt-4o-mini"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", m.opts.Model)
	assert.Equal(t, 256, m.opts.MaxTokens)
	assert.Equal(t, 0.2, m.opts.Temperature)

	plain := modelReplying("answer")
	_, err = NewLLMTextGenerator(plain).Complete(context.Background(), TextRequest{Prompt: "q"})
	require.NoError(t, err)
	assert.Empty(t, plain.opts.Model, "no options means no overrides")
	assert.Zero(t, plain.opts.MaxTokens)
}

// TestLLMTextGenerator_Failures verifies the error paths.
func TestLLMTextGenerator_Failures(t *testing.T) {
	t.Run("nil model", func(t *testing.T) {
		g := NewLLMTextGenerator(nil)
		_, err := g.Complete(context.Background(), TextRequest{Prompt: "q"})
		assert.ErrorIs(t, err, ErrNoModel)
	})

	t.Run("backend error", func(t *testing.T) {
		m := &fakeModel{err: errors.New("rate limit")}
		g := NewLLMTextGenerator(m)
		_, err := g.Complete(context.Background(), TextRequest{Prompt: "q"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limit")
	})

	t.Run("no choices", func(t *testing.T) {
		m := &fakeModel{resp: &llms.ContentResponse{}}
		g := NewLLMTextGenerator(m)
		_, err := g.Complete(context.Background(), TextRequest{Prompt: "q"})
		assert.ErrorIs(t, err, ErrEmptyResult)
	})

	t.Run("nil response", func(t *testing.T) {
		m := &fakeModel{}
		g := NewLLMTextGenerator(m)
		_, err := g.Complete(context.Background(), TextRequest{Prompt: "q"})
		assert.ErrorIs(t, err, ErrEmptyResult)
	})
}
