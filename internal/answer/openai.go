package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when the OpenAI provider is selected
// without an API key.
var ErrNotConfigured = errors.New("openai provider not configured")

// completionClient is the slice of the OpenAI client the provider needs;
// tests substitute a fake.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator produces answers through the OpenAI chat completion API.
// The layer split is fixed: attribution of the reply across retrieval
// layers is not something the completion API reports.
type OpenAIGenerator struct {
	client       completionClient
	model        string
	systemPrompt string
}

// NewOpenAIGenerator builds a provider for the given key and model. The
// model defaults to gpt-4o-mini when blank.
func NewOpenAIGenerator(apiKey, model, systemPrompt string) (*OpenAIGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if systemPrompt == "" {
		systemPrompt = "你是一位務實的問答助理，回答準確、具體、直接。"
	}
	return &OpenAIGenerator{
		client:       openai.NewClient(apiKey),
		model:        model,
		systemPrompt: systemPrompt,
	}, nil
}

// Generate asks the model for a reply and wraps it in a Draft with the
// standard follow-up suggestions.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Draft, error) {
	prompt := req.Question
	if req.Lang != "" {
		prompt = fmt.Sprintf("以 %s 回答：%s", req.Lang, req.Question)
	}
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return Draft{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Draft{}, ErrEmptyAnswer
	}
	return Draft{
		Text:         strings.TrimSpace(resp.Choices[0].Message.Content),
		Source:       "openai",
		MainPct:      70,
		SecondaryPct: 20,
		ReferencePct: 10,
		Followups:    SuggestFollowups(req.Question),
	}, nil
}
