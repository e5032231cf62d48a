package core

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAITextModel  = openai.GPT4oMini
	defaultOpenAIImageModel = openai.CreateImageModelDallE3
)

// OpenAIProvider serves both text completions and image generation.
type OpenAIProvider struct {
	client     *openai.Client
	configured bool
	textModel  string
	imageModel string
}

func NewOpenAIProvider(apiKey, textModel, imageModel string) *OpenAIProvider {
	return newOpenAIProviderWithConfig(openai.DefaultConfig(apiKey), apiKey != "", textModel, imageModel)
}

func newOpenAIProviderWithConfig(cfg openai.ClientConfig, configured bool, textModel, imageModel string) *OpenAIProvider {
	if textModel == "" {
		textModel = defaultOpenAITextModel
	}
	if imageModel == "" {
		imageModel = defaultOpenAIImageModel
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		configured: configured,
		textModel:  textModel,
		imageModel: imageModel,
	}
}

func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

func (p *OpenAIProvider) GenerateText(ctx context.Context, prompt string) (*TextResult, error) {
	if !p.configured {
		return nil, errNotConfigured(ProviderOpenAI)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.textModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return &TextResult{
		Text:          text,
		TokenCount:    resp.Usage.TotalTokens,
		EstimatedCost: float64(resp.Usage.TotalTokens) * OpenAITokenRate,
		Provider:      ProviderOpenAI,
	}, nil
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	if !p.configured {
		return nil, errNotConfigured(ProviderOpenAI)
	}

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          p.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, errors.New("image provider returned no image")
	}

	return &ImageResult{
		URL:           resp.Data[0].URL,
		EstimatedCost: ImageFlatCost,
	}, nil
}

// openAIMessage extracts the human-readable part of an OpenAI API error.
func openAIMessage(err error) (string, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}
