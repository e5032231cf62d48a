package core

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Per-call cost estimates in USD. They are approximations for accounting,
// not billing-grade prices.
const (
	OpenAITokenRate = 0.000002
	GeminiTokenRate = 0.000001

	// GeminiPlaceholderTokens is charged when Gemini does not report usage.
	GeminiPlaceholderTokens = 1000

	ImageFlatCost = 0.04
)

type TextResult struct {
	Text          string
	TokenCount    int
	EstimatedCost float64
	Provider      string
}

type ImageResult struct {
	URL           string
	EstimatedCost float64
}

type TextProvider interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (*TextResult, error)
}

type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)
}

// GenerationService routes prompts to a text or image provider and records
// usage for every successful call.
type GenerationService struct {
	openai   TextProvider
	fallback TextProvider
	images   ImageProvider
	usage    *UsageRecorder
	log      *logrus.Logger
}

// NewGenerationService wires the two text providers: openai is used when the
// caller asks for "openai", fallback for anything else.
func NewGenerationService(openai, fallback TextProvider, images ImageProvider, usage *UsageRecorder, log *logrus.Logger) *GenerationService {
	return &GenerationService{
		openai:   openai,
		fallback: fallback,
		images:   images,
		usage:    usage,
		log:      log,
	}
}

func (s *GenerationService) textProvider(choice string) TextProvider {
	if choice == ProviderOpenAI {
		return s.openai
	}
	return s.fallback
}

func (s *GenerationService) GenerateText(ctx context.Context, userID int64, prompt, providerChoice string) (*TextResult, error) {
	provider := s.textProvider(providerChoice)

	result, err := provider.GenerateText(ctx, prompt)
	if err != nil {
		return nil, s.wrapProviderError(provider.Name(), userID, err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"provider": provider.Name(),
		"tokens":   result.TokenCount,
	}).Debug("Text generated")

	s.usage.recordOrLog(ctx, userID, EndpointText, result.TokenCount, result.EstimatedCost)
	return result, nil
}

func (s *GenerationService) GenerateImage(ctx context.Context, userID int64, prompt string) (*ImageResult, error) {
	result, err := s.images.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, s.wrapProviderError(ProviderOpenAI, userID, err)
	}

	s.usage.recordOrLog(ctx, userID, EndpointImage, 0, result.EstimatedCost)
	return result, nil
}

func (s *GenerationService) wrapProviderError(provider string, userID int64, err error) error {
	s.log.WithError(err).WithFields(logrus.Fields{
		"user_id":  userID,
		"provider": provider,
	}).Warn("Provider call failed")

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return newProviderError(provider, err)
}
