package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const defaultGeminiModelName = "gemini-1.5-flash-latest"

// GeminiProvider is the default text provider. The GenAI client is created on
// first use so a missing key or an unreachable endpoint does not block startup.
type GeminiProvider struct {
	apiKey    string
	modelName string
	log       *logrus.Logger

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiProvider(apiKey, modelName string, log *logrus.Logger) *GeminiProvider {
	if modelName == "" {
		modelName = defaultGeminiModelName
	}
	return &GeminiProvider{
		apiKey:    apiKey,
		modelName: modelName,
		log:       log,
	}
}

func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		if p.apiKey == "" {
			p.initErr = errNotConfigured(ProviderGemini)
			return
		}
		p.client, p.initErr = genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(p.apiKey))
		if p.initErr != nil {
			p.initErr = fmt.Errorf("failed to create GenAI client: %w", p.initErr)
		}
	})
	return p.client, p.initErr
}

func (p *GeminiProvider) Close() {
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			p.log.WithError(err).Warn("Error closing GenAI client")
		} else {
			p.log.Info("GenAI client closed")
		}
	}
}

func (p *GeminiProvider) GenerateText(ctx context.Context, prompt string) (*TextResult, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(p.modelName)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}

	tokens := geminiTokenCount(resp)
	return &TextResult{
		Text:          geminiResponseText(resp),
		TokenCount:    tokens,
		EstimatedCost: float64(tokens) * GeminiTokenRate,
		Provider:      ProviderGemini,
	}, nil
}

// geminiTokenCount falls back to a fixed estimate when the response carries
// no usage metadata.
func geminiTokenCount(resp *genai.GenerateContentResponse) int {
	if resp != nil && resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	return GeminiPlaceholderTokens
}

func geminiResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}
	return responseText.String()
}
