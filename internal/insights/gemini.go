package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured
const DefaultModel = "gemini-2.5-flash"

// GeminiConfig holds the settings of the Gemini generator
type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxAttempts int
	Timeout     time.Duration
}

// GeminiGenerator implements Generator with the Gemini API
type GeminiGenerator struct {
	logger   *zap.Logger
	client   *genai.Client
	config   GeminiConfig
	strategy RetryStrategy
}

// NewGeminiGenerator creates a new Gemini generator
func NewGeminiGenerator(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiGenerator, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiGenerator{
		logger: logger.Named("gemini"),
		client: client,
		config: config,
		strategy: &ExponentialBackoff{
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
		},
	}, nil
}

// Model implements Generator.Model
func (g *GeminiGenerator) Model() string { return g.config.Model }

// Generate implements Generator.Generate
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	var text string
	attempt := 0
	err := retry(ctx, g.config.MaxAttempts, g.strategy, func() error {
		attempt++
		resp, err := g.client.Models.GenerateContent(ctx, g.config.Model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		if err != nil {
			g.logger.Warn("Gemini request failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return ErrEmptyResponse
		}

		var b strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		text = b.String()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	g.logger.Debug("Gemini response received",
		zap.String("model", g.config.Model),
		zap.Int("attempts", attempt),
		zap.Int("chars", len(text)))
	return text, nil
}

var _ Generator = (*GeminiGenerator)(nil)
