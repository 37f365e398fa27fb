package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// Completion turns a prompt into raw model text.
type Completion interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// LLMCompletion adapts a langchaingo model with deterministic sampling.
type LLMCompletion struct {
	Model  llms.Model
	logger *zap.Logger
}

func NewLLMCompletion(model llms.Model, logger *zap.Logger) *LLMCompletion {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &LLMCompletion{Model: model, logger: logger.Named("llm")}
}

func (c *LLMCompletion) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.MessageContent{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  schema.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	})

	resp, err := c.Model.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	c.logger.Debug("completion received", observability.Event(observability.EventTypeLLM),
		zap.Int("prompt_chars", len(prompt)), zap.Int("response_chars", len(resp.Choices[0].Content)))
	return resp.Choices[0].Content, nil
}

// ScreenAnalyzer answers questions about screenshots with a multimodal model.
type ScreenAnalyzer struct {
	Model  llms.Model
	logger *zap.Logger
}

func NewScreenAnalyzer(model llms.Model, logger *zap.Logger) *ScreenAnalyzer {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &ScreenAnalyzer{Model: model, logger: logger.Named("vision")}
}

func (a *ScreenAnalyzer) Analyze(ctx context.Context, imagePath, prompt string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read screenshot: %w", err)
	}
	messages := []llms.MessageContent{{
		Role: schema.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.BinaryPart("image/png", data),
			llms.TextPart(prompt),
		},
	}}
	resp, err := a.Model.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision model returned no choices")
	}
	a.logger.Debug("screen analyzed", observability.Event(observability.EventTypeLLM),
		zap.Int("image_bytes", len(data)))
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// NewModel builds the chat model for a configured provider.
func NewModel(name string, p config.ProviderConfig, vision bool) (llms.Model, error) {
	switch name {
	case "openai", "openrouter":
		model := p.Model
		if vision && p.VisionModel != "" {
			model = p.VisionModel
		}
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("provider %s not yet implemented", name)
	}
}
