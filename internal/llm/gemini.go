package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"

	"auspex/internal/config"
)

type geminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

func newGemini(ctx context.Context, cfg config.LLMConfig) (*geminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &geminiClient{
		client:    client,
		model:     cfg.Model,
		maxTokens: int32(cfg.MaxTokens),
	}, nil
}

func (c *geminiClient) Name() string  { return "gemini" }
func (c *geminiClient) Model() string { return c.model }

func (c *geminiClient) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: c.maxTokens,
	}
	if temperature >= 0 {
		genCfg.Temperature = genai.Ptr(float32(temperature))
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			genCfg.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	return resp.Text(), nil
}
