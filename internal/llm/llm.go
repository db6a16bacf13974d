// Package llm abstracts the chat models behind one small interface.
//
// The pipeline only ever needs messages in, text out. Provider quirks
// (system prompt placement, content blocks, retries) stay here. A nil
// Client is a valid configuration: callers degrade to parser-only
// facts and skeleton analyses.
package llm

import (
	"context"
	"fmt"
	"time"

	"auspex/internal/config"
	"auspex/internal/logging"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Client is a chat model.
type Client interface {
	// Name identifies the provider (anthropic, gemini).
	Name() string
	// Model identifies the provider model.
	Model() string
	// Chat sends the conversation and returns the text reply.
	// Temperature below zero keeps the provider default.
	Chat(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// New builds the configured client, wrapped with retry. Provider "off"
// yields a nil client and no error.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	var inner Client
	var err error

	switch cfg.Provider {
	case "off", "":
		return nil, nil
	case "anthropic":
		inner, err = newAnthropic(cfg)
	case "gemini":
		inner, err = newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &retryClient{
		inner: inner,
		max:   retries,
		log:   logging.GetLogger("llm"),
	}, nil
}

// retryClient retries transient failures with exponential backoff.
type retryClient struct {
	inner Client
	max   int
	log   *logging.Logger
}

func (r *retryClient) Name() string  { return r.inner.Name() }
func (r *retryClient) Model() string { return r.inner.Model() }

func (r *retryClient) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.max; attempt++ {
		if attempt > 0 {
			delay := time.Second << uint(attempt-1)
			r.log.WarnWithFields("model call failed, retrying",
				logging.Field("provider", r.inner.Name()),
				logging.Field("attempt", attempt),
				logging.Field("delay", delay.String()),
				logging.Field("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
		out, err := r.inner.Chat(ctx, messages, temperature)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("%s chat failed after %d attempts: %w", r.inner.Name(), r.max, lastErr)
}
