package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"auspex/internal/audit"
	"auspex/internal/llm"
	"auspex/internal/logging"
)

// maxExtractInput bounds the CLI output embedded in the extraction
// prompt. The system prompt tells the model to flag truncated input.
const maxExtractInput = 45000

// LLMTier is the last-resort extractor: the model reads the raw block
// text under the extraction contract and returns the shared document
// shape. Raw replies are kept on the audit trail even when they fail
// to decode.
type LLMTier struct {
	client llm.Client
	trail  *audit.Trail
	log    *logging.Logger
}

// NewLLMTier builds the LLM tier. A nil client is allowed and makes
// every request fail with ErrNotAvailable.
func NewLLMTier(client llm.Client, trail *audit.Trail) *LLMTier {
	return &LLMTier{
		client: client,
		trail:  trail,
		log:    logging.GetLogger("extract"),
	}
}

// Name implements Provider.
func (t *LLMTier) Name() string { return "llm" }

// Extract implements Provider.
func (t *LLMTier) Extract(ctx context.Context, req Request) (map[string]interface{}, error) {
	if t.client == nil {
		return nil, ErrNotAvailable
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrNotAvailable
	}

	snippet := req.Text
	if len(snippet) > maxExtractInput {
		snippet = snippet[:maxExtractInput]
	}
	payload := struct {
		Command      string `json:"command"`
		PlatformHint string `json:"platform_hint"`
		Output       string `json:"output"`
	}{req.Command, req.Platform, snippet}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal extraction payload: %w", err)
	}

	start := time.Now()
	raw, err := t.client.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: extractSystemPrompt},
		{Role: llm.RoleUser, Content: "```json\n" + string(body) + "\n```"},
	}, 0)
	t.trail.LLMRequest("facts", req.Host, t.client.Name(), t.client.Model(),
		len(extractSystemPrompt)+len(body), len(raw), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("llm extract %q: %w", req.Command, err)
	}

	if strings.TrimSpace(raw) != "" {
		t.trail.WriteFile(filepath.Join("llm", req.Host+"__"+req.CmdKey+"__extract.raw"), []byte(raw))
	}

	var doc map[string]interface{}
	if err := llm.DecodeLoose(raw, &doc); err != nil {
		return nil, fmt.Errorf("llm extract %q: %w", req.Command, err)
	}
	// The reply must at least carry the two anchor fields; everything
	// else in the shape degrades gracefully downstream.
	if _, ok := doc["status"]; !ok {
		return nil, fmt.Errorf("llm extract %q: reply has no status", req.Command)
	}
	if _, ok := doc["summary"]; !ok {
		return nil, fmt.Errorf("llm extract %q: reply has no summary", req.Command)
	}
	return doc, nil
}
