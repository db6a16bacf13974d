package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auspex/internal/audit"
	"auspex/internal/config"
	"auspex/internal/llm"
	"auspex/internal/parser"
	"auspex/internal/workspace"
)

func configForTest() config.ExtractorConfig {
	return config.ExtractorConfig{
		Enabled:        true,
		URL:            "http://127.0.0.1:1",
		Tool:           "extract_command_facts",
		TimeoutSeconds: 1,
	}
}

const xrVersionText = `Cisco IOS XR Software, Version 7.9.2

System uptime is 1 day 2 hours`

func TestParserTierPrefersArtifact(t *testing.T) {
	dir := t.TempDir()
	artPath := filepath.Join(dir, "cisco-ios-xr__show_version.json")
	require.NoError(t, workspace.WriteJSON(artPath, parser.Artifact{
		Host:     "r1",
		Platform: "cisco-ios-xr",
		Command:  "show version",
		CmdKey:   "show_version",
		Data:     map[string]interface{}{"summary": "from artifact", "status": map[string]interface{}{"value": "up"}},
	}))

	tier := NewParserTier(parser.New())
	doc, err := tier.Extract(context.Background(), Request{
		Host:       "r1",
		Platform:   "cisco-ios-xr",
		Command:    "show version",
		CmdKey:     "show_version",
		Text:       xrVersionText,
		ParsedPath: artPath,
	})
	require.NoError(t, err)
	assert.Equal(t, "from artifact", doc["summary"])
}

func TestParserTierParsesInMemory(t *testing.T) {
	tier := NewParserTier(parser.New())
	doc, err := tier.Extract(context.Background(), Request{
		Host:     "r1",
		Platform: "cisco-ios-xr",
		Command:  "show version",
		Text:     xrVersionText,
	})
	require.NoError(t, err)
	assert.Contains(t, doc["summary"], "7.9.2")

	// A stale artifact path falls back to the live parse.
	doc, err = tier.Extract(context.Background(), Request{
		Platform:   "cisco-ios-xr",
		Command:    "show version",
		Text:       xrVersionText,
		ParsedPath: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.NoError(t, err)
	assert.Contains(t, doc["summary"], "7.9.2")
}

func TestParserTierNotAvailable(t *testing.T) {
	tier := NewParserTier(parser.New())

	_, err := tier.Extract(context.Background(), Request{Command: "show version"})
	assert.ErrorIs(t, err, ErrNotAvailable)

	_, err = tier.Extract(context.Background(), Request{Text: "output with no command"})
	assert.ErrorIs(t, err, ErrNotAvailable)

	_, err = tier.Extract(context.Background(), Request{
		Platform: "cisco-ios-xr",
		Command:  "show lldp neighbors",
		Text:     "some output",
	})
	assert.ErrorIs(t, err, parser.ErrNoParser)
}

func newTestTrail(t *testing.T) (*audit.Trail, string) {
	t.Helper()
	dir := t.TempDir()
	trail, err := audit.New(dir, 1<<20, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = trail.Close() })
	return trail, dir
}

func TestLLMTierExtracts(t *testing.T) {
	trail, dir := newTestTrail(t)
	client := &llm.Scripted{Responses: []string{
		"```json\n{\"summary\": \"1 bgp neighbor (idle: 1)\", \"status\": {\"name\": \"bgp_neighbors\", \"value\": \"idle\"}, \"metrics\": {}, \"tables\": {}, \"evidence\": []}\n```",
	}}

	tier := NewLLMTier(client, trail)
	doc, err := tier.Extract(context.Background(), Request{
		Host:     "r1",
		Platform: "cisco-ios-xr",
		Command:  "show bgp summary",
		CmdKey:   "show_bgp_summary",
		Text:     "Neighbor ...\n10.0.0.2 ... Idle",
	})
	require.NoError(t, err)
	assert.Equal(t, "1 bgp neighbor (idle: 1)", doc["summary"])

	// The raw reply is on the audit trail for later inspection.
	raw, err := os.ReadFile(filepath.Join(dir, "llm", "r1__show_bgp_summary__extract.raw"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "bgp_neighbors")
}

func TestLLMTierRejectsBadReplies(t *testing.T) {
	trail, _ := newTestTrail(t)
	req := Request{Host: "r1", Command: "show version", CmdKey: "show_version", Text: "out"}

	_, err := NewLLMTier(&llm.Scripted{Responses: []string{"not json at all"}}, trail).
		Extract(context.Background(), req)
	assert.ErrorIs(t, err, llm.ErrNoJSON)

	_, err = NewLLMTier(&llm.Scripted{Responses: []string{`{"summary": "no status here"}`}}, trail).
		Extract(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no status")

	_, err = NewLLMTier(&llm.Scripted{Responses: []string{`{"status": {"value": "up"}}`}}, trail).
		Extract(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no summary")
}

func TestLLMTierNotAvailable(t *testing.T) {
	tier := NewLLMTier(nil, nil)
	_, err := tier.Extract(context.Background(), Request{Text: "output"})
	assert.ErrorIs(t, err, ErrNotAvailable)

	tier = NewLLMTier(&llm.Scripted{Responses: []string{"{}"}}, nil)
	_, err = tier.Extract(context.Background(), Request{Command: "show version", Text: "   "})
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestLLMTierTruncatesPayload(t *testing.T) {
	var userContent string
	client := &llm.Scripted{Fn: func(messages []llm.Message) (string, error) {
		for _, m := range messages {
			if m.Role == llm.RoleUser {
				userContent = m.Content
			}
		}
		return `{"summary": "ok", "status": {"value": "unknown"}}`, nil
	}}

	text := strings.Repeat("A", maxExtractInput) + "TAIL"
	_, err := NewLLMTier(client, nil).Extract(context.Background(), Request{
		Host:    "r1",
		Command: "show logging",
		CmdKey:  "show_logging",
		Text:    text,
	})
	require.NoError(t, err)
	assert.NotContains(t, userContent, "TAIL")
	assert.Contains(t, userContent, `"command": "show logging"`)
	assert.Contains(t, userContent, `"platform_hint"`)
}

func TestMCPTierRequiresText(t *testing.T) {
	tier := NewMCPTier(configForTest())
	_, err := tier.Extract(context.Background(), Request{Command: "show version"})
	assert.ErrorIs(t, err, ErrNotAvailable)
}
