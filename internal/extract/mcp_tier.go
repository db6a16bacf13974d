package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"auspex/internal/config"
	"auspex/internal/llm"
	"auspex/internal/logging"
)

// MCPTier calls an external extractor over MCP, between the parser and
// the LLM fallback. The server is site-specific (vendor tooling, TextFSM
// farms, whatever the operator runs); its tool receives the command and
// raw text and must answer with the shared document shape. Anything
// else fails the tier and the chain moves on.
type MCPTier struct {
	cfg config.ExtractorConfig
	log *logging.Logger

	mu     sync.Mutex
	client *mcpclient.Client
}

// NewMCPTier builds the MCP tier from an enabled extractor config.
func NewMCPTier(cfg config.ExtractorConfig) *MCPTier {
	return &MCPTier{
		cfg: cfg,
		log: logging.GetLogger("extract"),
	}
}

// Name implements Provider.
func (t *MCPTier) Name() string { return "mcp" }

// Extract implements Provider.
func (t *MCPTier) Extract(ctx context.Context, req Request) (map[string]interface{}, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrNotAvailable
	}
	c, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(t.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	call := mcp.CallToolRequest{}
	call.Params.Name = t.cfg.Tool
	call.Params.Arguments = map[string]interface{}{
		"host":     req.Host,
		"platform": req.Platform,
		"command":  req.Command,
		"text":     req.Text,
	}
	res, err := c.CallTool(callCtx, call)
	if err != nil {
		// The session may be gone; drop it so the next call redials.
		t.reset()
		return nil, fmt.Errorf("extractor call %q: %w", t.cfg.Tool, err)
	}
	text := textContent(res)
	if res.IsError {
		return nil, fmt.Errorf("extractor tool error: %s", strings.TrimSpace(text))
	}

	var doc map[string]interface{}
	if err := llm.DecodeLoose(text, &doc); err != nil {
		return nil, fmt.Errorf("extractor reply for %q: %w", req.Command, err)
	}
	if !sharedShape(doc) {
		return nil, errors.New("extractor reply lacks summary/status.value")
	}
	return doc, nil
}

// Close shuts the extractor session down.
func (t *MCPTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *MCPTier) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		_ = t.client.Close()
		t.client = nil
	}
}

// connect dials the configured transport once and reuses the session.
func (t *MCPTier) connect(ctx context.Context) (*mcpclient.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}

	var (
		c   *mcpclient.Client
		err error
	)
	switch {
	case t.cfg.Command != "":
		c, err = mcpclient.NewStdioMCPClient(t.cfg.Command, os.Environ(), t.cfg.Args...)
	case t.cfg.URL != "":
		c, err = mcpclient.NewStreamableHttpClient(t.cfg.URL)
		if err == nil {
			err = c.Start(ctx)
		}
	default:
		return nil, errors.New("extractor has neither command nor url")
	}
	if err != nil {
		return nil, fmt.Errorf("start extractor client: %w", err)
	}

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "auspex", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, init); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize extractor: %w", err)
	}

	t.log.Info("extractor session up (tool %q)", t.cfg.Tool)
	t.client = c
	return c, nil
}

func textContent(res *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func sharedShape(doc map[string]interface{}) bool {
	if _, ok := doc["summary"]; !ok {
		return false
	}
	status, ok := doc["status"].(map[string]interface{})
	if !ok {
		return false
	}
	v, _ := status["value"].(string)
	return v != ""
}
