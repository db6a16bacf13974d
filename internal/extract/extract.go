// Package extract turns one command's raw CLI output into the shared
// facts document: summary, status, metrics, tables, evidence.
//
// Three tiers can produce that document: the deterministic parser, an
// optional external MCP extractor, and the LLM fallback. The Chain
// runs them in that order and the first non-empty result wins; the
// winning tier's name becomes the command's source tag in facts. When
// every tier fails the command is omitted from facts entirely rather
// than recorded with placeholder data.
package extract

import (
	"context"
	"errors"

	"auspex/internal/audit"
	"auspex/internal/logging"
)

// Request carries one captured command through the provider chain.
type Request struct {
	Host     string
	Platform string
	// Command is the sanitized command line.
	Command string
	CmdKey  string
	// Text is the raw block output.
	Text string
	// ParsedPath is the parse-stage artifact for this command, empty
	// when the parse stage produced none.
	ParsedPath string
}

// Provider is one extraction tier.
type Provider interface {
	// Name tags documents produced by this tier (parser, mcp, llm).
	Name() string
	// Extract builds the facts document for req, or fails.
	Extract(ctx context.Context, req Request) (map[string]interface{}, error)
}

// ErrNotAvailable means a tier cannot serve this request at all: no
// registered parser, no configured client, empty input. The chain
// moves on without logging.
var ErrNotAvailable = errors.New("extraction not available")

// ErrExhausted means every tier failed for a command.
var ErrExhausted = errors.New("all extraction providers failed")

// Chain is the ordered provider list.
type Chain struct {
	providers []Provider
	trail     *audit.Trail
	log       *logging.Logger
}

// NewChain builds a chain over the given tiers, in order. Callers
// include only the tiers that are actually configured.
func NewChain(trail *audit.Trail, providers ...Provider) *Chain {
	kept := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Chain{
		providers: kept,
		trail:     trail,
		log:       logging.GetLogger("extract"),
	}
}

// Providers lists the tier names in chain order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Extract runs the chain for one command and returns the document and
// the name of the tier that produced it. Every attempt is recorded on
// the audit trail. All tiers failing (or an empty chain) yields
// ErrExhausted.
func (c *Chain) Extract(ctx context.Context, req Request) (map[string]interface{}, string, error) {
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		doc, err := p.Extract(ctx, req)
		if err != nil {
			if !errors.Is(err, ErrNotAvailable) {
				c.log.Debug("%s: %s extraction failed for %q: %v", req.Host, p.Name(), req.Command, err)
			}
			c.trail.ProviderResult(req.Host, req.CmdKey, p.Name(), false)
			continue
		}
		if len(doc) == 0 {
			c.trail.ProviderResult(req.Host, req.CmdKey, p.Name(), false)
			continue
		}
		c.trail.ProviderResult(req.Host, req.CmdKey, p.Name(), true)
		return doc, p.Name(), nil
	}
	return nil, "", ErrExhausted
}
