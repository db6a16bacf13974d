package extract

import (
	"context"
	"strings"

	"auspex/internal/parser"
)

// ParserTier serves documents from the deterministic parse stage. The
// artifact the stage already wrote is preferred; when it is missing or
// unreadable the tier parses the block text in-memory, so facts does
// not depend on the parse stage having run first.
type ParserTier struct {
	parser *parser.Parser
}

// NewParserTier wraps p as the first extraction tier.
func NewParserTier(p *parser.Parser) *ParserTier {
	return &ParserTier{parser: p}
}

// Name implements Provider.
func (t *ParserTier) Name() string { return "parser" }

// Extract implements Provider.
func (t *ParserTier) Extract(ctx context.Context, req Request) (map[string]interface{}, error) {
	if req.ParsedPath != "" {
		art, err := parser.LoadArtifact(req.ParsedPath)
		if err == nil && len(art.Data) > 0 {
			return art.Data, nil
		}
	}
	if req.Command == "" || strings.TrimSpace(req.Text) == "" {
		return nil, ErrNotAvailable
	}
	return t.parser.Parse(req.Platform, req.Command, req.Text)
}
