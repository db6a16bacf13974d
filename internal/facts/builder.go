package facts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"auspex/internal/audit"
	"auspex/internal/extract"
	"auspex/internal/logging"
	"auspex/internal/parser"
	"auspex/internal/showcli"
	"auspex/internal/splitter"
	"auspex/internal/workspace"
)

// Builder runs the extraction chain over every indexed command block
// and writes one facts document per host plus the cross-host summary.
type Builder struct {
	paths       workspace.Paths
	chain       *extract.Chain
	trail       *audit.Trail
	concurrency int
	log         *logging.Logger
}

// NewBuilder wires a builder over an existing workspace. concurrency
// caps parallel per-host work; values below one fall back to four.
func NewBuilder(paths workspace.Paths, chain *extract.Chain, trail *audit.Trail, concurrency int) *Builder {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Builder{
		paths:       paths,
		chain:       chain,
		trail:       trail,
		concurrency: concurrency,
		log:         logging.GetLogger("facts"),
	}
}

// Run builds facts for the requested hosts, or for every indexed host
// when hosts is empty. The block indexes are the authoritative record
// of what the capture holds: requested hosts without an index are
// skipped, and leftover artifacts for unindexed hosts are quarantined
// before anything is written.
func (b *Builder) Run(ctx context.Context, hosts []string) (*Summary, error) {
	indexed, err := splitter.ListHosts(b.paths)
	if err != nil {
		return nil, err
	}
	if len(indexed) > 0 {
		b.rotateStale(indexed)
	}

	scope := indexed
	if len(hosts) > 0 {
		want := map[string]bool{}
		for _, h := range hosts {
			want[h] = true
		}
		scope = nil
		for _, h := range indexed {
			if want[h] {
				scope = append(scope, h)
			}
		}
	}

	summary := &Summary{
		GeneratedAt: time.Now().Unix(),
		Hosts:       map[string]HostSummary{},
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, host := range scope {
		g.Go(func() error {
			doc, err := b.buildHost(gctx, host)
			if err != nil {
				return fmt.Errorf("build facts for %s: %w", host, err)
			}
			mu.Lock()
			summary.Hosts[host] = HostSummary{
				Commands: doc.Coverage.TotalCmds,
				Enriched: doc.Coverage.TotalEnriched,
				ParserOK: doc.Coverage.ParserOK,
				LLMOK:    doc.Coverage.LLMOK,
				Signals:  len(doc.SignalsSeen),
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, hs := range summary.Hosts {
		summary.Totals.Hosts++
		summary.Totals.Commands += hs.Commands
		summary.Totals.Enriched += hs.Enriched
	}
	if err := workspace.WriteJSON(b.paths.FactsSummaryFile, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// buildHost enriches one host. Command keys come from the block index
// alone: an index with zero blocks yields an empty-commands document
// and leftover parse artifacts never back-fill it.
func (b *Builder) buildHost(ctx context.Context, host string) (*HostFacts, error) {
	blocks, err := splitter.LoadIndex(b.paths, host)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.CollectArtifacts(b.paths, host)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		parsed = map[string]string{}
	}

	byKey := map[string]splitter.Block{}
	for _, blk := range blocks {
		if blk.CmdKey == "" {
			continue
		}
		byKey[blk.CmdKey] = blk
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := &HostFacts{
		Hostname:     host,
		FactsVersion: Version,
		Commands:     map[string]CommandFacts{},
		Notes:        Notes{Providers: b.chain.Providers()},
	}

	var commands []string
	var parsedPlatforms []string
	var blockPlatforms []string

	for _, key := range keys {
		blk := byKey[key]
		cmd := strings.TrimSpace(blk.SanitizedCommand)
		if cmd == "" {
			cmd = strings.TrimSpace(strings.ReplaceAll(key, "_", " "))
		}
		if cmd == "" {
			cmd = "(unknown)"
		}
		commands = append(commands, cmd)
		plat := showcli.NormalizePlatform(blk.PlatformHint)
		blockPlatforms = append(blockPlatforms, plat)
		doc.Coverage.TotalCmds++

		req := extract.Request{
			Host:       host,
			Platform:   plat,
			Command:    cmd,
			CmdKey:     key,
			Text:       readText(blk.TextPath),
			ParsedPath: parsed[key],
		}
		data, source, xerr := b.chain.Extract(ctx, req)
		if req.ParsedPath != "" && source != "parser" {
			// An artifact existed but carried nothing usable.
			doc.Coverage.ParserErr++
		}
		if xerr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(xerr, extract.ErrExhausted) {
				b.log.Debug("facts %s/%s: %v", host, key, xerr)
				continue
			}
			return nil, xerr
		}

		switch source {
		case "parser":
			doc.Coverage.ParserOK++
			if req.ParsedPath != "" {
				parsedPlatforms = append(parsedPlatforms, platformFromArtifact(req.ParsedPath))
			}
		case "mcp":
			doc.Coverage.MCPOK++
			doc.Notes.GapFillUsed = true
		case "llm":
			doc.Coverage.LLMOK++
			doc.Notes.GapFillUsed = true
		}
		doc.Coverage.TotalEnriched++

		entry := CommandFacts{
			Command:          cmd,
			Topic:            showcli.Topic(cmd),
			PlatformHint:     plat,
			Source:           source,
			EvidenceTextPath: b.paths.Rel(blk.TextPath),
			ParserOK:         source == "parser",
			Data:             data,
		}
		if source == "parser" && req.ParsedPath != "" {
			entry.ParsedPath = b.paths.Rel(req.ParsedPath)
		}
		doc.Commands[key] = entry
	}

	doc.SignalsSeen = showcli.SignalTags(commands)
	doc.PlatformHint = rollupPlatform(parsedPlatforms, blockPlatforms)
	doc.GeneratedAt = time.Now().Unix()

	if err := workspace.WriteJSON(b.paths.HostFactsPath(host), doc); err != nil {
		return nil, err
	}
	b.log.Info("facts %s: %d/%d commands enriched (parser %d, mcp %d, llm %d)",
		host, doc.Coverage.TotalEnriched, doc.Coverage.TotalCmds,
		doc.Coverage.ParserOK, doc.Coverage.MCPOK, doc.Coverage.LLMOK)
	return doc, nil
}

// readText loads a block's output text. Missing or unreadable files
// yield empty text; the chain decides per command what that means.
func readText(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// platformFromArtifact recovers the platform from a parse artifact
// file name (<platform>__<cmd_key>.json).
func platformFromArtifact(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "__"); i > 0 {
		return showcli.NormalizePlatform(base[:i])
	}
	return showcli.PlatformUnknown
}

// rollupPlatform picks the host-level platform hint: most common
// platform among the parse artifacts that supplied data, then the
// block hints, then unknown.
func rollupPlatform(parsed, blocks []string) string {
	if p := mostCommon(parsed); p != "" {
		return p
	}
	var known []string
	for _, p := range blocks {
		if p != showcli.PlatformUnknown {
			known = append(known, p)
		}
	}
	if p := mostCommon(known); p != "" {
		return p
	}
	return showcli.PlatformUnknown
}

// mostCommon returns the modal value, breaking ties toward the
// lexicographically smallest so reruns stay deterministic.
func mostCommon(values []string) string {
	counts := map[string]int{}
	best := ""
	for _, v := range values {
		counts[v]++
		if best == "" || counts[v] > counts[best] || (counts[v] == counts[best] && v < best) {
			best = v
		}
	}
	return best
}
