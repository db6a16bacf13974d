// Package facts assembles the per-host facts documents that feed the
// reasoning stages. Every indexed command block runs through the
// extraction provider chain; the winning document is recorded together
// with enough provenance to trace it back to the capture text. Hosts
// whose block index disappeared are quarantined, never silently reused.
package facts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"auspex/internal/workspace"
)

// Version is stamped into every facts document so downstream consumers
// can reject layouts they do not understand.
const Version = 1

// HostFacts is the enriched state of one device, keyed by command.
type HostFacts struct {
	Hostname     string                  `json:"hostname"`
	PlatformHint string                  `json:"platform_hint"`
	SignalsSeen  []string                `json:"signals_seen"`
	GeneratedAt  int64                   `json:"generated_at"`
	FactsVersion int                     `json:"facts_version"`
	Coverage     Coverage                `json:"coverage"`
	Commands     map[string]CommandFacts `json:"commands"`
	Notes        Notes                   `json:"notes"`
}

// CommandFacts is one command's extraction result plus provenance.
// ParsedPath is set only when a parse artifact supplied the data;
// EvidenceTextPath always points at the raw block text.
type CommandFacts struct {
	Command          string                 `json:"command"`
	Topic            string                 `json:"topic"`
	PlatformHint     string                 `json:"platform_hint"`
	Source           string                 `json:"source"`
	ParsedPath       string                 `json:"parsed_path"`
	EvidenceTextPath string                 `json:"evidence_text_path"`
	ParserOK         bool                   `json:"parser_ok"`
	Data             map[string]interface{} `json:"data"`
}

// Coverage counts provider outcomes for one host. TotalCmds includes
// commands that every tier failed on; TotalEnriched does not.
type Coverage struct {
	ParserOK      int `json:"parser_ok"`
	ParserErr     int `json:"parser_err"`
	MCPOK         int `json:"mcp_ok"`
	LLMOK         int `json:"llm_ok"`
	TotalCmds     int `json:"total_cmds"`
	TotalEnriched int `json:"total_enriched"`
}

// Notes records which providers were configured for the build and
// whether any non-deterministic tier actually supplied data.
type Notes struct {
	Providers   []string `json:"providers"`
	GapFillUsed bool     `json:"gap_fill_used"`
}

// Summary is the cross-host rollup written to facts_summary.json.
type Summary struct {
	GeneratedAt int64                  `json:"generated_at"`
	Hosts       map[string]HostSummary `json:"hosts"`
	Totals      Totals                 `json:"totals"`
}

// HostSummary is one host's line in the rollup.
type HostSummary struct {
	Commands int `json:"commands"`
	Enriched int `json:"enriched"`
	ParserOK int `json:"parser_ok"`
	LLMOK    int `json:"llm_ok"`
	Signals  int `json:"signals"`
}

// Totals aggregates the per-host lines.
type Totals struct {
	Hosts    int `json:"hosts"`
	Commands int `json:"commands"`
	Enriched int `json:"enriched"`
}

// Load reads one host's facts document.
func Load(paths workspace.Paths, host string) (*HostFacts, error) {
	var doc HostFacts
	if err := workspace.ReadJSON(paths.HostFactsPath(host), &doc); err != nil {
		return nil, fmt.Errorf("load facts for %s: %w", host, err)
	}
	return &doc, nil
}

// LoadSummary reads the cross-host rollup.
func LoadSummary(paths workspace.Paths) (*Summary, error) {
	var s Summary
	if err := workspace.ReadJSON(paths.FactsSummaryFile, &s); err != nil {
		return nil, fmt.Errorf("load facts summary: %w", err)
	}
	return &s, nil
}

// ListHosts returns every host that currently has a facts document,
// sorted. Quarantined snapshots and the summary file do not count.
func ListHosts(paths workspace.Paths) ([]string, error) {
	entries, err := os.ReadDir(paths.FactsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list facts hosts: %w", err)
	}
	summaryName := filepath.Base(paths.FactsSummaryFile)
	var hosts []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") {
			continue
		}
		if name == summaryName || !strings.HasSuffix(name, ".json") {
			continue
		}
		hosts = append(hosts, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(hosts)
	return hosts, nil
}
