// Package reason runs the per-device analysis stage. Each host's facts
// document goes to the chat model together with its capture-plan row
// and any knowledge snippets; the reply is decoded, checked against the
// facts it cites as evidence, and merged into analysis/per_device.json.
// Ungrounded claims are dropped, never repaired. A host whose model
// call fails still gets a skeleton entry so the fleet view stays
// complete.
package reason

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"auspex/internal/audit"
	"auspex/internal/facts"
	"auspex/internal/knowledge"
	"auspex/internal/llm"
	"auspex/internal/logging"
	"auspex/internal/validate"
	"auspex/internal/workspace"
)

// Analysis is one device's assessment. Every ok, suspect, and finding
// entry that survives validation is backed by an evidence ref that
// resolves inside the host's own facts document.
type Analysis struct {
	Hostname            string        `json:"hostname"`
	Platform            string        `json:"platform"`
	SignalsSeen         []string      `json:"signals_seen"`
	Status              string        `json:"status"`
	StatusReason        string        `json:"status_reason"`
	OK                  []Observation `json:"ok"`
	Suspect             []Observation `json:"suspect"`
	Findings            []Finding     `json:"findings"`
	RecommendedShowCmds []string      `json:"recommended_show_cmds"`
	OptionalActiveCmds  []string      `json:"optional_active_cmds"`
}

// Observation is one healthy or suspicious line item.
type Observation struct {
	Summary     string                `json:"summary"`
	EvidenceRef *validate.EvidenceRef `json:"evidence_ref,omitempty"`
}

// Finding is a signal-level observation with a severity. The evidence
// ref is nil only on the synthetic meta finding a skeleton carries.
type Finding struct {
	Signal      string                `json:"signal"`
	Severity    string                `json:"severity"`
	Summary     string                `json:"summary"`
	EvidenceRef *validate.EvidenceRef `json:"evidence_ref,omitempty"`
}

// Document is the persisted per-device artifact.
type Document struct {
	GeneratedAt int64               `json:"generated_at"`
	Model       string              `json:"model"`
	Devices     map[string]Analysis `json:"devices"`
}

// Load reads the canonical per-device document.
func Load(paths workspace.Paths) (*Document, error) {
	var doc Document
	if err := workspace.ReadJSON(paths.PerDeviceFile, &doc); err != nil {
		return nil, fmt.Errorf("load per-device analysis: %w", err)
	}
	return &doc, nil
}

// Options tune an analysis run.
type Options struct {
	// PromptBudget caps the facts JSON embedded per prompt, in bytes.
	PromptBudget int

	// AllowActiveProbes permits ping and traceroute suggestions in
	// optional_active_cmds. Recommended show commands never carry them.
	AllowActiveProbes bool

	// Concurrency caps parallel per-host model calls.
	Concurrency int
}

// Analyzer drives per-device analysis over the facts documents.
type Analyzer struct {
	paths       workspace.Paths
	client      llm.Client
	know        *knowledge.Store
	trail       *audit.Trail
	allowActive bool
	budget      int
	concurrency int
	log         *logging.Logger
}

// NewAnalyzer wires the stage. A nil client is valid: every host then
// gets the fallback skeleton. A nil knowledge store just means no
// snippets in the prompt.
func NewAnalyzer(paths workspace.Paths, client llm.Client, know *knowledge.Store, trail *audit.Trail, opts Options) *Analyzer {
	if opts.PromptBudget < 1 {
		opts.PromptBudget = 45000
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	return &Analyzer{
		paths:       paths,
		client:      client,
		know:        know,
		trail:       trail,
		allowActive: opts.AllowActiveProbes,
		budget:      opts.PromptBudget,
		concurrency: opts.Concurrency,
		log:         logging.GetLogger("reason"),
	}
}

// Run analyzes every host that has a facts document, or only the
// requested hosts when the list is non-empty. Scoped runs write a
// separate artifact and leave the canonical per_device.json untouched.
// It returns the written document and its path.
func (a *Analyzer) Run(ctx context.Context, hosts []string) (*Document, string, error) {
	known, err := facts.ListHosts(a.paths)
	if err != nil {
		return nil, "", err
	}

	scoped := len(hosts) > 0
	scope := known
	if scoped {
		want := map[string]bool{}
		for _, h := range hosts {
			if h = strings.TrimSpace(h); h != "" {
				want[h] = true
			}
		}
		scope = nil
		for _, h := range known {
			if want[h] {
				scope = append(scope, h)
			}
		}
	}

	analyzed := make(map[string]Analysis, len(scope))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, host := range scope {
		g.Go(func() error {
			an, err := a.analyzeHost(gctx, host)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", host, err)
			}
			mu.Lock()
			analyzed[host] = an
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	if scoped {
		return a.writeScoped(hosts, analyzed)
	}
	return a.writeMerged(analyzed)
}

// writeMerged folds the analyzed hosts into the canonical document,
// preserving entries for hosts outside this run.
func (a *Analyzer) writeMerged(analyzed map[string]Analysis) (*Document, string, error) {
	devices := make(map[string]Analysis, len(analyzed))
	var prev Document
	if err := workspace.ReadJSON(a.paths.PerDeviceFile, &prev); err == nil {
		for host, an := range prev.Devices {
			devices[host] = an
		}
	}
	for host, an := range analyzed {
		devices[host] = an
	}

	doc := &Document{
		GeneratedAt: time.Now().Unix(),
		Model:       a.modelName(),
		Devices:     devices,
	}
	if err := workspace.WriteJSON(a.paths.PerDeviceFile, doc); err != nil {
		return nil, "", err
	}
	a.log.Info("per-device analysis written: hosts=%d path=%s",
		len(devices), a.paths.Rel(a.paths.PerDeviceFile))
	return doc, a.paths.PerDeviceFile, nil
}

// writeScoped writes a host-scoped artifact named by a digest of the
// analyzed set, so repeat runs over the same hosts overwrite their own
// file and never the canonical one.
func (a *Analyzer) writeScoped(requested []string, analyzed map[string]Analysis) (*Document, string, error) {
	names := make([]string, 0, len(analyzed))
	for host := range analyzed {
		names = append(names, host)
	}
	if len(names) == 0 {
		for _, h := range requested {
			if h = strings.TrimSpace(h); h != "" {
				names = append(names, h)
			}
		}
	}

	doc := &Document{
		GeneratedAt: time.Now().Unix(),
		Model:       a.modelName(),
		Devices:     analyzed,
	}
	path := a.paths.ScopedPerDevicePath(scopeID(names))
	if err := workspace.WriteJSON(path, doc); err != nil {
		return nil, "", err
	}
	a.log.Info("scoped per-device analysis written: hosts=%d path=%s",
		len(analyzed), a.paths.Rel(path))
	return doc, path, nil
}

func (a *Analyzer) modelName() string {
	if a.client == nil {
		return "none"
	}
	return a.client.Model()
}

// scopeID derives a stable 8-hex id from a host set.
func scopeID(hosts []string) string {
	sorted := append([]string(nil), hosts...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, "|")))
	return fmt.Sprintf("%x", sum)[:8]
}
