// Package pipeline sequences the analysis stages over one workspace:
// split, parse, facts, reason, correlate. Stages are gated on artifact
// freshness unless forced, and a workspace admits one run at a time.
//
// The first three stages guard artifact integrity, so their errors
// abort the run. The two analysis stages degrade instead: a failure
// there leaves a skeleton or the previous artifact in place and the
// run continues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"auspex/internal/audit"
	"auspex/internal/config"
	"auspex/internal/correlate"
	"auspex/internal/extract"
	"auspex/internal/facts"
	"auspex/internal/freshness"
	"auspex/internal/knowledge"
	"auspex/internal/llm"
	"auspex/internal/logging"
	"auspex/internal/metrics"
	"auspex/internal/parser"
	"auspex/internal/reason"
	"auspex/internal/splitter"
	"auspex/internal/trust"
	"auspex/internal/workspace"
)

// ErrBusy reports that a run is already in flight for this workspace.
var ErrBusy = errors.New("analysis run already in progress")

// Options select what a run covers.
type Options struct {
	// Hosts restricts the run to a subset. Empty means the full fleet.
	Hosts []string `json:"hosts,omitempty"`

	// Force bypasses freshness gating on every stage.
	Force bool `json:"force"`

	// SkipLLM runs without model calls: extraction stops at the
	// deterministic tiers and the analysis stages write skeletons.
	SkipLLM bool `json:"skip_llm"`

	// Until stops the run after the named stage (split, parse, facts,
	// reason, correlate). Empty runs the full sequence. Stages always
	// run in dependency order; there is no way to run a later stage
	// without its inputs.
	Until string `json:"until,omitempty"`
}

// StageResult records what one stage did.
type StageResult struct {
	Ran        bool   `json:"ran"`
	Skipped    bool   `json:"skipped"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Result summarizes one run. It is also the run metadata written to
// meta/run_<id>.json.
type Result struct {
	RunID     string                 `json:"run_id"`
	Options   Options                `json:"options"`
	Stages    map[string]StageResult `json:"stages"`
	Artifacts map[string]string      `json:"artifacts"`
	Versions  map[string]int         `json:"versions"`
}

// Pipeline drives the stages against one workspace.
type Pipeline struct {
	paths   workspace.Paths
	cfg     *config.Config
	client  llm.Client
	trail   *audit.Trail
	know    *knowledge.Store
	trusted *trust.List
	gate    *freshness.Gate
	tracer  trace.Tracer
	log     *logging.Logger
	busy    atomic.Bool
}

// New wires the stages. A nil client means no LLM anywhere: extraction
// keeps its deterministic tiers and reason/correlate write skeletons.
func New(paths workspace.Paths, cfg *config.Config, client llm.Client, trail *audit.Trail) (*Pipeline, error) {
	trusted, err := trust.Load(cfg.TrustFile)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		paths:   paths,
		cfg:     cfg,
		client:  client,
		trail:   trail,
		know:    knowledge.NewStore(paths, cfg.Knowledge, client),
		trusted: trusted,
		gate:    freshness.NewGate(paths, time.Duration(cfg.CacheTTLMinutes)*time.Minute),
		tracer:  otel.Tracer("pipeline"),
		log:     logging.GetLogger("pipeline"),
	}, nil
}

// Run executes the stage sequence and returns the run summary. Only
// one run may be active per Pipeline; concurrent callers get ErrBusy.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Until != "" && !validStage(opts.Until) {
		return nil, fmt.Errorf("unknown stage %q", opts.Until)
	}
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer p.busy.Store(false)

	opts.Hosts = normalizeHosts(opts.Hosts)

	runID := uuid.NewString()
	p.trail.SetRunID(runID)
	p.trail.RunStart(opts.Hosts, opts.Force)
	metrics.Default().RunStarted()
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Bool("run.force", opts.Force),
		attribute.Int("run.scoped_hosts", len(opts.Hosts)),
	))
	defer span.End()

	res := &Result{
		RunID:     runID,
		Options:   opts,
		Stages:    map[string]StageResult{},
		Artifacts: map[string]string{},
		Versions:  map[string]int{"facts": facts.Version},
	}

	err := p.runStages(ctx, res, opts)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "run aborted")
	}
	metrics.Default().RunFinished(outcome)
	p.trail.RunComplete(outcome, time.Since(start))
	p.writeMeta(res)
	if err != nil {
		return nil, err
	}
	p.log.Info("run %s complete in %s", runID, time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (p *Pipeline) runStages(ctx context.Context, res *Result, opts Options) error {
	hosts := opts.Hosts
	scoped := len(hosts) > 0

	err := p.stage(ctx, res, "split",
		p.hostGate(opts.Force, hosts, p.captureHosts, p.gate.MDIndexFresh),
		func(ctx context.Context) error {
			_, err := splitter.New(p.paths, p.trail).Run(ctx, hosts)
			return err
		})
	if err != nil {
		return err
	}
	res.Artifacts["md_index_summary"] = filepath.Join(p.paths.MetaDir, "md_index_summary.json")
	if opts.Until == "split" {
		return nil
	}

	err = p.stage(ctx, res, "parse",
		p.hostGate(opts.Force, hosts, p.indexedHosts, p.gate.ParsedFresh),
		func(ctx context.Context) error {
			_, err := parser.NewRunner(p.paths, parser.New()).Run(ctx, hosts)
			return err
		})
	if err != nil {
		return err
	}
	res.Artifacts["parse_coverage"] = filepath.Join(p.paths.AuditDir, "coverage.json")
	if opts.Until == "parse" {
		return nil
	}

	err = p.stage(ctx, res, "facts",
		p.hostGate(opts.Force, hosts, p.indexedHosts, p.gate.FactsFresh),
		func(ctx context.Context) error {
			chain, done := p.extractChain(opts)
			defer done()
			_, err := facts.NewBuilder(p.paths, chain, p.trail, p.cfg.HostConcurrency).Run(ctx, hosts)
			return err
		})
	if err != nil {
		return err
	}
	res.Artifacts["facts_summary"] = p.paths.FactsSummaryFile
	if opts.Until == "facts" {
		return nil
	}

	var perDev *reason.Document
	err = p.stage(ctx, res, "reason",
		p.artifactGate(opts.Force, scoped, p.gate.PerDeviceFresh),
		func(ctx context.Context) error {
			analyzer := reason.NewAnalyzer(p.paths, p.runClient(opts), p.know, p.trail, reason.Options{
				PromptBudget:      p.cfg.LLM.PromptBudget,
				AllowActiveProbes: p.cfg.AllowActiveProbes,
				Concurrency:       p.cfg.HostConcurrency,
			})
			doc, path, err := analyzer.Run(ctx, hosts)
			if err != nil {
				return err
			}
			perDev = doc
			res.Artifacts["per_device"] = path
			return nil
		})
	if err != nil {
		p.log.Warn("%v; continuing", err)
	}
	if _, ok := res.Artifacts["per_device"]; !ok && !scoped {
		res.Artifacts["per_device"] = p.paths.PerDeviceFile
	}
	if opts.Until == "reason" {
		return nil
	}

	// Single-host scopes are interactive triage; a fleet report built
	// from one device would only mislead.
	if scoped && len(hosts) == 1 {
		p.trail.StageSkipped("correlate", "single-host scope")
		metrics.Default().StageSkipped("correlate")
		res.Stages["correlate"] = StageResult{Skipped: true, Reason: "single-host scope"}
		return nil
	}

	err = p.stage(ctx, res, "correlate",
		p.artifactGate(opts.Force, scoped, p.gate.CrossDeviceFresh),
		func(ctx context.Context) error {
			corr := correlate.NewCorrelator(p.paths, p.runClient(opts), p.trusted, p.trail, correlate.Options{
				AllowActiveProbes: p.cfg.AllowActiveProbes,
			})
			var runErr error
			if perDev != nil {
				_, runErr = corr.RunWith(ctx, perDev)
			} else {
				_, runErr = corr.Run(ctx)
			}
			return runErr
		})
	if err != nil {
		p.log.Warn("%v; continuing", err)
	}
	res.Artifacts["cross_device"] = p.paths.CrossDeviceFile
	return nil
}

// stage runs one gated stage and records its outcome. A skip returns
// nil; errors come back wrapped with the stage name.
func (p *Pipeline) stage(ctx context.Context, res *Result, name string, fresh func() (bool, string), run func(context.Context) error) error {
	ok, why := fresh()
	if ok {
		p.trail.StageSkipped(name, why)
		metrics.Default().StageSkipped(name)
		res.Stages[name] = StageResult{Skipped: true, Reason: why}
		p.log.Info("%s: skipped (%s)", name, why)
		return nil
	}
	p.log.Debug("%s: %s", name, why)

	p.trail.StageStart(name)
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := run(ctx)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage failed")
		p.trail.Error(name, err)
		metrics.Default().StageFailed(name)
		res.Stages[name] = StageResult{Ran: true, Reason: err.Error(), DurationMS: dur.Milliseconds()}
		return fmt.Errorf("%s stage: %w", name, err)
	}
	p.trail.StageComplete(name, dur, nil)
	metrics.Default().StageRan(name, dur)
	res.Stages[name] = StageResult{Ran: true, DurationMS: dur.Milliseconds()}
	p.log.Info("%s: done in %s", name, dur.Round(time.Millisecond))
	return nil
}

// hostGate reports freshness across every host the stage would touch.
// Any stale host makes the whole stage run; the stage itself only
// recomputes what its inputs call for.
func (p *Pipeline) hostGate(force bool, hosts []string, list func() ([]string, error), check func(string) (bool, string)) func() (bool, string) {
	return func() (bool, string) {
		if force {
			return false, "forced"
		}
		all, err := list()
		if err != nil {
			return false, "input listing failed"
		}
		scope := intersect(all, hosts)
		if len(scope) == 0 {
			return false, "no inputs"
		}
		for _, h := range scope {
			ok, why := check(h)
			if !ok {
				return false, h + ": " + why
			}
		}
		return true, "fresh"
	}
}

// artifactGate guards the single-artifact analysis stages. Scoped runs
// always recompute: their artifacts are keyed to the host subset and
// the canonical mtimes say nothing about them.
func (p *Pipeline) artifactGate(force, scoped bool, check func() (bool, string)) func() (bool, string) {
	return func() (bool, string) {
		if force {
			return false, "forced"
		}
		if scoped {
			return false, "scoped run"
		}
		return check()
	}
}

func (p *Pipeline) captureHosts() ([]string, error) {
	return splitter.CaptureHosts(p.paths)
}

func (p *Pipeline) indexedHosts() ([]string, error) {
	return splitter.ListHosts(p.paths)
}

func (p *Pipeline) runClient(opts Options) llm.Client {
	if opts.SkipLLM {
		return nil
	}
	return p.client
}

// extractChain assembles the fact-extraction fallback chain for one
// run: parser, then the MCP hook when configured, then the LLM.
func (p *Pipeline) extractChain(opts Options) (*extract.Chain, func()) {
	providers := []extract.Provider{extract.NewParserTier(parser.New())}
	cleanup := func() {}
	if p.cfg.Extractor.Enabled {
		mcp := extract.NewMCPTier(p.cfg.Extractor)
		providers = append(providers, mcp)
		cleanup = func() { _ = mcp.Close() }
	}
	if client := p.runClient(opts); client != nil {
		providers = append(providers, extract.NewLLMTier(client, p.trail))
	}
	return extract.NewChain(p.trail, providers...), cleanup
}

func (p *Pipeline) writeMeta(res *Result) {
	path := filepath.Join(p.paths.MetaDir, "run_"+res.RunID+".json")
	if err := workspace.WriteJSON(path, res); err != nil {
		p.log.Warn("write run meta: %v", err)
	}
}

func validStage(name string) bool {
	switch name {
	case "split", "parse", "facts", "reason", "correlate":
		return true
	}
	return false
}

func normalizeHosts(hosts []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

func intersect(all, requested []string) []string {
	if len(requested) == 0 {
		return all
	}
	want := map[string]bool{}
	for _, h := range requested {
		want[h] = true
	}
	var out []string
	for _, h := range all {
		if want[h] {
			out = append(out, h)
		}
	}
	return out
}
