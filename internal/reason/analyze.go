package reason

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auspex/internal/facts"
	"auspex/internal/llm"
	"auspex/internal/validate"
)

// analyzeHost runs one host end to end: prompt, model call, decode,
// grounding validation, identity backfill, status rollup.
func (a *Analyzer) analyzeHost(ctx context.Context, host string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	doc, err := facts.Load(a.paths, host)
	if err != nil {
		return Analysis{}, err
	}
	resolver, err := validate.NewResolver(doc)
	if err != nil {
		return Analysis{}, fmt.Errorf("facts resolver for %s: %w", host, err)
	}

	snippets := a.know.Lookup(ctx, doc.PlatformHint, doc.SignalsSeen)
	user := buildUserMessage(host, doc, planRow(a.paths, host), snippets, a.budget)
	a.trail.WriteFile(host+"__per_device_prompt.txt",
		[]byte("--- SYSTEM ---\n"+systemPrompt+"\n\n--- USER ---\n"+user+"\n"))

	raw := a.chat(ctx, host, user)
	if raw != "" {
		a.trail.WriteFile(host+"__per_device_raw.json", []byte(raw))
	}

	var an Analysis
	if err := llm.DecodeLoose(raw, &an); err != nil {
		a.log.Warn("reason %s: %v; writing skeleton", host, err)
		return skeleton(doc, host), nil
	}

	a.groundAnalysis(&an, resolver, host)
	backfillIdentity(&an, doc, host)
	finishStatus(&an, doc)
	return an, nil
}

// chat calls the model at temperature zero. Any failure degrades to an
// empty reply; the caller substitutes the skeleton.
func (a *Analyzer) chat(ctx context.Context, host, user string) string {
	if a.client == nil {
		return ""
	}
	start := time.Now()
	raw, err := a.client.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}, 0)
	a.trail.LLMRequest("reason", host, a.client.Name(), a.client.Model(),
		len(systemPrompt)+len(user), len(raw), time.Since(start), err)
	if err != nil {
		a.log.Warn("reason %s: llm call failed: %v", host, err)
		return ""
	}
	return raw
}

// skeleton is the entry a host gets when no usable reply arrived. Its
// status stays unknown on purpose: deriving health from an absent
// analysis would report fiction. The meta finding carries no evidence
// ref and never goes through grounding.
func skeleton(doc *facts.HostFacts, host string) Analysis {
	signals := doc.SignalsSeen
	if signals == nil {
		signals = []string{}
	}
	return Analysis{
		Hostname:     host,
		Platform:     doc.PlatformHint,
		SignalsSeen:  signals,
		Status:       "unknown",
		StatusReason: "analysis unavailable",
		OK:           []Observation{},
		Suspect:      []Observation{},
		Findings: []Finding{{
			Signal:   "meta",
			Severity: "info",
			Summary:  "LLM output unavailable or not JSON",
		}},
		RecommendedShowCmds: []string{},
		OptionalActiveCmds:  []string{},
	}
}

// groundAnalysis drops every claim whose evidence ref does not resolve
// inside this host's facts and filters suggested commands through the
// safe-command policy. Nothing is rewritten to make it pass.
func (a *Analyzer) groundAnalysis(an *Analysis, resolver *validate.Resolver, host string) {
	drops := validate.NewDropLog("reason", host)

	ok := make([]Observation, 0, len(an.OK))
	for _, o := range an.OK {
		if pass, reason := checkRef(resolver, o.EvidenceRef); pass {
			ok = append(ok, o)
		} else {
			drops.Add("ok", "drop_ok:"+reason, o.Summary)
		}
	}
	an.OK = ok

	suspect := make([]Observation, 0, len(an.Suspect))
	for _, o := range an.Suspect {
		if pass, reason := checkRef(resolver, o.EvidenceRef); pass {
			suspect = append(suspect, o)
		} else {
			drops.Add("suspect", "drop_suspect:"+reason, o.Summary)
		}
	}
	an.Suspect = suspect

	findings := make([]Finding, 0, len(an.Findings))
	for _, f := range an.Findings {
		if pass, reason := checkRef(resolver, f.EvidenceRef); pass {
			findings = append(findings, f)
		} else {
			drops.Add("finding", "drop_finding:"+reason, f.Summary)
		}
	}
	an.Findings = findings

	an.RecommendedShowCmds = validate.FilterCommands(an.RecommendedShowCmds, false)
	an.OptionalActiveCmds = validate.FilterCommands(an.OptionalActiveCmds, a.allowActive)

	for _, d := range drops.Drops() {
		a.trail.ValidationDrop("reason", host, d.Kind, d.Reason, d.Detail)
	}
	if drops.Len() > 0 {
		a.log.Info("reason %s: dropped %d ungrounded entries", host, drops.Len())
	}
}

// checkRef tolerates an absent ref, treating it like a ref with missing
// fields.
func checkRef(r *validate.Resolver, ref *validate.EvidenceRef) (bool, string) {
	if ref == nil {
		return false, validate.RefMissingFields
	}
	return validate.CheckRef(r, *ref)
}

// backfillIdentity fills hostname, platform, and signals from the facts
// document when the model omitted them.
func backfillIdentity(an *Analysis, doc *facts.HostFacts, host string) {
	if strings.TrimSpace(an.Hostname) == "" {
		an.Hostname = host
	}
	if strings.TrimSpace(an.Platform) == "" {
		an.Platform = doc.PlatformHint
	}
	if len(an.SignalsSeen) == 0 {
		an.SignalsSeen = doc.SignalsSeen
	}
	if an.SignalsSeen == nil {
		an.SignalsSeen = []string{}
	}
}

// finishStatus keeps a definite model-assigned status and otherwise
// rolls one up from the surviving findings. Parser availability never
// feeds this; evidence means the host has command data at all.
func finishStatus(an *Analysis, doc *facts.HostFacts) {
	status := strings.ToLower(strings.TrimSpace(an.Status))
	if status != "" && status != "unknown" {
		an.Status = status
		return
	}
	an.Status = statusFromFindings(an.Findings, len(doc.Commands) > 0)
}

// statusFromFindings maps the worst surviving severity to a status.
func statusFromFindings(findings []Finding, hasEvidence bool) string {
	worst := 0
	for _, f := range findings {
		if r := sevRank(f.Severity); r > worst {
			worst = r
		}
	}
	switch {
	case worst >= 3:
		return "error"
	case worst == 2:
		return "degraded"
	case hasEvidence:
		return "healthy"
	default:
		return "unknown"
	}
}

func sevRank(severity string) int {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "error":
		return 3
	case "warn", "warning":
		return 2
	default:
		return 1
	}
}
