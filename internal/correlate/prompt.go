package correlate

import (
	"encoding/json"
	"sort"

	"auspex/internal/reason"
	"auspex/internal/validate"
)

// systemPrompt pins the model to fleet-level correlation with strict
// JSON output and evidence paths that must resolve per host.
const systemPrompt = `You are a senior NOC service lead.
Inputs:
- per_device: list of per-device analyses (validated, evidence-backed)
- available_command_keys_by_host: map host -> valid commands.<cmd_key> keys

Your job: correlate across devices and produce an operator-ready summary that states BOTH:
  1) what is working, and
  2) what is broken or suspicious.

Hard rules:
- Use only devices present in the input; do NOT invent names.
- Every incident MUST include an "evidence" list; each item:
    {"host": "<hostname>", "path": "commands.<cmd_key>.<...>"}
  and MUST resolve to a real path in that host's facts.
- Output STRICT JSON only (no prose outside fields) with this schema:
{
  "network_summary": "<1-2 short lines. Sentence 1: overall status using counts. Sentence 2: one working highlight and one issue highlight, if any.>",
  "status_rollup": {"healthy": <int>, "degraded": <int>, "error": <int>, "unknown": <int>},
  "top_incidents": [
    {"scope": "pair" | "site" | "global",
     "summary": "<short finding>",
     "impact": "<who/what is affected>",
     "devices": ["<host>", "..."],
     "evidence": [{"host": "<host>", "path": "commands.<cmd_key>.<...>"}]}
  ],
  "notable_devices": [
    {"host": "<hostname>",
     "status": "healthy" | "degraded" | "error" | "unknown",
     "note": "<one line; mention positives and negatives when mixed>",
     "evidence": {"host": "<hostname>", "path": "commands.<cmd_key>.<...>"}}
  ],
  "remediation_themes": ["..."],
  "trusted_followup_cmds": ["show ..."],
  "unvalidated_followup_cmds": ["show ..."],
  "optional_active_probes": ["ping ...", "traceroute ..."],
  "task_status": "healthy" | "mixed" | "degraded" | "error" | "unknown"
}
Guidance:
- Derive status_rollup by counting per_device[].status exactly.
- Set task_status from the rollup: "healthy" if all healthy; "error" if any error; "degraded" if none error but any degraded; "mixed" for other mixes; "unknown" if all unknown.
- network_summary MUST be balanced: one sentence on overall counts; one sentence naming at least one working example (if any healthy) AND at least one issue (if any degraded/error). If nothing is degraded or error, say so.
- Choose up to 5 notable_devices (mix of best and worst). Each must include exactly one evidence path that exists for that host.
- For incidents, prefer concise, high-signal patterns (0-3 items). If you cannot provide valid evidence paths, return an empty list rather than guessing.
- Only propose read-only follow-ups (show ...) or safe probes (ping/traceroute). Never config, clear, reload, debug, copy, write, or monitor.
- Keep text brief and specific. Paths MUST start with commands.<cmd_key>. and use keys listed for that host.`

// deviceDigest is the compact per-device row embedded in the prompt.
// Full facts documents stay out of this stage's prompt; the model gets
// the analyses plus each host's valid command keys for evidence paths.
type deviceDigest struct {
	Hostname     string          `json:"hostname"`
	Status       string          `json:"status"`
	StatusReason string          `json:"status_reason"`
	SignalsSeen  []string        `json:"signals_seen"`
	Findings     []digestFinding `json:"findings"`
}

type digestFinding struct {
	Signal      string                `json:"signal"`
	Severity    string                `json:"severity"`
	Summary     string                `json:"summary"`
	EvidenceRef *validate.EvidenceRef `json:"evidence_ref,omitempty"`
}

type promptPayload struct {
	PerDevice                  []deviceDigest      `json:"per_device"`
	AvailableCommandKeysByHost map[string][]string `json:"available_command_keys_by_host"`
}

// buildDigests flattens the per-device map into sorted prompt rows.
func buildDigests(perDev *reason.Document) []deviceDigest {
	hosts := make([]string, 0, len(perDev.Devices))
	for host := range perDev.Devices {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	out := make([]deviceDigest, 0, len(hosts))
	for _, host := range hosts {
		an := perDev.Devices[host]
		findings := make([]digestFinding, 0, len(an.Findings))
		for _, f := range an.Findings {
			findings = append(findings, digestFinding{
				Signal:      f.Signal,
				Severity:    f.Severity,
				Summary:     f.Summary,
				EvidenceRef: f.EvidenceRef,
			})
		}
		name := an.Hostname
		if name == "" {
			name = host
		}
		out = append(out, deviceDigest{
			Hostname:     name,
			Status:       an.Status,
			StatusReason: an.StatusReason,
			SignalsSeen:  an.SignalsSeen,
			Findings:     findings,
		})
	}
	return out
}

func buildUserMessage(digests []deviceDigest, keysByHost map[string][]string) string {
	payload := promptPayload{
		PerDevice:                  digests,
		AvailableCommandKeysByHost: keysByHost,
	}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		body = []byte("{}")
	}
	return "```json\n" + string(body) + "\n```"
}
