package reason

import (
	"encoding/json"
	"sort"

	"auspex/internal/facts"
	"auspex/internal/knowledge"
	"auspex/internal/workspace"
)

// systemPrompt pins the model to evidence-grounded, strict-JSON output.
// Every path it cites must exist in the facts document or validation
// drops the claim.
const systemPrompt = `You are a senior NOC engineer for a Cisco service-provider network.
You will analyze structured FACTS built from device show-command output. You MUST:
- Use only the provided facts as evidence; do NOT invent information.
- Return STRICT JSON only (no prose) with this schema:
{
  "hostname": "<string>",
  "platform": "cisco-ios-xr" | "cisco-ios" | "unknown",
  "signals_seen": ["bgp", "isis", "mpls", "evpn", "l2vpn", "sr", "srv6", "intf", "ip", "bfd"],
  "status": "healthy" | "degraded" | "error" | "unknown",
  "status_reason": "<short explanation tied to evidence, not to parsing availability>",
  "ok": [
    {"summary": "<what looks healthy (1 line)>",
     "evidence_ref": {"command_key": "<cmd_key>", "path": "commands.<cmd_key>.<...>"}}
  ],
  "suspect": [
    {"summary": "<what looks off (1 line)>",
     "evidence_ref": {"command_key": "<cmd_key>", "path": "commands.<cmd_key>.<...>"}}
  ],
  "findings": [
    {"signal": "<one of signals_seen>",
     "severity": "info" | "warn" | "error",
     "summary": "<short, evidence-backed>",
     "evidence_ref": {"command_key": "<cmd_key from facts.commands>", "path": "commands.<cmd_key>.<...>"}}
  ],
  "recommended_show_cmds": ["show ..."],
  "optional_active_cmds": ["ping ..."]
}
Rules:
- Evidence must reference REAL paths in the provided facts, starting with commands.<cmd_key>.
- Do NOT mark status degraded or error just because a parser was unavailable or parser_ok=false.
  If tables, metrics, or evidence text clearly show healthy behavior, treat that as valid evidence.
- List positives in ok[] and negatives in suspect[] so the operator sees both.
- status_reason must describe network state (for example "2 of 3 BGP neighbors Established"), never tooling state.
- Be conservative: if unclear, use severity "info".
- Never propose config, debug, clear, or reload commands.`

// promptContext is the JSON block embedded in the user message.
type promptContext struct {
	Hostname             string                 `json:"hostname"`
	PlatformHint         string                 `json:"platform_hint"`
	SignalsSeen          []string               `json:"signals_seen"`
	AvailableCommandKeys []string               `json:"available_command_keys"`
	PlanSummary          map[string]interface{} `json:"plan_summary"`
	KnowledgeSnippets    []knowledge.Snippet    `json:"knowledge_snippets"`
	FactsJSON            string                 `json:"facts_json"`
}

// buildUserMessage assembles the per-host prompt. The facts document
// rides along as a JSON string capped at the prompt budget so one
// oversized host cannot blow the context window.
func buildUserMessage(host string, doc *facts.HostFacts, plan map[string]interface{}, snippets []knowledge.Snippet, budget int) string {
	keys := make([]string, 0, len(doc.Commands))
	for key := range doc.Commands {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if plan == nil {
		plan = map[string]interface{}{}
	}
	if snippets == nil {
		snippets = []knowledge.Snippet{}
	}

	factsJSON, err := json.Marshal(doc)
	if err != nil {
		factsJSON = []byte("{}")
	}
	if len(factsJSON) > budget {
		factsJSON = factsJSON[:budget]
	}

	pc := promptContext{
		Hostname:             host,
		PlatformHint:         doc.PlatformHint,
		SignalsSeen:          doc.SignalsSeen,
		AvailableCommandKeys: keys,
		PlanSummary:          plan,
		KnowledgeSnippets:    snippets,
		FactsJSON:            string(factsJSON),
	}
	body, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		body = []byte("{}")
	}
	return "### Context\n```json\n" + string(body) + "\n```"
}

// planRow returns the host's row from the capture plan inventory, or an
// empty map when the inventory is missing or does not list the host.
func planRow(paths workspace.Paths, host string) map[string]interface{} {
	var rows []map[string]interface{}
	if err := workspace.ReadJSON(paths.DevicesFile, &rows); err != nil {
		return map[string]interface{}{}
	}
	for _, row := range rows {
		if name, _ := row["hostname"].(string); name == host {
			return row
		}
	}
	return map[string]interface{}{}
}
