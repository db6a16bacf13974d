package correlate

import (
	"sort"
	"strings"

	"auspex/internal/facts"
	"auspex/internal/reason"
	"auspex/internal/trust"
	"auspex/internal/validate"
)

// clean grounds the decoded reply: incidents and notable devices that
// cite unknown hosts or unresolvable paths are dropped whole, follow-up
// commands are filtered and partitioned, and rollup plus task status
// are recomputed where the model left them out or invalid.
func (c *Correlator) clean(doc *Document, perDev *reason.Document, factsByHost map[string]*facts.HostFacts, known map[string]bool) {
	drops := validate.NewDropLog("correlate", "")
	resolvers := newResolverSet(factsByHost)

	doc.NetworkSummary = strings.TrimSpace(doc.NetworkSummary)
	doc.TopIncidents = c.cleanIncidents(doc.TopIncidents, resolvers, known, drops)
	doc.NotableDevices = c.cleanNotables(doc.NotableDevices, resolvers, known, drops)

	if doc.RemediationThemes == nil {
		doc.RemediationThemes = []string{}
	}

	pool := append(validate.FilterCommands(doc.TrustedFollowupCmds, false),
		validate.FilterCommands(doc.UnvalidatedFollowupCmds, false)...)
	doc.TrustedFollowupCmds, doc.UnvalidatedFollowupCmds = partitionFollowups(pool, c.trusted)
	doc.OptionalActiveProbes = validate.FilterCommands(doc.OptionalActiveProbes, c.allowActive)

	statuses := deviceStatuses(perDev)
	if doc.StatusRollup == nil {
		doc.StatusRollup = tallyStatuses(statuses)
	} else {
		doc.StatusRollup = normalizeRollup(doc.StatusRollup)
	}
	if ts := strings.ToLower(strings.TrimSpace(doc.TaskStatus)); validTaskStatus(ts) {
		doc.TaskStatus = ts
	} else {
		doc.TaskStatus = deriveTaskStatus(statuses)
	}

	for _, d := range drops.Drops() {
		c.trail.ValidationDrop("correlate", "", d.Kind, d.Reason, d.Detail)
	}
	if drops.Len() > 0 {
		c.trail.WriteFile("cross_validation.log", []byte(dropLines(drops)))
		c.log.Info("correlate: dropped %d ungrounded entries", drops.Len())
	}
}

func (c *Correlator) cleanIncidents(incidents []Incident, resolvers *resolverSet, known map[string]bool, drops *validate.DropLog) []Incident {
	kept := make([]Incident, 0, len(incidents))
	for _, inc := range incidents {
		devices := make([]string, 0, len(inc.Devices))
		for _, d := range inc.Devices {
			if known[d] {
				devices = append(devices, d)
			}
		}
		if len(inc.Devices) > 0 && len(devices) == 0 {
			drops.Add("incident", "drop_incident:unknown_devices", inc.Summary)
			continue
		}

		evidence := make([]Evidence, 0, len(inc.Evidence))
		badReason, badDetail := "", ""
		for _, ev := range inc.Evidence {
			reason, detail := checkEvidence(ev, resolvers, known)
			if reason != "" {
				badReason, badDetail = reason, detail
				break
			}
			evidence = append(evidence, Evidence{
				Host: strings.TrimSpace(ev.Host),
				Path: strings.TrimSpace(ev.Path),
			})
		}
		if badReason != "" {
			drops.Add("incident", "drop_incident:"+badReason, badDetail)
			continue
		}

		inc.Devices = devices
		inc.Evidence = evidence
		kept = append(kept, inc)
	}
	return kept
}

func (c *Correlator) cleanNotables(notables []NotableDevice, resolvers *resolverSet, known map[string]bool, drops *validate.DropLog) []NotableDevice {
	kept := make([]NotableDevice, 0, len(notables))
	for _, nd := range notables {
		host := strings.TrimSpace(nd.Host)
		if host == "" || !known[host] {
			drops.Add("notable", "drop_notable:unknown_host", host)
			continue
		}
		if reason, detail := checkEvidence(nd.Evidence, resolvers, known); reason != "" {
			drops.Add("notable", "drop_notable:"+reason, detail)
			continue
		}
		nd.Host = host
		nd.Status = strings.ToLower(strings.TrimSpace(nd.Status))
		kept = append(kept, nd)
	}
	return kept
}

// checkEvidence validates one {host, path} pair. The command key is
// read out of the path, so the per-key prefix rule applies here exactly
// as it does to per-device refs. Empty reason means the pair passed.
func checkEvidence(ev Evidence, resolvers *resolverSet, known map[string]bool) (reason, detail string) {
	host := strings.TrimSpace(ev.Host)
	path := strings.TrimSpace(ev.Path)
	if host == "" || !known[host] {
		return "bad_evidence_host", host + ":" + path
	}
	ref := validate.EvidenceRef{
		CommandKey: validate.CommandKeyFromPath(path),
		Path:       path,
	}
	if ok, why := validate.CheckRef(resolvers.get(host), ref); !ok {
		return why, host + ":" + path
	}
	return "", ""
}

// resolverSet builds facts resolvers lazily, one per cited host. Hosts
// known only from per-device analyses resolve against an empty document
// so their paths fail rather than crash.
type resolverSet struct {
	facts map[string]*facts.HostFacts
	cache map[string]*validate.Resolver
}

func newResolverSet(factsByHost map[string]*facts.HostFacts) *resolverSet {
	return &resolverSet{facts: factsByHost, cache: map[string]*validate.Resolver{}}
}

func (r *resolverSet) get(host string) *validate.Resolver {
	if res, ok := r.cache[host]; ok {
		return res
	}
	doc := r.facts[host]
	if doc == nil {
		doc = &facts.HostFacts{Hostname: host}
	}
	res, err := validate.NewResolver(doc)
	if err != nil {
		res, _ = validate.NewResolver(map[string]interface{}{})
	}
	r.cache[host] = res
	return res
}

// partitionFollowups dedupes the safe suggestions and splits them into
// operator-trusted and unvalidated, preserving order.
func partitionFollowups(cmds []string, trusted *trust.List) (tr, un []string) {
	tr, un = []string{}, []string{}
	seen := map[string]bool{}
	for _, cmd := range cmds {
		norm := trust.Normalize(cmd)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		cmd = strings.TrimSpace(cmd)
		if trusted.Trusted(cmd) {
			tr = append(tr, cmd)
		} else {
			un = append(un, cmd)
		}
	}
	return tr, un
}

// deviceStatuses lists per-device statuses in host order.
func deviceStatuses(perDev *reason.Document) []string {
	hosts := make([]string, 0, len(perDev.Devices))
	for host := range perDev.Devices {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	out := make([]string, 0, len(hosts))
	for _, host := range hosts {
		s := strings.ToLower(strings.TrimSpace(perDev.Devices[host].Status))
		if s == "" {
			s = "unknown"
		}
		out = append(out, s)
	}
	return out
}

// tallyStatuses counts statuses into the canonical rollup buckets.
// Anything outside the vocabulary counts as unknown.
func tallyStatuses(statuses []string) map[string]int {
	out := map[string]int{"healthy": 0, "degraded": 0, "error": 0, "unknown": 0}
	for _, s := range statuses {
		if _, ok := out[s]; !ok {
			s = "unknown"
		}
		out[s]++
	}
	return out
}

// normalizeRollup keeps the model's counts but pins the canonical key
// set.
func normalizeRollup(given map[string]int) map[string]int {
	out := map[string]int{"healthy": 0, "degraded": 0, "error": 0, "unknown": 0}
	for key := range out {
		if v, ok := given[key]; ok {
			out[key] = v
		}
	}
	return out
}

func validTaskStatus(s string) bool {
	switch s {
	case "healthy", "degraded", "error", "mixed", "unknown":
		return true
	}
	return false
}

// deriveTaskStatus rolls device statuses up to one task status: any
// error wins, then degraded; uniform fleets report their status and
// everything else is mixed.
func deriveTaskStatus(statuses []string) string {
	if len(statuses) == 0 {
		return "unknown"
	}
	var healthy, degraded, errors, unknown int
	for _, s := range statuses {
		switch s {
		case "healthy":
			healthy++
		case "degraded":
			degraded++
		case "error":
			errors++
		case "unknown":
			unknown++
		}
	}
	switch {
	case errors > 0:
		return "error"
	case degraded > 0:
		return "degraded"
	case healthy == len(statuses):
		return "healthy"
	case unknown == len(statuses):
		return "unknown"
	default:
		return "mixed"
	}
}

func dropLines(drops *validate.DropLog) string {
	var b strings.Builder
	for _, d := range drops.Drops() {
		b.WriteString(d.Reason)
		if d.Detail != "" {
			b.WriteString(" ")
			b.WriteString(d.Detail)
		}
		b.WriteString("\n")
	}
	return b.String()
}
