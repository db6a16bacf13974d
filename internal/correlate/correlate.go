// Package correlate runs the cross-device analysis stage. The
// per-device analyses are digested into one prompt; the model's
// fleet-level reply is validated against the facts documents it cites
// (unknown devices and unresolvable evidence drop the whole item),
// follow-up commands are filtered and partitioned against the operator
// trust list, and the cleaned result lands in
// analysis/cross_device.json.
package correlate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"auspex/internal/audit"
	"auspex/internal/facts"
	"auspex/internal/llm"
	"auspex/internal/logging"
	"auspex/internal/reason"
	"auspex/internal/trust"
	"auspex/internal/workspace"
)

// Evidence points into one host's facts document. Cross-device evidence
// names the host explicitly; the command key is implied by the path.
type Evidence struct {
	Host string `json:"host"`
	Path string `json:"path"`
}

// Incident is one correlated, multi-device (or fleet-level) problem.
type Incident struct {
	Scope    string     `json:"scope"`
	Summary  string     `json:"summary"`
	Impact   string     `json:"impact"`
	Devices  []string   `json:"devices"`
	Evidence []Evidence `json:"evidence"`
}

// NotableDevice is one best-or-worst host called out in the summary,
// backed by exactly one evidence ref.
type NotableDevice struct {
	Host     string   `json:"host"`
	Status   string   `json:"status"`
	Note     string   `json:"note"`
	Evidence Evidence `json:"evidence"`
}

// Document is the persisted cross-device artifact.
type Document struct {
	GeneratedAt             int64           `json:"generated_at"`
	Model                   string          `json:"model"`
	NetworkSummary          string          `json:"network_summary"`
	StatusRollup            map[string]int  `json:"status_rollup"`
	TopIncidents            []Incident      `json:"top_incidents"`
	NotableDevices          []NotableDevice `json:"notable_devices"`
	RemediationThemes       []string        `json:"remediation_themes"`
	TrustedFollowupCmds     []string        `json:"trusted_followup_cmds"`
	UnvalidatedFollowupCmds []string        `json:"unvalidated_followup_cmds"`
	OptionalActiveProbes    []string        `json:"optional_active_probes"`
	TaskStatus              string          `json:"task_status"`
}

// Load reads the cross-device document.
func Load(paths workspace.Paths) (*Document, error) {
	var doc Document
	if err := workspace.ReadJSON(paths.CrossDeviceFile, &doc); err != nil {
		return nil, fmt.Errorf("load cross-device analysis: %w", err)
	}
	return &doc, nil
}

// Options tune a correlation run.
type Options struct {
	// AllowActiveProbes permits ping and traceroute in
	// optional_active_probes. The two follow-up lists never carry them.
	AllowActiveProbes bool
}

// Correlator drives the cross-device stage.
type Correlator struct {
	paths       workspace.Paths
	client      llm.Client
	trusted     *trust.List
	trail       *audit.Trail
	allowActive bool
	log         *logging.Logger
}

// NewCorrelator wires the stage. A nil client yields the skeleton with
// a tallied rollup; a nil trust list puts every follow-up in the
// unvalidated bucket.
func NewCorrelator(paths workspace.Paths, client llm.Client, trusted *trust.List, trail *audit.Trail, opts Options) *Correlator {
	return &Correlator{
		paths:       paths,
		client:      client,
		trusted:     trusted,
		trail:       trail,
		allowActive: opts.AllowActiveProbes,
		log:         logging.GetLogger("correlate"),
	}
}

// Run correlates the whole fleet: canonical per-device analyses plus
// every facts document. It returns the written document.
func (c *Correlator) Run(ctx context.Context) (*Document, error) {
	perDev, err := reason.Load(c.paths)
	if err != nil {
		c.log.Warn("correlate: no per-device analysis: %v", err)
		perDev = &reason.Document{Devices: map[string]reason.Analysis{}}
	}
	return c.RunWith(ctx, perDev)
}

// RunWith correlates against a caller-supplied per-device document. The
// orchestrator uses this to correlate the analyses it just produced,
// including scoped ones that never reach the canonical per-device file.
func (c *Correlator) RunWith(ctx context.Context, perDev *reason.Document) (*Document, error) {
	if perDev == nil || perDev.Devices == nil {
		perDev = &reason.Document{Devices: map[string]reason.Analysis{}}
	}

	hosts, err := facts.ListHosts(c.paths)
	if err != nil {
		return nil, err
	}
	factsByHost := make(map[string]*facts.HostFacts, len(hosts))
	for _, host := range hosts {
		doc, err := facts.Load(c.paths, host)
		if err != nil {
			c.log.Warn("correlate: unreadable facts for %s: %v", host, err)
			doc = &facts.HostFacts{Hostname: host}
		}
		factsByHost[host] = doc
	}

	// Known hosts span both inputs: a host can have an analysis whose
	// facts were since quarantined, and vice versa.
	known := make(map[string]bool, len(factsByHost)+len(perDev.Devices))
	for host := range factsByHost {
		known[host] = true
	}
	for host := range perDev.Devices {
		known[host] = true
	}

	keysByHost := make(map[string][]string, len(factsByHost))
	for host, doc := range factsByHost {
		keys := make([]string, 0, len(doc.Commands))
		for key := range doc.Commands {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		keysByHost[host] = keys
	}

	user := buildUserMessage(buildDigests(perDev), keysByHost)
	c.trail.WriteFile("cross_prompt.txt",
		[]byte("--- SYSTEM ---\n"+systemPrompt+"\n\n--- USER ---\n"+user+"\n"))

	raw := c.chat(ctx, user)
	if raw != "" {
		c.trail.WriteFile("cross_raw.json", []byte(raw))
	}

	var doc Document
	if err := llm.DecodeLoose(raw, &doc); err != nil {
		c.log.Warn("correlate: %v; writing skeleton", err)
		doc = c.skeleton(perDev)
	} else {
		c.clean(&doc, perDev, factsByHost, known)
	}
	doc.GeneratedAt = time.Now().Unix()
	doc.Model = c.modelName()

	if err := workspace.WriteJSON(c.paths.CrossDeviceFile, &doc); err != nil {
		return nil, err
	}
	c.log.Info("cross-device analysis written: incidents=%d task_status=%s",
		len(doc.TopIncidents), doc.TaskStatus)
	return &doc, nil
}

// chat calls the model at temperature zero. Any failure degrades to an
// empty reply; the caller substitutes the skeleton.
func (c *Correlator) chat(ctx context.Context, user string) string {
	if c.client == nil {
		return ""
	}
	start := time.Now()
	raw, err := c.client.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}, 0)
	c.trail.LLMRequest("correlate", "", c.client.Name(), c.client.Model(),
		len(systemPrompt)+len(user), len(raw), time.Since(start), err)
	if err != nil {
		c.log.Warn("correlate: llm call failed: %v", err)
		return ""
	}
	return raw
}

func (c *Correlator) modelName() string {
	if c.client == nil {
		return "none"
	}
	return c.client.Model()
}

// skeleton is the artifact written when no usable reply arrived. The
// rollup and task status still come from the per-device analyses, so an
// operator sees real counts even with the model down.
func (c *Correlator) skeleton(perDev *reason.Document) Document {
	statuses := deviceStatuses(perDev)
	return Document{
		NetworkSummary:          "correlation unavailable",
		StatusRollup:            tallyStatuses(statuses),
		TopIncidents:            []Incident{},
		NotableDevices:          []NotableDevice{},
		RemediationThemes:       []string{},
		TrustedFollowupCmds:     []string{},
		UnvalidatedFollowupCmds: []string{},
		OptionalActiveProbes:    []string{},
		TaskStatus:              deriveTaskStatus(statuses),
	}
}
