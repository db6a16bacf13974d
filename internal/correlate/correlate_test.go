package correlate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auspex/internal/audit"
	"auspex/internal/facts"
	"auspex/internal/llm"
	"auspex/internal/reason"
	"auspex/internal/trust"
	"auspex/internal/workspace"
)

// crossReply cites r1 and r2 legitimately, invents r9, and points one
// incident and one notable at paths that do not exist.
const crossReply = `{
  "network_summary": "1 of 2 devices healthy; r2 reports BGP errors while r1 is clean.",
  "status_rollup": {"healthy": 1, "error": 1},
  "top_incidents": [
    {"scope": "pair", "summary": "BGP session down between r1 and r2", "impact": "transit via r2",
     "devices": ["r2", "r1"],
     "evidence": [{"host": "r2", "path": "commands.show_bgp_summary.data.status.value"}]},
    {"scope": "global", "summary": "phantom fleet issue", "impact": "none",
     "devices": ["r9"],
     "evidence": []},
    {"scope": "site", "summary": "ghost evidence", "impact": "none",
     "devices": ["r1"],
     "evidence": [{"host": "r1", "path": "commands.show_bgp_summary.data.flap_count"}]}
  ],
  "notable_devices": [
    {"host": "r2", "status": "Error", "note": "neighbors idle",
     "evidence": {"host": "r2", "path": "commands.show_bgp_summary.data.metrics.neighbors_down"}},
    {"host": "r9", "status": "healthy", "note": "invented host",
     "evidence": {"host": "r9", "path": "commands.show_bgp_summary.data.status.value"}},
    {"host": "r1", "status": "healthy", "note": "ghost path",
     "evidence": {"host": "r1", "path": "commands.show_version.data.uptime"}}
  ],
  "remediation_themes": ["verify bgp neighbor config on r2"],
  "trusted_followup_cmds": ["show bgp summary", "clear bgp *"],
  "unvalidated_followup_cmds": ["show ip interface brief", "Show BGP   Summary"],
  "optional_active_probes": ["ping 10.0.0.2"],
  "task_status": "catastrophic"
}`

func testPaths(t *testing.T) workspace.Paths {
	t.Helper()
	paths, err := workspace.Resolve(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())
	return paths
}

func testTrail(t *testing.T, paths workspace.Paths) *audit.Trail {
	t.Helper()
	trail, err := audit.New(paths.AuditDir, 1<<20, 3)
	require.NoError(t, err)
	t.Cleanup(func() { trail.Close() })
	return trail
}

func hostFacts(host string) *facts.HostFacts {
	return &facts.HostFacts{
		Hostname:     host,
		PlatformHint: "cisco-ios-xr",
		SignalsSeen:  []string{"bgp"},
		FactsVersion: facts.Version,
		Commands: map[string]facts.CommandFacts{
			"show_bgp_summary": {
				Command:  "show bgp summary",
				Topic:    "bgp",
				Source:   "parser",
				ParserOK: true,
				Data: map[string]interface{}{
					"status":  map[string]interface{}{"value": "established"},
					"metrics": map[string]interface{}{"neighbors_down": 1},
				},
			},
		},
	}
}

func seedFleet(t *testing.T, paths workspace.Paths) {
	t.Helper()
	require.NoError(t, workspace.WriteJSON(paths.HostFactsPath("r1"), hostFacts("r1")))
	require.NoError(t, workspace.WriteJSON(paths.HostFactsPath("r2"), hostFacts("r2")))
	doc := reason.Document{
		GeneratedAt: 1700000000,
		Model:       "scripted",
		Devices: map[string]reason.Analysis{
			"r1": {Hostname: "r1", Status: "healthy", StatusReason: "all sessions established", SignalsSeen: []string{"bgp"}},
			"r2": {Hostname: "r2", Status: "error", StatusReason: "neighbors idle", SignalsSeen: []string{"bgp"}},
		},
	}
	require.NoError(t, workspace.WriteJSON(paths.PerDeviceFile, &doc))
}

func trustList(t *testing.T, cmds string) *trust.List {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trusted.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cmds), 0o644))
	list, err := trust.Load(path)
	require.NoError(t, err)
	return list
}

func TestRunCleansModelOutput(t *testing.T) {
	paths := testPaths(t)
	trail := testTrail(t, paths)
	seedFleet(t, paths)

	trusted := trustList(t, "commands:\n  - show bgp summary\n")
	client := &llm.Scripted{Responses: []string{crossReply}}
	corr := NewCorrelator(paths, client, trusted, trail, Options{})
	doc, err := corr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "scripted", doc.Model)
	assert.NotZero(t, doc.GeneratedAt)
	assert.Contains(t, doc.NetworkSummary, "r2 reports BGP errors")

	require.Len(t, doc.TopIncidents, 1)
	assert.Equal(t, "BGP session down between r1 and r2", doc.TopIncidents[0].Summary)
	assert.Equal(t, []string{"r2", "r1"}, doc.TopIncidents[0].Devices)
	require.Len(t, doc.TopIncidents[0].Evidence, 1)
	assert.Equal(t, "r2", doc.TopIncidents[0].Evidence[0].Host)

	require.Len(t, doc.NotableDevices, 1)
	assert.Equal(t, "r2", doc.NotableDevices[0].Host)
	assert.Equal(t, "error", doc.NotableDevices[0].Status)

	assert.Equal(t, []string{"show bgp summary"}, doc.TrustedFollowupCmds)
	assert.Equal(t, []string{"show ip interface brief"}, doc.UnvalidatedFollowupCmds)
	assert.Empty(t, doc.OptionalActiveProbes)
	assert.Equal(t, []string{"verify bgp neighbor config on r2"}, doc.RemediationThemes)

	assert.Equal(t, map[string]int{"healthy": 1, "degraded": 0, "error": 1, "unknown": 0}, doc.StatusRollup)
	assert.Equal(t, "error", doc.TaskStatus)

	var onDisk Document
	require.NoError(t, workspace.ReadJSON(paths.CrossDeviceFile, &onDisk))
	assert.Equal(t, "error", onDisk.TaskStatus)

	prompt, err := os.ReadFile(trail.Path("cross_prompt.txt"))
	require.NoError(t, err)
	text := string(prompt)
	assert.Contains(t, text, `"hostname": "r1"`)
	assert.Contains(t, text, "available_command_keys_by_host")
	assert.Contains(t, text, "neighbors idle")
	assert.NotContains(t, text, "facts_json")
	assert.NotContains(t, text, "evidence_text_path")

	_, err = os.Stat(trail.Path("cross_raw.json"))
	assert.NoError(t, err)

	vlog, err := os.ReadFile(trail.Path("cross_validation.log"))
	require.NoError(t, err)
	logText := string(vlog)
	assert.Contains(t, logText, "drop_incident:unknown_devices")
	assert.Contains(t, logText, "drop_incident:evidence_ref:no_such_path")
	assert.Contains(t, logText, "drop_notable:unknown_host")
	assert.Contains(t, logText, "drop_notable:evidence_ref:no_such_path")

	events, err := os.ReadFile(trail.Path("events.ndjson"))
	require.NoError(t, err)
	assert.Contains(t, string(events), `"type":"validation_drop"`)
}

func TestRunSkeletonWithNilClient(t *testing.T) {
	paths := testPaths(t)
	trail := testTrail(t, paths)
	seedFleet(t, paths)

	corr := NewCorrelator(paths, nil, nil, trail, Options{})
	doc, err := corr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "none", doc.Model)
	assert.Equal(t, "correlation unavailable", doc.NetworkSummary)
	assert.Equal(t, map[string]int{"healthy": 1, "degraded": 0, "error": 1, "unknown": 0}, doc.StatusRollup)
	assert.Equal(t, "error", doc.TaskStatus)
	assert.Empty(t, doc.TopIncidents)
	assert.Empty(t, doc.NotableDevices)

	_, err = os.Stat(trail.Path("cross_prompt.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(trail.Path("cross_raw.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(trail.Path("cross_validation.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunWithoutPerDeviceStillWrites(t *testing.T) {
	paths := testPaths(t)
	trail := testTrail(t, paths)
	require.NoError(t, workspace.WriteJSON(paths.HostFactsPath("r1"), hostFacts("r1")))

	corr := NewCorrelator(paths, nil, nil, trail, Options{})
	doc, err := corr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"healthy": 0, "degraded": 0, "error": 0, "unknown": 0}, doc.StatusRollup)
	assert.Equal(t, "unknown", doc.TaskStatus)
}

func TestDeriveTaskStatus(t *testing.T) {
	assert.Equal(t, "unknown", deriveTaskStatus(nil))
	assert.Equal(t, "healthy", deriveTaskStatus([]string{"healthy", "healthy"}))
	assert.Equal(t, "error", deriveTaskStatus([]string{"healthy", "degraded", "error"}))
	assert.Equal(t, "degraded", deriveTaskStatus([]string{"healthy", "degraded"}))
	assert.Equal(t, "unknown", deriveTaskStatus([]string{"unknown", "unknown"}))
	assert.Equal(t, "mixed", deriveTaskStatus([]string{"healthy", "unknown"}))
}

func TestTallyStatuses(t *testing.T) {
	got := tallyStatuses([]string{"healthy", "error", "catastrophic", "healthy"})
	assert.Equal(t, map[string]int{"healthy": 2, "degraded": 0, "error": 1, "unknown": 1}, got)
}

func TestNormalizeRollupDropsInventedKeys(t *testing.T) {
	got := normalizeRollup(map[string]int{"healthy": 2, "critical": 5})
	assert.Equal(t, map[string]int{"healthy": 2, "degraded": 0, "error": 0, "unknown": 0}, got)
}

func TestPartitionFollowups(t *testing.T) {
	trusted := trustList(t, "commands:\n  - show bgp summary\n")
	tr, un := partitionFollowups([]string{"show bgp summary", "Show   BGP Summary", "show isis adjacency"}, trusted)
	assert.Equal(t, []string{"show bgp summary"}, tr)
	assert.Equal(t, []string{"show isis adjacency"}, un)

	tr, un = partitionFollowups([]string{"show version"}, nil)
	assert.Empty(t, tr)
	assert.Equal(t, []string{"show version"}, un)
}
