package validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFacts() map[string]interface{} {
	return map[string]interface{}{
		"hostname":      "edge-1",
		"platform_hint": "cisco-ios-xr",
		"commands": map[string]interface{}{
			"show_bgp_summary": map[string]interface{}{
				"source": "parser",
				"data": map[string]interface{}{
					"summary": "2 neighbors, 1 idle",
					"metrics": map[string]interface{}{
						"neighbors_total": 2.0,
						"neighbors_idle":  1.0,
					},
					"tables": map[string]interface{}{
						"neighbors": []interface{}{
							map[string]interface{}{"peer": "10.0.0.2", "state": "Idle"},
						},
					},
				},
			},
		},
	}
}

func TestResolverWalksObjects(t *testing.T) {
	r, err := NewResolver(testFacts())
	require.NoError(t, err)

	v, ok := r.Resolve("commands.show_bgp_summary.data.metrics.neighbors_idle")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = r.Resolve("commands.show_bgp_summary.data.metrics.flap_count")
	assert.False(t, ok)

	// Arrays are opaque: no index segments, no reaching inside.
	_, ok = r.Resolve("commands.show_bgp_summary.data.tables.neighbors.0")
	assert.False(t, ok)
	_, ok = r.Resolve("commands.show_bgp_summary.data.tables.neighbors.0.peer")
	assert.False(t, ok)

	v, ok = r.Resolve("")
	require.True(t, ok)
	assert.NotNil(t, v)
}

func TestNewResolverFromTypedDocument(t *testing.T) {
	type inner struct {
		Summary string `json:"summary"`
	}
	type doc struct {
		Hostname string           `json:"hostname"`
		Commands map[string]inner `json:"commands"`
	}
	r, err := NewResolver(doc{
		Hostname: "edge-1",
		Commands: map[string]inner{"show_version": {Summary: "IOS XR 7.9.2"}},
	})
	require.NoError(t, err)

	v, ok := r.Resolve("commands.show_version.summary")
	require.True(t, ok)
	assert.Equal(t, "IOS XR 7.9.2", v)
}

func TestNewResolverRejectsNonObject(t *testing.T) {
	_, err := NewResolver([]string{"not", "an", "object"})
	assert.Error(t, err)
}

func TestCheckRef(t *testing.T) {
	r, err := NewResolver(testFacts())
	require.NoError(t, err)

	tests := []struct {
		name   string
		ref    EvidenceRef
		ok     bool
		reason string
	}{
		{
			name: "valid",
			ref:  EvidenceRef{CommandKey: "show_bgp_summary", Path: "commands.show_bgp_summary.data.metrics.neighbors_idle"},
			ok:   true,
		},
		{
			name:   "missing fields",
			ref:    EvidenceRef{CommandKey: "", Path: ""},
			reason: RefMissingFields,
		},
		{
			name:   "whitespace only",
			ref:    EvidenceRef{CommandKey: "  ", Path: "  "},
			reason: RefMissingFields,
		},
		{
			name:   "path under a different command",
			ref:    EvidenceRef{CommandKey: "show_version", Path: "commands.show_bgp_summary.data.summary"},
			reason: RefBadPrefix,
		},
		{
			name:   "key with no trailing segment",
			ref:    EvidenceRef{CommandKey: "show_bgp_summary", Path: "commands.show_bgp_summary"},
			reason: RefBadPrefix,
		},
		{
			name:   "fabricated leaf",
			ref:    EvidenceRef{CommandKey: "show_bgp_summary", Path: "commands.show_bgp_summary.data.metrics.invented"},
			reason: RefNoSuchPath,
		},
		{
			name:   "path into an array",
			ref:    EvidenceRef{CommandKey: "show_bgp_summary", Path: "commands.show_bgp_summary.data.tables.neighbors.0.peer"},
			reason: RefNoSuchPath,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CheckRef(r, tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestEvidenceRefDecodeTolerance(t *testing.T) {
	var ref EvidenceRef
	require.NoError(t, json.Unmarshal([]byte(`{"command_key":"show_version","path":"commands.show_version.data.summary"}`), &ref))
	assert.False(t, ref.Malformed())
	assert.Equal(t, "show_version", ref.CommandKey)

	// A scalar where an object belongs must not fail the decode, it
	// must mark the ref so validation rejects it.
	require.NoError(t, json.Unmarshal([]byte(`"commands.show_version.data"`), &ref))
	assert.True(t, ref.Malformed())

	r, err := NewResolver(testFacts())
	require.NoError(t, err)
	ok, reason := CheckRef(r, ref)
	assert.False(t, ok)
	assert.Equal(t, RefNotDict, reason)

	// Inside a larger document the tolerance still holds.
	var holder struct {
		Ref EvidenceRef `json:"evidence_ref"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"evidence_ref": 42}`), &holder))
	assert.True(t, holder.Ref.Malformed())
}

func TestCommandKeyFromPath(t *testing.T) {
	assert.Equal(t, "show_bgp_summary", CommandKeyFromPath("commands.show_bgp_summary.data.summary"))
	assert.Equal(t, "show_version", CommandKeyFromPath("commands.show_version.status.name"))
	assert.Equal(t, "", CommandKeyFromPath("interfaces.ge0.state"))
	assert.Equal(t, "", CommandKeyFromPath("commands."))
	assert.Equal(t, "", CommandKeyFromPath(""))
}

func TestFilterCommands(t *testing.T) {
	cmds := []string{
		"show ip bgp summary",
		"ping 10.0.0.1",
		"traceroute 10.0.0.1",
		"configure terminal",
		"reload",
	}

	assert.Equal(t, []string{"show ip bgp summary"}, FilterCommands(cmds, false))
	assert.Equal(t,
		[]string{"show ip bgp summary", "ping 10.0.0.1", "traceroute 10.0.0.1"},
		FilterCommands(cmds, true))

	got := FilterCommands(nil, true)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDropLog(t *testing.T) {
	log := NewDropLog("reason", "edge-1")
	assert.Equal(t, 0, log.Len())

	log.Add("finding", "drop_finding:"+RefNoSuchPath, "bgp: invented path")
	log.Add("finding", "drop_finding:"+RefBadPrefix, "")

	assert.Equal(t, 2, log.Len())
	assert.Equal(t, []string{
		"drop_finding:evidence_ref:no_such_path",
		"drop_finding:evidence_ref:bad_prefix",
	}, log.Reasons())

	drops := log.Drops()
	require.Len(t, drops, 2)
	assert.Equal(t, "finding", drops[0].Kind)
	assert.Equal(t, "bgp: invented path", drops[0].Detail)
}
