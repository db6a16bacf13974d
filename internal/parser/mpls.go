package parser

import (
	"regexp"
	"strings"
)

var (
	ldpPeerRe   = regexp.MustCompile(`(?i)^\s*Peer LDP Ident(?:ifier)?:\s*([^\s;]+)`)
	ldpStateRe  = regexp.MustCompile(`(?i)^\s*State:\s*([A-Za-z]+)`)
	ldpUptimeRe = regexp.MustCompile(`(?i)^\s*Up time:\s*(\S+)`)
)

// parseLDPNeighbors reads the block-per-peer output of `show mpls ldp
// neighbor` on both OS flavors: a Peer LDP Ident line opens a block,
// State and Up time lines inside it describe the session.
func parseLDPNeighbors(text string) (map[string]interface{}, error) {
	var (
		rows     []map[string]interface{}
		evidence []string
		current  map[string]interface{}
	)
	for i, line := range textLines(text) {
		if m := ldpPeerRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				rows = append(rows, current)
			}
			current = map[string]interface{}{"peer": m[1]}
			evidence = append(evidence, evidenceLine(i+1, line))
			continue
		}
		if current == nil {
			continue
		}
		if m := ldpStateRe.FindStringSubmatch(line); m != nil {
			current["state"] = m[1]
			evidence = append(evidence, evidenceLine(i+1, line))
			continue
		}
		if m := ldpUptimeRe.FindStringSubmatch(line); m != nil {
			current["up_time"] = m[1]
		}
	}
	if current != nil {
		rows = append(rows, current)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	byState := stateRollup(rows, "state")
	return map[string]interface{}{
		"summary": rollupSummary(len(rows), "ldp neighbors", byState),
		"status":  statusObj("ldp_neighbors", ldpOverall(byState), "per-peer session state"),
		"metrics": map[string]interface{}{
			"ldp_neighbors_total":        len(rows),
			"ldp_neighbors_by_state":     byState,
			"ldp_neighbors_state_column": "State",
		},
		"tables":   map[string]interface{}{"ldp_neighbors": rows},
		"evidence": capEvidence(evidence),
	}, nil
}

// ldpOverall maps a uniform Oper state onto "up"; anything else keeps
// the generic uniformity rule.
func ldpOverall(byState map[string]interface{}) string {
	if len(byState) == 1 {
		if _, ok := byState["oper"]; ok {
			return "up"
		}
	}
	return overallState(byState)
}

var bfdSessStateRe = regexp.MustCompile(`(?i)^(up|down|init)$`)

// parseBFDSessions reads the `show bfd session` table on IOS XR: an
// interface, the destination address, timer columns, then State.
func parseBFDSessions(text string) (map[string]interface{}, error) {
	var (
		rows     []map[string]interface{}
		evidence []string
	)
	for i, line := range textLines(text) {
		f := strings.Fields(line)
		if len(f) < 3 || !looksLikeInterface(f[0]) {
			continue
		}
		last := f[len(f)-1]
		if !bfdSessStateRe.MatchString(last) {
			continue
		}
		rows = append(rows, map[string]interface{}{
			"interface": f[0],
			"dest_addr": f[1],
			"state":     last,
		})
		evidence = append(evidence, evidenceLine(i+1, line))
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	byState := stateRollup(rows, "state")
	return map[string]interface{}{
		"summary": rollupSummary(len(rows), "bfd sessions", byState),
		"status":  statusObj("bfd_session", overallState(byState), "session table state column"),
		"metrics": map[string]interface{}{
			"bfd_sessions_total":        len(rows),
			"bfd_sessions_by_state":     byState,
			"bfd_sessions_state_column": "State",
		},
		"tables":   map[string]interface{}{"bfd_sessions": rows},
		"evidence": capEvidence(evidence),
	}, nil
}
