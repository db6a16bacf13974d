package parser

import (
	"regexp"
	"strings"
)

// parseOSPFNeighbors reads the `show ip ospf neighbor` table, same
// columns on IOS and IOS XR. The state cell can split into two fields
// ("FULL/  -"), so the row is carved from both ends: interface,
// address and dead time from the tail, state from what remains.
func parseOSPFNeighbors(text string) (map[string]interface{}, error) {
	var (
		rows     []map[string]interface{}
		evidence []string
	)
	for i, line := range textLines(text) {
		f := strings.Fields(line)
		if len(f) < 6 || !isIPv4ish(f[0]) {
			continue
		}
		state := strings.Join(f[2:len(f)-3], " ")
		state = strings.ReplaceAll(state, "/ ", "/")
		rows = append(rows, map[string]interface{}{
			"neighbor_id": f[0],
			"priority":    f[1],
			"state":       state,
			"dead_time":   f[len(f)-3],
			"address":     f[len(f)-2],
			"interface":   f[len(f)-1],
		})
		evidence = append(evidence, evidenceLine(i+1, line))
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	byState := stateRollup(rows, "state")
	return map[string]interface{}{
		"summary": rollupSummary(len(rows), "ospf neighbors", byState),
		"status":  statusObj("ospf_neighbors", adjacencyOverall(rows, "state"), "neighbor table state column"),
		"metrics": map[string]interface{}{
			"ospf_neighbors_total":        len(rows),
			"ospf_neighbors_by_state":     byState,
			"ospf_neighbors_state_column": "State",
		},
		"tables":   map[string]interface{}{"ospf_neighbors": rows},
		"evidence": capEvidence(evidence),
	}, nil
}

var isisStateRe = regexp.MustCompile(`(?i)^(up|down|init)$`)

// parseISISAdjacency reads `show isis adjacency` on IOS XR: rows carry
// system id, interface, SNPA, then the State column.
func parseISISAdjacency(text string) (map[string]interface{}, error) {
	var (
		rows     []map[string]interface{}
		evidence []string
	)
	for i, line := range textLines(text) {
		f := strings.Fields(line)
		if len(f) < 6 || !isisStateRe.MatchString(f[3]) {
			continue
		}
		rows = append(rows, map[string]interface{}{
			"system_id": f[0],
			"interface": f[1],
			"snpa":      f[2],
			"state":     f[3],
			"hold":      f[4],
			"changed":   f[5],
		})
		evidence = append(evidence, evidenceLine(i+1, line))
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	byState := stateRollup(rows, "state")
	return map[string]interface{}{
		"summary": rollupSummary(len(rows), "isis adjacencies", byState),
		"status":  statusObj("isis_adjacencies", overallState(byState), "adjacency table state column"),
		"metrics": map[string]interface{}{
			"isis_adjacencies_total":        len(rows),
			"isis_adjacencies_by_state":     byState,
			"isis_adjacencies_state_column": "State",
		},
		"tables":   map[string]interface{}{"isis_adjacencies": rows},
		"evidence": capEvidence(evidence),
	}, nil
}

// adjacencyOverall folds per-row states onto the adjacency half of the
// cell (FULL/DR and FULL/BDR both count as full) before judging
// uniformity.
func adjacencyOverall(rows []map[string]interface{}, key string) string {
	seen := map[string]bool{}
	last := ""
	for _, r := range rows {
		s, _ := r[key].(string)
		s = strings.ToLower(strings.TrimSpace(strings.SplitN(s, "/", 2)[0]))
		if s == "" {
			s = "unknown"
		}
		seen[s] = true
		last = s
	}
	switch len(seen) {
	case 0:
		return "unknown"
	case 1:
		return last
	default:
		return "mixed"
	}
}
