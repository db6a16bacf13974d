package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	bgpRouterIDRe = regexp.MustCompile(`(?i)bgp router identifier\s+([^\s,]+)`)
	bgpLocalASRe  = regexp.MustCompile(`(?i)local AS(?: number)?\s+(\d+)`)
)

// parseBGPSummary reads the neighbor table of `show bgp summary` and
// its ip/ipv4-unicast spellings on both OS flavors. The table tail is
// identical across them: Up/Down then State/PfxRcd, where a numeric
// final column means Established with that many prefixes. Wrapped IPv6
// neighbor lines are stitched back together.
func parseBGPSummary(text string) (map[string]interface{}, error) {
	var (
		rows        []map[string]interface{}
		evidence    []string
		routerID    string
		localAS     int
		stateColumn string
		headerSeen  bool
		pendingAddr string
	)

	for i, line := range textLines(text) {
		trimmed := strings.TrimSpace(line)
		if routerID == "" {
			if m := bgpRouterIDRe.FindStringSubmatch(trimmed); m != nil {
				routerID = m[1]
				evidence = append(evidence, evidenceLine(i+1, line))
			}
		}
		if localAS == 0 {
			if m := bgpLocalASRe.FindStringSubmatch(trimmed); m != nil {
				localAS, _ = strconv.Atoi(m[1])
			}
		}

		f := strings.Fields(line)
		if len(f) == 0 {
			pendingAddr = ""
			continue
		}
		if f[0] == "Neighbor" {
			headerSeen = true
			stateColumn = f[len(f)-1]
			continue
		}
		if !headerSeen {
			continue
		}

		// IPv6 neighbors wrap: the address sits alone, the counters
		// follow on the next line.
		if len(f) == 1 && looksLikeAddress(f[0]) {
			pendingAddr = f[0]
			continue
		}
		if pendingAddr != "" {
			f = append([]string{pendingAddr}, f...)
			pendingAddr = ""
		} else if !looksLikeAddress(f[0]) {
			continue
		}
		if len(f) < 10 {
			continue
		}

		state := f[len(f)-1]
		j := len(f) - 1
		if strings.HasPrefix(state, "(") && j >= 1 {
			state = f[j-1] + " " + state
			j--
		}
		row := map[string]interface{}{
			"neighbor": f[0],
			"as":       f[2],
			"up_down":  f[j-1],
		}
		if n, err := strconv.Atoi(state); err == nil {
			row["state"] = "Established"
			row["prefixes_received"] = n
		} else {
			row["state"] = state
		}
		rows = append(rows, row)
		evidence = append(evidence, evidenceLine(i+1, line))
	}

	if !headerSeen && routerID == "" {
		return nil, ErrNoRows
	}

	byState := stateRollup(rows, "state")
	metrics := map[string]interface{}{
		"bgp_neighbors_total":    len(rows),
		"bgp_neighbors_by_state": byState,
	}
	if stateColumn != "" {
		metrics["bgp_neighbors_state_column"] = stateColumn
	}
	if routerID != "" {
		metrics["router_id"] = routerID
	}
	if localAS != 0 {
		metrics["local_as"] = localAS
	}

	return map[string]interface{}{
		"summary":  rollupSummary(len(rows), "bgp neighbors", byState),
		"status":   statusObj("bgp_neighbors", overallState(byState), "neighbor table state column"),
		"metrics":  metrics,
		"tables":   map[string]interface{}{"bgp_neighbors": rows},
		"evidence": capEvidence(evidence),
	}, nil
}

// looksLikeAddress reports whether a token reads as an IPv4 or IPv6
// address. Good enough to tell neighbor rows from table chrome.
func looksLikeAddress(tok string) bool {
	if isIPv4ish(tok) {
		return true
	}
	if !strings.Contains(tok, ":") || strings.Contains(tok, "/") {
		return false
	}
	for _, r := range tok {
		if !strings.ContainsRune("0123456789abcdefABCDEF:.", r) {
			return false
		}
	}
	return true
}

func isIPv4ish(tok string) bool {
	parts := strings.Split(tok, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}
