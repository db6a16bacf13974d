package parser

import (
	"regexp"
	"strings"
	"unicode"
)

// parseInterfaceBriefXE reads `show ip interface brief` on classic
// IOS/IOS XE. Status may span words ("administratively down"), so the
// row is split from both ends: protocol is the last field, status is
// everything between the method column and it.
func parseInterfaceBriefXE(text string) (map[string]interface{}, error) {
	var (
		rows     []map[string]interface{}
		evidence []string
	)
	for i, line := range textLines(text) {
		f := strings.Fields(line)
		if len(f) < 6 || !looksLikeInterface(f[0]) {
			continue
		}
		rows = append(rows, map[string]interface{}{
			"interface":  f[0],
			"ip_address": f[1],
			"status":     strings.Join(f[4:len(f)-1], " "),
			"protocol":   f[len(f)-1],
		})
		evidence = append(evidence, evidenceLine(i+1, line))
	}
	return interfaceBriefDoc(rows, evidence)
}

// parseInterfaceBriefXR reads `show ipv4 interface brief` on IOS XR.
// Columns are single tokens; the trailing VRF column is optional on
// older releases.
func parseInterfaceBriefXR(text string) (map[string]interface{}, error) {
	var (
		rows     []map[string]interface{}
		evidence []string
	)
	for i, line := range textLines(text) {
		f := strings.Fields(line)
		if len(f) < 4 || !looksLikeInterface(f[0]) {
			continue
		}
		row := map[string]interface{}{
			"interface":  f[0],
			"ip_address": f[1],
			"status":     f[2],
			"protocol":   f[3],
		}
		if len(f) >= 5 {
			row["vrf"] = f[4]
		}
		rows = append(rows, row)
		evidence = append(evidence, evidenceLine(i+1, line))
	}
	return interfaceBriefDoc(rows, evidence)
}

func interfaceBriefDoc(rows []map[string]interface{}, evidence []string) (map[string]interface{}, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	byState := stateRollup(rows, "status")
	return map[string]interface{}{
		"summary": rollupSummary(len(rows), "interfaces", byState),
		"status":  statusObj("interfaces", overallState(byState), "per-interface status column"),
		"metrics": map[string]interface{}{
			"interfaces_total":        len(rows),
			"interfaces_by_state":     byState,
			"interfaces_state_column": "Status",
		},
		"tables":   map[string]interface{}{"interfaces": rows},
		"evidence": capEvidence(evidence),
	}, nil
}

var intfStateRe = regexp.MustCompile(`^(\S+) is (administratively down|up|down)(?:,\s*line protocol is\s+(.+))?$`)

// parseInterfaces reads the long `show interfaces` form, keeping the
// per-interface state line and ignoring the counter body.
func parseInterfaces(text string) (map[string]interface{}, error) {
	var (
		rows     []map[string]interface{}
		evidence []string
	)
	for i, line := range textLines(text) {
		m := intfStateRe.FindStringSubmatch(strings.TrimRight(line, " \t"))
		if m == nil || strings.HasPrefix(line, " ") {
			continue
		}
		row := map[string]interface{}{
			"interface": m[1],
			"state":     m[2],
		}
		if m[3] != "" {
			row["line_protocol"] = strings.TrimSpace(m[3])
		}
		rows = append(rows, row)
		evidence = append(evidence, evidenceLine(i+1, line))
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	byState := stateRollup(rows, "state")
	return map[string]interface{}{
		"summary": rollupSummary(len(rows), "interfaces", byState),
		"status":  statusObj("interfaces", overallState(byState), "per-interface state lines"),
		"metrics": map[string]interface{}{
			"interfaces_total":        len(rows),
			"interfaces_by_state":     byState,
			"interfaces_state_column": "State",
		},
		"tables":   map[string]interface{}{"interfaces": rows},
		"evidence": capEvidence(evidence),
	}, nil
}

// looksLikeInterface reports whether a token reads as an interface
// name: leading letter, at least one digit (GigabitEthernet0/0,
// Loopback0, Bundle-Ether100). Header words fail the digit test.
func looksLikeInterface(tok string) bool {
	if tok == "" {
		return false
	}
	r := rune(tok[0])
	if !unicode.IsLetter(r) {
		return false
	}
	return strings.ContainsAny(tok, "0123456789")
}
