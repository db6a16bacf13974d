package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	versionLineRe = regexp.MustCompile(`(?i)^cisco ios.*software.*version\s+([^,\s\[\]]+)`)
	uptimeLineRe  = regexp.MustCompile(`(?i)^(\S+)\s+uptime is\s+(.+)$`)
	uptimeUnitRe  = regexp.MustCompile(`(?i)(\d+)\s*(year|week|day|hour|minute|second)s?`)
)

// parseShowVersion reads the banner of `show version` on both IOS and
// IOS XR: the software version line and, when present, the uptime.
func parseShowVersion(text string) (map[string]interface{}, error) {
	var (
		version  string
		uptime   string
		evidence []string
	)

	for i, line := range textLines(text) {
		trimmed := strings.TrimSpace(line)
		if version == "" {
			if m := versionLineRe.FindStringSubmatch(trimmed); m != nil {
				version = m[1]
				evidence = append(evidence, evidenceLine(i+1, line))
				continue
			}
		}
		if uptime == "" {
			if m := uptimeLineRe.FindStringSubmatch(trimmed); m != nil {
				uptime = strings.TrimSpace(m[2])
				evidence = append(evidence, evidenceLine(i+1, line))
			}
		}
	}
	if version == "" {
		return nil, fmt.Errorf("%w: no version banner", ErrNoRows)
	}

	metrics := map[string]interface{}{}
	row := map[string]interface{}{"version": version}
	if uptime != "" {
		row["uptime"] = uptime
		metrics["uptime_seconds"] = uptimeSeconds(uptime)
	}

	summary := "software version " + version
	if uptime != "" {
		summary += ", up " + uptime
	}
	value := "unknown"
	if uptime != "" {
		value = "up"
	}

	return map[string]interface{}{
		"summary":  summary,
		"status":   statusObj("version", value, "version banner parsed from output"),
		"metrics":  metrics,
		"tables":   map[string]interface{}{"system": []map[string]interface{}{row}},
		"evidence": capEvidence(evidence),
	}, nil
}

// uptimeSeconds converts an uptime phrase like "2 weeks, 3 days, 1
// hour" into seconds. Unrecognized fragments are ignored.
func uptimeSeconds(s string) int {
	unit := map[string]int{
		"year":   365 * 24 * 3600,
		"week":   7 * 24 * 3600,
		"day":    24 * 3600,
		"hour":   3600,
		"minute": 60,
		"second": 1,
	}
	total := 0
	for _, m := range uptimeUnitRe.FindAllStringSubmatch(s, -1) {
		n := 0
		fmt.Sscanf(m[1], "%d", &n)
		total += n * unit[strings.ToLower(m[2])]
	}
	return total
}
