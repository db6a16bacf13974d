package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// parseRouteSummaryXR reads `show route summary` on IOS XR: each row
// is a route source followed by Routes, Backup, Deleted and Memory
// columns. The Total row feeds metrics instead of the table.
func parseRouteSummaryXR(text string) (map[string]interface{}, error) {
	var (
		rows     []map[string]interface{}
		evidence []string
		total    = -1
	)
	for i, line := range textLines(text) {
		f := strings.Fields(line)
		if len(f) < 5 {
			continue
		}
		nums, ok := trailingInts(f, 4)
		if !ok {
			continue
		}
		source := strings.Join(f[:len(f)-4], " ")
		if source == "" {
			continue
		}
		if strings.EqualFold(source, "Total") {
			total = nums[0]
			evidence = append(evidence, evidenceLine(i+1, line))
			continue
		}
		rows = append(rows, map[string]interface{}{
			"source":       source,
			"routes":       nums[0],
			"backup":       nums[1],
			"deleted":      nums[2],
			"memory_bytes": nums[3],
		})
		evidence = append(evidence, evidenceLine(i+1, line))
	}
	return routeSummaryDoc(rows, evidence, total)
}

// parseRouteSummaryXE reads `show ip route summary` on IOS/IOS XE:
// Networks, Subnets, Replicates, Overhead and Memory columns. Indented
// per-protocol detail lines carry fewer numerics and are skipped.
func parseRouteSummaryXE(text string) (map[string]interface{}, error) {
	var (
		rows     []map[string]interface{}
		evidence []string
		total    = -1
	)
	for i, line := range textLines(text) {
		if strings.HasPrefix(line, " ") {
			continue
		}
		f := strings.Fields(line)
		if len(f) < 6 {
			continue
		}
		nums, ok := trailingInts(f, 5)
		if !ok {
			continue
		}
		source := strings.Join(f[:len(f)-5], " ")
		if source == "" {
			continue
		}
		if strings.EqualFold(source, "Total") {
			total = nums[0] + nums[1]
			evidence = append(evidence, evidenceLine(i+1, line))
			continue
		}
		rows = append(rows, map[string]interface{}{
			"source":       source,
			"networks":     nums[0],
			"subnets":      nums[1],
			"replicates":   nums[2],
			"overhead":     nums[3],
			"memory_bytes": nums[4],
		})
		evidence = append(evidence, evidenceLine(i+1, line))
	}
	return routeSummaryDoc(rows, evidence, total)
}

func routeSummaryDoc(rows []map[string]interface{}, evidence []string, total int) (map[string]interface{}, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	metrics := map[string]interface{}{
		"route_sources": len(rows),
	}
	summary := fmt.Sprintf("%d route sources", len(rows))
	if total >= 0 {
		metrics["routes_total"] = total
		summary = fmt.Sprintf("%d routes from %d sources", total, len(rows))
	}
	return map[string]interface{}{
		"summary":  summary,
		"status":   statusObj("route_summary", "unknown", "route counts extracted; table has no state column"),
		"metrics":  metrics,
		"tables":   map[string]interface{}{"route_sources": rows},
		"evidence": capEvidence(evidence),
	}, nil
}

// trailingInts parses the last n fields as integers.
func trailingInts(f []string, n int) ([]int, bool) {
	if len(f) < n {
		return nil, false
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(f[len(f)-n+i])
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

var cpuUtilRe = regexp.MustCompile(`(?i)CPU utilization for five seconds:\s*([\d.]+)%(?:/([\d.]+)%)?;\s*one minute:\s*([\d.]+)%;\s*five minutes:\s*([\d.]+)%`)

// parseProcessesCPU reads the utilization header of `show processes
// cpu`. The per-process table is left to the raw text.
func parseProcessesCPU(text string) (map[string]interface{}, error) {
	for i, line := range textLines(text) {
		m := cpuUtilRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fiveSec, _ := strconv.ParseFloat(m[1], 64)
		oneMin, _ := strconv.ParseFloat(m[3], 64)
		fiveMin, _ := strconv.ParseFloat(m[4], 64)

		metrics := map[string]interface{}{
			"cpu_5s_percent": fiveSec,
			"cpu_1m_percent": oneMin,
			"cpu_5m_percent": fiveMin,
		}
		if m[2] != "" {
			intr, _ := strconv.ParseFloat(m[2], 64)
			metrics["cpu_5s_interrupt_percent"] = intr
		}
		row := map[string]interface{}{
			"five_seconds": m[1] + "%",
			"one_minute":   m[3] + "%",
			"five_minutes": m[4] + "%",
		}
		return map[string]interface{}{
			"summary":  fmt.Sprintf("cpu %s%% (5s), %s%% (1m), %s%% (5m)", m[1], m[3], m[4]),
			"status":   statusObj("processes_cpu", "unknown", "utilization extracted; no up/down state"),
			"metrics":  metrics,
			"tables":   map[string]interface{}{"utilization": []map[string]interface{}{row}},
			"evidence": []string{evidenceLine(i+1, line)},
		}, nil
	}
	return nil, fmt.Errorf("%w: no utilization header", ErrNoRows)
}
