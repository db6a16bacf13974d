// Package splitter turns captured markdown into per-command blocks.
//
// A capture file is a sequence of sections: a `##`..`####` heading that
// names a show command, then a fenced code block whose first non-empty
// line echoes the command and whose remainder is the device output.
// The splitter writes each output to its own text file and records a
// per-host JSON index that every later stage keys off. Baseline
// markdown, when present, is merged ahead of the fresh capture so the
// analysis sees both.
package splitter

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"auspex/internal/audit"
	"auspex/internal/logging"
	"auspex/internal/showcli"
	"auspex/internal/workspace"
)

// Block is one indexed command section of a host capture.
type Block struct {
	Host             string `json:"host"`
	PlatformHint     string `json:"platform_hint"`
	Heading          string `json:"heading"`
	Echoed           string `json:"echoed"`
	SanitizedCommand string `json:"sanitized_command"`
	CmdKey           string `json:"cmd_key"`
	OutputSHA1       string `json:"output_text_sha1"`
	TextPath         string `json:"text_path"`
	StartLine        int    `json:"start_line"`
	EndLine          int    `json:"end_line"`
}

// Summary is the run artifact written to meta/md_index_summary.json.
type Summary struct {
	GeneratedAt int64                `json:"generated_at"`
	Hosts       map[string]HostEntry `json:"hosts"`
}

// HostEntry summarizes one host's split result.
type HostEntry struct {
	PlatformHint string `json:"platform_hint"`
	Blocks       int    `json:"blocks"`
	Dir          string `json:"dir"`
	IndexPath    string `json:"index_path"`
}

// Splitter runs the split stage against one workspace.
type Splitter struct {
	paths workspace.Paths
	trail *audit.Trail
	log   *logging.Logger
}

// New returns a Splitter. The audit trail may be nil.
func New(paths workspace.Paths, trail *audit.Trail) *Splitter {
	return &Splitter{
		paths: paths,
		trail: trail,
		log:   logging.GetLogger("splitter"),
	}
}

// Run splits every host capture into blocks and writes the per-host
// indexes plus the run summary. When hosts is non-empty only those
// hosts are processed. An index is written even when a capture yields
// zero blocks: downstream stages treat that as "the capture produced
// nothing" rather than falling back to older artifacts.
func (s *Splitter) Run(ctx context.Context, hosts []string) (*Summary, error) {
	merged, err := s.readCaptures(hosts)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		GeneratedAt: time.Now().Unix(),
		Hosts:       map[string]HostEntry{},
	}

	names := make([]string, 0, len(merged))
	for h := range merged {
		names = append(names, h)
	}
	sort.Strings(names)

	total := 0
	for _, host := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := s.writeHost(host, merged[host])
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", host, err)
		}
		total += len(entries)

		plat := showcli.PlatformUnknown
		if len(entries) > 0 {
			plat = entries[0].PlatformHint
		}
		summary.Hosts[host] = HostEntry{
			PlatformHint: plat,
			Blocks:       len(entries),
			Dir:          s.paths.BlockTextDir(host),
			IndexPath:    s.paths.BlocksIndexPath(host),
		}
	}

	if err := workspace.WriteJSON(filepath.Join(s.paths.MetaDir, "md_index_summary.json"), summary); err != nil {
		return nil, err
	}
	s.log.Info("split %d host(s), %d block(s)", len(names), total)
	return summary, nil
}

// readCaptures returns host -> merged markdown. Baseline text comes
// first, then the fresh capture, separated by a blank line when both
// are present.
func (s *Splitter) readCaptures(hosts []string) (map[string]string, error) {
	baseline, err := readMarkdownDir(s.paths.BaselineDir)
	if err != nil {
		return nil, err
	}
	fresh, err := readMarkdownDir(s.paths.ShowLogsDir)
	if err != nil {
		return nil, err
	}

	want := map[string]bool{}
	for _, h := range hosts {
		want[h] = true
	}

	merged := map[string]string{}
	for host := range baseline {
		merged[host] = baseline[host]
	}
	for host := range fresh {
		a := merged[host]
		b := fresh[host]
		sep := ""
		if a != "" && b != "" {
			sep = "\n\n"
		}
		merged[host] = a + sep + b
	}

	if len(want) > 0 {
		for host := range merged {
			if !want[host] {
				delete(merged, host)
			}
		}
		for h := range want {
			if _, ok := merged[h]; !ok {
				s.log.Warn("no capture markdown for requested host %s", h)
			}
		}
	}
	return merged, nil
}

func readMarkdownDir(dir string) (map[string]string, error) {
	out := map[string]string{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read capture dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read capture %s: %w", e.Name(), err)
		}
		host := strings.TrimSuffix(e.Name(), ".md")
		out[host] = string(data)
	}
	return out, nil
}

// writeHost materializes one host's blocks: numbered text files, the
// JSON index, and a mirror of the index under the audit directory.
func (s *Splitter) writeHost(host, md string) ([]Block, error) {
	plat := showcli.NormalizePlatform(inferPlatform(md))
	raw := extractBlocks(md)

	hostDir := s.paths.BlockTextDir(host)
	if err := os.MkdirAll(hostDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", hostDir, err)
	}

	entries := make([]Block, 0, len(raw))
	for i, blk := range raw {
		clean, ok := showcli.Sanitize(blk.echoed, plat)
		if !ok {
			clean = ""
			if blk.echoed != "" {
				s.trail.BlockDropped(host, blk.heading, "echoed command failed sanitization")
				s.log.Debug("%s: rejected echoed command %q", host, blk.echoed)
			}
		}

		stemSrc := clean
		if stemSrc == "" {
			stemSrc = blk.heading
		}
		stem := fmt.Sprintf("%03d__%s", i+1, showcli.Slug(stemSrc))
		textPath := filepath.Join(hostDir, stem+".txt")

		body := blk.output
		if body != "" && !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		if err := os.WriteFile(textPath, []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("write block text %s: %w", textPath, err)
		}

		keySrc := clean
		if keySrc == "" {
			keySrc = blk.heading
		}
		entries = append(entries, Block{
			Host:             host,
			PlatformHint:     plat,
			Heading:          blk.heading,
			Echoed:           blk.echoed,
			SanitizedCommand: clean,
			CmdKey:           showcli.CommandKey(keySrc),
			OutputSHA1:       sha1Hex(blk.output),
			TextPath:         textPath,
			StartLine:        blk.startLine,
			EndLine:          blk.endLine,
		})
	}

	indexPath := s.paths.BlocksIndexPath(host)
	if err := workspace.WriteJSON(indexPath, entries); err != nil {
		return nil, err
	}
	workspace.WriteJSONBestEffort(filepath.Join(s.paths.AuditDir, host+"__blocks.json"), entries)
	return entries, nil
}

// LoadIndex reads one host's block index. A missing index returns an
// error; stages that tolerate absence check freshness first.
func LoadIndex(paths workspace.Paths, host string) ([]Block, error) {
	var entries []Block
	if err := workspace.ReadJSON(paths.BlocksIndexPath(host), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CaptureHosts returns the hosts that have capture markdown on disk,
// baseline or fresh, sorted. This is the set the split stage would
// process, known before any index exists.
func CaptureHosts(paths workspace.Paths) ([]string, error) {
	seen := map[string]bool{}
	for _, dir := range []string{paths.BaselineDir, paths.ShowLogsDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read capture dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			seen[strings.TrimSuffix(e.Name(), ".md")] = true
		}
	}
	hosts := make([]string, 0, len(seen))
	for h := range seen {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts, nil
}

// ListHosts returns the hosts that currently have a block index,
// sorted. This set is authoritative for every stage after the split.
func ListHosts(paths workspace.Paths) ([]string, error) {
	entries, err := os.ReadDir(paths.MDIndexDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read md-index dir: %w", err)
	}
	var hosts []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		if _, err := os.Stat(paths.BlocksIndexPath(e.Name())); err == nil {
			hosts = append(hosts, e.Name())
		}
	}
	sort.Strings(hosts)
	return hosts, nil
}

var headingRe = regexp.MustCompile(`^#{2,4}\s+(.+)$`)

type rawBlock struct {
	heading   string
	echoed    string
	output    string
	startLine int
	endLine   int
}

// extractBlocks scans markdown for show-command sections. A section is
// a heading containing "show " followed by a fenced code block; the
// fence's first non-empty line is the echoed command, the rest is the
// output. Headings with no following fence are skipped. An unclosed
// fence runs to the end of the text.
func extractBlocks(md string) []rawBlock {
	var blocks []rawBlock
	if md == "" {
		return blocks
	}
	md = strings.ReplaceAll(md, "\r\n", "\n")
	lines := strings.Split(md, "\n")
	n := len(lines)

	i := 0
	for i < n {
		m := headingRe.FindStringSubmatch(lines[i])
		if m == nil {
			i++
			continue
		}
		heading := strings.TrimSpace(m[1])
		if !strings.Contains(strings.ToLower(heading), "show ") {
			i++
			continue
		}

		j := i + 1
		for j < n && !strings.HasPrefix(lines[j], "```") {
			j++
		}
		if j >= n {
			i++
			continue
		}

		j++
		var body []string
		for j < n && !strings.HasPrefix(lines[j], "```") {
			body = append(body, lines[j])
			j++
		}

		k := 0
		for k < len(body) && strings.TrimSpace(body[k]) == "" {
			k++
		}
		echoed := ""
		output := body
		if k < len(body) {
			echoed = strings.TrimSpace(body[k])
			output = body[k+1:]
		}

		endLine := j + 1
		if endLine > n {
			endLine = n
		}
		blocks = append(blocks, rawBlock{
			heading:   heading,
			echoed:    echoed,
			output:    strings.TrimRight(strings.Join(output, "\n"), " \t\r\n"),
			startLine: i + 1,
			endLine:   endLine,
		})
		if j < n {
			i = j + 1
		} else {
			i = j
		}
	}
	return blocks
}

// inferPlatform fingerprints the capture text. IOS XR prompts carry
// "RP/" and XR banners; classic IOS shows its own banner lines.
func inferPlatform(md string) string {
	if md == "" {
		return showcli.PlatformUnknown
	}
	if strings.Contains(md, "RP/") || strings.Contains(md, "IOS XR") || strings.Contains(md, "config-bgp") {
		return showcli.PlatformIOSXR
	}
	if strings.Contains(md, "IOS Software") || strings.Contains(md, "Building configuration") {
		return showcli.PlatformIOS
	}
	return showcli.PlatformUnknown
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
