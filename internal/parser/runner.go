package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"auspex/internal/logging"
	"auspex/internal/showcli"
	"auspex/internal/splitter"
	"auspex/internal/workspace"
)

// Artifact is the on-disk parse result for one command on one host,
// written only when parsing succeeded.
type Artifact struct {
	Host       string                 `json:"host"`
	Platform   string                 `json:"platform"`
	Command    string                 `json:"command"`
	CmdKey     string                 `json:"cmd_key"`
	SourceSHA1 string                 `json:"source_sha1"`
	ParsedAt   int64                  `json:"parsed_at"`
	Data       map[string]interface{} `json:"data"`
}

// Coverage is the stage artifact written to audit/coverage.json.
type Coverage struct {
	GeneratedAt int64                     `json:"generated_at"`
	Summary     CoverageSummary           `json:"summary"`
	PerPlatform map[string]*PlatformCount `json:"per_platform"`
	Errors      []CoverageError           `json:"errors"`
}

// CoverageSummary rolls the parse stage up.
type CoverageSummary struct {
	Hosts  int `json:"hosts"`
	Blocks int `json:"blocks"`
	OK     int `json:"ok"`
	Err    int `json:"err"`
}

// PlatformCount splits outcomes per normalized platform.
type PlatformCount struct {
	OK  int `json:"ok"`
	Err int `json:"err"`
}

// CoverageError names one block that produced no parse artifact.
type CoverageError struct {
	Host    string `json:"host"`
	Command string `json:"command"`
	Error   string `json:"error"`
}

// maxCoverageErrors caps the error list in coverage.json.
const maxCoverageErrors = 200

// Runner executes the parse stage over block indexes.
type Runner struct {
	paths  workspace.Paths
	parser *Parser
	log    *logging.Logger
}

// NewRunner returns a Runner writing into paths.
func NewRunner(paths workspace.Paths, p *Parser) *Runner {
	return &Runner{
		paths:  paths,
		parser: p,
		log:    logging.GetLogger("parser"),
	}
}

// Run parses every block of every indexed host (or the given subset)
// and writes per-command artifacts plus the coverage rollup. Parse
// failures are counted, never fatal: the facts stage falls through to
// other providers for those commands.
func (r *Runner) Run(ctx context.Context, hosts []string) (*Coverage, error) {
	if len(hosts) == 0 {
		var err error
		hosts, err = splitter.ListHosts(r.paths)
		if err != nil {
			return nil, err
		}
	}

	cov := &Coverage{
		GeneratedAt: time.Now().Unix(),
		Summary:     CoverageSummary{Hosts: len(hosts)},
		PerPlatform: map[string]*PlatformCount{},
		Errors:      []CoverageError{},
	}
	if len(hosts) == 0 {
		r.log.Info("no block indexes found; nothing to parse")
		return cov, r.writeCoverage(cov)
	}

	for _, host := range hosts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blocks, err := splitter.LoadIndex(r.paths, host)
		if err != nil {
			r.log.Warn("skipping %s: %v", host, err)
			continue
		}
		if len(blocks) == 0 {
			continue
		}
		plat := showcli.NormalizePlatform(blocks[0].PlatformHint)

		for _, b := range blocks {
			cov.Summary.Blocks++
			cmd := b.SanitizedCommand
			key := b.CmdKey
			if key == "" {
				key = showcli.CommandKey(cmd)
			}

			if cmd == "" || b.TextPath == "" || !fileExists(b.TextPath) {
				r.fail(cov, plat, host, cmd, "skip: missing command/text_path")
				continue
			}
			text, err := os.ReadFile(b.TextPath)
			if err != nil {
				r.fail(cov, plat, host, cmd, fmt.Sprintf("read: %v", err))
				continue
			}
			if strings.TrimSpace(string(text)) == "" {
				r.fail(cov, plat, host, cmd, "skip: empty output")
				continue
			}

			data, err := r.parser.Parse(plat, cmd, string(text))
			if err != nil {
				r.fail(cov, plat, host, cmd, err.Error())
				continue
			}

			art := Artifact{
				Host:       host,
				Platform:   plat,
				Command:    cmd,
				CmdKey:     key,
				SourceSHA1: b.OutputSHA1,
				ParsedAt:   time.Now().Unix(),
				Data:       data,
			}
			if err := workspace.WriteJSON(r.paths.ParsedCommandPath(host, plat, key), art); err != nil {
				return nil, err
			}
			cov.Summary.OK++
			r.platform(cov, plat).OK++
		}
	}

	r.log.Info("parsed ok=%d err=%d across %d host(s)",
		cov.Summary.OK, cov.Summary.Err, cov.Summary.Hosts)
	return cov, r.writeCoverage(cov)
}

func (r *Runner) fail(cov *Coverage, plat, host, cmd, reason string) {
	cov.Summary.Err++
	r.platform(cov, plat).Err++
	if len(cov.Errors) < maxCoverageErrors {
		cov.Errors = append(cov.Errors, CoverageError{Host: host, Command: cmd, Error: reason})
	}
	r.log.Debug("%s %q: %s", host, cmd, reason)
}

func (r *Runner) platform(cov *Coverage, plat string) *PlatformCount {
	pc := cov.PerPlatform[plat]
	if pc == nil {
		pc = &PlatformCount{}
		cov.PerPlatform[plat] = pc
	}
	return pc
}

func (r *Runner) writeCoverage(cov *Coverage) error {
	return workspace.WriteJSON(filepath.Join(r.paths.AuditDir, "coverage.json"), cov)
}

// LoadArtifact reads one parse artifact back.
func LoadArtifact(path string) (*Artifact, error) {
	var art Artifact
	if err := workspace.ReadJSON(path, &art); err != nil {
		return nil, err
	}
	return &art, nil
}

// CollectArtifacts maps cmd_key -> artifact path for one host's parsed
// directory. File names are <platform>__<cmd_key>.json.
func CollectArtifacts(paths workspace.Paths, host string) (map[string]string, error) {
	dir := paths.ParsedHostDir(host)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read parsed dir %s: %w", dir, err)
	}
	out := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		idx := strings.Index(name, "__")
		if idx < 0 {
			continue
		}
		key := strings.TrimSuffix(name[idx+2:], ".json")
		out[key] = filepath.Join(dir, name)
	}
	return out, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
