// Package workspace resolves the on-disk artifact layout.
//
// All pipeline stages address the same tree under a single data
// directory:
//
//	capture/plan/devices.json       authoritative inventory (written elsewhere)
//	capture/show_logs/<host>.md     fresh capture markdown
//	capture/show_logs/_baseline/    optional baseline markdown
//	analysis/md-index/<host>/       per-command block texts + index
//	analysis/parsed/<host>/         deterministic parse artifacts
//	analysis/facts/<host>.json      per-host facts
//	analysis/per_device.json        per-device analysis rollup
//	analysis/cross_device.json      cross-device analysis
//	analysis/audit/                 event log, prompts, raw replies
//	analysis/meta/                  run metadata
//	knowledge/seed/, knowledge/cache/
//
// Resolve is pure; only EnsureDirs touches the filesystem.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths holds every directory and file the pipeline reads or writes.
type Paths struct {
	Root string

	PlanDir     string
	DevicesFile string

	ShowLogsDir string
	BaselineDir string

	AnalysisDir   string
	MDIndexDir    string
	ParsedDir     string
	ParsedPrevDir string
	FactsDir      string
	FactsPrevDir  string

	FactsSummaryFile string
	PerDeviceFile    string
	CrossDeviceFile  string

	AuditDir string
	MetaDir  string

	KnowledgeSeedDir  string
	KnowledgeCacheDir string
}

// Resolve builds absolute Paths under dataDir. Pure except for the
// working-directory lookup needed to absolutize relative paths.
func Resolve(dataDir string) (Paths, error) {
	if dataDir == "" {
		dataDir = "."
	}
	root, err := filepath.Abs(dataDir)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve data dir %q: %w", dataDir, err)
	}

	capture := filepath.Join(root, "capture")
	analysis := filepath.Join(root, "analysis")
	knowledge := filepath.Join(root, "knowledge")

	p := Paths{
		Root: root,

		PlanDir:     filepath.Join(capture, "plan"),
		DevicesFile: filepath.Join(capture, "plan", "devices.json"),

		ShowLogsDir: filepath.Join(capture, "show_logs"),
		BaselineDir: filepath.Join(capture, "show_logs", "_baseline"),

		AnalysisDir:   analysis,
		MDIndexDir:    filepath.Join(analysis, "md-index"),
		ParsedDir:     filepath.Join(analysis, "parsed"),
		ParsedPrevDir: filepath.Join(analysis, "parsed", "_prev"),
		FactsDir:      filepath.Join(analysis, "facts"),
		FactsPrevDir:  filepath.Join(analysis, "facts", "_prev"),

		FactsSummaryFile: filepath.Join(analysis, "facts", "facts_summary.json"),
		PerDeviceFile:    filepath.Join(analysis, "per_device.json"),
		CrossDeviceFile:  filepath.Join(analysis, "cross_device.json"),

		AuditDir: filepath.Join(analysis, "audit"),
		MetaDir:  filepath.Join(analysis, "meta"),

		KnowledgeSeedDir:  filepath.Join(knowledge, "seed"),
		KnowledgeCacheDir: filepath.Join(knowledge, "cache"),
	}
	return p, nil
}

// EnsureDirs creates the directories the pipeline writes into. Capture
// directories are created too so a fresh workspace is usable at once.
func (p Paths) EnsureDirs() error {
	dirs := []string{
		p.PlanDir,
		p.ShowLogsDir,
		p.BaselineDir,
		p.MDIndexDir,
		p.ParsedDir,
		p.FactsDir,
		p.AuditDir,
		p.MetaDir,
		p.KnowledgeSeedDir,
		p.KnowledgeCacheDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// HostCapturePath is the fresh capture markdown for host.
func (p Paths) HostCapturePath(host string) string {
	return filepath.Join(p.ShowLogsDir, safeComponent(host)+".md")
}

// BaselineCapturePath is the baseline capture markdown for host.
func (p Paths) BaselineCapturePath(host string) string {
	return filepath.Join(p.BaselineDir, safeComponent(host)+".md")
}

// BlockTextDir is the per-host directory of split command outputs.
func (p Paths) BlockTextDir(host string) string {
	return filepath.Join(p.MDIndexDir, safeComponent(host))
}

// BlocksIndexPath is the per-host block index.
func (p Paths) BlocksIndexPath(host string) string {
	host = safeComponent(host)
	return filepath.Join(p.MDIndexDir, host, host+"__blocks.json")
}

// ParsedCommandPath is the parse artifact for one command on one host.
func (p Paths) ParsedCommandPath(host, platform, cmdKey string) string {
	name := safeComponent(platform) + "__" + safeComponent(cmdKey) + ".json"
	return filepath.Join(p.ParsedDir, safeComponent(host), name)
}

// ParsedHostDir is the per-host directory of parse artifacts.
func (p Paths) ParsedHostDir(host string) string {
	return filepath.Join(p.ParsedDir, safeComponent(host))
}

// HostFactsPath is the facts document for one host.
func (p Paths) HostFactsPath(host string) string {
	return filepath.Join(p.FactsDir, safeComponent(host)+".json")
}

// ScopedPerDevicePath names the per-device artifact for an explicit host
// subset. The canonical per_device.json is never written by scoped runs.
func (p Paths) ScopedPerDevicePath(scopeID string) string {
	return filepath.Join(p.AnalysisDir, "per_device__scoped__"+safeComponent(scopeID)+".json")
}

// Rel shortens path to a root-relative form for artifacts and logs. The
// input is returned unchanged when it lies outside the workspace.
func (p Paths) Rel(path string) string {
	rel, err := filepath.Rel(p.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// safeComponent keeps host and command derived names inside their
// directory: separators and traversal sequences are replaced.
func safeComponent(s string) string {
	s = strings.ReplaceAll(s, string(os.PathSeparator), "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "..", "_")
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return s
}
