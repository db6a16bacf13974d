// Package freshness decides whether pipeline artifacts can be reused.
//
// An artifact is fresh when it exists, is at least as new as every input
// it was derived from, and is younger than the configured TTL. The TTL
// guards against trusting old analysis even when nothing upstream moved;
// it never extends reuse, only limits it.
package freshness

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"auspex/internal/workspace"
)

// Stale reasons returned alongside a false freshness verdict.
const (
	ReasonMissingOutput = "missing output"
	ReasonInputsNewer   = "inputs newer than output"
	ReasonTTLExpired    = "ttl expired"
	ReasonNoParsed      = "no parsed json"
)

// Fresh reports whether output can be reused given its inputs. Missing
// inputs contribute nothing; a missing output is always stale. A ttl of
// zero or less disables the age check, leaving only mtime ordering.
func Fresh(output string, inputs []string, ttl time.Duration) (bool, string) {
	outM := mtime(output)
	if outM.IsZero() {
		return false, ReasonMissingOutput
	}
	for _, in := range inputs {
		if m := mtime(in); m.After(outM) {
			return false, ReasonInputsNewer
		}
	}
	if ttl > 0 && time.Since(outM) > ttl {
		return false, ReasonTTLExpired
	}
	return true, ""
}

// Gate evaluates artifact-specific freshness over a workspace.
type Gate struct {
	paths workspace.Paths
	ttl   time.Duration
}

// NewGate builds a Gate for the workspace with the given TTL.
func NewGate(paths workspace.Paths, ttl time.Duration) *Gate {
	return &Gate{paths: paths, ttl: ttl}
}

// MDIndexFresh checks the per-host block index against the host's
// capture markdown (fresh and baseline).
func (g *Gate) MDIndexFresh(host string) (bool, string) {
	inputs := []string{
		g.paths.HostCapturePath(host),
		g.paths.BaselineCapturePath(host),
	}
	return Fresh(g.paths.BlocksIndexPath(host), inputs, g.ttl)
}

// ParsedFresh checks the host's parse artifacts against its block
// index. The newest parsed JSON stands in for the stage output.
func (g *Gate) ParsedFresh(host string) (bool, string) {
	newest, ok := newestJSON(g.paths.ParsedHostDir(host))
	if !ok {
		return false, ReasonNoParsed
	}
	return Fresh(newest, []string{g.paths.BlocksIndexPath(host)}, g.ttl)
}

// FactsFresh checks the host facts document against every parse
// artifact for that host.
func (g *Gate) FactsFresh(host string) (bool, string) {
	parsed := listJSON(g.paths.ParsedHostDir(host))
	if len(parsed) == 0 {
		return false, ReasonNoParsed
	}
	return Fresh(g.paths.HostFactsPath(host), parsed, g.ttl)
}

// PerDeviceFresh checks the per-device rollup against all host facts.
func (g *Gate) PerDeviceFresh() (bool, string) {
	return Fresh(g.paths.PerDeviceFile, factsInputs(g.paths), g.ttl)
}

// CrossDeviceFresh checks the cross-device report against the
// per-device rollup and all host facts.
func (g *Gate) CrossDeviceFresh() (bool, string) {
	inputs := append([]string{g.paths.PerDeviceFile}, factsInputs(g.paths)...)
	return Fresh(g.paths.CrossDeviceFile, inputs, g.ttl)
}

func factsInputs(paths workspace.Paths) []string {
	files := listJSON(paths.FactsDir)
	out := files[:0]
	for _, f := range files {
		if filepath.Base(f) == filepath.Base(paths.FactsSummaryFile) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func mtime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// listJSON returns the top-level .json files in dir. Subdirectories
// (the _prev quarantine in particular) are not descended into.
func listJSON(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out
}

func newestJSON(dir string) (string, bool) {
	var newest string
	var newestM time.Time
	for _, f := range listJSON(dir) {
		if m := mtime(f); newest == "" || m.After(newestM) {
			newest, newestM = f, m
		}
	}
	return newest, newest != ""
}
