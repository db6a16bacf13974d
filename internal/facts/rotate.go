package facts

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const rotateStamp = "20060102-150405"

// rotateStale quarantines parse directories and facts files belonging
// to hosts that are no longer indexed. Nothing is deleted: entries
// move under _prev/<timestamp>/ keeping their names, `_`-prefixed
// entries and the summary file are exempt, and failures only log. An
// empty keep set disables rotation entirely rather than quarantining
// the whole workspace.
func (b *Builder) rotateStale(keep []string) {
	if len(keep) == 0 {
		return
	}
	keepSet := map[string]bool{}
	for _, h := range keep {
		keepSet[h] = true
	}
	stamp := time.Now().Format(rotateStamp)
	b.rotateParsedDirs(keepSet, stamp)
	b.rotateFactsFiles(keepSet, stamp)
}

func (b *Builder) rotateParsedDirs(keep map[string]bool, stamp string) {
	entries, err := os.ReadDir(b.paths.ParsedDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, "_") || keep[name] {
			continue
		}
		dst := filepath.Join(b.paths.ParsedPrevDir, stamp, name)
		if err := moveEntry(filepath.Join(b.paths.ParsedDir, name), dst); err != nil {
			b.log.Warn("rotate parsed dir %s: %v", name, err)
			continue
		}
		b.trail.Rotation(name, "parsed", b.paths.Rel(dst))
		b.log.Info("rotated stale parsed dir %s -> %s", name, b.paths.Rel(dst))
	}
}

func (b *Builder) rotateFactsFiles(keep map[string]bool, stamp string) {
	summaryName := filepath.Base(b.paths.FactsSummaryFile)
	entries, err := os.ReadDir(b.paths.FactsDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if name == summaryName {
			continue
		}
		host := strings.TrimSuffix(name, ".json")
		if keep[host] {
			continue
		}
		dst := filepath.Join(b.paths.FactsPrevDir, stamp, name)
		if err := moveEntry(filepath.Join(b.paths.FactsDir, name), dst); err != nil {
			b.log.Warn("rotate facts %s: %v", name, err)
			continue
		}
		b.trail.Rotation(host, "facts", b.paths.Rel(dst))
		b.log.Info("rotated stale facts %s -> %s", name, b.paths.Rel(dst))
	}
}

func moveEntry(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}
