package logging

import (
	"fmt"
	"strings"
	"sync"
)

// LogLevel orders message severities.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// LogField is one structured key/value pair.
type LogField struct {
	Key   string
	Value interface{}
}

// Field builds a LogField.
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// ParseLevel converts a level name to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "fatal":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("invalid log level %q (debug, info, warn, error, fatal)", s)
}

var (
	pkgMu     sync.RWMutex
	pkgLevels = map[string]LogLevel{}
)

// SetPackageLevels replaces the per-package level overrides.
// Keys are logger names or prefix patterns ("pipeline.*").
func SetPackageLevels(levels map[string]string) error {
	parsed := make(map[string]LogLevel, len(levels))
	for pkg, s := range levels {
		level, err := ParseLevel(s)
		if err != nil {
			return fmt.Errorf("package %q: %w", pkg, err)
		}
		parsed[pkg] = level
	}
	pkgMu.Lock()
	pkgLevels = parsed
	pkgMu.Unlock()
	return nil
}

// packageLevel resolves an override for name. Exact matches win over
// patterns; among patterns the longest prefix wins.
func packageLevel(name string) (LogLevel, bool) {
	pkgMu.RLock()
	defer pkgMu.RUnlock()

	if level, ok := pkgLevels[name]; ok {
		return level, true
	}
	bestLen := -1
	var best LogLevel
	for pattern, level := range pkgLevels {
		if !strings.HasSuffix(pattern, ".*") {
			continue
		}
		prefix := strings.TrimSuffix(pattern, ".*")
		if strings.HasPrefix(name, prefix+".") && len(pattern) > bestLen {
			bestLen = len(pattern)
			best = level
		}
	}
	if bestLen >= 0 {
		return best, true
	}
	return 0, false
}
