// Package parser is the deterministic extraction tier: offline parsers
// for common Cisco show commands, keyed by (OS flavor, command).
//
// Every parser emits the same document shape the LLM extraction tier
// is held to (summary, status, metrics, tables, evidence) so facts
// consumers address both through identical dotted paths. A command
// with no registered parser, or output a parser cannot read, is not an
// error condition for the pipeline: the provider chain simply moves to
// the next tier.
package parser

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"auspex/internal/logging"
	"auspex/internal/showcli"
)

// OS keys for parser registration. Unknown platforms parse with the
// iosxe flavor, which reads classic IOS output too.
const (
	OSIOSXR = "iosxr"
	OSIOSXE = "iosxe"
)

// ErrNoParser marks commands with no registered parser for the OS.
var ErrNoParser = errors.New("no parser registered")

// ErrNoRows marks output a parser recognized but found no data in.
var ErrNoRows = errors.New("no rows parsed")

// Func parses one command's raw output into the shared document shape.
type Func func(text string) (map[string]interface{}, error)

// OSKey maps a platform hint onto the parser OS flavor.
func OSKey(platform string) string {
	if showcli.NormalizePlatform(platform) == showcli.PlatformIOSXR {
		return OSIOSXR
	}
	return OSIOSXE
}

// Registry holds parser functions per OS flavor.
type Registry struct {
	byOS map[string]map[string]Func
}

// NewRegistry returns a registry with every built-in parser installed.
func NewRegistry() *Registry {
	r := &Registry{byOS: map[string]map[string]Func{
		OSIOSXR: {},
		OSIOSXE: {},
	}}
	registerBuiltins(r)
	return r
}

// Register installs fn for command under osKey. The command is
// normalized the same way lookups are.
func (r *Registry) Register(osKey, command string, fn Func) {
	cmds := r.byOS[osKey]
	if cmds == nil {
		cmds = map[string]Func{}
		r.byOS[osKey] = cmds
	}
	cmds[normalizeCmd(command)] = fn
}

// Lookup finds the parser for a command: exact match first, then the
// longest registered command that is a word-prefix of it (so an
// argument suffix like an interface name still hits the base parser).
// The matched registration is returned for logging.
func (r *Registry) Lookup(osKey, command string) (Func, string, bool) {
	cmds := r.byOS[osKey]
	if cmds == nil {
		return nil, "", false
	}
	norm := normalizeCmd(command)
	if fn, ok := cmds[norm]; ok {
		return fn, norm, true
	}
	best := ""
	for reg := range cmds {
		if len(reg) > len(best) && strings.HasPrefix(norm, reg+" ") {
			best = reg
		}
	}
	if best == "" {
		return nil, "", false
	}
	return cmds[best], best, true
}

func normalizeCmd(cmd string) string {
	return strings.Join(strings.Fields(strings.ToLower(cmd)), " ")
}

// Parser runs registry lookups with a bounded result cache. Identical
// (OS, command, output) triples across hosts or reruns parse once.
type Parser struct {
	reg   *Registry
	cache *lru.Cache[string, map[string]interface{}]
	log   *logging.Logger
}

const cacheSize = 512

// New returns a Parser over the built-in registry.
func New() *Parser {
	return NewWithRegistry(NewRegistry())
}

// NewWithRegistry returns a Parser over a caller-supplied registry.
func NewWithRegistry(reg *Registry) *Parser {
	cache, err := lru.New[string, map[string]interface{}](cacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	return &Parser{
		reg:   reg,
		cache: cache,
		log:   logging.GetLogger("parser"),
	}
}

// Parse runs the registered parser for (platform, command) over text.
// Cached results are shared; callers treat the document as read-only.
func (p *Parser) Parse(platform, command, text string) (map[string]interface{}, error) {
	osKey := OSKey(platform)
	fn, matched, ok := p.reg.Lookup(osKey, command)
	if !ok {
		return nil, fmt.Errorf("%w: %q (%s)", ErrNoParser, command, osKey)
	}

	key := osKey + "|" + showcli.CommandKey(command) + "|" + textSHA1(text)
	if doc, ok := p.cache.Get(key); ok {
		return doc, nil
	}

	doc, err := fn(text)
	if err != nil {
		return nil, fmt.Errorf("parse %q as %q: %w", command, matched, err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("parse %q as %q: empty document", command, matched)
	}
	p.cache.Add(key, doc)
	return doc, nil
}

func textSHA1(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// statusObj builds the status block every parser document carries.
// Deterministic parses always report high confidence; the reason says
// what grounded the call.
func statusObj(name, value, reason string) map[string]interface{} {
	return map[string]interface{}{
		"name":              name,
		"value":             value,
		"confidence":        "high",
		"confidence_reason": reason,
	}
}

// stateRollup counts rows per lowercased value of the state column.
func stateRollup(rows []map[string]interface{}, stateKey string) map[string]interface{} {
	out := map[string]interface{}{}
	for _, r := range rows {
		s, _ := r[stateKey].(string)
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			s = "unknown"
		}
		n, _ := out[s].(int)
		out[s] = n + 1
	}
	return out
}

// overallState derives a status value from a by-state rollup: the
// single state when uniform, "mixed" otherwise, "unknown" when empty.
func overallState(byState map[string]interface{}) string {
	if len(byState) == 0 {
		return "unknown"
	}
	if len(byState) == 1 {
		for s := range byState {
			return s
		}
	}
	return "mixed"
}

// evidenceLine formats a source line for the evidence list, prefixed
// with its 1-based line number.
func evidenceLine(lineNo int, line string) string {
	return fmt.Sprintf("L%d: %s", lineNo, strings.TrimRight(line, " \t"))
}

// rollupSummary renders "3 bgp neighbors (established: 2, idle: 1)"
// with states in sorted order so summaries are stable.
func rollupSummary(total int, noun string, byState map[string]interface{}) string {
	if total == 0 {
		return "no " + noun
	}
	states := make([]string, 0, len(byState))
	for s := range byState {
		states = append(states, s)
	}
	sort.Strings(states)
	parts := make([]string, 0, len(states))
	for _, s := range states {
		parts = append(parts, fmt.Sprintf("%s: %d", s, byState[s]))
	}
	out := fmt.Sprintf("%d %s", total, noun)
	if len(parts) > 0 {
		out += " (" + strings.Join(parts, ", ") + ")"
	}
	return out
}

// capEvidence keeps the evidence list short; the raw text is always on
// disk next to the parse artifact.
func capEvidence(lines []string) []string {
	const max = 6
	if len(lines) <= max {
		return lines
	}
	return lines[:max]
}

// textLines normalizes and splits raw command output.
func textLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
