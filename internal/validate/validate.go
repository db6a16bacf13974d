// Package validate grounds LLM analysis output in captured facts.
//
// Every finding and incident must point at a value that actually exists
// in a host facts document. Anything that does not resolve is dropped
// and the drop is recorded; nothing is repaired or guessed. Command
// suggestions pass through the same safe-command filter the rest of the
// pipeline uses.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"auspex/internal/showcli"
)

// Evidence-ref rejection reasons. These strings land verbatim in drop
// logs and validation artifacts.
const (
	RefNotDict       = "evidence_ref:not_dict"
	RefMissingFields = "evidence_ref:missing_fields"
	RefBadPrefix     = "evidence_ref:bad_prefix"
	RefNoSuchPath    = "evidence_ref:no_such_path"
)

// EvidenceRef points at a concrete value inside a host facts document.
// The path must live under the ref's own command key, so evidence can
// never borrow data from a command it does not name.
type EvidenceRef struct {
	CommandKey string `json:"command_key"`
	Path       string `json:"path"`

	malformed bool
}

// UnmarshalJSON tolerates a ref that is not a JSON object. LLM output
// occasionally puts a bare string or number here; recording that and
// rejecting the single ref beats failing the whole document decode.
func (e *EvidenceRef) UnmarshalJSON(data []byte) error {
	var probe struct {
		CommandKey string `json:"command_key"`
		Path       string `json:"path"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		*e = EvidenceRef{malformed: true}
		return nil
	}
	e.CommandKey = probe.CommandKey
	e.Path = probe.Path
	e.malformed = false
	return nil
}

// Malformed reports whether the ref decoded from something other than a
// JSON object.
func (e EvidenceRef) Malformed() bool { return e.malformed }

// Resolver answers dotted-path lookups against one facts document.
// Only JSON objects are traversed: arrays cannot be indexed, so a path
// that would have to reach inside a list does not resolve. Evidence has
// to point at stable named values.
type Resolver struct {
	doc map[string]interface{}
}

// NewResolver builds a Resolver from any JSON-shaped value. Typed facts
// documents round-trip through encoding/json into the generic view; a
// map is used as-is.
func NewResolver(v interface{}) (*Resolver, error) {
	if doc, ok := v.(map[string]interface{}); ok {
		return &Resolver{doc: doc}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("facts document not JSON-shaped: %w", err)
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("facts document not a JSON object: %w", err)
	}
	return &Resolver{doc: doc}, nil
}

// Resolve walks a dotted path through nested objects and returns the
// value it lands on. The empty path resolves to the document itself.
func (r *Resolver) Resolve(path string) (interface{}, bool) {
	var cur interface{} = r.doc
	if path == "" {
		return cur, true
	}
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// CheckRef validates one evidence ref against a host's facts. It
// returns ok plus the rejection reason when the ref fails. Refs are
// never rewritten to make them pass.
func CheckRef(r *Resolver, ref EvidenceRef) (bool, string) {
	if ref.malformed {
		return false, RefNotDict
	}
	cmdKey := strings.TrimSpace(ref.CommandKey)
	path := strings.TrimSpace(ref.Path)
	if cmdKey == "" || path == "" {
		return false, RefMissingFields
	}
	if !strings.HasPrefix(path, "commands."+cmdKey+".") {
		return false, RefBadPrefix
	}
	if _, ok := r.Resolve(path); !ok {
		return false, RefNoSuchPath
	}
	return true, ""
}

// CommandKeyFromPath derives the command key an evidence path points
// at. Cross-device evidence carries {host, path} without an explicit
// key, so the key is read out of the path itself.
func CommandKeyFromPath(path string) string {
	if !strings.HasPrefix(path, "commands.") {
		return ""
	}
	parts := strings.SplitN(path, ".", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// FilterCommands keeps only commands that pass the safe-command policy.
// Order is preserved. The result is never nil so artifacts serialize an
// empty list rather than null.
func FilterCommands(cmds []string, allowActive bool) []string {
	kept := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if showcli.IsSafe(c, allowActive) {
			kept = append(kept, c)
		}
	}
	return kept
}

// IsSafe reports whether a suggested command is acceptable. It is
// showcli.IsSafe; validation callers get it here so the policy has a
// single home.
func IsSafe(cmd string, allowActive bool) bool {
	return showcli.IsSafe(cmd, allowActive)
}

// Drop is one rejected element from a validation pass.
type Drop struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// DropLog accumulates validation drops for one stage over one host (or
// the whole fleet for cross-device validation).
type DropLog struct {
	Stage string
	Host  string

	drops []Drop
}

// NewDropLog returns an empty log for the given stage and host scope.
func NewDropLog(stage, host string) *DropLog {
	return &DropLog{Stage: stage, Host: host}
}

// Add records one drop. Kind names what was rejected (finding,
// incident, command); reason is the composed reason string; detail is
// free text for the audit trail.
func (l *DropLog) Add(kind, reason, detail string) {
	l.drops = append(l.drops, Drop{Kind: kind, Reason: reason, Detail: detail})
}

// Drops returns the recorded entries in order.
func (l *DropLog) Drops() []Drop { return l.drops }

// Reasons returns just the reason strings, in order. This is the shape
// validation artifacts persist.
func (l *DropLog) Reasons() []string {
	out := make([]string, 0, len(l.drops))
	for _, d := range l.drops {
		out = append(out, d.Reason)
	}
	return out
}

// Len reports how many drops were recorded.
func (l *DropLog) Len() int { return len(l.drops) }
