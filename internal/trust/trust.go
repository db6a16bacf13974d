// Package trust holds the operator-maintained list of follow-up
// commands considered safe to hand straight to a device. Cross-device
// suggestions that match go into trusted_followup_cmds; everything else
// stays unvalidated. The list only ever sorts suggestions, it never
// adds any.
package trust

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// List is a normalized set of trusted commands.
type List struct {
	commands map[string]bool
}

type trustFile struct {
	Commands []string `yaml:"commands"`
}

// Load reads the trust list from a YAML file. A missing file is not an
// error: it yields an empty list, so every suggestion lands in the
// unvalidated bucket.
func Load(path string) (*List, error) {
	if strings.TrimSpace(path) == "" {
		return &List{commands: map[string]bool{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &List{commands: map[string]bool{}}, nil
		}
		return nil, fmt.Errorf("read trust list: %w", err)
	}
	var doc trustFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse trust list %s: %w", path, err)
	}
	commands := make(map[string]bool, len(doc.Commands))
	for _, cmd := range doc.Commands {
		if norm := Normalize(cmd); norm != "" {
			commands[norm] = true
		}
	}
	return &List{commands: commands}, nil
}

// Trusted reports whether the command is on the list. Matching is exact
// after normalization; near-misses stay unvalidated.
func (l *List) Trusted(cmd string) bool {
	if l == nil {
		return false
	}
	return l.commands[Normalize(cmd)]
}

// Len reports how many commands the list holds.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.commands)
}

// Normalize collapses runs of whitespace and lowercases, so formatting
// differences never decide trust.
func Normalize(cmd string) string {
	return strings.ToLower(strings.Join(strings.Fields(cmd), " "))
}
