// Package showcli normalizes captured network CLI commands.
//
// Every stage that touches a command string goes through this package:
// the splitter sanitizes echoed commands, the facts builder derives keys
// and topics, and the validators filter suggested follow-ups. Keeping
// the rules in one place means a command rejected here is rejected
// everywhere.
package showcli

import (
	"regexp"
	"sort"
	"strings"
)

const (
	PlatformIOSXR   = "cisco-ios-xr"
	PlatformIOS     = "cisco-ios"
	PlatformUnknown = "unknown"
)

var (
	forbiddenRe = regexp.MustCompile(`(?i)^\s*(conf|configure|reload|clear|debug|monitor|copy|write)\b`)
	showRe      = regexp.MustCompile(`(?i)^\s*show\b`)
	runConfigRe = regexp.MustCompile(`(?i)^\s*show\s+(run|running[-\s]*config)\b`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Sanitize cleans a captured command for the given platform. It returns
// ok=false for anything that is not a plain read-only show command.
//
// Mutating verbs are rejected outright. On IOS XR the IOS-style output
// pipe is stripped (XR gear in this tree does not take it) and the
// short running-config forms are expanded. IOS keeps its pipes.
func Sanitize(cmd, platform string) (string, bool) {
	c := strings.TrimSpace(cmd)
	if c == "" {
		return "", false
	}
	if forbiddenRe.MatchString(c) {
		return "", false
	}
	if !showRe.MatchString(c) {
		return "", false
	}

	if NormalizePlatform(platform) == PlatformIOSXR {
		if i := strings.Index(c, "|"); i >= 0 {
			c = strings.TrimSpace(c[:i])
		}
		c = runConfigRe.ReplaceAllString(c, "show running-config")
	}

	c = strings.TrimSpace(spaceRe.ReplaceAllString(c, " "))
	if c == "" {
		return "", false
	}
	return c, true
}

// NormalizePlatform folds platform spellings onto the canonical names.
// Unrecognized non-empty values pass through lowercased.
func NormalizePlatform(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return PlatformUnknown
	}
	if strings.Contains(p, "xr") {
		return PlatformIOSXR
	}
	if strings.Contains(p, "ios") {
		return PlatformIOS
	}
	return p
}

var cmdKeyDropRe = regexp.MustCompile(`[^a-z0-9_:\-.]`)

// CommandKey derives the stable artifact key for a command: lowercase,
// whitespace to underscores, a small safe charset, at most 160 runes.
func CommandKey(cmd string) string {
	s := strings.ToLower(strings.TrimSpace(cmd))
	s = spaceRe.ReplaceAllString(s, "_")
	s = cmdKeyDropRe.ReplaceAllString(s, "")
	if len(s) > 160 {
		s = s[:160]
	}
	if s == "" {
		return "unknown"
	}
	return s
}

var slugDropRe = regexp.MustCompile(`[^a-z0-9._\-]+`)

// Slug derives a short filename fragment from free text (headings).
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugDropRe.ReplaceAllString(s, "_")
	if len(s) > 40 {
		s = s[:40]
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "block"
	}
	return s
}

// Topic extracts the protocol-ish topic token from a show command:
// the first token after dropping show and address-family fillers.
// "show ip bgp summary" yields "bgp". Empty when nothing remains.
func Topic(cmd string) string {
	toks := strings.Fields(strings.ToLower(strings.TrimSpace(cmd)))
	for _, t := range toks {
		switch t {
		case "show", "ip", "ipv4", "ipv6":
			continue
		}
		return t
	}
	return ""
}

// IsSafe reports whether a suggested follow-up command is acceptable.
// show commands are always safe; ping and traceroute only when active
// probes are allowed; everything else is rejected. A bare verb with no
// arguments is not a runnable suggestion and fails.
func IsSafe(cmd string, allowActive bool) bool {
	c := strings.ToLower(strings.TrimSpace(cmd))
	if strings.HasPrefix(c, "show ") {
		return true
	}
	if allowActive && (strings.HasPrefix(c, "ping ") || strings.HasPrefix(c, "traceroute ")) {
		return true
	}
	return false
}

// signalVocab is the fixed tag vocabulary for signals_seen.
var signalVocab = map[string]string{
	"bgp": "bgp", "isis": "isis", "ospf": "ospf", "mpls": "mpls",
	"evpn": "evpn", "l2vpn": "l2vpn", "sr": "sr", "srv6": "srv6",
	"intf": "intf", "interface": "intf", "interfaces": "intf",
	"ip": "ip", "bfd": "bfd", "lacp": "lacp", "ldp": "ldp",
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// SignalTags derives the sorted set of protocol tags present in the
// given commands. Tags are keyword presence only and carry no judgment
// about protocol health.
func SignalTags(commands []string) []string {
	seen := map[string]bool{}
	for _, cmd := range commands {
		for _, tok := range tokenRe.FindAllString(strings.ToLower(cmd), -1) {
			if tag, ok := signalVocab[tok]; ok {
				seen[tag] = true
			}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
