// Package knowledge enriches reasoning prompts with curated platform
// guidance. Operators ship seed files under knowledge/seed/; lookups
// cache to JSON with a TTL so repeated runs stay cheap. The store
// never fails a pipeline run: anything missing or broken simply yields
// no snippets.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"auspex/internal/config"
	"auspex/internal/llm"
	"auspex/internal/logging"
	"auspex/internal/showcli"
	"auspex/internal/workspace"
)

// Snippet is curated guidance for one signal on one platform.
type Snippet struct {
	Signal            string   `json:"signal"`
	Platform          string   `json:"platform"`
	CanonicalCommands []string `json:"canonical_commands"`
	Notes             []string `json:"notes"`
}

// seedDoc is the on-disk seed shape at knowledge/seed/<platform>/<signal>.json.
type seedDoc struct {
	CanonicalCommands []string `json:"canonical_commands"`
	Notes             []string `json:"notes"`
}

// cacheEntry wraps a resolved snippet with its cache timestamp.
type cacheEntry struct {
	CachedAt int64   `json:"cached_at"`
	Platform string  `json:"platform"`
	Signal   string  `json:"signal"`
	Snippet  Snippet `json:"snippet"`
}

// Store resolves snippets for signal/platform pairs.
type Store struct {
	paths  workspace.Paths
	cfg    config.KnowledgeConfig
	client llm.Client
	log    *logging.Logger
}

// NewStore wires the snippet store. client may be nil; the optional
// confirmation pass is skipped without it.
func NewStore(paths workspace.Paths, cfg config.KnowledgeConfig, client llm.Client) *Store {
	return &Store{
		paths:  paths,
		cfg:    cfg,
		client: client,
		log:    logging.GetLogger("knowledge"),
	}
}

// Lookup returns snippets for the given signals on one platform. A nil
// or disabled store returns nothing; so does a signal without seed
// data. Results come from the cache while fresh.
func (s *Store) Lookup(ctx context.Context, platform string, signals []string) []Snippet {
	if s == nil || !s.cfg.Enabled {
		return nil
	}
	plat := showcli.NormalizePlatform(platform)
	var out []Snippet
	for _, sig := range signals {
		sig = strings.ToLower(strings.TrimSpace(sig))
		if sig == "" {
			continue
		}
		snip := s.lookupOne(ctx, plat, sig)
		if len(snip.CanonicalCommands) == 0 && len(snip.Notes) == 0 {
			continue
		}
		out = append(out, snip)
	}
	return out
}

func (s *Store) lookupOne(ctx context.Context, platform, signal string) Snippet {
	cachePath := filepath.Join(s.paths.KnowledgeCacheDir, cacheKey(platform, signal)+".json")

	var entry cacheEntry
	if err := workspace.ReadJSON(cachePath, &entry); err == nil {
		age := time.Since(time.Unix(entry.CachedAt, 0))
		if age >= 0 && age <= s.ttl() {
			return entry.Snippet
		}
	}

	snip := Snippet{Signal: signal, Platform: platform}
	seedPath := filepath.Join(s.paths.KnowledgeSeedDir, platform, signal+".json")
	var seed seedDoc
	if err := workspace.ReadJSON(seedPath, &seed); err == nil {
		snip.CanonicalCommands = seed.CanonicalCommands
		snip.Notes = seed.Notes
	}

	if s.cfg.Confirm && s.client != nil && len(snip.CanonicalCommands) > 0 {
		snip.CanonicalCommands = s.confirmCanonical(ctx, platform, signal, snip.CanonicalCommands)
	}

	workspace.WriteJSONBestEffort(cachePath, cacheEntry{
		CachedAt: time.Now().Unix(),
		Platform: platform,
		Signal:   signal,
		Snippet:  snip,
	})
	return snip
}

func (s *Store) ttl() time.Duration {
	hours := s.cfg.CacheTTLHours
	if hours <= 0 {
		hours = 168
	}
	return time.Duration(hours) * time.Hour
}

// cacheKey is stable across runs so cache files can be inspected and
// pruned by hand.
func cacheKey(platform, signal string) string {
	sum := sha256.Sum256([]byte(platform + "|" + signal))
	return fmt.Sprintf("%x", sum)[:16]
}

const confirmSystemPrompt = `You are validating CLI show commands for a network platform.
Given a platform, a protocol signal and a list of candidate commands, keep
only the commands that are real, read-only show commands valid on that
platform. Never invent or rewrite commands; only select from the given
list. Return JSON only:
{"commands": ["show ...", ...]}
If unsure about a command, drop it.`

// confirmCanonical asks the model to prune commands that do not apply
// to the platform. Any failure keeps the seed list untouched; the
// model can narrow the list but never extend it.
func (s *Store) confirmCanonical(ctx context.Context, platform, signal string, commands []string) []string {
	payload := struct {
		Platform string   `json:"platform"`
		Signal   string   `json:"signal"`
		Commands []string `json:"commands"`
	}{Platform: platform, Signal: signal, Commands: commands}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return commands
	}

	raw, err := s.client.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: confirmSystemPrompt},
		{Role: llm.RoleUser, Content: "```json\n" + string(body) + "\n```"},
	}, 0)
	if err != nil {
		s.log.Debug("canonical confirm %s/%s: %v", platform, signal, err)
		return commands
	}

	var reply struct {
		Commands []string `json:"commands"`
	}
	if err := llm.DecodeLoose(raw, &reply); err != nil {
		return commands
	}

	allowed := map[string]bool{}
	for _, c := range commands {
		allowed[strings.ToLower(strings.TrimSpace(c))] = true
	}
	var kept []string
	for _, c := range reply.Commands {
		if allowed[strings.ToLower(strings.TrimSpace(c))] {
			kept = append(kept, strings.TrimSpace(c))
		}
	}
	if kept == nil {
		// The model rejected everything; keep an empty list rather
		// than resurrecting pruned commands.
		kept = []string{}
	}
	return kept
}
