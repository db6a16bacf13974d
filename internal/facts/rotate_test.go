package facts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auspex/internal/extract"
	"auspex/internal/parser"
	"auspex/internal/splitter"
	"auspex/internal/workspace"
)

func TestRotateQuarantinesStaleHosts(t *testing.T) {
	paths := testPaths(t)
	trail := testTrail(t, paths)

	// r1 is indexed; old1 lost its index and must be quarantined.
	writeIndex(t, paths, "r1", []splitter.Block{})
	staleArtifact := paths.ParsedCommandPath("old1", "cisco-ios-xr", "show_version")
	require.NoError(t, workspace.WriteJSON(staleArtifact, parser.Artifact{Host: "old1"}))
	require.NoError(t, workspace.WriteJSON(paths.HostFactsPath("old1"), HostFacts{Hostname: "old1"}))
	require.NoError(t, workspace.WriteJSON(paths.FactsSummaryFile, Summary{}))
	scratch := filepath.Join(paths.FactsDir, "_scratch.json")
	require.NoError(t, os.WriteFile(scratch, []byte("{}\n"), 0o644))

	chain := extract.NewChain(trail, extract.NewParserTier(parser.New()))
	_, err := NewBuilder(paths, chain, trail, 1).Run(context.Background(), nil)
	require.NoError(t, err)

	_, err = os.Stat(paths.ParsedHostDir("old1"))
	assert.True(t, os.IsNotExist(err), "stale parsed dir must move out")
	_, err = os.Stat(paths.HostFactsPath("old1"))
	assert.True(t, os.IsNotExist(err), "stale facts file must move out")

	stamps, err := os.ReadDir(paths.ParsedPrevDir)
	require.NoError(t, err)
	require.Len(t, stamps, 1)
	moved := filepath.Join(paths.ParsedPrevDir, stamps[0].Name(), "old1", "cisco-ios-xr__show_version.json")
	_, err = os.Stat(moved)
	assert.NoError(t, err, "artifact keeps its name under the stamp dir")

	stamps, err = os.ReadDir(paths.FactsPrevDir)
	require.NoError(t, err)
	require.Len(t, stamps, 1)
	movedFacts, err := os.ReadDir(filepath.Join(paths.FactsPrevDir, stamps[0].Name()))
	require.NoError(t, err)
	require.Len(t, movedFacts, 1, "summary and _-prefixed entries are exempt")
	assert.Equal(t, "old1.json", movedFacts[0].Name())

	_, err = os.Stat(scratch)
	assert.NoError(t, err)

	events, err := os.ReadFile(trail.Path("events.ndjson"))
	require.NoError(t, err)
	assert.Contains(t, string(events), `"type":"rotation"`)
	assert.Contains(t, string(events), `"kind":"parsed"`)
	assert.Contains(t, string(events), `"kind":"facts"`)
}

func TestRotateSkipsWhenNothingIndexed(t *testing.T) {
	paths := testPaths(t)
	trail := testTrail(t, paths)

	staleArtifact := paths.ParsedCommandPath("old1", "cisco-ios-xr", "show_version")
	require.NoError(t, workspace.WriteJSON(staleArtifact, parser.Artifact{Host: "old1"}))
	require.NoError(t, workspace.WriteJSON(paths.HostFactsPath("old1"), HostFacts{Hostname: "old1"}))

	chain := extract.NewChain(trail, extract.NewParserTier(parser.New()))
	summary, err := NewBuilder(paths, chain, trail, 1).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, summary.Hosts)
	assert.Equal(t, Totals{}, summary.Totals)

	// With nothing indexed there is no authority to rotate on.
	_, err = os.Stat(staleArtifact)
	assert.NoError(t, err)
	_, err = os.Stat(paths.HostFactsPath("old1"))
	assert.NoError(t, err)
}
