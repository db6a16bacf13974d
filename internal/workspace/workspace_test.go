package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLayout(t *testing.T) {
	p, err := Resolve("/var/lib/auspex")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/auspex", p.Root)
	assert.Equal(t, "/var/lib/auspex/capture/show_logs", p.ShowLogsDir)
	assert.Equal(t, "/var/lib/auspex/capture/show_logs/_baseline", p.BaselineDir)
	assert.Equal(t, "/var/lib/auspex/analysis/md-index", p.MDIndexDir)
	assert.Equal(t, "/var/lib/auspex/analysis/parsed/_prev", p.ParsedPrevDir)
	assert.Equal(t, "/var/lib/auspex/analysis/facts/facts_summary.json", p.FactsSummaryFile)
	assert.Equal(t, "/var/lib/auspex/analysis/per_device.json", p.PerDeviceFile)
	assert.Equal(t, "/var/lib/auspex/analysis/cross_device.json", p.CrossDeviceFile)
}

func TestArtifactPathHelpers(t *testing.T) {
	p, err := Resolve("/data")
	require.NoError(t, err)

	assert.Equal(t, "/data/capture/show_logs/r1.md", p.HostCapturePath("r1"))
	assert.Equal(t, "/data/analysis/md-index/r1/r1__blocks.json", p.BlocksIndexPath("r1"))
	assert.Equal(t,
		"/data/analysis/parsed/r1/cisco-ios-xr__show_bgp_summary.json",
		p.ParsedCommandPath("r1", "cisco-ios-xr", "show_bgp_summary"))
	assert.Equal(t, "/data/analysis/facts/r1.json", p.HostFactsPath("r1"))
	assert.Equal(t,
		"/data/analysis/per_device__scoped__a1b2c3d4.json",
		p.ScopedPerDevicePath("a1b2c3d4"))
}

func TestPathHelpersContainTraversal(t *testing.T) {
	p, err := Resolve("/data")
	require.NoError(t, err)

	got := p.HostFactsPath("../../etc/passwd")
	assert.True(t, strings.HasPrefix(got, "/data/analysis/facts/"), got)
	assert.NotContains(t, got, "..")

	got = p.ParsedCommandPath("r1", "cisco-ios", "../escape")
	assert.True(t, strings.HasPrefix(got, "/data/analysis/parsed/r1/"), got)
	assert.NotContains(t, got, "..")
}

func TestEnsureDirs(t *testing.T) {
	p, err := Resolve(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, p.EnsureDirs())

	for _, dir := range []string{p.ShowLogsDir, p.BaselineDir, p.MDIndexDir, p.ParsedDir, p.FactsDir, p.AuditDir, p.MetaDir, p.KnowledgeSeedDir, p.KnowledgeCacheDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
}

func TestRel(t *testing.T) {
	p, err := Resolve(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "analysis/facts/r1.json", p.Rel(p.HostFactsPath("r1")))
	assert.Equal(t, "/elsewhere/x.json", p.Rel("/elsewhere/x.json"))
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	in := map[string]interface{}{"hostname": "r1", "facts_version": float64(1)}
	require.NoError(t, WriteJSON(path, in))

	var out map[string]interface{}
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, in, out)
}

func TestReadJSONEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var out map[string]interface{}
	assert.Error(t, ReadJSON(path, &out))
}

func TestBestEffortWriteNeverPanics(t *testing.T) {
	dir := t.TempDir()
	WriteTextBestEffort(filepath.Join(dir, "a", "b.txt"), []byte("x"))
	data, err := os.ReadFile(filepath.Join(dir, "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	// unmarshalable value is swallowed
	WriteJSONBestEffort(filepath.Join(dir, "bad.json"), func() {})
	_, err = os.Stat(filepath.Join(dir, "bad.json"))
	assert.True(t, os.IsNotExist(err))
}
