package trust

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeList(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trusted.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndMatch(t *testing.T) {
	path := writeList(t, `commands:
  - show ip bgp summary
  - "SHOW   ISIS Adjacency"
`)
	list, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Len())

	assert.True(t, list.Trusted("show ip bgp summary"))
	assert.True(t, list.Trusted("  Show IP   BGP Summary  "))
	assert.True(t, list.Trusted("show isis adjacency"))
	assert.False(t, list.Trusted("show ip bgp"))
	assert.False(t, list.Trusted("show ip bgp summary all"))
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	list, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, list.Len())
	assert.False(t, list.Trusted("show version"))
}

func TestLoadEmptyPathIsEmpty(t *testing.T) {
	list, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, list.Len())
}

func TestLoadBadYAMLFails(t *testing.T) {
	path := writeList(t, "commands: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestNilListIsUntrusting(t *testing.T) {
	var list *List
	assert.False(t, list.Trusted("show version"))
	assert.Equal(t, 0, list.Len())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "show ip bgp summary", Normalize("  Show   IP  BGP   Summary "))
	assert.Equal(t, "", Normalize("   "))
}
